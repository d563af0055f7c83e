package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadStrategiesDefault(t *testing.T) {
	strategies, err := LoadStrategies("")
	require.NoError(t, err)
	require.Len(t, strategies, 21)
}

func TestLoadStrategiesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	doc := `
strategies:
  - query: "Sri Lanka surfing"
    category: travel
    priority: 1
    max_results: 30
  - query: "Colombo street food"
    category: food
    priority: 2
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	strategies, err := LoadStrategies(path)
	require.NoError(t, err)
	require.Len(t, strategies, 2)
	require.Equal(t, "Sri Lanka surfing", strategies[0].Query)
	require.Equal(t, "travel", strategies[0].Category)
	require.Equal(t, 30, strategies[0].MaxResults)
	require.Equal(t, 2, strategies[1].Priority)
}

func TestLoadStrategiesErrors(t *testing.T) {
	_, err := LoadStrategies(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("strategies: []\n"), 0o644))
	_, err = LoadStrategies(empty)
	require.Error(t, err)

	noQuery := filepath.Join(t.TempDir(), "noquery.yaml")
	require.NoError(t, os.WriteFile(noQuery, []byte("strategies:\n  - category: news\n"), 0o644))
	_, err = LoadStrategies(noQuery)
	require.ErrorContains(t, err, "no query")
}

func TestEngineMapping(t *testing.T) {
	app := App{
		APIKeys:           []string{"k1", "k2"},
		DailyLimitPerKey:  5000,
		RegionCode:        "LK",
		MinRelevanceScore: 0.5,
	}
	engine := app.Engine()
	require.Equal(t, []string{"k1", "k2"}, engine.APIKeys)
	require.Equal(t, 5000, engine.DailyLimitPerKey)
	require.Equal(t, 0.5, engine.MinRelevanceScore)
}
