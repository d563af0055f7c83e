package sink

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lankahub/tubeharvest/internal/harvest"
)

func testItems(ids ...string) []harvest.ScoredVideo {
	items := make([]harvest.ScoredVideo, 0, len(ids))
	for _, id := range ids {
		items = append(items, harvest.ScoredVideo{
			Video:       harvest.Video{ID: id, Title: "Sri Lanka " + id},
			IsRelevant:  true,
			SearchQuery: "Sri Lanka beaches",
			ExtractedAt: time.Now(),
		})
	}
	return items
}

func TestArchivePersistWritesEnvelope(t *testing.T) {
	dir := t.TempDir()
	a, err := NewArchive(dir)
	require.NoError(t, err)

	res, err := a.Persist(context.Background(), testItems("v1", "v2"))
	require.NoError(t, err)
	require.Equal(t, 2, res.PersistedCount)
	require.Equal(t, []string{"v1", "v2"}, res.PersistedIDs)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Regexp(t, `^extraction_\d{8}_\d{6}_sri_lanka_beaches\.json$`, entries[0].Name())

	raw, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)

	var env archiveEnvelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.Equal(t, 2, env.Metadata.VideoCount)
	require.Equal(t, "Sri Lanka beaches", env.Metadata.SearchQuery)
	require.Len(t, env.Videos, 2)
}

func TestArchiveEmptyBatch(t *testing.T) {
	a, err := NewArchive(t.TempDir())
	require.NoError(t, err)

	res, err := a.Persist(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, res.PersistedCount)
}

func TestArchiveFilenameSlug(t *testing.T) {
	at := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		query string
		want  string
	}{
		{"Sri Lanka news", "extraction_20260825_103000_sri_lanka_news.json"},
		{"?!#", "extraction_20260825_103000_batch.json"},
		{"", "extraction_20260825_103000_batch.json"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, archiveFilename(at, tt.query))
	}
}

type scriptedSink struct {
	res harvest.PersistResult
	err error
}

func (s scriptedSink) Persist(ctx context.Context, items []harvest.ScoredVideo) (harvest.PersistResult, error) {
	return s.res, s.err
}

func TestMultiIntersectsPersistedIDs(t *testing.T) {
	items := testItems("v1", "v2", "v3")
	m := NewMulti(
		scriptedSink{res: harvest.PersistResult{PersistedCount: 3, PersistedIDs: []string{"v1", "v2", "v3"}}},
		scriptedSink{res: harvest.PersistResult{PersistedCount: 2, PersistedIDs: []string{"v1", "v3"}, Errors: []string{"v2: boom"}}},
	)

	res, err := m.Persist(context.Background(), items)
	require.NoError(t, err)
	// Only items every sink accepted count as persisted.
	require.Equal(t, 2, res.PersistedCount)
	require.ElementsMatch(t, []string{"v1", "v3"}, res.PersistedIDs)
	require.NotEmpty(t, res.Errors)
}

func TestMultiWholeBatchSuccessWithoutIDs(t *testing.T) {
	items := testItems("v1", "v2")
	m := NewMulti(
		scriptedSink{res: harvest.PersistResult{PersistedCount: 2}}, // no itemized IDs
		scriptedSink{res: harvest.PersistResult{PersistedCount: 2, PersistedIDs: []string{"v1", "v2"}}},
	)

	res, err := m.Persist(context.Background(), items)
	require.NoError(t, err)
	require.Equal(t, 2, res.PersistedCount)
}

func TestMultiAllSinksFail(t *testing.T) {
	boom := errors.New("downstream gone")
	m := NewMulti(scriptedSink{err: boom}, scriptedSink{err: boom})

	res, err := m.Persist(context.Background(), testItems("v1"))
	require.ErrorIs(t, err, boom)
	require.Zero(t, res.PersistedCount)
}

func TestMultiOneSinkFailing(t *testing.T) {
	m := NewMulti(
		scriptedSink{res: harvest.PersistResult{PersistedCount: 1, PersistedIDs: []string{"v1"}}},
		scriptedSink{err: errors.New("archive disk full")},
	)

	// One sink failed, so nothing is fully persisted and the failure
	// propagates; the batch stays eligible for the next pass.
	res, err := m.Persist(context.Background(), testItems("v1"))
	require.Error(t, err)
	require.Zero(t, res.PersistedCount)
	require.NotEmpty(t, res.Errors)
}
