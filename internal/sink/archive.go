package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lankahub/tubeharvest/internal/harvest"
)

// Archive writes each persisted batch to a timestamped JSON file with a
// metadata envelope. Useful as an audit trail and as an offline export.
type Archive struct {
	dir string
	mu  sync.Mutex

	now func() time.Time
}

// archiveEnvelope is the on-disk document.
type archiveEnvelope struct {
	Metadata archiveMetadata       `json:"extraction_metadata"`
	Videos   []harvest.ScoredVideo `json:"videos"`
}

type archiveMetadata struct {
	ExtractedAt time.Time `json:"extracted_at"`
	SearchQuery string    `json:"search_query"`
	VideoCount  int       `json:"video_count"`
	Region      string    `json:"region"`
}

// NewArchive creates the directory if needed.
func NewArchive(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archive{dir: dir, now: time.Now}, nil
}

// Persist writes the batch as one file. The archive accepts everything or
// nothing: a write failure persists no IDs.
func (a *Archive) Persist(ctx context.Context, items []harvest.ScoredVideo) (harvest.PersistResult, error) {
	if len(items) == 0 {
		return harvest.PersistResult{}, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	query := items[0].SearchQuery
	env := archiveEnvelope{
		Metadata: archiveMetadata{
			ExtractedAt: a.now(),
			SearchQuery: query,
			VideoCount:  len(items),
			Region:      harvest.Cfg.RegionCode,
		},
		Videos: items,
	}

	path := filepath.Join(a.dir, archiveFilename(a.now(), query))
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return harvest.PersistResult{}, fmt.Errorf("marshal archive: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return harvest.PersistResult{}, fmt.Errorf("write archive: %w", err)
	}

	res := harvest.PersistResult{PersistedCount: len(items)}
	for _, v := range items {
		res.PersistedIDs = append(res.PersistedIDs, v.ID)
	}
	slog.Debug("archive written", slog.String("path", path), slog.Int("videos", len(items)))
	return res, nil
}

// archiveFilename builds extraction_<timestamp>_<slug>.json.
func archiveFilename(at time.Time, query string) string {
	slug := strings.ToLower(query)
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, slug)
	slug = strings.Trim(slug, "_")
	if len(slug) > 40 {
		slug = slug[:40]
	}
	if slug == "" {
		slug = "batch"
	}
	return fmt.Sprintf("extraction_%s_%s.json", at.Format("20060102_150405"), slug)
}
