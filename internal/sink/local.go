package sink

import (
	"context"

	"github.com/lankahub/tubeharvest/internal/harvest"
	"github.com/lankahub/tubeharvest/internal/storage"
)

// Local adapts the sqlite store into a sink, for deployments without an
// external downstream. The store upsert is all-or-nothing per batch, so a
// failure persists no IDs.
type Local struct {
	store storage.Store
}

// NewLocal wraps the store.
func NewLocal(store storage.Store) *Local {
	return &Local{store: store}
}

// Persist saves the batch into the local analytics cache.
func (l *Local) Persist(ctx context.Context, items []harvest.ScoredVideo) (harvest.PersistResult, error) {
	n, err := l.store.SaveVideos(ctx, items)
	if err != nil {
		return harvest.PersistResult{}, err
	}
	res := harvest.PersistResult{PersistedCount: n}
	for i, v := range items {
		if i >= n {
			break
		}
		res.PersistedIDs = append(res.PersistedIDs, v.ID)
	}
	return res, nil
}
