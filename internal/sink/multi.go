package sink

import (
	"context"
	"fmt"

	"github.com/lankahub/tubeharvest/internal/harvest"
)

// Multi fans a batch out to several sinks. An item counts as persisted
// only when every sink accepted it, so the dedup touch stays conservative:
// a partially persisted item will be retried on the next pass.
type Multi struct {
	sinks []harvest.Sink
}

// NewMulti wraps the given sinks. With a single sink it is a passthrough.
func NewMulti(sinks ...harvest.Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Persist forwards to every sink and intersects the persisted ID sets.
func (m *Multi) Persist(ctx context.Context, items []harvest.ScoredVideo) (harvest.PersistResult, error) {
	if len(m.sinks) == 0 {
		return harvest.PersistResult{}, fmt.Errorf("multi sink: no sinks configured")
	}

	accepted := make(map[string]int, len(items))
	var combined harvest.PersistResult
	var firstErr error

	for _, s := range m.sinks {
		res, err := s.Persist(ctx, items)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			combined.Errors = append(combined.Errors, err.Error())
			continue
		}
		combined.Errors = append(combined.Errors, res.Errors...)

		ids := res.PersistedIDs
		if ids == nil && len(res.Errors) == 0 && res.PersistedCount >= len(items) {
			// Sink reported whole-batch success without itemizing.
			for _, v := range items {
				ids = append(ids, v.ID)
			}
		}
		for _, id := range ids {
			accepted[id]++
		}
	}

	for _, v := range items {
		if accepted[v.ID] == len(m.sinks) {
			combined.PersistedCount++
			combined.PersistedIDs = append(combined.PersistedIDs, v.ID)
		}
	}

	if combined.PersistedCount == 0 && firstErr != nil {
		return combined, firstErr
	}
	return combined, nil
}
