package harvest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// memSeenStore is an in-memory SeenStore for tests.
type memSeenStore struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	failOn string
}

func newMemSeenStore() *memSeenStore {
	return &memSeenStore{seen: map[string]time.Time{}}
}

func (m *memSeenStore) LastSeen(ctx context.Context, id string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.seen[id]
	return t, ok, nil
}

func (m *memSeenStore) MarkSeen(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == m.failOn {
		return errors.New("store write failed")
	}
	m.seen[id] = at
	return nil
}

func TestDedupTouchThenFresh(t *testing.T) {
	store := newMemSeenStore()
	d := NewTieredDedup(store, "", time.Hour)

	ctx := context.Background()
	if d.IsFresh(ctx, "v1") {
		t.Fatal("unseen id reported fresh")
	}
	if err := d.Touch(ctx, "v1"); err != nil {
		t.Fatal(err)
	}
	if !d.IsFresh(ctx, "v1") {
		t.Fatal("touched id not fresh")
	}
	if _, ok := store.seen["v1"]; !ok {
		t.Error("touch did not reach the durable store")
	}
}

func TestDedupWindowExpiry(t *testing.T) {
	store := newMemSeenStore()
	d := NewTieredDedup(store, "", time.Hour)

	base := time.Now()
	d.now = func() time.Time { return base }

	ctx := context.Background()
	if err := d.Touch(ctx, "v1"); err != nil {
		t.Fatal(err)
	}

	d.now = func() time.Time { return base.Add(30 * time.Minute) }
	if !d.IsFresh(ctx, "v1") {
		t.Error("id inside the window should be fresh")
	}

	// Past the window the record still exists but no longer counts.
	d.now = func() time.Time { return base.Add(2 * time.Hour) }
	if d.IsFresh(ctx, "v1") {
		t.Error("id outside the window should not be fresh")
	}
	if _, ok := store.seen["v1"]; !ok {
		t.Error("expiry must not delete the durable record")
	}
}

func TestDedupStoreHitRepopulatesL1(t *testing.T) {
	store := newMemSeenStore()
	store.seen["v1"] = time.Now().Add(-10 * time.Minute)

	d := NewTieredDedup(store, "", time.Hour)
	ctx := context.Background()

	if !d.IsFresh(ctx, "v1") {
		t.Fatal("store record inside the window should be fresh")
	}
	if _, ok := d.l1.Load("v1"); !ok {
		t.Error("store hit should repopulate L1")
	}
}

func TestDedupTouchStoreErrorPropagates(t *testing.T) {
	store := newMemSeenStore()
	store.failOn = "bad"

	d := NewTieredDedup(store, "", time.Hour)
	if err := d.Touch(context.Background(), "bad"); err == nil {
		t.Fatal("store write failure must propagate")
	}
}

func TestDedupInvalidRedisURLDisablesL2(t *testing.T) {
	store := newMemSeenStore()
	d := NewTieredDedup(store, "not a url", time.Hour)
	if d.rdb != nil {
		t.Fatal("invalid redis URL should leave L2 disabled")
	}
	// Still fully functional on L1+store.
	ctx := context.Background()
	if err := d.Touch(ctx, "v1"); err != nil {
		t.Fatal(err)
	}
	if !d.IsFresh(ctx, "v1") {
		t.Error("dedup should work without L2")
	}
}
