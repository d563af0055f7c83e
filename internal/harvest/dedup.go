package harvest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupCache is a freshness-windowed membership test over previously seen
// items. A record older than the window counts as absent even though it is
// not deleted; retention is a separate concern.
type DedupCache interface {
	IsFresh(ctx context.Context, id string) bool
	Touch(ctx context.Context, id string) error
}

// SeenStore is the durable bottom tier of the dedup cache.
type SeenStore interface {
	LastSeen(ctx context.Context, id string) (time.Time, bool, error)
	MarkSeen(ctx context.Context, id string, at time.Time) error
}

// TieredDedup layers L1 memory and optional L2 redis over the durable
// store. L1 is fast but lost on restart; L2 survives restarts and is
// shared; L3 is the source of truth.
type TieredDedup struct {
	l1      sync.Map // id -> time.Time (lastSeenAt)
	rdb     *redis.Client
	store   SeenStore
	window  time.Duration
	touchMu sync.Mutex // serializes Touch to avoid lost updates per id

	now func() time.Time
}

// NewTieredDedup builds the cache. redisURL may be empty to disable L2;
// an unreachable redis also just disables L2.
func NewTieredDedup(store SeenStore, redisURL string, window time.Duration) *TieredDedup {
	d := &TieredDedup{store: store, window: window, now: time.Now}

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Warn("dedup: invalid redis URL, L2 disabled", slog.Any("error", err))
		} else {
			rdb := redis.NewClient(opts)
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				slog.Warn("dedup: redis unreachable, L2 disabled", slog.Any("error", err))
			} else {
				d.rdb = rdb
				slog.Info("dedup: L2 redis connected", slog.String("addr", opts.Addr))
			}
		}
	}
	return d
}

// IsFresh reports whether the item was seen within the freshness window.
// Lower-tier hits repopulate L1.
func (d *TieredDedup) IsFresh(ctx context.Context, id string) bool {
	now := d.now()

	if val, ok := d.l1.Load(id); ok {
		seen := val.(time.Time)
		if now.Sub(seen) < d.window {
			metrics.CacheHits.Add(1)
			return true
		}
		d.l1.Delete(id) // stale
	}

	if d.rdb != nil {
		raw, err := d.rdb.Get(ctx, seenKey(id)).Result()
		if err == nil {
			if seen, perr := time.Parse(time.RFC3339Nano, raw); perr == nil && now.Sub(seen) < d.window {
				d.l1.Store(id, seen)
				metrics.CacheHits.Add(1)
				return true
			}
		}
	}

	if d.store != nil {
		seen, ok, err := d.store.LastSeen(ctx, id)
		if err != nil {
			slog.Warn("dedup: store lookup failed", slog.String("id", id), slog.Any("error", err))
		} else if ok && now.Sub(seen) < d.window {
			d.l1.Store(id, seen)
			metrics.CacheHits.Add(1)
			return true
		}
	}

	metrics.CacheMisses.Add(1)
	return false
}

// Touch upserts lastSeenAt = now in every tier. Idempotent; called only
// after an item was successfully persisted downstream.
func (d *TieredDedup) Touch(ctx context.Context, id string) error {
	d.touchMu.Lock()
	defer d.touchMu.Unlock()

	now := d.now()
	d.l1.Store(id, now)

	if d.rdb != nil {
		if err := d.rdb.Set(ctx, seenKey(id), now.Format(time.RFC3339Nano), d.window).Err(); err != nil {
			slog.Debug("dedup: L2 set failed", slog.Any("error", err))
		}
	}

	if d.store != nil {
		if err := d.store.MarkSeen(ctx, id, now); err != nil {
			return err
		}
	}
	return nil
}

func seenKey(id string) string { return "th:seen:" + id }
