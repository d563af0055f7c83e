package harvest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Credential tracks one API key and its usage counters. The key itself is
// never logged or exposed; status surfaces carry only a truncated hash.
type Credential struct {
	key string

	// Lifetime counters, kept across daily resets for reporting.
	totalRequests      int64
	successfulRequests int64
	failedRequests     int64
	quotaExceededTotal int64

	// Daily-scoped counters, cleared on local-date rollover.
	dailyUsed          int64
	quotaExceededCount int64

	lastUsed     time.Time
	dailyResetAt time.Time
}

// KeyStatus is the observable state of one credential. Counts only, never
// the raw key.
type KeyStatus struct {
	Index              int       `json:"index"`
	KeyHash            string    `json:"key_hash"`
	IsCurrent          bool      `json:"is_current"`
	IsAvailable        bool      `json:"is_available"`
	TotalRequests      int64     `json:"total_requests"`
	SuccessfulRequests int64     `json:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests"`
	QuotaExceededCount int64     `json:"quota_exceeded_count"`
	QuotaRemaining     int64     `json:"quota_remaining"`
	LastUsed           time.Time `json:"last_used,omitzero"`
}

// PoolStatus summarizes the whole pool for the status surface.
type PoolStatus struct {
	TotalKeys    int         `json:"total_keys"`
	CurrentIndex int         `json:"current_key_index"`
	Keys         []KeyStatus `json:"keys"`
}

// UsageLogger receives every recorded outcome, success or failure.
// Typically backed by the sqlite usage log; may be nil.
type UsageLogger func(entry UsageEntry)

// KeyPool owns the credential set and the rotation pointer. Rotation and
// counter updates are a critical section: all access goes through mu.
type KeyPool struct {
	mu         sync.Mutex
	keys       []*Credential
	current    int
	dailyLimit int
	lastReset  time.Time // date of the last daily reset
	logUsage   UsageLogger

	now func() time.Time
}

// NewKeyPool builds a pool from a non-empty ordered key list.
// An empty list is a fatal startup error.
func NewKeyPool(keys []string, dailyLimit int) (*KeyPool, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("keypool: no API keys configured")
	}
	p := &KeyPool{
		dailyLimit: dailyLimit,
		now:        time.Now,
	}
	for _, k := range keys {
		p.keys = append(p.keys, &Credential{key: k, dailyResetAt: midnight(time.Now())})
	}
	p.lastReset = midnight(time.Now())
	slog.Info("keypool initialized", slog.Int("keys", len(keys)), slog.Int("daily_limit", dailyLimit))
	return p, nil
}

// SetUsageLogger installs an observer for recorded outcomes.
func (p *KeyPool) SetUsageLogger(fn UsageLogger) {
	p.mu.Lock()
	p.logUsage = fn
	p.mu.Unlock()
}

// Current returns the usable current credential, rotating past unavailable
// ones. Returns ErrPoolExhausted when no credential is available.
func (p *KeyPool) Current() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.resetDailyIfNeeded()

	if p.available(p.keys[p.current]) {
		c := p.keys[p.current]
		c.lastUsed = p.now()
		return c.key, nil
	}
	return p.rotateLocked()
}

// Rotate advances the pointer circularly to the next available credential.
// If a full cycle finds none, the pointer is restored and ErrPoolExhausted
// is returned.
func (p *KeyPool) Rotate() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.resetDailyIfNeeded()
	return p.rotateLocked()
}

func (p *KeyPool) rotateLocked() (string, error) {
	original := p.current
	for range p.keys {
		p.current = (p.current + 1) % len(p.keys)
		c := p.keys[p.current]
		if p.available(c) {
			slog.Info("rotated to API key", slog.Int("index", p.current))
			c.lastUsed = p.now()
			return c.key, nil
		}
	}
	p.current = original
	slog.Error("no available API keys after full rotation cycle")
	return "", ErrPoolExhausted
}

// RecordOutcome updates counters after an attempt. Every outcome is
// recorded for observability even though only quota/failure outcomes
// affect availability.
func (p *KeyPool) RecordOutcome(key, requestType string, success, quotaErr bool, quotaCost int, callErr error) {
	p.mu.Lock()
	c := p.findLocked(key)
	var logFn UsageLogger
	var entry UsageEntry
	if c != nil {
		c.totalRequests++
		c.dailyUsed += int64(quotaCost)
		c.lastUsed = p.now()
		if success {
			c.successfulRequests++
		} else {
			c.failedRequests++
			if quotaErr {
				c.quotaExceededCount++
				c.quotaExceededTotal++
			}
		}
		if p.logUsage != nil {
			errMsg := ""
			if callErr != nil {
				errMsg = callErr.Error()
			}
			entry = UsageEntry{
				KeyHash:     keyHash(key),
				RequestType: requestType,
				Success:     success,
				QuotaError:  quotaErr,
				QuotaCost:   quotaCost,
				Error:       errMsg,
				At:          p.now(),
			}
			logFn = p.logUsage
		}
	}
	p.mu.Unlock()

	// Log outside the lock; the logger may hit the database.
	if logFn != nil {
		logFn(entry)
	}
}

// available is the availability predicate from the rotation policy:
// under daily limit, failure rate <= 50%, and at most 3 quota violations
// since the last daily reset.
func (p *KeyPool) available(c *Credential) bool {
	if p.dailyLimit > 0 && c.dailyUsed >= int64(p.dailyLimit) {
		return false
	}
	if c.totalRequests > 0 && float64(c.failedRequests)/float64(c.totalRequests) > 0.5 {
		return false
	}
	if c.quotaExceededCount > 3 {
		return false
	}
	return true
}

// resetDailyIfNeeded clears daily-scoped counters on the first access after
// local-date rollover. Lifetime totals are untouched.
func (p *KeyPool) resetDailyIfNeeded() {
	today := midnight(p.now())
	if !today.After(p.lastReset) {
		return
	}
	for _, c := range p.keys {
		c.dailyUsed = 0
		c.quotaExceededCount = 0
		c.dailyResetAt = today
	}
	p.lastReset = today
	slog.Info("daily API usage tracking reset", slog.Int("keys", len(p.keys)))
}

func (p *KeyPool) findLocked(key string) *Credential {
	for _, c := range p.keys {
		if c.key == key {
			return c
		}
	}
	return nil
}

// Status returns a counts-only snapshot of the pool.
func (p *KeyPool) Status() PoolStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := PoolStatus{
		TotalKeys:    len(p.keys),
		CurrentIndex: p.current,
	}
	for i, c := range p.keys {
		remaining := int64(p.dailyLimit) - c.dailyUsed
		if remaining < 0 {
			remaining = 0
		}
		st.Keys = append(st.Keys, KeyStatus{
			Index:              i,
			KeyHash:            keyHash(c.key),
			IsCurrent:          i == p.current,
			IsAvailable:        p.available(c),
			TotalRequests:      c.totalRequests,
			SuccessfulRequests: c.successfulRequests,
			FailedRequests:     c.failedRequests,
			QuotaExceededCount: c.quotaExceededCount,
			QuotaRemaining:     remaining,
			LastUsed:           c.lastUsed,
		})
	}
	return st
}

// keyHash returns a 16-char sha256 prefix for display.
func keyHash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
