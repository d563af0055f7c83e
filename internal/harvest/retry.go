package harvest

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net"
	"time"
)

// RetryConfig controls the resilient call executor.
type RetryConfig struct {
	MaxAttempts int           // attempt ceiling, shared by retries and quota rotations
	InitialWait time.Duration // base backoff, doubles each attempt
	MaxWait     time.Duration
	Budget      time.Duration // wall-clock cap for the whole call
}

// DefaultRetryConfig matches the external API's documented limits:
// 3 attempts, 300s total.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts: 3,
	InitialWait: time.Second,
	MaxWait:     60 * time.Second,
	Budget:      300 * time.Second,
}

// Execute wraps one outbound request with retry/backoff and
// rotation-on-quota semantics. The credential is acquired once per logical
// call and held across transient retries: a failed attempt raises the
// key's failure rate, so re-acquiring mid-call could reject the pool
// before the retry budget is spent. A fresh credential is taken only when
// the error carries a quota signal and the pool rotates.
// Quota rotations and transient retries share the same attempt ceiling so
// the loop stays bounded. Fatal failures and pool exhaustion propagate
// immediately. Every attempt is reported to the pool via RecordOutcome.
func Execute[T any](ctx context.Context, pool *KeyPool, rc RetryConfig, op string, quotaCost int, fn func(key string) (T, error)) (T, error) {
	var zero T
	var lastErr error

	deadline := time.Now().Add(rc.Budget)

	key, err := pool.Current()
	if err != nil {
		return zero, &CallError{Kind: KindFatal, Op: op, Err: err}
	}

	for attempt := 0; attempt < rc.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if time.Now().After(deadline) {
			break
		}

		result, err := fn(key)
		kind := KindTransient
		if err != nil {
			kind = errKind(err)
		}
		pool.RecordOutcome(key, op, err == nil, err != nil && kind == KindQuota, quotaCost, err)

		if err == nil {
			return result, nil
		}
		lastErr = err

		switch kind {
		case KindQuota:
			// Not retried in place: rotate and re-issue the same logical
			// request, counted against the same attempt budget.
			metrics.QuotaRotations.Add(1)
			next, rerr := pool.Rotate()
			if rerr != nil {
				return zero, &CallError{Kind: KindFatal, Op: op, Err: rerr}
			}
			key = next
			slog.Warn("quota exceeded, rotated credential",
				slog.String("op", op), slog.Int("attempt", attempt+1))
			continue
		case KindFatal:
			return zero, err
		}

		if attempt < rc.MaxAttempts-1 {
			wait := backoffWait(rc, attempt)
			if remaining := time.Until(deadline); wait > remaining {
				wait = remaining
			}
			slog.Debug("retrying",
				slog.String("op", op), slog.Int("attempt", attempt+1),
				slog.Duration("wait", wait), slog.Any("error", err))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}
	return zero, lastErr
}

// ConfiguredRetry derives the executor settings from the engine config,
// keeping the default backoff shape.
func ConfiguredRetry() RetryConfig {
	rc := DefaultRetryConfig
	if Cfg.RetryAttempts > 0 {
		rc.MaxAttempts = Cfg.RetryAttempts
	}
	if Cfg.RetryBudget > 0 {
		rc.Budget = Cfg.RetryBudget
	}
	return rc
}

func backoffWait(rc RetryConfig, attempt int) time.Duration {
	wait := time.Duration(float64(rc.InitialWait) * math.Pow(2, float64(attempt)))
	if wait > rc.MaxWait {
		wait = rc.MaxWait
	}
	return wait
}

// isRetryable returns true for network-level errors worth retrying.
func isRetryable(err error) bool {
	// Connection errors (dial failures, connection refused, etc.)
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	// DNS errors
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	// Timeout errors (net.Error includes OpError, so check after OpError)
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
