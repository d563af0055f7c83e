package harvest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies an outbound call failure for the executor.
type ErrorKind int

const (
	// KindTransient: network errors, 5xx-equivalent. Retried with backoff.
	KindTransient ErrorKind = iota
	// KindQuota: explicit quota/rate signal. Never retried in place; the
	// executor rotates the credential and re-issues the same request.
	KindQuota
	// KindFatal: malformed request, non-quota permission denial. Propagates
	// immediately; the orchestrator treats it as a failed strategy.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindQuota:
		return "quota"
	case KindFatal:
		return "fatal"
	}
	return "unknown"
}

// CallError is a classified failure of one outbound call.
type CallError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// ErrAlreadyRunning is returned by StartRun while a session is in flight.
var ErrAlreadyRunning = errors.New("extraction already running")

// ErrNotRunning is returned by StopRun when no session is in flight.
var ErrNotRunning = errors.New("no extraction running")

// ErrPoolExhausted means every credential is over quota or unavailable.
// Fatal and non-retryable for the current call.
var ErrPoolExhausted = errors.New("all credentials exhausted or unavailable")

// errKind extracts the classification from an error chain.
// Unclassified errors default to transient per the retry policy in retry.go.
func errKind(err error) ErrorKind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, ErrPoolExhausted) {
		return KindFatal
	}
	// Network-level failures are classified before the message scan so a
	// "connection reset by peer, rate ..." wording is never read as quota.
	if isRetryable(err) {
		return KindTransient
	}
	if hasQuotaSignal(err.Error()) {
		return KindQuota
	}
	// Network failures, retryable statuses, and generic unclassified
	// errors all count as transient; only explicit CallError values are
	// fatal.
	return KindTransient
}

// hasQuotaSignal reports whether an error message carries the external
// API's quota/rate marker.
func hasQuotaSignal(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "quota") || strings.Contains(m, "rate")
}
