package harvest

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	SearchRequests  atomic.Int64
	DetailRequests  atomic.Int64
	QuotaRotations  atomic.Int64
	StrategyErrors  atomic.Int64
	VideosScored    atomic.Int64
	RelevantVideos  atomic.Int64
	VideosPersisted atomic.Int64
	SinkErrors      atomic.Int64
	CacheHits       atomic.Int64
	CacheMisses     atomic.Int64
	RunsStarted     atomic.Int64
	RunsCompleted   atomic.Int64
	RunsFailed      atomic.Int64
	RunsStopped     atomic.Int64
}

// GetMetrics returns a snapshot of all engine counters.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"search_requests":  metrics.SearchRequests.Load(),
		"detail_requests":  metrics.DetailRequests.Load(),
		"quota_rotations":  metrics.QuotaRotations.Load(),
		"strategy_errors":  metrics.StrategyErrors.Load(),
		"videos_scored":    metrics.VideosScored.Load(),
		"relevant_videos":  metrics.RelevantVideos.Load(),
		"videos_persisted": metrics.VideosPersisted.Load(),
		"sink_errors":      metrics.SinkErrors.Load(),
		"cache_hits":       metrics.CacheHits.Load(),
		"cache_misses":     metrics.CacheMisses.Load(),
		"runs_started":     metrics.RunsStarted.Load(),
		"runs_completed":   metrics.RunsCompleted.Load(),
		"runs_failed":      metrics.RunsFailed.Load(),
		"runs_stopped":     metrics.RunsStopped.Load(),
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	keys := []string{
		"search_requests", "detail_requests", "quota_rotations",
		"strategy_errors", "videos_scored", "relevant_videos",
		"videos_persisted", "sink_errors",
		"cache_hits", "cache_misses",
		"runs_started", "runs_completed", "runs_failed", "runs_stopped",
	}
	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// IncrSearch increments the search request counter.
func IncrSearch() { metrics.SearchRequests.Add(1) }

// IncrDetails increments the detail request counter.
func IncrDetails() { metrics.DetailRequests.Add(1) }
