// Package metrics exposes engine counters and store aggregates as
// Prometheus metrics via a custom collector.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lankahub/tubeharvest/internal/harvest"
	"github.com/lankahub/tubeharvest/internal/storage"
)

// Collector reads counters from the harvest engine and aggregate counts
// from the local store at scrape time.
type Collector struct {
	store storage.Store

	engineDesc   map[string]*prometheus.Desc
	categoryDesc *prometheus.Desc
	cachedDesc   *prometheus.Desc
	sessionsDesc *prometheus.Desc
}

// engineCounters maps engine counter keys to metric help strings.
var engineCounters = map[string]string{
	"search_requests":  "Search API requests issued.",
	"detail_requests":  "Detail API requests issued.",
	"quota_rotations":  "Credential rotations caused by quota errors.",
	"strategy_errors":  "Strategies that failed during a run.",
	"videos_scored":    "Videos run through the scoring pipeline.",
	"relevant_videos":  "Videos that passed the relevance threshold.",
	"videos_persisted": "Videos confirmed persisted by the sink.",
	"sink_errors":      "Sink persist calls that failed.",
	"cache_hits":       "Dedup cache hits.",
	"cache_misses":     "Dedup cache misses.",
	"runs_started":     "Extraction runs started.",
	"runs_completed":   "Extraction runs completed.",
	"runs_failed":      "Extraction runs failed.",
	"runs_stopped":     "Extraction runs stopped by request.",
}

// NewCollector builds the collector. store may be nil; store-backed
// metrics are then omitted.
func NewCollector(store storage.Store) *Collector {
	c := &Collector{
		store:      store,
		engineDesc: make(map[string]*prometheus.Desc, len(engineCounters)),
		categoryDesc: prometheus.NewDesc("tubeharvest_videos_by_category",
			"Cached videos per content category.", []string{"category"}, nil),
		cachedDesc: prometheus.NewDesc("tubeharvest_cached_videos_total",
			"Videos in the local analytics cache.", nil, nil),
		sessionsDesc: prometheus.NewDesc("tubeharvest_sessions_total",
			"Extraction sessions recorded.", nil, nil),
	}
	for key, help := range engineCounters {
		c.engineDesc[key] = prometheus.NewDesc("tubeharvest_"+key+"_total", help, nil, nil)
	}
	return c
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.engineDesc {
		ch <- d
	}
	ch <- c.categoryDesc
	ch <- c.cachedDesc
	ch <- c.sessionsDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for key, val := range harvest.GetMetrics() {
		if d, ok := c.engineDesc[key]; ok {
			ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(val))
		}
	}

	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	counts, err := c.store.CategoryCounts(ctx)
	if err != nil {
		slog.Debug("metrics: category counts unavailable", slog.Any("error", err))
	} else {
		for category, n := range counts {
			ch <- prometheus.MustNewConstMetric(c.categoryDesc, prometheus.GaugeValue, float64(n), category)
		}
	}

	stats, err := c.store.Stats(ctx)
	if err != nil {
		slog.Debug("metrics: store stats unavailable", slog.Any("error", err))
		return
	}
	ch <- prometheus.MustNewConstMetric(c.cachedDesc, prometheus.GaugeValue, float64(stats.CachedVideos))
	ch <- prometheus.MustNewConstMetric(c.sessionsDesc, prometheus.GaugeValue, float64(stats.Sessions))
}

// Register registers the collector on the default registry.
func Register(store storage.Store) {
	prometheus.MustRegister(NewCollector(store))
}
