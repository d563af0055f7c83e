// tubeharvest — regional YouTube content extraction service.
//
// Searches the Data API across a configured strategy schedule, scores
// results for regional relevance, and persists accepted videos downstream.
// Exposes an HTTP control API plus Prometheus metrics.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lankahub/tubeharvest/internal/config"
	"github.com/lankahub/tubeharvest/internal/harvest"
	"github.com/lankahub/tubeharvest/internal/harvest/sources"
	"github.com/lankahub/tubeharvest/internal/metrics"
	"github.com/lankahub/tubeharvest/internal/server"
	"github.com/lankahub/tubeharvest/internal/sink"
	"github.com/lankahub/tubeharvest/internal/storage"
)

var version = "dev"

func main() {
	cfg := config.Load()

	engineCfg := cfg.Engine()
	engineCfg.HTTPClient = &http.Client{
		Timeout: 15 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	harvest.Init(engineCfg)

	slog.Info("starting tubeharvest",
		slog.String("version", version),
		slog.String("port", cfg.Port),
		slog.String("region", cfg.RegionCode),
		slog.Int("api_keys", len(cfg.APIKeys)))

	pool, err := harvest.NewKeyPool(cfg.APIKeys, cfg.DailyLimitPerKey)
	if err != nil {
		slog.Error("keypool init failed", slog.Any("error", err))
		os.Exit(1)
	}

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		slog.Error("storage init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	pool.SetUsageLogger(func(entry harvest.UsageEntry) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.LogUsage(ctx, entry); err != nil {
			slog.Debug("usage log write failed", slog.Any("error", err))
		}
	})

	strategies, err := config.LoadStrategies(cfg.StrategiesFile)
	if err != nil {
		slog.Error("strategies load failed", slog.Any("error", err))
		os.Exit(1)
	}

	dedup := harvest.NewTieredDedup(store, cfg.RedisURL, cfg.FreshnessWindow)
	source := sources.NewYouTube(pool)

	dst, pg := buildSink(cfg, store)
	if pg != nil {
		defer pg.Close()
	}

	orch := harvest.NewOrchestrator(source, dst, dedup, pool, strategies)
	orch.SetSessionStore(store)
	if pg != nil {
		// External sink carries the data; the store keeps the analytics copy.
		orch.SetVideoRecorder(store)
	}

	metrics.Register(store)

	srv := server.New(cfg)
	srv.RegisterRoutes(orch, store)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runSchedules(ctx, cfg, orch, store)

	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	if err := srv.Shutdown(); err != nil {
		slog.Warn("server shutdown error", slog.Any("error", err))
	}
	if err := orch.StopRun(); err == nil {
		slog.Info("waiting for in-flight extraction to stop")
	}
	orch.Wait()
}

// buildSink assembles the persistence chain: postgres and/or archive when
// configured, the local store otherwise.
func buildSink(cfg config.App, store storage.Store) (harvest.Sink, *sink.Postgres) {
	var sinks []harvest.Sink
	var pg *sink.Postgres

	if cfg.PostgresDSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		p, err := sink.NewPostgres(ctx, cfg.PostgresDSN)
		cancel()
		if err != nil {
			slog.Error("postgres sink init failed", slog.Any("error", err))
			os.Exit(1)
		}
		pg = p
		sinks = append(sinks, p)
	}
	if cfg.ArchiveDir != "" {
		a, err := sink.NewArchive(cfg.ArchiveDir)
		if err != nil {
			slog.Error("archive sink init failed", slog.Any("error", err))
			os.Exit(1)
		}
		sinks = append(sinks, a)
	}

	switch len(sinks) {
	case 0:
		return sink.NewLocal(store), nil
	case 1:
		return sinks[0], pg
	default:
		return sink.NewMulti(sinks...), pg
	}
}

// runSchedules drives the periodic comprehensive run and seen-record
// retention until shutdown.
func runSchedules(ctx context.Context, cfg config.App, orch *harvest.Orchestrator, store storage.Store) {
	var comprehensive <-chan time.Time
	if cfg.ComprehensiveEvery > 0 {
		t := time.NewTicker(cfg.ComprehensiveEvery)
		defer t.Stop()
		comprehensive = t.C
		slog.Info("comprehensive run scheduled", slog.Duration("every", cfg.ComprehensiveEvery))
	}

	prune := time.NewTicker(6 * time.Hour)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-comprehensive:
			if _, err := orch.StartComprehensive(); err != nil {
				slog.Warn("scheduled comprehensive run skipped", slog.Any("error", err))
			}
		case <-prune.C:
			cutoff := time.Now().Add(-cfg.SeenRetention)
			pruneCtx, cancel := context.WithTimeout(ctx, time.Minute)
			n, err := store.PruneSeen(pruneCtx, cutoff)
			cancel()
			if err != nil {
				slog.Warn("seen-record prune failed", slog.Any("error", err))
			} else if n > 0 {
				slog.Info("seen records pruned", slog.Int64("removed", n))
			}
		}
	}
}
