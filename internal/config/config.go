// Package config loads application configuration from the environment,
// plus an optional YAML strategies file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"gopkg.in/yaml.v3"

	"github.com/lankahub/tubeharvest/internal/harvest"
)

// App is the process-level configuration: ports, storage locations and
// the engine settings handed to harvest.Init.
type App struct {
	Port string

	APIKeys          []string
	DailyLimitPerKey int

	RegionCode string
	RegionName string

	MinRelevanceScore     float64
	FreshnessWindow       time.Duration
	StrategyDelay         time.Duration
	MaxResultsPerStrategy int
	TargetedMaxResults    int
	ScoreWorkers          int

	RetryAttempts int
	RetryBudget   time.Duration

	DatabasePath string // sqlite
	PostgresDSN  string // empty disables the postgres sink
	RedisURL     string // empty disables the L2 dedup tier
	ArchiveDir   string // empty disables the archive sink

	StrategiesFile string // optional YAML override of the default strategies

	ComprehensiveEvery time.Duration // 0 disables the scheduled run
	SeenRetention      time.Duration
}

// Load reads the environment.
func Load() App {
	return App{
		Port: env.Str("PORT", "8870"),

		APIKeys:          env.List("YOUTUBE_API_KEYS", ""),
		DailyLimitPerKey: env.Int("DAILY_LIMIT_PER_KEY", 10000),

		RegionCode: env.Str("REGION_CODE", "LK"),
		RegionName: env.Str("REGION_NAME", "sri lanka"),

		MinRelevanceScore:     env.Float("MIN_RELEVANCE_SCORE", 0.3),
		FreshnessWindow:       env.Duration("FRESHNESS_WINDOW", 24*time.Hour),
		StrategyDelay:         env.Duration("STRATEGY_DELAY", 2*time.Second),
		MaxResultsPerStrategy: env.Int("MAX_RESULTS_PER_STRATEGY", 50),
		TargetedMaxResults:    env.Int("TARGETED_MAX_RESULTS", 25),
		ScoreWorkers:          env.Int("SCORE_WORKERS", 4),

		RetryAttempts: env.Int("RETRY_ATTEMPTS", 3),
		RetryBudget:   env.Duration("RETRY_BUDGET", 300*time.Second),

		DatabasePath: env.Str("DATABASE_PATH", "tubeharvest.db"),
		PostgresDSN:  env.Str("DATABASE_URL", ""),
		RedisURL:     env.Str("REDIS_URL", ""),
		ArchiveDir:   env.Str("ARCHIVE_DIR", ""),

		StrategiesFile: env.Str("STRATEGIES_FILE", ""),

		ComprehensiveEvery: env.Duration("COMPREHENSIVE_EVERY", 0),
		SeenRetention:      env.Duration("SEEN_RETENTION", 7*24*time.Hour),
	}
}

// Engine converts App into the harvest engine configuration.
func (a App) Engine() harvest.Config {
	return harvest.Config{
		APIKeys:               a.APIKeys,
		DailyLimitPerKey:      a.DailyLimitPerKey,
		RegionCode:            a.RegionCode,
		RegionName:            a.RegionName,
		MinRelevanceScore:     a.MinRelevanceScore,
		FreshnessWindow:       a.FreshnessWindow,
		StrategyDelay:         a.StrategyDelay,
		MaxResultsPerStrategy: a.MaxResultsPerStrategy,
		TargetedMaxResults:    a.TargetedMaxResults,
		ScoreWorkers:          a.ScoreWorkers,
		RetryAttempts:         a.RetryAttempts,
		RetryBudget:           a.RetryBudget,
	}
}

// strategiesFile is the YAML document layout.
type strategiesFile struct {
	Strategies []harvest.Strategy `yaml:"strategies"`
}

// LoadStrategies reads the strategies file, or returns the built-in set
// when no file is configured.
func LoadStrategies(path string) ([]harvest.Strategy, error) {
	if path == "" {
		return harvest.DefaultStrategies(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategies file: %w", err)
	}
	var doc strategiesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse strategies file: %w", err)
	}
	if len(doc.Strategies) == 0 {
		return nil, fmt.Errorf("strategies file %s defines no strategies", path)
	}
	for i, s := range doc.Strategies {
		if s.Query == "" {
			return nil, fmt.Errorf("strategies file %s: entry %d has no query", path, i)
		}
	}
	return doc.Strategies, nil
}
