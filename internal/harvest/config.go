package harvest

import (
	"net/http"
	"time"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	APIKeys          []string
	DailyLimitPerKey int

	RegionCode string // e.g. "LK"
	RegionName string // long form used for channel-locale matching, e.g. "sri lanka"

	MinRelevanceScore     float64 // relevance threshold, default 0.3
	FreshnessWindow       time.Duration
	StrategyDelay         time.Duration
	MaxResultsPerStrategy int
	TargetedMaxResults    int
	ScoreWorkers          int

	RetryAttempts int
	RetryBudget   time.Duration

	HTTPClient *http.Client
}

var cfg = Config{
	DailyLimitPerKey:      10000,
	RegionCode:            "LK",
	RegionName:            "sri lanka",
	MinRelevanceScore:     0.3,
	FreshnessWindow:       24 * time.Hour,
	StrategyDelay:         2 * time.Second,
	MaxResultsPerStrategy: 50,
	TargetedMaxResults:    25,
	ScoreWorkers:          4,
	RetryAttempts:         3,
	RetryBudget:           300 * time.Second,
}

// Cfg exposes the engine configuration for sub-packages (sources, server).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
// Zero fields keep their defaults.
func Init(c Config) {
	if c.DailyLimitPerKey == 0 {
		c.DailyLimitPerKey = 10000
	}
	if c.RegionCode == "" {
		c.RegionCode = "LK"
	}
	if c.RegionName == "" {
		c.RegionName = "sri lanka"
	}
	if c.MinRelevanceScore == 0 {
		c.MinRelevanceScore = 0.3
	}
	if c.FreshnessWindow == 0 {
		c.FreshnessWindow = 24 * time.Hour
	}
	if c.StrategyDelay == 0 {
		c.StrategyDelay = 2 * time.Second
	}
	if c.MaxResultsPerStrategy == 0 {
		c.MaxResultsPerStrategy = 50
	}
	if c.TargetedMaxResults == 0 {
		c.TargetedMaxResults = 25
	}
	if c.ScoreWorkers == 0 {
		c.ScoreWorkers = 4
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBudget == 0 {
		c.RetryBudget = 300 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	cfg = c
	Cfg = &cfg
}
