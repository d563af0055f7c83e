package harvest

import (
	"context"
	"sort"

	"golang.org/x/time/rate"
)

// Strategy is one query descriptor in the comprehensive schedule.
// Priority is metadata for human-facing ordering only; iteration follows
// list order.
type Strategy struct {
	Query      string `json:"query" yaml:"query"`
	Category   string `json:"category" yaml:"category"`
	Priority   int    `json:"priority" yaml:"priority"`
	MaxResults int    `json:"max_results,omitempty" yaml:"max_results,omitempty"`
}

// DefaultStrategies is the built-in comprehensive schedule for Sri Lankan
// content, overridable via the strategies config file.
func DefaultStrategies() []Strategy {
	return []Strategy{
		// Location-based searches
		{Query: "Sri Lanka", Category: "general", Priority: 1},
		{Query: "Colombo", Category: "location", Priority: 2},
		{Query: "Kandy Sri Lanka", Category: "location", Priority: 2},
		{Query: "Galle Sri Lanka", Category: "location", Priority: 2},
		{Query: "Jaffna Sri Lanka", Category: "location", Priority: 3},

		// Cultural and traditional content
		{Query: "Sinhala", Category: "culture", Priority: 2},
		{Query: "Tamil Sri Lanka", Category: "culture", Priority: 2},
		{Query: "Vesak Sri Lanka", Category: "culture", Priority: 3},
		{Query: "Avurudu Sri Lanka", Category: "culture", Priority: 3},
		{Query: "Sri Lankan food", Category: "culture", Priority: 2},

		// Entertainment and media
		{Query: "Sri Lankan music", Category: "entertainment", Priority: 2},
		{Query: "Sri Lankan movies", Category: "entertainment", Priority: 3},
		{Query: "Sri Lankan news", Category: "news", Priority: 1},
		{Query: "Sri Lankan cricket", Category: "sports", Priority: 2},

		// Tourism and travel
		{Query: "Sri Lanka tourism", Category: "travel", Priority: 2},
		{Query: "Visit Sri Lanka", Category: "travel", Priority: 3},
		{Query: "Sri Lanka beaches", Category: "travel", Priority: 3},
		{Query: "Sigiriya", Category: "travel", Priority: 3},

		// Current events and trending
		{Query: "Sri Lanka today", Category: "current", Priority: 1},
		{Query: "Sri Lanka update", Category: "current", Priority: 2},
		{Query: "Ceylon", Category: "historical", Priority: 3},
	}
}

// Scheduler iterates an ordered strategy list, pacing consecutive
// dispatches to respect the external rate limit. Restartable via Reset.
type Scheduler struct {
	strategies []Strategy
	pos        int
	limiter    *rate.Limiter
}

// NewScheduler builds a scheduler over the given list. The first dispatch
// is immediate; each subsequent one waits out the configured delay.
func NewScheduler(strategies []Strategy) *Scheduler {
	return &Scheduler{
		strategies: strategies,
		limiter:    rate.NewLimiter(rate.Every(Cfg.StrategyDelay), 1),
	}
}

// Next returns the next strategy in list order, blocking on the pacing
// limiter first. ok is false when the sequence is done or ctx is
// cancelled.
func (s *Scheduler) Next(ctx context.Context) (strategy Strategy, ok bool) {
	if s.pos >= len(s.strategies) {
		return Strategy{}, false
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return Strategy{}, false
	}
	strategy = s.strategies[s.pos]
	s.pos++
	return strategy, true
}

// Reset rewinds the sequence to the beginning.
func (s *Scheduler) Reset() { s.pos = 0 }

// Len reports the number of scheduled strategies.
func (s *Scheduler) Len() int { return len(s.strategies) }

// Preview returns a copy of the strategies sorted by ascending priority,
// for human-facing listings. Scheduling order is unaffected.
func (s *Scheduler) Preview() []Strategy {
	out := make([]Strategy, len(s.strategies))
	copy(out, s.strategies)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}
