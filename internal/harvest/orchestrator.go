package harvest

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State is the orchestrator lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// VideoRecorder receives accepted items for the local analytics cache.
// Optional; failures here never affect the run.
type VideoRecorder interface {
	SaveVideos(ctx context.Context, items []ScoredVideo) (int, error)
}

// StatusSnapshot is the read-only status surface. Counts only, never raw
// credential values.
type StatusSnapshot struct {
	State       State            `json:"state"`
	IsRunning   bool             `json:"is_running"`
	Session     *Session         `json:"current_session,omitempty"`
	LastSession *Session         `json:"last_session,omitempty"`
	Pool        PoolStatus       `json:"api_key_status"`
	Strategies  int              `json:"total_strategies"`
	Metrics     map[string]int64 `json:"metrics"`
	CurrentTime time.Time        `json:"current_time"`
}

// Orchestrator drives extraction runs: it opens a session, walks the
// strategy schedule, fetches candidates through the resilient executor,
// filters seen items, scores the rest, and forwards accepted items to the
// sink. Single-flight: at most one session runs at a time.
type Orchestrator struct {
	source   Source
	sink     Sink
	dedup    DedupCache
	pool     *KeyPool
	sessions SessionStore  // optional
	recorder VideoRecorder // optional
	scorer   Scorer

	strategies []Strategy // comprehensive schedule

	mu            sync.Mutex
	state         State
	session       *Session
	lastSession   *Session
	stopRequested bool
	wg            sync.WaitGroup
}

// NewOrchestrator wires the collaborators. strategies is the comprehensive
// schedule; nil falls back to the built-in defaults.
func NewOrchestrator(source Source, sink Sink, dedup DedupCache, pool *KeyPool, strategies []Strategy) *Orchestrator {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Orchestrator{
		source:     source,
		sink:       sink,
		dedup:      dedup,
		pool:       pool,
		scorer:     NewScorer(),
		strategies: strategies,
		state:      StateIdle,
	}
}

// SetSessionStore installs durable session persistence.
func (o *Orchestrator) SetSessionStore(s SessionStore) { o.sessions = s }

// SetVideoRecorder installs the local analytics cache.
func (o *Orchestrator) SetVideoRecorder(r VideoRecorder) { o.recorder = r }

// Strategies returns the comprehensive schedule sorted for preview.
func (o *Orchestrator) Strategies() []Strategy {
	return NewScheduler(o.strategies).Preview()
}

// StartSingle begins a run driving exactly one strategy built from cfg.
// Returns the session id; ErrAlreadyRunning if a session is in flight.
func (o *Orchestrator) StartSingle(cfg RunConfig) (string, error) {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = Cfg.MaxResultsPerStrategy
	}
	if cfg.Order == "" {
		cfg.Order = "relevance"
	}
	strategies := []Strategy{{Query: cfg.Query, Category: "adhoc", MaxResults: cfg.MaxResults}}
	return o.begin(ModeSingle, cfg, strategies)
}

// StartComprehensive begins a run over the full configured schedule.
func (o *Orchestrator) StartComprehensive() (string, error) {
	cfg := RunConfig{MaxResults: Cfg.MaxResultsPerStrategy, Order: "relevance"}
	return o.begin(ModeComprehensive, cfg, o.strategies)
}

// StartTargeted begins a run over a caller-supplied ad hoc query list.
func (o *Orchestrator) StartTargeted(targets []string, maxResults int) (string, error) {
	if maxResults <= 0 {
		maxResults = Cfg.TargetedMaxResults
	}
	strategies := make([]Strategy, 0, len(targets))
	for _, t := range targets {
		strategies = append(strategies, Strategy{Query: t, Category: "targeted", MaxResults: maxResults})
	}
	cfg := RunConfig{Targets: targets, MaxResults: maxResults, Order: "relevance"}
	return o.begin(ModeTargeted, cfg, strategies)
}

// begin atomically checks-and-sets the single-flight state and spawns the
// run goroutine. A rejected start leaves no side effects.
func (o *Orchestrator) begin(mode RunMode, cfg RunConfig, strategies []Strategy) (string, error) {
	o.mu.Lock()
	if o.state == StateRunning {
		o.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	session := newSession(mode, cfg, len(strategies))
	o.session = session
	o.state = StateRunning
	o.stopRequested = false
	o.wg.Add(1)
	o.mu.Unlock()

	metrics.RunsStarted.Add(1)
	o.saveSession(session)
	slog.Info("extraction started",
		slog.String("session", session.ID),
		slog.String("mode", string(mode)),
		slog.Int("strategies", len(strategies)))

	go o.run(session, strategies)
	return session.ID, nil
}

// StopRun requests cooperative stop at the next strategy boundary.
// In-flight calls are not cancelled.
func (o *Orchestrator) StopRun() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateRunning {
		return ErrNotRunning
	}
	o.stopRequested = true
	slog.Info("extraction stop requested", slog.String("session", o.session.ID))
	return nil
}

// Status returns the current state, active session snapshot, and aggregate
// counters. Never fails.
func (o *Orchestrator) Status() StatusSnapshot {
	o.mu.Lock()
	snap := StatusSnapshot{
		State:       o.state,
		IsRunning:   o.state == StateRunning,
		Strategies:  len(o.strategies),
		Metrics:     GetMetrics(),
		CurrentTime: time.Now(),
	}
	if o.session != nil {
		active := *o.session
		snap.Session = &active
	}
	if o.lastSession != nil {
		last := *o.lastSession
		snap.LastSession = &last
	}
	o.mu.Unlock()

	if o.pool != nil {
		snap.Pool = o.pool.Status()
	}
	return snap
}

// Wait blocks until the in-flight run, if any, finishes.
func (o *Orchestrator) Wait() { o.wg.Wait() }

type strategyResult struct {
	processed  int
	relevant   int
	persisted  int
	sinkErrors int
}

// run walks the schedule sequentially. A single strategy's failure is
// never fatal to the run; stop takes effect only between strategies.
func (o *Orchestrator) run(session *Session, strategies []Strategy) {
	defer o.wg.Done()

	ctx := context.Background()
	sched := NewScheduler(strategies)
	errored := 0

	defer func() {
		if r := recover(); r != nil {
			slog.Error("extraction run panicked", slog.String("session", session.ID), slog.Any("panic", r))
			o.finish(session, func(s *Session) { s.markFailed() })
			metrics.RunsFailed.Add(1)
		}
	}()

	for {
		if o.stopping() {
			o.finish(session, func(s *Session) { s.markStopped() })
			metrics.RunsStopped.Add(1)
			slog.Info("extraction stopped", slog.String("session", session.ID))
			return
		}

		strategy, ok := sched.Next(ctx)
		if !ok {
			break
		}

		res, err := o.runStrategy(ctx, session, strategy)
		o.mu.Lock()
		session.CompletedQueries++
		session.VideosExtracted += res.processed
		session.RelevantVideos += res.relevant
		session.ErrorCount += res.sinkErrors
		if err != nil {
			session.ErrorCount++
		}
		o.mu.Unlock()

		if err != nil {
			errored++
			metrics.StrategyErrors.Add(1)
			slog.Error("strategy failed",
				slog.String("session", session.ID),
				slog.String("query", strategy.Query),
				slog.Any("error", err))
			continue
		}
		o.saveSession(session)
	}

	if errored > 0 && errored == len(strategies) {
		o.finish(session, func(s *Session) { s.markFailed() })
		metrics.RunsFailed.Add(1)
		slog.Error("extraction failed: every strategy errored", slog.String("session", session.ID))
		return
	}

	o.finish(session, func(s *Session) { s.markCompleted() })
	metrics.RunsCompleted.Add(1)
	slog.Info("extraction completed",
		slog.String("session", session.ID),
		slog.Int("videos", session.VideosExtracted),
		slog.Int("relevant", session.RelevantVideos),
		slog.Int("errors", session.ErrorCount))
}

// runStrategy fetches candidates, filters seen items, scores the rest, and
// forwards accepted items to the sink. Cache touch happens only for items
// the sink confirmed, so a sink failure leaves them eligible for
// re-extraction.
func (o *Orchestrator) runStrategy(ctx context.Context, session *Session, strategy Strategy) (strategyResult, error) {
	var res strategyResult

	maxResults := strategy.MaxResults
	if maxResults <= 0 {
		maxResults = Cfg.MaxResultsPerStrategy
	}
	opts := SearchOptions{
		MaxResults:      maxResults,
		Order:           session.Config.Order,
		RegionCode:      Cfg.RegionCode,
		PublishedAfter:  session.Config.PublishedAfter,
		PublishedBefore: session.Config.PublishedBefore,
	}

	refs, err := o.source.Search(ctx, strategy.Query, opts)
	if err != nil {
		return res, err
	}
	if len(refs) == 0 {
		slog.Warn("no videos found", slog.String("query", strategy.Query))
		return res, nil
	}

	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	videos, err := o.source.Details(ctx, ids)
	if err != nil {
		return res, err
	}

	// Freshness check before scoring, to avoid wasted work.
	candidates := videos[:0:0]
	for _, v := range videos {
		if o.dedup != nil && o.dedup.IsFresh(ctx, v.ID) {
			continue
		}
		candidates = append(candidates, v)
	}
	if len(candidates) == 0 {
		return res, nil
	}

	scored := o.scoreAll(candidates, strategy.Query)
	res.processed = len(scored)
	metrics.VideosScored.Add(int64(len(scored)))

	accepted := make([]ScoredVideo, 0, len(scored))
	for _, sv := range scored {
		if sv.IsRelevant {
			accepted = append(accepted, sv)
		}
	}
	res.relevant = len(accepted)
	metrics.RelevantVideos.Add(int64(len(accepted)))
	if len(accepted) == 0 {
		return res, nil
	}

	persist, err := o.sink.Persist(ctx, accepted)
	if err != nil {
		metrics.SinkErrors.Add(1)
		res.sinkErrors++
		slog.Error("sink persist failed",
			slog.String("query", strategy.Query), slog.Any("error", err))
		return res, nil
	}
	res.persisted = persist.PersistedCount
	res.sinkErrors += len(persist.Errors)
	metrics.VideosPersisted.Add(int64(persist.PersistedCount))
	if len(persist.Errors) > 0 {
		metrics.SinkErrors.Add(int64(len(persist.Errors)))
		slog.Warn("sink reported partial failure",
			slog.String("query", strategy.Query), slog.Int("errors", len(persist.Errors)))
	}

	persisted := persistedSet(persist, accepted)
	for _, sv := range accepted {
		if !persisted[sv.ID] {
			continue
		}
		if o.dedup != nil {
			if terr := o.dedup.Touch(ctx, sv.ID); terr != nil {
				slog.Warn("dedup touch failed", slog.String("id", sv.ID), slog.Any("error", terr))
			}
		}
	}

	if o.recorder != nil {
		if _, rerr := o.recorder.SaveVideos(ctx, accepted); rerr != nil {
			slog.Warn("local cache save failed", slog.Any("error", rerr))
		}
	}
	return res, nil
}

// scoreAll scores a batch in parallel. Scoring is pure and stateless, so
// fan-out is safe; results keep no particular order.
func (o *Orchestrator) scoreAll(videos []Video, query string) []ScoredVideo {
	workers := Cfg.ScoreWorkers
	if workers > len(videos) {
		workers = len(videos)
	}
	if workers < 1 {
		workers = 1
	}

	in := make(chan Video)
	out := make([]ScoredVideo, 0, len(videos))
	var outMu sync.Mutex
	var wg sync.WaitGroup

	now := time.Now()
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for v := range in {
				sv := o.scorer.Score(v)
				sv.SearchQuery = query
				sv.ExtractedAt = now
				outMu.Lock()
				out = append(out, sv)
				outMu.Unlock()
			}
		}()
	}
	for _, v := range videos {
		in <- v
	}
	close(in)
	wg.Wait()
	return out
}

// persistedSet resolves which accepted IDs the sink confirmed. Sinks that
// do not report per-item IDs confirm the whole batch iff no errors.
func persistedSet(res PersistResult, accepted []ScoredVideo) map[string]bool {
	set := make(map[string]bool, len(accepted))
	if len(res.PersistedIDs) > 0 {
		for _, id := range res.PersistedIDs {
			set[id] = true
		}
		return set
	}
	if len(res.Errors) == 0 && res.PersistedCount >= len(accepted) {
		for _, sv := range accepted {
			set[sv.ID] = true
		}
	}
	return set
}

func (o *Orchestrator) stopping() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopRequested
}

// finish applies the terminal transition and returns the orchestrator to
// Idle.
func (o *Orchestrator) finish(session *Session, transition func(*Session)) {
	o.mu.Lock()
	transition(session)
	o.lastSession = session
	o.session = nil
	o.state = StateIdle
	o.stopRequested = false
	o.mu.Unlock()

	o.saveSession(session)
}

func (o *Orchestrator) saveSession(session *Session) {
	if o.sessions == nil {
		return
	}
	o.mu.Lock()
	snapshot := *session
	o.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.sessions.SaveSession(ctx, snapshot); err != nil {
		slog.Warn("session save failed", slog.String("session", snapshot.ID), slog.Any("error", err))
	}
}
