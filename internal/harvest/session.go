package harvest

import (
	"time"

	"github.com/google/uuid"
)

// RunMode selects the strategy source for a run.
type RunMode string

const (
	ModeSingle        RunMode = "single"
	ModeComprehensive RunMode = "comprehensive"
	ModeTargeted      RunMode = "targeted"
)

// SessionStatus is the lifecycle state of one extraction session.
type SessionStatus string

const (
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
	StatusStopped   SessionStatus = "stopped"
)

// RunConfig is the triggering configuration, copied into the session.
type RunConfig struct {
	Query           string   `json:"query,omitempty"`
	MaxResults      int      `json:"max_results,omitempty"`
	Order           string   `json:"order,omitempty"`
	RegionCode      string   `json:"region_code,omitempty"`
	PublishedAfter  string   `json:"published_after,omitempty"`
	PublishedBefore string   `json:"published_before,omitempty"`
	Targets         []string `json:"targets,omitempty"`
}

// Session records one extraction run. Mutated only by the owning
// orchestrator goroutine through the mark* transitions; immutable once
// terminal.
type Session struct {
	ID        string        `json:"session_id"`
	Mode      RunMode       `json:"mode"`
	Status    SessionStatus `json:"status"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time,omitzero"`
	Config    RunConfig     `json:"config"`

	TotalQueries     int `json:"total_queries"`
	CompletedQueries int `json:"completed_queries"`
	VideosExtracted  int `json:"videos_extracted"`
	RelevantVideos   int `json:"relevant_videos"`
	ErrorCount       int `json:"error_count"`
}

func newSession(mode RunMode, cfg RunConfig, totalQueries int) *Session {
	return &Session{
		ID:           uuid.NewString(),
		Mode:         mode,
		Status:       StatusRunning,
		StartTime:    time.Now(),
		Config:       cfg,
		TotalQueries: totalQueries,
	}
}

func (s *Session) markCompleted() {
	s.Status = StatusCompleted
	s.EndTime = time.Now()
}

func (s *Session) markFailed() {
	s.Status = StatusFailed
	s.EndTime = time.Now()
}

func (s *Session) markStopped() {
	s.Status = StatusStopped
	s.EndTime = time.Now()
}

// terminal reports whether the session reached a final state.
func (s *Session) terminal() bool {
	return s.Status != StatusRunning
}
