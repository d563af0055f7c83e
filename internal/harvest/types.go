package harvest

import (
	"context"
	"time"
)

// VideoRef is a lightweight search result: just enough to ask for details.
type VideoRef struct {
	ID           string `json:"video_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ChannelID    string `json:"channel_id"`
	ChannelTitle string `json:"channel_title"`
	PublishedAt  string `json:"published_at"`
}

// Video is the raw item returned by the detail fetch, before scoring.
type Video struct {
	ID              string   `json:"video_id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	PublishedAt     string   `json:"published_at"`
	ChannelID       string   `json:"channel_id"`
	ChannelTitle    string   `json:"channel_title"`
	ChannelCountry  string   `json:"channel_country,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	CategoryID      string   `json:"category_id,omitempty"`
	DefaultLanguage string   `json:"default_language,omitempty"`
	ViewCount       int64    `json:"view_count"`
	LikeCount       int64    `json:"like_count"`
	CommentCount    int64    `json:"comment_count"`
	Duration        string   `json:"duration"` // ISO 8601, e.g. "PT10M30S"
	Definition      string   `json:"definition"`
	Caption         bool     `json:"caption"`
	LicensedContent bool     `json:"licensed_content"`
	Embeddable      bool     `json:"embeddable"`
}

// ScoredVideo is a Video plus the computed analysis fields.
// Computed once per extraction pass; re-extraction recomputes from scratch.
type ScoredVideo struct {
	Video

	RelevanceScore  float64 `json:"relevance_score"`
	QualityScore    float64 `json:"quality_score"`
	EngagementScore float64 `json:"engagement_score"`
	SpamScore       float64 `json:"spam_score"`
	CompositeScore  float64 `json:"composite_score"`
	IsRelevant      bool    `json:"is_relevant"`

	EngagementRate float64 `json:"engagement_rate"`
	Category       string  `json:"category"`
	Language       string  `json:"language"`

	SearchQuery string    `json:"search_query"`
	VideoURL    string    `json:"video_url"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// SearchOptions narrows a search call.
type SearchOptions struct {
	MaxResults      int
	Order           string
	RegionCode      string
	PublishedAfter  string
	PublishedBefore string
}

// Source is the external search API, specified only at its interface.
// Errors must be classifiable via CallError so the executor can
// distinguish quota signals from transient and fatal failures.
type Source interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]VideoRef, error)
	Details(ctx context.Context, ids []string) ([]Video, error)
}

// PersistResult reports a partial sink outcome. PersistedIDs drives the
// dedup touch: only items the sink actually accepted get marked seen.
type PersistResult struct {
	PersistedCount int      `json:"persisted_count"`
	PersistedIDs   []string `json:"persisted_ids,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

// Sink persists accepted items downstream. Must be idempotent on video ID.
type Sink interface {
	Persist(ctx context.Context, items []ScoredVideo) (PersistResult, error)
}

// SessionStore persists extraction sessions for later inspection.
type SessionStore interface {
	SaveSession(ctx context.Context, s Session) error
}

// UsageEntry is one recorded credential outcome, for the usage log.
type UsageEntry struct {
	KeyHash     string
	RequestType string
	Success     bool
	QuotaError  bool
	QuotaCost   int
	Error       string
	At          time.Time
}
