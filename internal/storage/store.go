// Package storage provides the local sqlite cache: seen-video records for
// deduplication, extraction sessions, accepted videos for analytics, and
// the API usage log.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lankahub/tubeharvest/internal/harvest"
)

// Store defines the local persistence operations.
type Store interface {
	// Dedup tier (harvest.SeenStore)
	LastSeen(ctx context.Context, id string) (time.Time, bool, error)
	MarkSeen(ctx context.Context, id string, at time.Time) error
	PruneSeen(ctx context.Context, olderThan time.Time) (int64, error)

	// Analytics cache (harvest.VideoRecorder)
	SaveVideos(ctx context.Context, items []harvest.ScoredVideo) (int, error)
	RecentVideos(ctx context.Context, limit int) ([]harvest.ScoredVideo, error)
	CategoryCounts(ctx context.Context) (map[string]int64, error)

	// Sessions (harvest.SessionStore)
	SaveSession(ctx context.Context, s harvest.Session) error
	RecentSessions(ctx context.Context, limit int) ([]harvest.Session, error)

	// Usage log
	LogUsage(ctx context.Context, e harvest.UsageEntry) error

	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// Stats holds aggregate counts for the status surface.
type Stats struct {
	SeenRecords    int64 `json:"seen_records"`
	CachedVideos   int64 `json:"cached_videos"`
	RelevantVideos int64 `json:"relevant_videos"`
	Sessions       int64 `json:"sessions"`
	UsageEntries   int64 `json:"usage_entries"`
}

// SQLiteStore implements Store backed by a sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Serialized writes; sqlite handles one writer at a time.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS seen_videos (
			video_id TEXT PRIMARY KEY,
			last_seen_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS videos (
			video_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			channel_id TEXT,
			channel_title TEXT,
			published_at TEXT,
			view_count INTEGER DEFAULT 0,
			like_count INTEGER DEFAULT 0,
			comment_count INTEGER DEFAULT 0,
			duration TEXT,
			tags TEXT,
			category_id TEXT,
			language TEXT,
			category TEXT,
			search_query TEXT,
			video_url TEXT,
			is_relevant BOOLEAN DEFAULT FALSE,
			relevance_score REAL DEFAULT 0,
			quality_score REAL DEFAULT 0,
			engagement_score REAL DEFAULT 0,
			spam_score REAL DEFAULT 0,
			composite_score REAL DEFAULT 0,
			engagement_rate REAL DEFAULT 0,
			extracted_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS extraction_sessions (
			session_id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			status TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT,
			total_queries INTEGER DEFAULT 0,
			completed_queries INTEGER DEFAULT 0,
			videos_extracted INTEGER DEFAULT 0,
			relevant_videos INTEGER DEFAULT 0,
			error_count INTEGER DEFAULT 0,
			configuration TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS api_usage_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key_hash TEXT NOT NULL,
			request_type TEXT NOT NULL,
			at TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			quota_error BOOLEAN NOT NULL,
			quota_cost INTEGER DEFAULT 1,
			error_message TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_videos_category ON videos(category)`,
		`CREATE INDEX IF NOT EXISTS idx_videos_extracted_at ON videos(extracted_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON extraction_sessions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_at ON api_usage_log(at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// LastSeen returns when the item was last marked seen.
func (s *SQLiteStore) LastSeen(ctx context.Context, id string) (time.Time, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_seen_at FROM seen_videos WHERE video_id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last_seen_at: %w", err)
	}
	return t, true, nil
}

// MarkSeen upserts lastSeenAt for the item. Idempotent.
func (s *SQLiteStore) MarkSeen(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO seen_videos (video_id, last_seen_at) VALUES (?, ?)
		ON CONFLICT(video_id) DO UPDATE SET last_seen_at = excluded.last_seen_at`,
		id, at.Format(time.RFC3339Nano))
	return err
}

// PruneSeen deletes records older than the cutoff. Retention cleanup only;
// nothing in the run path depends on it.
func (s *SQLiteStore) PruneSeen(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM seen_videos WHERE last_seen_at < ?`, olderThan.Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SaveVideos upserts accepted items into the analytics cache.
func (s *SQLiteStore) SaveVideos(ctx context.Context, items []harvest.ScoredVideo) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO videos (
			video_id, title, channel_id, channel_title, published_at,
			view_count, like_count, comment_count, duration, tags,
			category_id, language, category, search_query, video_url,
			is_relevant, relevance_score, quality_score, engagement_score,
			spam_score, composite_score, engagement_rate, extracted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			view_count = excluded.view_count,
			like_count = excluded.like_count,
			comment_count = excluded.comment_count,
			is_relevant = excluded.is_relevant,
			relevance_score = excluded.relevance_score,
			quality_score = excluded.quality_score,
			engagement_score = excluded.engagement_score,
			spam_score = excluded.spam_score,
			composite_score = excluded.composite_score,
			engagement_rate = excluded.engagement_rate,
			search_query = excluded.search_query,
			extracted_at = excluded.extracted_at`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	saved := 0
	for _, v := range items {
		tags, _ := json.Marshal(v.Tags)
		_, err := stmt.ExecContext(ctx,
			v.ID, v.Title, v.ChannelID, v.ChannelTitle, v.PublishedAt,
			v.ViewCount, v.LikeCount, v.CommentCount, v.Duration, string(tags),
			v.CategoryID, v.Language, v.Category, v.SearchQuery, v.VideoURL,
			v.IsRelevant, v.RelevanceScore, v.QualityScore, v.EngagementScore,
			v.SpamScore, v.CompositeScore, v.EngagementRate,
			v.ExtractedAt.Format(time.RFC3339Nano))
		if err != nil {
			return saved, err
		}
		saved++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return saved, nil
}

// RecentVideos returns the newest cached items, most recent first.
func (s *SQLiteStore) RecentVideos(ctx context.Context, limit int) ([]harvest.ScoredVideo, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT video_id, title, channel_id, channel_title, published_at,
			view_count, like_count, comment_count, duration, tags,
			category_id, language, category, search_query, video_url,
			is_relevant, relevance_score, quality_score, engagement_score,
			spam_score, composite_score, engagement_rate, extracted_at
		FROM videos ORDER BY extracted_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []harvest.ScoredVideo
	for rows.Next() {
		var v harvest.ScoredVideo
		var tags, extractedAt string
		if err := rows.Scan(
			&v.ID, &v.Title, &v.ChannelID, &v.ChannelTitle, &v.PublishedAt,
			&v.ViewCount, &v.LikeCount, &v.CommentCount, &v.Duration, &tags,
			&v.CategoryID, &v.Language, &v.Category, &v.SearchQuery, &v.VideoURL,
			&v.IsRelevant, &v.RelevanceScore, &v.QualityScore, &v.EngagementScore,
			&v.SpamScore, &v.CompositeScore, &v.EngagementRate, &extractedAt,
		); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(tags), &v.Tags)
		v.ExtractedAt, _ = time.Parse(time.RFC3339Nano, extractedAt)
		out = append(out, v)
	}
	return out, rows.Err()
}

// CategoryCounts returns cached video counts per content category.
func (s *SQLiteStore) CategoryCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM videos GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var category string
		var n int64
		if err := rows.Scan(&category, &n); err != nil {
			return nil, err
		}
		counts[category] = n
	}
	return counts, rows.Err()
}

// SaveSession upserts the session row.
func (s *SQLiteStore) SaveSession(ctx context.Context, sess harvest.Session) error {
	cfg, _ := json.Marshal(sess.Config)
	endTime := ""
	if !sess.EndTime.IsZero() {
		endTime = sess.EndTime.Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extraction_sessions (
			session_id, mode, status, start_time, end_time,
			total_queries, completed_queries, videos_extracted,
			relevant_videos, error_count, configuration
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			status = excluded.status,
			end_time = excluded.end_time,
			completed_queries = excluded.completed_queries,
			videos_extracted = excluded.videos_extracted,
			relevant_videos = excluded.relevant_videos,
			error_count = excluded.error_count`,
		sess.ID, string(sess.Mode), string(sess.Status),
		sess.StartTime.Format(time.RFC3339Nano), endTime,
		sess.TotalQueries, sess.CompletedQueries, sess.VideosExtracted,
		sess.RelevantVideos, sess.ErrorCount, string(cfg))
	return err
}

// RecentSessions lists sessions newest-first.
func (s *SQLiteStore) RecentSessions(ctx context.Context, limit int) ([]harvest.Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, mode, status, start_time, end_time,
			total_queries, completed_queries, videos_extracted,
			relevant_videos, error_count, configuration
		FROM extraction_sessions ORDER BY start_time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []harvest.Session
	for rows.Next() {
		var sess harvest.Session
		var mode, status, startTime, endTime, cfg string
		if err := rows.Scan(
			&sess.ID, &mode, &status, &startTime, &endTime,
			&sess.TotalQueries, &sess.CompletedQueries, &sess.VideosExtracted,
			&sess.RelevantVideos, &sess.ErrorCount, &cfg,
		); err != nil {
			return nil, err
		}
		sess.Mode = harvest.RunMode(mode)
		sess.Status = harvest.SessionStatus(status)
		sess.StartTime, _ = time.Parse(time.RFC3339Nano, startTime)
		if endTime != "" {
			sess.EndTime, _ = time.Parse(time.RFC3339Nano, endTime)
		}
		_ = json.Unmarshal([]byte(cfg), &sess.Config)
		out = append(out, sess)
	}
	return out, rows.Err()
}

// LogUsage appends one credential outcome to the usage log.
func (s *SQLiteStore) LogUsage(ctx context.Context, e harvest.UsageEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_usage_log (key_hash, request_type, at, success, quota_error, quota_cost, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.KeyHash, e.RequestType, e.At.Format(time.RFC3339Nano),
		e.Success, e.QuotaError, e.QuotaCost, e.Error)
	return err
}

// Stats returns aggregate table counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	queries := []struct {
		sql  string
		dest *int64
	}{
		{`SELECT COUNT(*) FROM seen_videos`, &st.SeenRecords},
		{`SELECT COUNT(*) FROM videos`, &st.CachedVideos},
		{`SELECT COUNT(*) FROM videos WHERE is_relevant`, &st.RelevantVideos},
		{`SELECT COUNT(*) FROM extraction_sessions`, &st.Sessions},
		{`SELECT COUNT(*) FROM api_usage_log`, &st.UsageEntries},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
