// Package sink implements the downstream persistence targets for accepted
// videos: postgres, JSON archive files, and a fan-out combinator.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lankahub/tubeharvest/internal/harvest"
)

// Postgres persists accepted videos into a postgres table, upserting on
// video ID so re-extraction refreshes statistics instead of duplicating.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects and ensures the schema exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	p := &Postgres{pool: pool}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	slog.Info("postgres sink ready")
	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS harvested_videos (
			video_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			channel_id TEXT,
			channel_title TEXT,
			published_at TEXT,
			view_count BIGINT DEFAULT 0,
			like_count BIGINT DEFAULT 0,
			comment_count BIGINT DEFAULT 0,
			duration TEXT,
			tags TEXT[],
			category TEXT,
			language TEXT,
			search_query TEXT,
			video_url TEXT,
			relevance_score DOUBLE PRECISION DEFAULT 0,
			quality_score DOUBLE PRECISION DEFAULT 0,
			engagement_score DOUBLE PRECISION DEFAULT 0,
			spam_score DOUBLE PRECISION DEFAULT 0,
			composite_score DOUBLE PRECISION DEFAULT 0,
			engagement_rate DOUBLE PRECISION DEFAULT 0,
			extracted_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

// Persist upserts each item individually so one bad row does not sink the
// batch. Returns the per-item outcome.
func (p *Postgres) Persist(ctx context.Context, items []harvest.ScoredVideo) (harvest.PersistResult, error) {
	var res harvest.PersistResult
	for _, v := range items {
		_, err := p.pool.Exec(ctx, `
			INSERT INTO harvested_videos (
				video_id, title, description, channel_id, channel_title,
				published_at, view_count, like_count, comment_count, duration,
				tags, category, language, search_query, video_url,
				relevance_score, quality_score, engagement_score, spam_score,
				composite_score, engagement_rate, extracted_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,now())
			ON CONFLICT (video_id) DO UPDATE SET
				view_count = EXCLUDED.view_count,
				like_count = EXCLUDED.like_count,
				comment_count = EXCLUDED.comment_count,
				relevance_score = EXCLUDED.relevance_score,
				quality_score = EXCLUDED.quality_score,
				engagement_score = EXCLUDED.engagement_score,
				spam_score = EXCLUDED.spam_score,
				composite_score = EXCLUDED.composite_score,
				engagement_rate = EXCLUDED.engagement_rate,
				search_query = EXCLUDED.search_query,
				extracted_at = EXCLUDED.extracted_at,
				updated_at = now()`,
			v.ID, v.Title, v.Description, v.ChannelID, v.ChannelTitle,
			v.PublishedAt, v.ViewCount, v.LikeCount, v.CommentCount, v.Duration,
			v.Tags, v.Category, v.Language, v.SearchQuery, v.VideoURL,
			v.RelevanceScore, v.QualityScore, v.EngagementScore, v.SpamScore,
			v.CompositeScore, v.EngagementRate, v.ExtractedAt)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", v.ID, err))
			continue
		}
		res.PersistedCount++
		res.PersistedIDs = append(res.PersistedIDs, v.ID)
	}
	if res.PersistedCount == 0 && len(res.Errors) > 0 {
		return res, fmt.Errorf("postgres sink: all %d inserts failed", len(res.Errors))
	}
	return res, nil
}

// Count returns the number of stored rows, for the metrics collector.
func (p *Postgres) Count(ctx context.Context) (int64, error) {
	var n int64
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM harvested_videos`).Scan(&n)
	return n, err
}

// Ping checks connectivity within a short deadline.
func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return p.pool.Ping(ctx)
}

// Close releases the connection pool.
func (p *Postgres) Close() { p.pool.Close() }
