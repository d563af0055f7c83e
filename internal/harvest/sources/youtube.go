// Package sources implements the external search API clients.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lankahub/tubeharvest/internal/harvest"
)

const (
	ytDataAPIBase = "https://www.googleapis.com/youtube/v3"

	// Data API quota units per call type.
	searchQuotaCost = 100
	videosQuotaCost = 1

	// Per-call id limit on the videos endpoint.
	detailChunkSize = 50
)

// YouTube talks to the Data API v3 through the resilient executor, so
// every call gets retry/backoff and credential rotation on quota errors.
type YouTube struct {
	pool  *harvest.KeyPool
	http  *http.Client
	base  string
	retry harvest.RetryConfig
}

// NewYouTube builds the client on the shared credential pool. Retry
// attempts and budget come from the engine config.
func NewYouTube(pool *harvest.KeyPool) *YouTube {
	return &YouTube{
		pool:  pool,
		http:  harvest.Cfg.HTTPClient,
		base:  ytDataAPIBase,
		retry: harvest.ConfiguredRetry(),
	}
}

// --- Data API wire types ---

type ytSearchResp struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet ytSnippet `json:"snippet"`
	} `json:"items"`
}

type ytSnippet struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	PublishedAt     string   `json:"publishedAt"`
	ChannelID       string   `json:"channelId"`
	ChannelTitle    string   `json:"channelTitle"`
	Tags            []string `json:"tags"`
	CategoryID      string   `json:"categoryId"`
	DefaultLanguage string   `json:"defaultLanguage"`
}

type ytVideosResp struct {
	Items []struct {
		ID         string    `json:"id"`
		Snippet    ytSnippet `json:"snippet"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
		ContentDetails struct {
			Duration        string `json:"duration"`
			Definition      string `json:"definition"`
			Caption         string `json:"caption"`
			LicensedContent bool   `json:"licensedContent"`
		} `json:"contentDetails"`
		Status struct {
			PrivacyStatus string `json:"privacyStatus"`
			Embeddable    bool   `json:"embeddable"`
		} `json:"status"`
	} `json:"items"`
}

type ytErrorResp struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// Search runs a video search and returns lightweight refs.
func (y *YouTube) Search(ctx context.Context, query string, opts harvest.SearchOptions) ([]harvest.VideoRef, error) {
	harvest.IncrSearch()

	maxResults := opts.MaxResults
	if maxResults <= 0 || maxResults > 50 {
		maxResults = 50 // API limit per request
	}
	order := opts.Order
	if order == "" {
		order = "relevance"
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("order", order)
	params.Set("relevanceLanguage", "en")
	if opts.RegionCode != "" {
		params.Set("regionCode", opts.RegionCode)
	}
	if opts.PublishedAfter != "" {
		params.Set("publishedAfter", opts.PublishedAfter)
	}
	if opts.PublishedBefore != "" {
		params.Set("publishedBefore", opts.PublishedBefore)
	}

	var result ytSearchResp
	err := y.getJSON(ctx, "search", searchQuotaCost, "/search", params, &result)
	if err != nil {
		return nil, fmt.Errorf("youtube search %q: %w", query, err)
	}

	refs := make([]harvest.VideoRef, 0, len(result.Items))
	for _, item := range result.Items {
		if item.ID.VideoID == "" {
			continue
		}
		refs = append(refs, harvest.VideoRef{
			ID:           item.ID.VideoID,
			Title:        item.Snippet.Title,
			Description:  item.Snippet.Description,
			ChannelID:    item.Snippet.ChannelID,
			ChannelTitle: item.Snippet.ChannelTitle,
			PublishedAt:  item.Snippet.PublishedAt,
		})
	}
	return refs, nil
}

// Details fetches full metadata for the given ids, batched up to the
// API's per-call id limit.
func (y *YouTube) Details(ctx context.Context, ids []string) ([]harvest.Video, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var all []harvest.Video
	for start := 0; start < len(ids); start += detailChunkSize {
		end := start + detailChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk, err := y.detailChunk(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		all = append(all, chunk...)
	}
	return all, nil
}

func (y *YouTube) detailChunk(ctx context.Context, ids []string) ([]harvest.Video, error) {
	harvest.IncrDetails()

	params := url.Values{}
	params.Set("part", "snippet,statistics,contentDetails,status")
	params.Set("id", strings.Join(ids, ","))

	var result ytVideosResp
	if err := y.getJSON(ctx, "videos", videosQuotaCost, "/videos", params, &result); err != nil {
		return nil, fmt.Errorf("youtube details: %w", err)
	}

	videos := make([]harvest.Video, 0, len(result.Items))
	for _, item := range result.Items {
		videos = append(videos, harvest.Video{
			ID:              item.ID,
			Title:           item.Snippet.Title,
			Description:     item.Snippet.Description,
			PublishedAt:     item.Snippet.PublishedAt,
			ChannelID:       item.Snippet.ChannelID,
			ChannelTitle:    item.Snippet.ChannelTitle,
			Tags:            item.Snippet.Tags,
			CategoryID:      item.Snippet.CategoryID,
			DefaultLanguage: item.Snippet.DefaultLanguage,
			ViewCount:       parseCount(item.Statistics.ViewCount),
			LikeCount:       parseCount(item.Statistics.LikeCount),
			CommentCount:    parseCount(item.Statistics.CommentCount),
			Duration:        item.ContentDetails.Duration,
			Definition:      item.ContentDetails.Definition,
			Caption:         item.ContentDetails.Caption == "true",
			LicensedContent: item.ContentDetails.LicensedContent,
			Embeddable:      item.Status.Embeddable,
		})
	}
	return videos, nil
}

// getJSON issues one logical request through the executor. The key is
// appended per attempt so rotation swaps credentials transparently.
func (y *YouTube) getJSON(ctx context.Context, op string, quotaCost int, path string, params url.Values, out any) error {
	body, err := harvest.Execute(ctx, y.pool, y.retry, op, quotaCost, func(key string) ([]byte, error) {
		q := url.Values{}
		for k, v := range params {
			q[k] = v
		}
		q.Set("key", key)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.base+path+"?"+q.Encode(), nil)
		if err != nil {
			return nil, &harvest.CallError{Kind: harvest.KindFatal, Op: op, Err: err}
		}

		resp, err := y.http.Do(req)
		if err != nil {
			return nil, err // net errors classify as transient
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, classifyStatus(op, resp.StatusCode, data)
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// classifyStatus maps an API error response onto the executor's taxonomy:
// 403 with a quota/rate reason rotates, other 403s and 400s are fatal,
// 5xx and 429 are transient.
func classifyStatus(op string, status int, body []byte) error {
	var apiErr ytErrorResp
	_ = json.Unmarshal(body, &apiErr)

	msg := apiErr.Error.Message
	for _, e := range apiErr.Error.Errors {
		msg += " " + e.Reason
	}
	base := fmt.Errorf("status %d: %s", status, strings.TrimSpace(msg))

	switch {
	case status == http.StatusForbidden && quotaSignal(msg):
		return &harvest.CallError{Kind: harvest.KindQuota, Op: op, Err: base}
	case status == http.StatusForbidden || status == http.StatusBadRequest:
		return &harvest.CallError{Kind: harvest.KindFatal, Op: op, Err: base}
	case status == http.StatusTooManyRequests || status >= 500:
		return &harvest.CallError{Kind: harvest.KindTransient, Op: op, Err: base}
	}
	return &harvest.CallError{Kind: harvest.KindFatal, Op: op, Err: base}
}

func quotaSignal(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "quota") || strings.Contains(m, "rate")
}

func parseCount(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
