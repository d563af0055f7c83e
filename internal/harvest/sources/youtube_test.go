package sources

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lankahub/tubeharvest/internal/harvest"
)

var testRetry = harvest.RetryConfig{
	MaxAttempts: 3,
	InitialWait: time.Millisecond,
	MaxWait:     5 * time.Millisecond,
	Budget:      time.Second,
}

func newTestYouTube(t *testing.T, handler http.HandlerFunc, keys ...string) *YouTube {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	pool, err := harvest.NewKeyPool(keys, 10000)
	if err != nil {
		t.Fatal(err)
	}
	return &YouTube{
		pool:  pool,
		http:  srv.Client(),
		base:  srv.URL,
		retry: testRetry,
	}
}

func searchPayload(ids ...string) []byte {
	var resp ytSearchResp
	for _, id := range ids {
		item := struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
			Snippet ytSnippet `json:"snippet"`
		}{}
		item.ID.VideoID = id
		item.Snippet = ytSnippet{Title: "title " + id, ChannelID: "ch1"}
		resp.Items = append(resp.Items, item)
	}
	data, _ := json.Marshal(resp)
	return data
}

func TestSearchParsesResults(t *testing.T) {
	var gotQuery, gotKey, gotMax string
	yt := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/search") {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		gotQuery, gotKey, gotMax = q.Get("q"), q.Get("key"), q.Get("maxResults")
		w.Write(searchPayload("v1", "v2"))
	}, "k1")

	refs, err := yt.Search(context.Background(), "colombo", harvest.SearchOptions{MaxResults: 25, RegionCode: "LK"})
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 || refs[0].ID != "v1" {
		t.Errorf("refs = %+v", refs)
	}
	if gotQuery != "colombo" || gotKey != "k1" || gotMax != "25" {
		t.Errorf("params: q=%q key=%q max=%q", gotQuery, gotKey, gotMax)
	}
}

func TestSearchClampsMaxResults(t *testing.T) {
	var gotMax string
	yt := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
		gotMax = r.URL.Query().Get("maxResults")
		w.Write(searchPayload())
	}, "k1")

	if _, err := yt.Search(context.Background(), "q", harvest.SearchOptions{MaxResults: 500}); err != nil {
		t.Fatal(err)
	}
	if gotMax != "50" {
		t.Errorf("maxResults = %s, want clamped to 50", gotMax)
	}
}

func TestDetailsBatchesIDs(t *testing.T) {
	var mu sync.Mutex
	var batches [][]string
	yt := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("id"), ",")
		mu.Lock()
		batches = append(batches, ids)
		mu.Unlock()

		var resp ytVideosResp
		data, _ := json.Marshal(resp)
		w.Write(data)
	}, "k1")

	ids := make([]string, 120)
	for i := range ids {
		ids[i] = "v" + strings.Repeat("x", i%3)
	}
	if _, err := yt.Details(context.Background(), ids); err != nil {
		t.Fatal(err)
	}

	if len(batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(batches))
	}
	if len(batches[0]) != 50 || len(batches[1]) != 50 || len(batches[2]) != 20 {
		t.Errorf("batch sizes = %d/%d/%d", len(batches[0]), len(batches[1]), len(batches[2]))
	}
}

func TestNewYouTubeUsesConfiguredRetry(t *testing.T) {
	oldAttempts, oldBudget := harvest.Cfg.RetryAttempts, harvest.Cfg.RetryBudget
	t.Cleanup(func() {
		harvest.Cfg.RetryAttempts, harvest.Cfg.RetryBudget = oldAttempts, oldBudget
	})
	harvest.Cfg.RetryAttempts = 7
	harvest.Cfg.RetryBudget = 90 * time.Second

	pool, err := harvest.NewKeyPool([]string{"k1"}, 10000)
	if err != nil {
		t.Fatal(err)
	}
	yt := NewYouTube(pool)
	if yt.retry.MaxAttempts != 7 {
		t.Errorf("MaxAttempts = %d, want 7 from config", yt.retry.MaxAttempts)
	}
	if yt.retry.Budget != 90*time.Second {
		t.Errorf("Budget = %v, want 90s from config", yt.retry.Budget)
	}
}

func TestQuotaErrorRotatesKey(t *testing.T) {
	yt := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") == "k1" {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":{"code":403,"message":"quotaExceeded","errors":[{"reason":"quotaExceeded"}]}}`))
			return
		}
		w.Write(searchPayload("v1"))
	}, "k1", "k2")

	refs, err := yt.Search(context.Background(), "q", harvest.SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 {
		t.Errorf("refs = %+v", refs)
	}

	st := yt.pool.Status()
	if st.Keys[0].QuotaExceededCount != 1 {
		t.Errorf("k1 QuotaExceededCount = %d, want 1", st.Keys[0].QuotaExceededCount)
	}
	if st.CurrentIndex != 1 {
		t.Errorf("CurrentIndex = %d, want rotated to 1", st.CurrentIndex)
	}
}

func TestBadRequestIsFatal(t *testing.T) {
	calls := 0
	yt := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"invalid parameter"}}`))
	}, "k1")

	_, err := yt.Search(context.Background(), "q", harvest.SearchOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 for a fatal status", calls)
	}
}

func TestServerErrorRetries(t *testing.T) {
	calls := 0
	yt := newTestYouTube(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(searchPayload("v1"))
	}, "k1")

	refs, err := yt.Search(context.Background(), "q", harvest.SearchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || calls != 3 {
		t.Errorf("refs=%d calls=%d, want 1 ref after 3 calls", len(refs), calls)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   harvest.ErrorKind
	}{
		{"quota 403", 403, `{"error":{"message":"quotaExceeded"}}`, harvest.KindQuota},
		{"rate 403", 403, `{"error":{"message":"rateLimitExceeded"}}`, harvest.KindQuota},
		{"plain 403", 403, `{"error":{"message":"forbidden"}}`, harvest.KindFatal},
		{"bad request", 400, `{"error":{"message":"invalid"}}`, harvest.KindFatal},
		{"too many requests", 429, `{}`, harvest.KindTransient},
		{"server error", 500, `{}`, harvest.KindTransient},
		{"bad gateway", 502, `{}`, harvest.KindTransient},
		{"not found", 404, `{}`, harvest.KindFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStatus("search", tt.status, []byte(tt.body))
			var ce *harvest.CallError
			if !errors.As(err, &ce) {
				t.Fatalf("error type = %T", err)
			}
			if ce.Kind != tt.want {
				t.Errorf("kind = %v, want %v", ce.Kind, tt.want)
			}
		})
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"12345", 12345},
		{"0", 0},
		{"", 0},
		{"not-a-number", 0},
	}
	for _, tt := range tests {
		if got := parseCount(tt.in); got != tt.want {
			t.Errorf("parseCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
