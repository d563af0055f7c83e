package harvest

import (
	"math"
	"strings"
	"testing"
)

func testScorer() Scorer {
	return Scorer{MinRelevance: 0.3, RegionCode: "LK", RegionName: "sri lanka"}
}

func TestScoreDeterministic(t *testing.T) {
	s := testScorer()
	v := Video{
		ID:          "abc123",
		Title:       "Sri Lanka Colombo travel vlog",
		Description: "Exploring the capital",
		Tags:        []string{"travel", "asia"},
		ViewCount:   5000,
		LikeCount:   200,
		Duration:    "PT12M",
	}
	a := s.Score(v)
	b := s.Score(v)
	if a.RelevanceScore != b.RelevanceScore || a.CompositeScore != b.CompositeScore {
		t.Errorf("scoring is not deterministic: %+v vs %+v", a, b)
	}
}

func TestScoreTagOrderInvariant(t *testing.T) {
	s := testScorer()
	base := Video{ID: "x", Title: "Colombo food tour", ViewCount: 100}

	v1 := base
	v1.Tags = []string{"kottu", "colombo", "food"}
	v2 := base
	v2.Tags = []string{"food", "kottu", "colombo"}

	a, b := s.Score(v1), s.Score(v2)
	if a.RelevanceScore != b.RelevanceScore || a.QualityScore != b.QualityScore {
		t.Errorf("tag order changed scores: %v vs %v", a.RelevanceScore, b.RelevanceScore)
	}
}

func TestScoreTagsDoNotFormPhrases(t *testing.T) {
	s := testScorer()
	base := Video{ID: "x", Title: "daily vlog", ViewCount: 100}

	v1 := base
	v1.Tags = []string{"sri", "lanka"}
	v2 := base
	v2.Tags = []string{"lanka", "sri"}

	a, b := s.Score(v1), s.Score(v2)
	if a.RelevanceScore != b.RelevanceScore || a.CompositeScore != b.CompositeScore {
		t.Errorf("tag order changed scores: relevance %v vs %v, composite %v vs %v",
			a.RelevanceScore, b.RelevanceScore, a.CompositeScore, b.CompositeScore)
	}
	// Neither tag matches on its own, and adjacent tags must not combine
	// into the "sri lanka" location term.
	if a.RelevanceScore != 0 {
		t.Errorf("RelevanceScore = %v, want 0 for split tags", a.RelevanceScore)
	}
}

func TestKeywordTableCoverage(t *testing.T) {
	if got := countMatches("christmas eid roti", culturalTerms); got != 3 {
		t.Errorf("cultural matches = %d, want 3", got)
	}
	if got := countMatches("live on charana tv and art tv", mediaTerms); got != 2 {
		t.Errorf("media matches = %d, want 2", got)
	}
	if got := countMatches("st josephs college vs wesley college big match", institutionTerms); got != 2 {
		t.Errorf("institution matches = %d, want 2", got)
	}
}

func TestRelevanceTravelVlog(t *testing.T) {
	s := testScorer()
	v := Video{ID: "x", Title: "Sri Lanka Colombo travel vlog"}

	sv := s.Score(v)
	// Two location hits at 0.2 each, capped at 0.4.
	if sv.RelevanceScore != 0.4 {
		t.Errorf("RelevanceScore = %v, want 0.4", sv.RelevanceScore)
	}
	if !sv.IsRelevant {
		t.Error("travel vlog should pass the 0.3 threshold")
	}
	if sv.Category != "travel" {
		t.Errorf("Category = %q, want travel", sv.Category)
	}
	if sv.Language != "english_sri_lankan" {
		t.Errorf("Language = %q, want english_sri_lankan", sv.Language)
	}
	if sv.VideoURL != "https://www.youtube.com/watch?v=x" {
		t.Errorf("VideoURL = %q", sv.VideoURL)
	}
}

func TestRelevanceLocationCap(t *testing.T) {
	s := testScorer()
	// Five city hits still cap at 0.4.
	v := Video{ID: "x", Title: "colombo kandy galle jaffna negombo"}
	sv := s.Score(v)
	if sv.RelevanceScore != 0.4 {
		t.Errorf("RelevanceScore = %v, want capped 0.4", sv.RelevanceScore)
	}
}

func TestRelevanceChannelLocaleBonus(t *testing.T) {
	s := testScorer()
	base := Video{ID: "x", Title: "colombo street walk"}

	without := s.Score(base)

	for _, country := range []string{"LK", "lk", "Sri Lanka", "sri_lanka"} {
		v := base
		v.ChannelCountry = country
		with := s.Score(v)
		diff := with.RelevanceScore - without.RelevanceScore
		if math.Abs(diff-0.2) > 0.001 {
			t.Errorf("country %q bonus = %v, want 0.2", country, diff)
		}
	}

	v := base
	v.ChannelCountry = "US"
	if got := s.Score(v); got.RelevanceScore != without.RelevanceScore {
		t.Error("non-matching country must not add a bonus")
	}
}

func TestRelevanceIrrelevantContent(t *testing.T) {
	s := testScorer()
	v := Video{ID: "x", Title: "Minecraft speedrun world record", Description: "gaming content"}
	sv := s.Score(v)
	if sv.RelevanceScore != 0 {
		t.Errorf("RelevanceScore = %v, want 0", sv.RelevanceScore)
	}
	if sv.IsRelevant {
		t.Error("unrelated content must not be relevant")
	}
}

func TestQualityScore(t *testing.T) {
	tests := []struct {
		name string
		v    Video
		want float64
	}{
		{"baseline", Video{Title: "plain"}, 0.5},
		{"hd with captions mid duration", Video{Title: "plain", Definition: "hd", Caption: true, Duration: "PT10M"}, 0.8},
		{"positive keyword", Video{Title: "official documentary", Definition: "hd", Caption: true, Duration: "PT10M"}, 1.0},
		{"negative keywords", Video{Title: "clickbait fake scam spam"}, 0.2},
		{"overlong penalty", Video{Title: "plain", Duration: "PT2H"}, 0.45},
	}
	s := testScorer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Score(tt.v).QualityScore
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("QualityScore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngagementZeroViews(t *testing.T) {
	score, rate := engagementScore(Video{LikeCount: 100, CommentCount: 50})
	if score != 0 || rate != 0 {
		t.Errorf("zero views: score=%v rate=%v, want 0,0", score, rate)
	}
}

func TestEngagementFormula(t *testing.T) {
	// rate = (50 + 2*25)/1000 = 0.1 -> normalized 1.0; views floor 1.0.
	score, rate := engagementScore(Video{ViewCount: 1000, LikeCount: 50, CommentCount: 25})
	if math.Abs(rate-0.1) > 1e-9 {
		t.Errorf("rate = %v, want 0.1", rate)
	}
	if math.Abs(score-1.0) > 1e-9 {
		t.Errorf("score = %v, want 1.0", score)
	}

	// Low views drag the view component down.
	score, _ = engagementScore(Video{ViewCount: 100, LikeCount: 5, CommentCount: 0})
	want := math.Min(0.05*10, 1)*0.7 + (100.0/1000)*0.3
	if math.Abs(score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", score, want)
	}
}

func TestSpamScore(t *testing.T) {
	s := testScorer()

	clean := s.Score(Video{ID: "x", Title: "Quiet morning in Kandy"})
	if clean.SpamScore != 0 {
		t.Errorf("clean SpamScore = %v, want 0", clean.SpamScore)
	}

	// All-caps shouting plus spam phrases and punctuation runs.
	spam := s.Score(Video{
		ID:    "y",
		Title: strings.Repeat("CLICK HERE NOW!!! 100% GUARANTEED SHOCKING SECRET ", 3),
	})
	if spam.SpamScore < 0.6 {
		t.Errorf("SpamScore = %v, want >= 0.6", spam.SpamScore)
	}
	if spam.IsRelevant {
		t.Error("spam with no regional signal must not be relevant")
	}
}

func TestSpamUppercaseDetection(t *testing.T) {
	// The shouting heuristic needs the original casing: a lowercase-only
	// pipeline would miss this.
	title := "WATCH THIS AMAZING VIDEO RIGHT NOW EVERYONE MUST SEE THIS TODAY"
	if got := spamScore(title); got == 0 {
		t.Errorf("spamScore = %v, want > 0 for all-caps title", got)
	}
}

func TestCompositeScoreBounds(t *testing.T) {
	s := testScorer()
	videos := []Video{
		{ID: "a", Title: "Sri Lanka news update", ViewCount: 100000, LikeCount: 5000, CommentCount: 1000, Definition: "hd", Caption: true, Duration: "PT5M"},
		{ID: "b", Title: "nothing in particular"},
		{ID: "c", Title: "CLICK HERE!!! 100% GUARANTEED", ViewCount: 10},
	}
	for _, v := range videos {
		sv := s.Score(v)
		if sv.CompositeScore < 0 || sv.CompositeScore > 1 {
			t.Errorf("CompositeScore out of range for %q: %v", v.ID, sv.CompositeScore)
		}
		// Rounded to 3 decimals.
		if sv.CompositeScore != math.Round(sv.CompositeScore*1000)/1000 {
			t.Errorf("CompositeScore not rounded: %v", sv.CompositeScore)
		}
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		corpus string
		want   string
	}{
		{"breaking news from colombo", "news"},
		{"sinhala music video", "entertainment"},
		{"sri lanka cricket match highlights", "sports"},
		{"visit the best beach in the south", "travel"},
		{"kottu recipe at home", "food"},
		{"university entrance guide", "education"},
		{"parliament election results", "politics"},
		{"vesak festival celebrations", "culture"},
		{"random unrelated content", "general"},
		// First category in table order wins on overlap.
		{"news report about a cricket match", "news"},
	}
	for _, tt := range tests {
		if got := categorize(tt.corpus); got != tt.want {
			t.Errorf("categorize(%q) = %q, want %q", tt.corpus, got, tt.want)
		}
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		corpus string
		want   string
	}{
		{"අද දවසේ ප්‍රවෘත්ති", "sinhala"},
		{"இன்றைய செய்திகள்", "tamil"},
		{"exploring colombo today", "english_sri_lankan"},
		{"generic english title", "english"},
	}
	for _, tt := range tests {
		if got := detectLanguage(tt.corpus); got != tt.want {
			t.Errorf("detectLanguage(%q) = %q, want %q", tt.corpus, got, tt.want)
		}
	}
}

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"PT1H2M3S", 3723},
		{"PT10M30S", 630},
		{"PT45S", 45},
		{"PT2H", 7200},
		{"PT0S", 0},
		{"", 0},
		{"P1DT2H", 0},
		{"PTXS", 0},
		{"10M", 0},
	}
	for _, tt := range tests {
		if got := ParseISODuration(tt.in); got != tt.want {
			t.Errorf("ParseISODuration(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestInsights(t *testing.T) {
	empty := Insights(nil)
	if empty.TotalVideos != 0 || empty.RelevantPercentage != 0 {
		t.Errorf("empty insights = %+v", empty)
	}

	videos := []ScoredVideo{
		{IsRelevant: true, CompositeScore: 0.8, QualityScore: 0.9, Category: "news", Language: "english"},
		{IsRelevant: true, CompositeScore: 0.6, QualityScore: 0.5, Category: "news", Language: "sinhala"},
		{IsRelevant: false, CompositeScore: 0.1, QualityScore: 0.4, Category: "travel", Language: "english"},
	}
	r := Insights(videos)
	if r.TotalVideos != 3 || r.RelevantVideos != 2 {
		t.Fatalf("counts = %d/%d", r.TotalVideos, r.RelevantVideos)
	}
	if math.Abs(r.RelevantPercentage-66.667) > 0.001 {
		t.Errorf("RelevantPercentage = %v", r.RelevantPercentage)
	}
	if math.Abs(r.AverageContentScore-0.5) > 0.001 {
		t.Errorf("AverageContentScore = %v", r.AverageContentScore)
	}
	if r.CategoryDistribution["news"] != 2 || r.LanguageDistribution["english"] != 2 {
		t.Errorf("distributions = %+v / %+v", r.CategoryDistribution, r.LanguageDistribution)
	}
}
