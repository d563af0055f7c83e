package harvest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Scoring weights and caps. Hand-tuned in the upstream analysis pipeline;
// reproduced as-is, with the relevance threshold kept configurable.
const (
	locationWeight    = 0.2
	locationCap       = 0.4
	languageWeight    = 0.15
	languageCap       = 0.3
	culturalWeight    = 0.10
	culturalCap       = 0.2
	institutionWeight = 0.05
	institutionCap    = 0.1
	channelLocBonus   = 0.2

	qualityBase        = 0.5
	qualityKeywordStep = 0.1
	qualityKeywordCap  = 0.3

	relevanceCompositeWeight  = 0.4
	qualityCompositeWeight    = 0.3
	engagementCompositeWeight = 0.2
	spamCompositeWeight       = 0.1
)

// Scorer computes relevance, quality, engagement and spam scores for raw
// items. Pure and side-effect-free: scoring the same item twice yields
// identical results.
type Scorer struct {
	MinRelevance float64 // isRelevant threshold
	RegionCode   string  // e.g. "LK"
	RegionName   string  // e.g. "sri lanka"
}

// NewScorer builds a scorer from the engine config.
func NewScorer() Scorer {
	return Scorer{
		MinRelevance: Cfg.MinRelevanceScore,
		RegionCode:   Cfg.RegionCode,
		RegionName:   Cfg.RegionName,
	}
}

// Score analyzes one raw item and returns it with computed fields attached.
func (s Scorer) Score(v Video) ScoredVideo {
	raw := rawCorpus(v)
	corpus := strings.ToLower(raw)

	relevance := s.relevanceScore(corpus, v)
	quality := qualityScore(corpus, v)
	engagement, engagementRate := engagementScore(v)
	spam := spamScore(raw)

	composite := relevance*relevanceCompositeWeight +
		quality*qualityCompositeWeight +
		engagement*engagementCompositeWeight +
		(1-spam)*spamCompositeWeight

	return ScoredVideo{
		Video:           v,
		RelevanceScore:  round3(relevance),
		QualityScore:    round3(quality),
		EngagementScore: round3(engagement),
		SpamScore:       round3(spam),
		CompositeScore:  round3(composite),
		IsRelevant:      relevance >= s.MinRelevance,
		EngagementRate:  engagementRate,
		Category:        categorize(corpus),
		Language:        detectLanguage(corpus),
		VideoURL:        fmt.Sprintf("https://www.youtube.com/watch?v=%s", v.ID),
	}
}

// rawCorpus concatenates title, description, channel name and tags, one
// part per line. No keyword contains a newline, so adjacent parts can
// never combine into a multi-word phrase match and scores stay invariant
// under tag reordering. Keyword matching runs on the lowercased form; the
// spam heuristics need the original casing.
func rawCorpus(v Video) string {
	parts := []string{v.Title, v.Description, v.ChannelTitle}
	parts = append(parts, v.Tags...)
	return strings.Join(parts, "\n")
}

// relevanceScore sums four capped keyword sub-scores plus a flat bonus when
// the channel's locale hint matches the target region. Clipped to [0,1].
func (s Scorer) relevanceScore(corpus string, v Video) float64 {
	score := math.Min(float64(countMatches(corpus, locationTerms))*locationWeight, locationCap)
	score += math.Min(float64(countMatches(corpus, languageTerms))*languageWeight, languageCap)
	score += math.Min(float64(countMatches(corpus, culturalTerms))*culturalWeight, culturalCap)

	institutional := countMatches(corpus, institutionTerms) + countMatches(corpus, mediaTerms)
	score += math.Min(float64(institutional)*institutionWeight, institutionCap)

	if s.channelLocaleMatches(v.ChannelCountry) {
		score += channelLocBonus
	}
	return math.Min(score, 1.0)
}

func (s Scorer) channelLocaleMatches(country string) bool {
	c := strings.ToLower(strings.TrimSpace(country))
	if c == "" {
		return false
	}
	return c == strings.ToLower(s.RegionCode) ||
		c == strings.ToLower(s.RegionName) ||
		c == strings.ReplaceAll(strings.ToLower(s.RegionName), " ", "_")
}

// qualityScore starts from a 0.5 baseline and moves with keyword hits,
// definition, captions, and duration. Clipped to [0,1].
func qualityScore(corpus string, v Video) float64 {
	score := qualityBase

	score += math.Min(float64(countMatches(corpus, positiveQualityTerms))*qualityKeywordStep, qualityKeywordCap)
	score -= math.Min(float64(countMatches(corpus, negativeQualityTerms))*qualityKeywordStep, qualityKeywordCap)

	if v.Definition == "hd" {
		score += 0.1
	}
	if v.Caption {
		score += 0.1
	}
	if seconds := ParseISODuration(v.Duration); seconds > 0 {
		if seconds >= 30 && seconds <= 3600 {
			score += 0.1
		} else if seconds > 3600 {
			score -= 0.05
		}
	}
	return clamp01(score)
}

// engagementScore blends the like/comment rate (comments weighted double)
// with a view-count floor. Zero views yields exactly zero.
func engagementScore(v Video) (score, rate float64) {
	if v.ViewCount == 0 {
		return 0, 0
	}
	rate = (float64(v.LikeCount) + 2*float64(v.CommentCount)) / float64(v.ViewCount)
	normalized := math.Min(rate*10, 1.0)
	viewScore := math.Min(float64(v.ViewCount)/1000, 1.0)
	return normalized*0.7 + viewScore*0.3, rate
}

// spamScore counts matched spam patterns plus shouting and punctuation
// heuristics; each indicator adds 0.2, capped at 1.
func spamScore(text string) float64 {
	indicators := 0
	for _, re := range spamPatterns {
		if re.MatchString(text) {
			indicators++
		}
	}

	runes := []rune(text)
	if len(runes) > 50 {
		upper := 0
		for _, r := range runes {
			if unicode.IsUpper(r) {
				upper++
			}
		}
		if float64(upper)/float64(len(runes)) > 0.3 {
			indicators++
		}
	}
	if len(runes) > 0 {
		punct := 0
		for _, r := range runes {
			if r == '!' || r == '?' || r == '.' {
				punct++
			}
		}
		if float64(punct)/float64(len(runes)) > 0.1 {
			indicators++
		}
	}
	return math.Min(float64(indicators)*0.2, 1.0)
}

// countMatches counts how many terms occur in the corpus. Each term counts
// once regardless of how often it appears.
func countMatches(corpus string, terms []string) int {
	n := 0
	for _, term := range terms {
		if strings.Contains(corpus, term) {
			n++
		}
	}
	return n
}

// categorize assigns the first matching content category, or "general".
func categorize(corpus string) string {
	for _, cat := range categoryTerms {
		for _, term := range cat.terms {
			if strings.Contains(corpus, term) {
				return cat.name
			}
		}
	}
	return "general"
}

// detectLanguage applies the upstream heuristic: script ranges first, then
// region keywords.
func detectLanguage(corpus string) string {
	for _, r := range corpus {
		if r >= 0x0D80 && r <= 0x0DFF {
			return "sinhala"
		}
	}
	for _, r := range corpus {
		if r >= 0x0B80 && r <= 0x0BFF {
			return "tamil"
		}
	}
	for _, term := range []string{"sri lanka", "colombo", "kandy"} {
		if strings.Contains(corpus, term) {
			return "english_sri_lankan"
		}
	}
	return "english"
}

// ParseISODuration converts an ISO 8601 duration ("PT1H2M3S") to seconds.
// Malformed input yields 0.
func ParseISODuration(d string) int {
	if !strings.HasPrefix(d, "PT") {
		return 0
	}
	rest := d[2:]
	seconds := 0
	num := ""
	for _, r := range rest {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'H' || r == 'M' || r == 'S':
			n, err := strconv.Atoi(num)
			if err != nil {
				return 0
			}
			switch r {
			case 'H':
				seconds += n * 3600
			case 'M':
				seconds += n * 60
			case 'S':
				seconds += n
			}
			num = ""
		default:
			return 0
		}
	}
	return seconds
}

// Insights aggregates a slice of scored items for reporting.
type InsightsReport struct {
	TotalVideos          int            `json:"total_videos"`
	RelevantVideos       int            `json:"relevant_videos"`
	RelevantPercentage   float64        `json:"relevant_percentage"`
	AverageContentScore  float64        `json:"average_content_score"`
	AverageQualityScore  float64        `json:"average_quality_score"`
	CategoryDistribution map[string]int `json:"category_distribution"`
	LanguageDistribution map[string]int `json:"language_distribution"`
	GeneratedAt          time.Time      `json:"generated_at"`
}

// Insights summarizes relevant share, average scores, and category and
// language distributions for a batch of scored items.
func Insights(videos []ScoredVideo) InsightsReport {
	report := InsightsReport{
		CategoryDistribution: map[string]int{},
		LanguageDistribution: map[string]int{},
		GeneratedAt:          time.Now(),
	}
	if len(videos) == 0 {
		return report
	}

	var contentSum, qualitySum float64
	for _, v := range videos {
		report.TotalVideos++
		if v.IsRelevant {
			report.RelevantVideos++
		}
		contentSum += v.CompositeScore
		qualitySum += v.QualityScore
		report.CategoryDistribution[v.Category]++
		report.LanguageDistribution[v.Language]++
	}
	n := float64(report.TotalVideos)
	report.RelevantPercentage = round3(float64(report.RelevantVideos) / n * 100)
	report.AverageContentScore = round3(contentSum / n)
	report.AverageQualityScore = round3(qualitySum / n)
	return report
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(x, 1))
}
