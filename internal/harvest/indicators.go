package harvest

import "regexp"

// Keyword tables for the relevance and quality scoring pipeline. Matching
// is substring containment over the lowercased text corpus, so multi-word
// terms work without tokenization.

var locationTerms = []string{
	"sri lanka",
	// Major cities and towns
	"colombo", "kandy", "galle", "jaffna", "negombo", "anuradhapura", "polonnaruwa",
	"trincomalee", "batticaloa", "ratnapura", "kurunegala", "puttalam", "badulla",
	"bandarawela", "ella", "nuwara eliya", "matara", "hambantota", "chilaw", "kegalle",
	"monaragala", "vavuniya", "mannar", "ampara", "kalutara", "gampaha", "matale",
	"sigiriya", "dambulla", "bentota", "hikkaduwa", "unawatuna", "mirissa", "arugam bay",
	"yala", "udawalawe", "sinharaja", "horton plains", "adams peak", "pidurangala",
	"temple of tooth", "gangaramaya", "kelaniya", "kataragama", "sri pada",
}

var languageTerms = []string{
	"sinhala", "tamil", "sinhalese", "sri lankan", "ceylon",
}

var culturalTerms = []string{
	"ayubowan", "vanakkam", "poya", "vesak", "poson", "esala", "kathina", "avurudu",
	"sinhala new year", "tamil new year", "deepavali",
	"christmas", "eid",
	"kiribath", "kottu", "hoppers", "string hoppers", "pol sambol", "parippu",
	"rice and curry", "watalappan", "kokis", "achcharu", "pittu", "roti",
	"thala guli", "aggala", "halapa", "kevum", "athirasa",
}

var institutionTerms = []string{
	"university of colombo", "university of peradeniya", "university of moratuwa",
	"university of kelaniya", "university of sri jayewardenepura", "university of ruhuna",
	"university of jaffna", "open university of sri lanka", "sliit", "nsbm",
	"royal college", "st thomas college", "st josephs college", "wesley college",
	"ladies college", "visakha vidyalaya",
	"nalanda college", "ananda college", "dharmaraja college", "trinity college",
}

var mediaTerms = []string{
	"daily mirror", "sunday times", "daily news", "lankadeepa", "divaina",
	"ada derana", "tv derana", "rupavahini", "sirasa tv",
	"hiru tv", "swarnavahini", "shakthi tv", "capital tv",
	"charana tv", "art tv",
}

var positiveQualityTerms = []string{
	"hd", "high definition", "1080p", "4k", "uhd", "official", "verified",
	"original", "exclusive", "interview", "documentary", "educational",
	"tutorial", "guide", "review", "analysis", "behind the scenes",
}

var negativeQualityTerms = []string{
	"clickbait", "fake", "scam", "spam", "bot", "automated", "duplicate",
	"stolen", "copied", "repost", "mirror", "leaked", "pirated",
}

var spamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(100%|guaranteed|instant|immediate|urgent|limited time)\b`),
	regexp.MustCompile(`(?i)\b(click here|download now|act now|order now)\b`),
	regexp.MustCompile(`(?i)\$[\d,]+\s*(dollars?|usd|earn|make|profit)`),
	regexp.MustCompile(`(?i)\b(miracle|secret|revealed|exposed|shocking)\b`),
	regexp.MustCompile(`!{3,}|\?{3,}|\.{4,}`),
	regexp.MustCompile(`(?i)\bwatch.*before.*(deleted|removed|banned)\b`),
}

// categoryTerms drives content categorization; checked in this order, first
// hit wins.
var categoryTerms = []struct {
	name  string
	terms []string
}{
	{"news", []string{"news", "breaking", "update", "report", "announcement"}},
	{"entertainment", []string{"music", "dance", "comedy", "movie", "film", "song"}},
	{"sports", []string{"cricket", "football", "rugby", "sports", "match", "game"}},
	{"travel", []string{"travel", "visit", "tour", "destination", "hotel", "beach"}},
	{"food", []string{"food", "recipe", "cooking", "restaurant", "curry", "rice"}},
	{"education", []string{"education", "tutorial", "learn", "how to", "guide", "university"}},
	{"politics", []string{"politics", "election", "government", "minister", "parliament"}},
	{"culture", []string{"culture", "festival", "tradition", "temple", "religious", "ceremony"}},
}
