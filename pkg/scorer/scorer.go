package scorer

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"occtitles/pkg/titles"
)

var (
	sentenceSplit = regexp.MustCompile(`[.!?]+`)
	vowelSplit    = regexp.MustCompile(`[aeiouy]+`)
)

// SEOGrade rates a title's length. Range describes the length band for display.
type SEOGrade struct {
	Score int    `json:"score"`
	Label string `json:"label"`
	Range string `json:"range"`
	Dot   string `json:"dot"`
}

// Scored is a candidate with its derived metrics.
type Scored struct {
	titles.TitleCandidate
	CharCount      int      `json:"char_count"`
	SEO            SEOGrade `json:"seo_grade"`
	KeywordDensity float64  `json:"keyword_density"`
	Readability    float64  `json:"readability"`
	Overall        float64  `json:"overall_score"`
	Best           bool     `json:"best"`
	Details        string   `json:"details"`
}

// Batch is one ranked set of candidates.
type Batch struct {
	Candidates []Scored `json:"candidates"`
	Best       int      `json:"best"` // -1 when empty
	Keywords   []string `json:"keywords"`
}

// BestCandidate returns the winning candidate, if any.
func (b *Batch) BestCandidate() (Scored, bool) {
	if b.Best < 0 || b.Best >= len(b.Candidates) {
		return Scored{}, false
	}
	return b.Candidates[b.Best], true
}

// GradeSEO grades a title by its character count.
func GradeSEO(text string) SEOGrade {
	n := utf8.RuneCountInString(text)
	switch {
	case n >= 50 && n <= 60:
		return SEOGrade{Score: 100, Label: "Excellent", Range: "50-60 characters", Dot: "🟢"}
	case n < 50:
		return SEOGrade{Score: 75, Label: "Average", Range: "below 50 characters", Dot: "🟡"}
	default:
		return SEOGrade{Score: 50, Label: "Poor", Range: "above 60 characters", Dot: "🔴"}
	}
}

func wordCount(text string) int {
	n := len(strings.Fields(text))
	if n == 0 {
		return 1
	}
	return n
}

// KeywordDensity is the case-insensitive keyword occurrence count over the word count.
// Keywords are matched literally, including inside longer words.
func KeywordDensity(text string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	count := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(kw))
		count += len(re.FindAllStringIndex(text, -1))
	}
	return float64(count) / float64(wordCount(text))
}

// Readability is a rough words-per-sentence plus vowel-runs-per-word heuristic.
func Readability(text string) float64 {
	words := float64(wordCount(text))
	sentences := len(sentenceSplit.Split(text, -1))
	if sentences < 1 {
		sentences = 1
	}
	syllables := float64(len(vowelSplit.Split(text, -1)))
	return (words/float64(sentences) + syllables/words) * 0.4
}

// SentimentScore maps a sentiment onto the 0..100 scale.
func SentimentScore(s titles.Sentiment) float64 {
	switch s {
	case titles.Positive:
		return 100
	case titles.Neutral:
		return 75
	default:
		return 50
	}
}

// DensityScore rewards densities between 1% and 3%.
func DensityScore(density float64) float64 {
	if density >= 0.01 && density <= 0.03 {
		return 100
	}
	return 50
}

// ReadabilityScore peaks at 10 and is not clamped, so it can go negative.
func ReadabilityScore(r float64) float64 {
	return 100 - math.Abs(r-10)*10
}

// Overall averages the four sub-scores.
func Overall(seo int, sentiment titles.Sentiment, density, readability float64) float64 {
	return (float64(seo) + SentimentScore(sentiment) + DensityScore(density) + ReadabilityScore(readability)) / 4
}

// Score derives all metrics for one candidate from its own keywords.
func Score(c titles.TitleCandidate) Scored {
	seo := GradeSEO(c.Text)
	density := KeywordDensity(c.Text, c.Keywords)
	read := Readability(c.Text)
	overall := Overall(seo.Score, c.Sentiment, density, read)

	logs := []string{
		fmt.Sprintf("SEO (%d chars): %d", utf8.RuneCountInString(c.Text), seo.Score),
		fmt.Sprintf("Sentiment (%s): %.0f", c.Sentiment, SentimentScore(c.Sentiment)),
		fmt.Sprintf("Keyword Density (%.2f%%): %.0f", density*100, DensityScore(density)),
		fmt.Sprintf("Readability (%.2f): %.2f", read, ReadabilityScore(read)),
	}

	return Scored{
		TitleCandidate: c,
		CharCount:      utf8.RuneCountInString(c.Text),
		SEO:            seo,
		KeywordDensity: density,
		Readability:    read,
		Overall:        overall,
		Details:        strings.Join(logs, "\n"),
	}
}

// Rank scores every candidate in order and marks the first maximum as best.
func Rank(cands []titles.TitleCandidate) Batch {
	b := Batch{
		Candidates: make([]Scored, 0, len(cands)),
		Best:       -1,
		Keywords:   KeywordPool(cands),
	}
	for i, c := range cands {
		s := Score(c)
		b.Candidates = append(b.Candidates, s)
		if b.Best == -1 || s.Overall > b.Candidates[b.Best].Overall {
			b.Best = i
		}
	}
	if b.Best >= 0 {
		b.Candidates[b.Best].Best = true
	}
	return b
}

// KeywordPool concatenates every candidate's keywords, duplicates included.
// It is for display only; density always uses the candidate's own list.
func KeywordPool(cands []titles.TitleCandidate) []string {
	pool := []string{}
	for _, c := range cands {
		pool = append(pool, c.Keywords...)
	}
	return pool
}
