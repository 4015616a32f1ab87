package scorer

import (
	"fmt"
	"strings"

	"occtitles/pkg/titles"
)

// SentimentEmoji returns the table glyph for a sentiment.
func SentimentEmoji(s titles.Sentiment) string {
	switch s {
	case titles.Positive:
		return "😊"
	case titles.Negative:
		return "😟"
	case titles.Neutral:
		return "😐"
	default:
		return "❓"
	}
}

// Row is a candidate formatted for the results table.
type Row struct {
	Title          string  `json:"title"`
	CharCount      int     `json:"char_count"`
	Style          string  `json:"style"`
	SEOGrade       string  `json:"seo_grade"`
	Sentiment      string  `json:"sentiment"`
	KeywordDensity string  `json:"keyword_density"`
	Readability    string  `json:"readability"`
	OverallScore   string  `json:"overall_score"`
	Score          float64 `json:"score"`
	Best           bool    `json:"best"`
}

// FormatRow renders the display strings for one scored candidate.
func FormatRow(s Scored) Row {
	return Row{
		Title:          s.Text,
		CharCount:      s.CharCount,
		Style:          s.Style,
		SEOGrade:       fmt.Sprintf("%s %s (%s)", s.SEO.Dot, s.SEO.Label, s.SEO.Range),
		Sentiment:      SentimentEmoji(s.Sentiment),
		KeywordDensity: fmt.Sprintf("%.2f%%", s.KeywordDensity*100),
		Readability:    fmt.Sprintf("%.2f", s.Readability),
		OverallScore:   fmt.Sprintf("%.2f", s.Overall),
		Score:          s.Overall,
		Best:           s.Best,
	}
}

// Rows formats a whole batch in order.
func (b *Batch) Rows() []Row {
	rows := make([]Row, 0, len(b.Candidates))
	for _, c := range b.Candidates {
		rows = append(rows, FormatRow(c))
	}
	return rows
}

// KeywordLine is the summary shown under the table.
func (b *Batch) KeywordLine() string {
	if len(b.Keywords) == 0 {
		return "No keywords generated."
	}
	return "Keywords used in density calculation: " + strings.Join(b.Keywords, ", ")
}
