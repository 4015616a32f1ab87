package titles

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Style is one of the title styles the editor can request.
type Style struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Styles is the catalog offered to editors, in display order.
var Styles = []Style{
	{Value: "how-to", Label: "How-To"},
	{Value: "listicle", Label: "Listicle"},
	{Value: "question", Label: "Question"},
	{Value: "command", Label: "Command"},
	{Value: "intriguing statement", Label: "Intriguing Statement"},
	{Value: "news headline", Label: "News Headline"},
	{Value: "comparison", Label: "Comparison"},
	{Value: "benefit-oriented", Label: "Benefit-Oriented"},
	{Value: "storytelling", Label: "Storytelling"},
	{Value: "problem-solution", Label: "Problem-Solution"},
}

// LookupStyle finds a catalog entry by value or label, ignoring case.
func LookupStyle(s string) (Style, bool) {
	s = strings.TrimSpace(s)
	for _, st := range Styles {
		if strings.EqualFold(st.Value, s) || strings.EqualFold(st.Label, s) {
			return st, true
		}
	}
	return Style{}, false
}

const autoStyleDirective = "Choose the most suitable style"

// BuildQuery appends the style directive line to content.
// Free-form styles are accepted and title-cased.
func BuildQuery(content, style string) string {
	style = strings.TrimSpace(style)
	if style == "" {
		return content + "\n\nStyle: " + autoStyleDirective
	}
	return content + "\n\nStyle: " + cases.Title(language.English).String(style)
}
