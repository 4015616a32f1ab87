// Package content turns editor post bodies into plain prose for the assistant.
package content

import (
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultMaxRunes caps the prose sent with a job.
const DefaultMaxRunes = 24000

var (
	shortcodeOpen  = regexp.MustCompile(`\[([a-zA-Z][\w-]*)(\s[^\[\]]*)?/?\]`)
	shortcodeClose = regexp.MustCompile(`\[/([a-zA-Z][\w-]*)\]`)
	blockMarker    = regexp.MustCompile(`<!--\s*/?wp:[^>]*-->`)
	looksHTML      = regexp.MustCompile(`<[a-zA-Z!/][^>]*>`)
)

// Info contains the cleaned prose and metadata.
type Info struct {
	Prose      string
	WordCount  int
	Truncated  bool
	IsReliable bool
}

// Clean converts raw post content (HTML or plain text) into prose.
// Shortcodes and block markers are dropped, whitespace is collapsed per paragraph.
func Clean(raw string, maxRunes int) (*Info, error) {
	raw = blockMarker.ReplaceAllString(raw, "")
	raw = stripShortcodes(raw)

	var paras []string
	if looksHTML.MatchString(raw) {
		var err error
		paras, err = extractBlocks(strings.NewReader(raw))
		if err != nil {
			return nil, err
		}
	} else {
		for _, p := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n\n") {
			if p = collapse(p); p != "" {
				paras = append(paras, p)
			}
		}
	}

	prose := strings.Join(paras, "\n\n")
	truncated := false
	if maxRunes > 0 {
		if r := []rune(prose); len(r) > maxRunes {
			prose = strings.TrimSpace(string(r[:maxRunes]))
			truncated = true
		}
	}

	words := countWords(prose)
	return &Info{
		Prose:      prose,
		WordCount:  words,
		Truncated:  truncated,
		IsReliable: words > 20,
	}, nil
}

// stripShortcodes drops shortcode tags: both halves of an enclosing pair,
// self-closing tags and tags carrying attributes. Enclosed text is kept.
// Other bracketed prose, like "[Update]" or a link label, is left alone.
func stripShortcodes(s string) string {
	closed := map[string]bool{}
	for _, m := range shortcodeClose.FindAllStringSubmatch(s, -1) {
		closed[m[1]] = true
	}
	s = shortcodeOpen.ReplaceAllStringFunc(s, func(tag string) string {
		m := shortcodeOpen.FindStringSubmatch(tag)
		if closed[m[1]] || strings.HasSuffix(tag, "/]") || strings.Contains(m[2], "=") {
			return ""
		}
		return tag
	})
	return shortcodeClose.ReplaceAllString(s, "")
}

// extractBlocks parses HTML and returns the text of each block element, in order.
func extractBlocks(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	root := findBody(doc)
	if root == nil {
		root = doc
	}

	var out []string
	var inline strings.Builder
	flush := func() {
		if t := collapse(inline.String()); t != "" {
			out = append(out, t)
		}
		inline.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			inline.WriteString(n.Data)
			return
		case html.ElementNode:
			if isNoise(n) {
				return
			}
			if n.DataAtom == atom.Br {
				inline.WriteString(" ")
				return
			}
			if isBlock(n) {
				flush()
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c)
				}
				flush()
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	flush()

	return out, nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := findBody(c); res != nil {
			return res
		}
	}
	return nil
}

func isBlock(n *html.Node) bool {
	switch n.DataAtom {
	case atom.P, atom.Div, atom.Li, atom.Blockquote, atom.Pre, atom.Section, atom.Article,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Td, atom.Th, atom.Dd, atom.Dt:
		return true
	}
	return false
}

// isNoise reports elements whose text never belongs in the prose.
func isNoise(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Iframe, atom.Svg, atom.Figcaption, atom.Form, atom.Button:
		return true
	}
	for _, a := range n.Attr {
		if a.Key == "class" && strings.Contains(a.Val, "screen-reader-text") {
			return true
		}
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func countWords(s string) int {
	return len(strings.Fields(s))
}
