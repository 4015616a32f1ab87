package content

import (
	"strings"
	"testing"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		wantWordCount int
		contains      []string
		notContains   []string
	}{
		{
			name: "Block Editor Post",
			raw: `<!-- wp:paragraph --><p>Hello world. This is a test.</p><!-- /wp:paragraph -->
				<!-- wp:heading --><h2>Second &amp; final</h2><!-- /wp:heading -->
				<script>alert("x")</script>`,
			wantWordCount: 9,
			contains:      []string{"Hello world. This is a test.", "Second & final"},
			notContains:   []string{"wp:paragraph", "alert"},
		},
		{
			name: "Classic Post With Shortcodes",
			raw: `<p>The Eiffel Tower<br>is in <strong>Paris</strong>.</p>[gallery ids="1,2"]
				<ul><li>Built 1889</li><li>330 m</li></ul>
				<figure><img src="a.jpg"><figcaption>Caption text</figcaption></figure>`,
			wantWordCount: 9,
			contains:      []string{"The Eiffel Tower is in Paris.", "Built 1889", "330 m"},
			notContains:   []string{"gallery", "Caption"},
		},
		{
			name:          "Plain Text",
			raw:           "First   paragraph\nstill first.\r\n\r\nSecond [caption]paragraph[/caption].",
			wantWordCount: 6,
			contains:      []string{"First paragraph still first.\n\nSecond paragraph."},
		},
		{
			name:          "Bracketed Prose Kept",
			raw:           "[Update] Prices changed. See [the guide](https://example.com) and [Update 2024] notes.",
			wantWordCount: 10,
			contains:      []string{"[Update] Prices changed.", "[the guide](https://example.com)", "[Update 2024] notes."},
		},
		{
			name:          "Self Closing And Attribute Shortcodes",
			raw:           `Intro [contact-form-7 id="12"] then [divider/] and [audio /] end.`,
			wantWordCount: 4,
			contains:      []string{"Intro then and end."},
			notContains:   []string{"contact-form", "divider", "audio"},
		},
		{
			name:          "Empty",
			raw:           "   ",
			wantWordCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := Clean(tt.raw, 0)
			if err != nil {
				t.Fatalf("Clean failed: %v", err)
			}

			if info.WordCount != tt.wantWordCount {
				t.Errorf("WordCount = %d, want %d (prose %q)", info.WordCount, tt.wantWordCount, info.Prose)
			}

			for _, c := range tt.contains {
				if !strings.Contains(info.Prose, c) {
					t.Errorf("Prose missing expected content: %q in %q", c, info.Prose)
				}
			}

			for _, nc := range tt.notContains {
				if strings.Contains(info.Prose, nc) {
					t.Errorf("Prose contains unexpected content: %q", nc)
				}
			}
		})
	}
}

func TestClean_Truncates(t *testing.T) {
	info, err := Clean(strings.Repeat("word ", 100), 20)
	if err != nil {
		t.Fatal(err)
	}
	if !info.Truncated {
		t.Error("expected Truncated")
	}
	if n := len([]rune(info.Prose)); n > 20 {
		t.Errorf("prose has %d runes, want <= 20", n)
	}
	if info.IsReliable {
		t.Error("short prose should not be reliable")
	}
}
