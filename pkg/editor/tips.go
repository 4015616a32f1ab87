package editor

import (
	"context"
	"time"
)

// Tips are shown to the editor while a job is running.
var Tips = []string{
	"Keep your title concise but descriptive.",
	"Use numbers to create structure, e.g., '5 Ways to...'.",
	"Incorporate power words like 'amazing', 'effective', or 'ultimate'.",
	"Use questions to spark curiosity.",
	"Focus on benefits and what the reader will learn.",
	"Include keywords for better SEO and searchability.",
	"Create a sense of urgency or importance.",
	"Use action-oriented language to encourage engagement.",
	"Highlight a problem and promise a solution.",
	"Make use of 'How-To' titles for instructional content.",
	"Keep your audience in mind: what do they want to know?",
	"Try using comparisons or contrasts, like 'This vs. That'.",
	"Use storytelling elements to connect emotionally.",
	"Avoid clickbait. Be honest and accurate in your titles.",
	"Try adding a surprising element to pique interest.",
	"Match your title style to the content type (news, opinion, etc.).",
	"Leverage trends and current events when appropriate.",
	"Experiment with different lengths and word choices.",
	"Focus on clarity: what is the main takeaway for the reader?",
	"Ask yourself, 'Would I click on this title?'",
}

// RotateTips sends the first tip immediately and the next one every interval
// until ctx is done. The rotation restarts from the first tip on every call.
func RotateTips(ctx context.Context, interval time.Duration, send func(tip string)) {
	if interval <= 0 || len(Tips) == 0 {
		return
	}
	idx := 0
	send(Tips[idx])

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idx = (idx + 1) % len(Tips)
			send(Tips[idx])
		}
	}
}
