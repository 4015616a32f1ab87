// Package editor holds the per-editor state around title generation:
// the original title for revert, the selected style and the last ranking.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"occtitles/pkg/scorer"
	"occtitles/pkg/titles"
)

var (
	ErrBusy         = errors.New("a title generation is already running")
	ErrNoResults    = errors.New("no titles have been generated yet")
	ErrUnknownStyle = errors.New("unknown style")
)

// Generator runs one job and ranks the result.
type Generator interface {
	Generate(ctx context.Context, req titles.JobRequest, obs titles.Observer) (*scorer.Batch, error)
}

// Result is what the editor renders after a generation.
type Result struct {
	Rows        []scorer.Row `json:"rows"`
	Best        int          `json:"best"`
	KeywordLine string       `json:"keyword_line"`
	ButtonLabel string       `json:"button_label"`
	Attempts    int          `json:"attempts"`
}

// State is a read-only view of a session.
type State struct {
	PostType      string `json:"post_type"`
	Title         string `json:"title"`
	OriginalTitle string `json:"original_title"`
	Style         string `json:"style"`
	HasGenerated  bool   `json:"has_generated"`
	Busy          bool   `json:"busy"`
	ButtonLabel   string `json:"button_label"`
}

// Session is the state of one editor screen.
type Session struct {
	mu sync.Mutex

	postType     string
	title        string
	original     string
	style        titles.Style
	hasGenerated bool
	busy         bool
	batch        *scorer.Batch
	retries      int
}

// NewSession starts a session for a post with its current title.
// retries is the number of extra whole-job attempts after a reported failure.
func NewSession(postType, title string, retries int) *Session {
	if retries < 0 {
		retries = 0
	}
	return &Session{postType: postType, title: title, retries: retries}
}

// Title returns the title currently in the editor.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// SetTitle records an edit made outside the generator.
func (s *Session) SetTitle(t string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = t
}

// lookupStyle resolves a catalog style. An empty style lets the assistant choose.
func lookupStyle(style string) (titles.Style, error) {
	if style == "" {
		return titles.Style{}, nil
	}
	st, ok := titles.LookupStyle(style)
	if !ok {
		return titles.Style{}, fmt.Errorf("%w: %q", ErrUnknownStyle, style)
	}
	return st, nil
}

// ButtonLabel is the text of the generate button.
func (s *Session) ButtonLabel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buttonLabelLocked()
}

func (s *Session) buttonLabelLocked() string {
	if s.hasGenerated && s.style.Value != "" {
		return "Generate 5 More " + s.style.Label + " Titles"
	}
	return "Generate Titles"
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		PostType:      s.postType,
		Title:         s.title,
		OriginalTitle: s.original,
		Style:         s.style.Value,
		HasGenerated:  s.hasGenerated,
		Busy:          s.busy,
		ButtonLabel:   s.buttonLabelLocked(),
	}
}

// Request is one generation asked for by the editor.
type Request struct {
	Content string
	Style   string

	// OnTip, when set, receives a rotating tip every TipInterval while the job runs.
	OnTip       func(string)
	TipInterval time.Duration
}

// Generate claims the session, selects the requested style, captures the
// current title as the revert point and runs the generator, retrying the whole
// job once per configured retry. Missing configuration is not retried.
// A busy session or an unknown style leaves the session untouched.
func (s *Session) Generate(ctx context.Context, gen Generator, in Request, obs titles.Observer) (*Result, error) {
	style, err := lookupStyle(in.Style)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.busy = true
	s.hasGenerated = true
	s.style = style
	s.original = s.title
	req := titles.JobRequest{Content: in.Content, Style: style.Value}
	retries := s.retries
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	if in.OnTip != nil {
		tipCtx, stopTips := context.WithCancel(ctx)
		tipsDone := make(chan struct{})
		go func() {
			defer close(tipsDone)
			RotateTips(tipCtx, in.TipInterval, in.OnTip)
		}()
		defer func() {
			stopTips()
			<-tipsDone
		}()
	}

	var (
		batch    *scorer.Batch
		attempts int
	)
	for attempts = 1; attempts <= retries+1; attempts++ {
		batch, err = gen.Generate(ctx, req, obs)
		if err == nil || titles.KindOf(err) == titles.MissingConfiguration || ctx.Err() != nil {
			break
		}
		if attempts <= retries {
			slog.Info("Retrying title generation", "attempt", attempts+1, "error", err)
		}
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.batch = batch
	return &Result{
		Rows:        batch.Rows(),
		Best:        batch.Best,
		KeywordLine: batch.KeywordLine(),
		ButtonLabel: s.buttonLabelLocked(),
		Attempts:    attempts,
	}, nil
}

// Apply puts the candidate at position index of the last ranking into the editor.
func (s *Session) Apply(index int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batch == nil || len(s.batch.Candidates) == 0 {
		return "", ErrNoResults
	}
	if index < 0 || index >= len(s.batch.Candidates) {
		return "", fmt.Errorf("index %d out of range [0,%d)", index, len(s.batch.Candidates))
	}
	s.title = s.batch.Candidates[index].Text
	return s.title, nil
}

// Revert restores the title captured when the last generation started.
func (s *Session) Revert() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasGenerated {
		return "", ErrNoResults
	}
	s.title = s.original
	return s.title, nil
}
