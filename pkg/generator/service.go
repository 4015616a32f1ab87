// Package generator wires settings, content cleaning, the job orchestrator and the scorer
// into the single operation the editor and CLI call.
package generator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"occtitles/pkg/assistant"
	"occtitles/pkg/backoff"
	"occtitles/pkg/config"
	"occtitles/pkg/content"
	"occtitles/pkg/scorer"
	"occtitles/pkg/titles"
	"occtitles/pkg/tracker"
)

// OutcomeCompleted is the job counter key for successful jobs.
const OutcomeCompleted = "completed"

// JobOverhead is the allowance on top of the poll waits for the API calls of one job.
const JobOverhead = 2 * time.Minute

// Service generates and ranks titles for article content.
type Service struct {
	api      titles.API
	prov     config.Provider
	tools    *titles.ToolRegistry
	tracker  *tracker.Tracker
	maxRunes int
	log      *slog.Logger
}

// NewService creates a Service. tr may be nil.
func NewService(api titles.API, prov config.Provider, tr *tracker.Tracker) *Service {
	s := &Service{
		api:      api,
		prov:     prov,
		tools:    titles.NewToolRegistry(),
		tracker:  tr,
		maxRunes: content.DefaultMaxRunes,
		log:      slog.With("component", "generator"),
	}
	s.tools.SetFallback(s.unknownTool)
	return s
}

// unknownTool acknowledges calls to tools the assistant has but this service does not implement.
func (s *Service) unknownTool(ctx context.Context, call assistant.ToolCall) (string, error) {
	name := call.Function.Name
	if name == "" {
		name = call.Type
	}
	s.log.Warn("Acknowledging unknown tool call", "tool", name, "call", call.ID)
	return titles.AckHandler(ctx, call)
}

// Generate runs one job and ranks its candidates. Errors are *titles.Error.
func (s *Service) Generate(ctx context.Context, req titles.JobRequest, obs titles.Observer) (*scorer.Batch, error) {
	batch, err := s.generate(ctx, req, obs)
	if s.tracker != nil {
		outcome := OutcomeCompleted
		if err != nil {
			outcome = string(titles.KindOf(err))
		}
		s.tracker.TrackJob(outcome)
	}
	return batch, err
}

func (s *Service) generate(ctx context.Context, req titles.JobRequest, obs titles.Observer) (*scorer.Batch, error) {
	creds := assistant.Credentials{
		APIKey:      s.prov.APIKey(ctx),
		AssistantID: s.prov.AssistantID(ctx),
	}

	info, err := content.Clean(req.Content, s.maxRunes)
	if err != nil {
		return nil, &titles.Error{Kind: titles.MissingConfiguration, Message: "Missing data.", Err: err}
	}
	if info.Truncated {
		s.log.Debug("Content truncated", "words", info.WordCount)
	}
	if !info.IsReliable {
		s.log.Warn("Content is very short, titles may be generic", "words", info.WordCount)
	}

	orch := titles.NewOrchestrator(s.api, titles.Options{
		Policy:      s.pollPolicy(ctx),
		MaxAttempts: s.prov.PollMaxAttempts(ctx),
		Tools:       s.tools,
	})

	cands, err := orch.Generate(ctx, creds, titles.JobRequest{Content: info.Prose, Style: req.Style}, obs)
	if err != nil {
		var te *titles.Error
		if !errors.As(err, &te) {
			te = &titles.Error{Kind: titles.RunStatusFailed, Message: titles.DisplayMessage(err), Err: err}
		}
		return nil, te
	}

	batch := scorer.Rank(cands)
	if best, ok := batch.BestCandidate(); ok {
		s.log.Debug("Titles ranked", "count", len(batch.Candidates), "best", best.Text, "score", best.Overall)
	}
	return &batch, nil
}

func (s *Service) pollPolicy(ctx context.Context) backoff.Policy {
	return PollPolicy(ctx, s.prov)
}

// PollPolicy builds the run polling policy from the current settings.
func PollPolicy(ctx context.Context, prov config.Provider) backoff.Policy {
	return backoff.New(prov.PollStrategy(ctx), prov.PollInterval(ctx), prov.AppConfig().Poll.MaxDelay.Std())
}

// JobBudget is how long one job may take with the current settings:
// every poll wait at its longest plus JobOverhead.
func JobBudget(ctx context.Context, prov config.Provider) time.Duration {
	return backoff.Budget(PollPolicy(ctx, prov), prov.PollMaxAttempts(ctx)) + JobOverhead
}
