package titles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"occtitles/pkg/assistant"
	"occtitles/pkg/backoff"
)

// DefaultMaxAttempts bounds the number of status polls per run.
const DefaultMaxAttempts = 20

// DefaultPollInterval is the wait between two status polls.
const DefaultPollInterval = 5 * time.Second

// API is the subset of the assistants API a job needs.
type API interface {
	CreateThread(ctx context.Context, creds assistant.Credentials) (*assistant.Thread, error)
	AddMessage(ctx context.Context, creds assistant.Credentials, threadID, role, content string) (*assistant.Message, error)
	CreateRun(ctx context.Context, creds assistant.Credentials, threadID string) (*assistant.Run, error)
	GetRun(ctx context.Context, creds assistant.Credentials, threadID, runID string) (*assistant.Run, error)
	SubmitToolOutputs(ctx context.Context, creds assistant.Credentials, threadID, runID string, outputs []assistant.ToolOutput) (*assistant.Run, error)
	CancelRun(ctx context.Context, creds assistant.Credentials, threadID, runID string) error
	ListMessages(ctx context.Context, creds assistant.Credentials, threadID string) ([]byte, error)
}

// Options configures an Orchestrator. Zero values select the defaults.
type Options struct {
	Policy      backoff.Policy
	MaxAttempts int
	Tools       *ToolRegistry
}

// Orchestrator drives generation jobs against the assistants API.
type Orchestrator struct {
	api         API
	policy      backoff.Policy
	maxAttempts int
	tools       *ToolRegistry
	log         *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(api API, opts Options) *Orchestrator {
	if opts.Policy == nil {
		opts.Policy = backoff.Fixed{Interval: DefaultPollInterval}
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Tools == nil {
		opts.Tools = NewToolRegistry()
	}
	return &Orchestrator{
		api:         api,
		policy:      opts.Policy,
		maxAttempts: opts.MaxAttempts,
		tools:       opts.Tools,
		log:         slog.With("component", "titles"),
	}
}

// Job is one end-to-end generation. A Job is not safe for concurrent use.
type Job struct {
	ID string

	o        *Orchestrator
	creds    assistant.Credentials
	state    JobState
	observer Observer
}

// NewJob prepares a job bound to creds. obs may be nil.
func (o *Orchestrator) NewJob(creds assistant.Credentials, obs Observer) *Job {
	return &Job{
		ID:       uuid.NewString(),
		o:        o,
		creds:    creds,
		state:    JobState{Status: StatusCreated},
		observer: obs,
	}
}

// State returns a copy of the job state.
func (j *Job) State() JobState { return j.state }

// transition records a status change. A job never leaves a terminal status.
func (j *Job) transition(s JobStatus, detail string) {
	if j.state.Status.Terminal() {
		return
	}
	j.state.Status = s
	if j.observer != nil {
		j.observer(Event{JobID: j.ID, Status: s, Attempts: j.state.Attempts, Detail: detail})
	}
}

func (j *Job) fail(s JobStatus, err *Error) *Error {
	j.transition(s, err.Message)
	return err
}

// CreateThread creates the job's thread. It is called at most once per job.
func (j *Job) CreateThread(ctx context.Context) (string, error) {
	if j.state.ThreadID != "" {
		return j.state.ThreadID, nil
	}
	th, err := j.o.api.CreateThread(ctx, j.creds)
	if err != nil {
		return "", j.fail(StatusFailed, newError(ThreadCreationFailed, err))
	}
	j.state.ThreadID = th.ID
	j.transition(StatusCreated, "")
	return th.ID, nil
}

// SubmitAndRun posts query as a user message and starts the assistant.
func (j *Job) SubmitAndRun(ctx context.Context, query string) (RunHandle, error) {
	if j.state.ThreadID == "" {
		return RunHandle{}, j.fail(StatusFailed, newError(MessageSubmissionFailed, errors.New("no thread")))
	}
	if _, err := j.o.api.AddMessage(ctx, j.creds, j.state.ThreadID, "user", query); err != nil {
		return RunHandle{}, j.fail(StatusFailed, newError(MessageSubmissionFailed, err))
	}
	j.transition(StatusMessageSent, "")

	run, err := j.o.api.CreateRun(ctx, j.creds, j.state.ThreadID)
	if err != nil {
		return RunHandle{}, j.fail(StatusFailed, newError(RunStartFailed, err))
	}
	j.state.RunID = run.ID
	j.transition(StatusRunning, "")
	return RunHandle{ThreadID: j.state.ThreadID, RunID: run.ID, Initial: run.Status, run: run}, nil
}

// AwaitCompletion polls the run until it reaches a terminal state and returns the parsed titles.
// Each poll is preceded by the policy delay. Every poll counts as one attempt,
// including polls after tool outputs were submitted.
func (j *Job) AwaitCompletion(ctx context.Context, h RunHandle) ([]TitleCandidate, error) {
	switch h.Initial {
	case assistant.StatusCompleted:
		return j.finish(ctx, h)
	case assistant.StatusFailed, assistant.StatusCancelled, assistant.StatusExpired, assistant.StatusIncomplete:
		return nil, j.runFailed(h.run)
	case assistant.StatusRequiresAction:
		if err := j.handleAction(ctx, h, h.run); err != nil {
			return nil, err
		}
	}

	for {
		if j.state.Attempts >= j.o.maxAttempts {
			return nil, j.fail(StatusTimedOut, newError(RunTimedOut, fmt.Errorf("%d polls", j.state.Attempts)))
		}
		if err := backoff.Wait(ctx, j.o.policy.Delay(j.state.Attempts+1)); err != nil {
			return nil, j.fail(StatusCancelled, newErrorf(RunStatusFailed, err, "Job was cancelled."))
		}
		j.state.Attempts++

		run, err := j.o.api.GetRun(ctx, j.creds, h.ThreadID, h.RunID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, j.fail(StatusCancelled, newErrorf(RunStatusFailed, err, "Job was cancelled."))
			}
			return nil, j.fail(StatusFailed, newErrorf(RunStatusFailed, err, "Error retrieving run status: %s", errorDetail(err)))
		}
		j.o.log.Debug("Run status", "job", j.ID, "run", h.RunID, "status", run.Status, "attempt", j.state.Attempts)

		switch run.Status {
		case assistant.StatusCompleted:
			return j.finish(ctx, h)
		case assistant.StatusFailed, assistant.StatusCancelled, assistant.StatusExpired, assistant.StatusIncomplete:
			return nil, j.runFailed(run)
		case assistant.StatusRequiresAction:
			if err := j.handleAction(ctx, h, run); err != nil {
				return nil, err
			}
		default:
			// queued, in_progress, cancelling and unknown statuses keep polling
			if j.state.Status != StatusRunning {
				j.transition(StatusRunning, "")
			}
		}
	}
}

func (j *Job) runFailed(run *assistant.Run) *Error {
	var cause error
	if run != nil {
		cause = fmt.Errorf("run status %s", run.Status)
		if run.LastError != nil {
			cause = fmt.Errorf("run status %s: %s: %s", run.Status, run.LastError.Code, run.LastError.Message)
		}
	}
	status := StatusFailed
	if run != nil && run.Status == assistant.StatusCancelled {
		status = StatusCancelled
	}
	return j.fail(status, newError(RunFailed, cause))
}

// handleAction answers every pending tool call in one batch.
func (j *Job) handleAction(ctx context.Context, h RunHandle, run *assistant.Run) *Error {
	j.transition(StatusRequiresAction, "")

	if run == nil || run.RequiredAction == nil || run.RequiredAction.Type != assistant.ActionSubmitToolOutputs {
		actionType := ""
		if run != nil && run.RequiredAction != nil {
			actionType = run.RequiredAction.Type
		}
		return j.fail(StatusFailed, newErrorf(ActionHandlingFailed, fmt.Errorf("action type %q", actionType), "Unhandled requires_action."))
	}

	calls := run.RequiredAction.SubmitToolOutputs.ToolCalls
	outputs, err := j.o.tools.Outputs(ctx, calls)
	if err != nil {
		return j.fail(StatusFailed, newError(ActionHandlingFailed, err))
	}
	if _, err := j.o.api.SubmitToolOutputs(ctx, j.creds, h.ThreadID, h.RunID, outputs); err != nil {
		return j.fail(StatusFailed, newError(ActionHandlingFailed, err))
	}
	j.o.log.Debug("Submitted tool outputs", "job", j.ID, "run", h.RunID, "calls", len(calls))
	j.transition(StatusRunning, "")
	return nil
}

func (j *Job) finish(ctx context.Context, h RunHandle) ([]TitleCandidate, error) {
	if err := j.o.api.CancelRun(ctx, j.creds, h.ThreadID, h.RunID); err != nil {
		j.o.log.Debug("Cancel after completion failed", "job", j.ID, "run", h.RunID, "error", err)
	}

	raw, err := j.o.api.ListMessages(ctx, j.creds, h.ThreadID)
	if err != nil {
		return nil, j.fail(StatusFailed, newError(MessagesFetchFailed, err))
	}
	cands, err := ParseMessages(raw)
	if err != nil {
		return nil, j.fail(StatusFailed, asError(err, UnexpectedResponseFormat))
	}
	j.transition(StatusCompleted, "")
	return cands, nil
}

// Generate runs a full job: thread, message, run, poll, parse.
// Any returned error is an *Error.
func (o *Orchestrator) Generate(ctx context.Context, creds assistant.Credentials, req JobRequest, obs Observer) ([]TitleCandidate, error) {
	if strings.TrimSpace(req.Content) == "" || creds.APIKey == "" || creds.AssistantID == "" {
		return nil, newError(MissingConfiguration, nil)
	}

	start := time.Now()
	job := o.NewJob(creds, obs)
	log := o.log.With("job", job.ID)

	if _, err := job.CreateThread(ctx); err != nil {
		log.Warn("Job failed", "stage", "thread", "error", err)
		return nil, err
	}
	h, err := job.SubmitAndRun(ctx, BuildQuery(req.Content, req.Style))
	if err != nil {
		log.Warn("Job failed", "stage", "submit", "error", err)
		return nil, err
	}
	cands, err := job.AwaitCompletion(ctx, h)
	if err != nil {
		log.Warn("Job failed", "stage", "await", "attempts", job.state.Attempts, "error", err)
		return nil, err
	}

	log.Info("Job completed",
		"titles", len(cands),
		"attempts", job.state.Attempts,
		"duration", time.Since(start).Round(time.Millisecond))
	return cands, nil
}

// errorDetail prefers the API's own message over the transport error text.
func errorDetail(err error) string {
	var apiErr *assistant.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
