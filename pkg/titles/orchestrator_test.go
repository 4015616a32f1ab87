package titles

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"occtitles/pkg/assistant"
	"occtitles/pkg/backoff"
	"occtitles/pkg/config"
	"occtitles/pkg/request"
)

const validReply = `{"data":[{"role":"assistant","content":[{"type":"text","text":{"value":"{\"titles\":[{\"index\":1,\"text\":\"First\",\"style\":\"How-To\",\"sentiment\":\"Positive\",\"keywords\":[\"first\"]}]}"}}]}]}`

// fakeAPI scripts run statuses. Once statuses are exhausted the last one repeats.
type fakeAPI struct {
	mu sync.Mutex

	initial   *assistant.Run
	statuses  []*assistant.Run
	messages  []byte
	failOn    map[string]error
	submitted [][]assistant.ToolOutput
	queries   []string

	polls   int
	cancels int
	lists   int
}

func run(status assistant.RunStatus) *assistant.Run {
	return &assistant.Run{ID: "run_1", Status: status}
}

func actionRun(actionType string, calls ...assistant.ToolCall) *assistant.Run {
	r := run(assistant.StatusRequiresAction)
	r.RequiredAction = &assistant.RequiredAction{Type: actionType}
	r.RequiredAction.SubmitToolOutputs.ToolCalls = calls
	return r
}

func toolCall(id, name string) assistant.ToolCall {
	c := assistant.ToolCall{ID: id, Type: "function"}
	c.Function.Name = name
	return c
}

func (f *fakeAPI) err(op string) error {
	if f.failOn == nil {
		return nil
	}
	return f.failOn[op]
}

func (f *fakeAPI) CreateThread(_ context.Context, _ assistant.Credentials) (*assistant.Thread, error) {
	if err := f.err("thread"); err != nil {
		return nil, err
	}
	return &assistant.Thread{ID: "thread_1"}, nil
}

func (f *fakeAPI) AddMessage(_ context.Context, _ assistant.Credentials, _, _, content string) (*assistant.Message, error) {
	if err := f.err("message"); err != nil {
		return nil, err
	}
	f.queries = append(f.queries, content)
	return &assistant.Message{ID: "msg_1"}, nil
}

func (f *fakeAPI) CreateRun(_ context.Context, _ assistant.Credentials, _ string) (*assistant.Run, error) {
	if err := f.err("run"); err != nil {
		return nil, err
	}
	if f.initial != nil {
		return f.initial, nil
	}
	return run(assistant.StatusQueued), nil
}

func (f *fakeAPI) GetRun(_ context.Context, _ assistant.Credentials, _, _ string) (*assistant.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if err := f.err("poll"); err != nil {
		return nil, err
	}
	idx := f.polls - 1
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	return f.statuses[idx], nil
}

func (f *fakeAPI) SubmitToolOutputs(_ context.Context, _ assistant.Credentials, _, _ string, outputs []assistant.ToolOutput) (*assistant.Run, error) {
	if err := f.err("submit"); err != nil {
		return nil, err
	}
	f.submitted = append(f.submitted, outputs)
	return run(assistant.StatusQueued), nil
}

func (f *fakeAPI) CancelRun(_ context.Context, _ assistant.Credentials, _, _ string) error {
	f.cancels++
	return f.err("cancel")
}

func (f *fakeAPI) ListMessages(_ context.Context, _ assistant.Credentials, _ string) ([]byte, error) {
	f.lists++
	if err := f.err("list"); err != nil {
		return nil, err
	}
	if f.messages == nil {
		return []byte(validReply), nil
	}
	return f.messages, nil
}

var testCreds = assistant.Credentials{APIKey: "sk-test", AssistantID: "asst_1"}

func newTestOrchestrator(api API) *Orchestrator {
	return NewOrchestrator(api, Options{Policy: backoff.Fixed{Interval: time.Millisecond}})
}

func TestGenerate_CompletesAfterPolling(t *testing.T) {
	api := &fakeAPI{statuses: []*assistant.Run{
		run(assistant.StatusQueued),
		run(assistant.StatusInProgress),
		run(assistant.StatusCompleted),
	}}
	var events []Event
	cands, err := newTestOrchestrator(api).Generate(context.Background(), testCreds,
		JobRequest{Content: "Article body", Style: "how-to"},
		func(e Event) { events = append(events, e) })

	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "First", cands[0].Text)
	assert.Equal(t, 3, api.polls)
	assert.Equal(t, 1, api.cancels, "completed runs are cancelled once")
	assert.Equal(t, []string{"Article body\n\nStyle: How-To"}, api.queries)

	require.NotEmpty(t, events)
	assert.Equal(t, StatusCompleted, events[len(events)-1].Status)
	assert.Equal(t, 3, events[len(events)-1].Attempts)
}

func TestGenerate_ImmediateCompletionSkipsPolling(t *testing.T) {
	api := &fakeAPI{initial: run(assistant.StatusCompleted)}
	cands, err := newTestOrchestrator(api).Generate(context.Background(), testCreds, JobRequest{Content: "x"}, nil)

	require.NoError(t, err)
	assert.Len(t, cands, 1)
	assert.Equal(t, 0, api.polls)
	assert.Equal(t, []string{"x\n\nStyle: Choose the most suitable style"}, api.queries)
}

func TestGenerate_TimesOutAtMaxAttempts(t *testing.T) {
	api := &fakeAPI{statuses: []*assistant.Run{run(assistant.StatusInProgress)}}
	o := newTestOrchestrator(api)

	_, err := o.Generate(context.Background(), testCreds, JobRequest{Content: "x"}, nil)
	require.Error(t, err)
	assert.Equal(t, RunTimedOut, KindOf(err))
	assert.Equal(t, "Run did not complete in expected time.", DisplayMessage(err))
	assert.Equal(t, DefaultMaxAttempts, api.polls)
	assert.Equal(t, 0, api.lists)
}

func TestGenerate_TerminalFailures(t *testing.T) {
	for _, st := range []assistant.RunStatus{
		assistant.StatusFailed,
		assistant.StatusCancelled,
		assistant.StatusExpired,
	} {
		t.Run(string(st), func(t *testing.T) {
			api := &fakeAPI{statuses: []*assistant.Run{run(assistant.StatusQueued), run(st)}}
			_, err := newTestOrchestrator(api).Generate(context.Background(), testCreds, JobRequest{Content: "x"}, nil)
			assert.Equal(t, RunFailed, KindOf(err))
			assert.Equal(t, "Run failed or was cancelled.", DisplayMessage(err))
			assert.Equal(t, 2, api.polls)
		})
	}

	t.Run("InitialFailed", func(t *testing.T) {
		api := &fakeAPI{initial: run(assistant.StatusFailed)}
		_, err := newTestOrchestrator(api).Generate(context.Background(), testCreds, JobRequest{Content: "x"}, nil)
		assert.Equal(t, RunFailed, KindOf(err))
		assert.Equal(t, 0, api.polls)
	})
}

func TestGenerate_RequiresActionKeepsAttemptCount(t *testing.T) {
	api := &fakeAPI{statuses: []*assistant.Run{
		run(assistant.StatusQueued),
		actionRun(assistant.ActionSubmitToolOutputs, toolCall("call_1", "generate_word_list"), toolCall("call_2", "lookup")),
		run(assistant.StatusInProgress),
	}}
	o := NewOrchestrator(api, Options{Policy: backoff.Fixed{Interval: time.Millisecond}, MaxAttempts: 5})

	job := o.NewJob(testCreds, nil)
	_, err := job.CreateThread(context.Background())
	require.NoError(t, err)
	h, err := job.SubmitAndRun(context.Background(), "q")
	require.NoError(t, err)

	_, err = job.AwaitCompletion(context.Background(), h)
	assert.Equal(t, RunTimedOut, KindOf(err))
	assert.Equal(t, 5, api.polls, "submitting outputs does not reset the attempt budget")
	assert.Equal(t, 5, job.State().Attempts)
	assert.Equal(t, StatusTimedOut, job.State().Status)

	require.Len(t, api.submitted, 1)
	assert.Equal(t, []assistant.ToolOutput{
		{ToolCallID: "call_1", Output: AckOutput},
		{ToolCallID: "call_2", Output: AckOutput},
	}, api.submitted[0])
}

func TestJob_TerminalStatusIsFinal(t *testing.T) {
	api := &fakeAPI{failOn: map[string]error{"thread": errors.New("boom")}}
	var events []Event
	job := newTestOrchestrator(api).NewJob(testCreds, func(e Event) { events = append(events, e) })

	_, err := job.CreateThread(context.Background())
	assert.Equal(t, ThreadCreationFailed, KindOf(err))

	_, err = job.SubmitAndRun(context.Background(), "q")
	assert.Equal(t, MessageSubmissionFailed, KindOf(err))

	assert.Equal(t, StatusFailed, job.State().Status)
	require.Len(t, events, 1)
	assert.Equal(t, "Failed to create thread.", events[0].Detail)
	assert.True(t, StatusTimedOut.Terminal())
	assert.False(t, StatusRequiresAction.Terminal())
}

func TestGenerate_InitialRequiresAction(t *testing.T) {
	api := &fakeAPI{
		initial:  actionRun(assistant.ActionSubmitToolOutputs, toolCall("call_1", "generate_word_list")),
		statuses: []*assistant.Run{run(assistant.StatusCompleted)},
	}
	cands, err := newTestOrchestrator(api).Generate(context.Background(), testCreds, JobRequest{Content: "x"}, nil)
	require.NoError(t, err)
	assert.Len(t, cands, 1)
	assert.Len(t, api.submitted, 1)
	assert.Equal(t, 1, api.polls)
}

func TestGenerate_ActionFailures(t *testing.T) {
	t.Run("UnhandledActionType", func(t *testing.T) {
		api := &fakeAPI{statuses: []*assistant.Run{actionRun("approve_plan")}}
		_, err := newTestOrchestrator(api).Generate(context.Background(), testCreds, JobRequest{Content: "x"}, nil)
		assert.Equal(t, ActionHandlingFailed, KindOf(err))
		assert.Equal(t, "Unhandled requires_action.", DisplayMessage(err))
	})

	t.Run("SubmitFails", func(t *testing.T) {
		api := &fakeAPI{
			statuses: []*assistant.Run{actionRun(assistant.ActionSubmitToolOutputs, toolCall("c", "f"))},
			failOn:   map[string]error{"submit": errors.New("boom")},
		}
		_, err := newTestOrchestrator(api).Generate(context.Background(), testCreds, JobRequest{Content: "x"}, nil)
		assert.Equal(t, ActionHandlingFailed, KindOf(err))
		assert.Equal(t, 1, api.polls)
	})

	t.Run("HandlerFails", func(t *testing.T) {
		api := &fakeAPI{statuses: []*assistant.Run{actionRun(assistant.ActionSubmitToolOutputs, toolCall("c", "broken"))}}
		tools := NewToolRegistry()
		tools.Register("broken", func(context.Context, assistant.ToolCall) (string, error) {
			return "", errors.New("handler exploded")
		})
		o := NewOrchestrator(api, Options{Policy: backoff.Fixed{}, Tools: tools})
		_, err := o.Generate(context.Background(), testCreds, JobRequest{Content: "x"}, nil)
		assert.Equal(t, ActionHandlingFailed, KindOf(err))
		assert.Empty(t, api.submitted)
	})
}

func TestGenerate_StageFailures(t *testing.T) {
	tests := []struct {
		name   string
		failOn string
		want   Kind
	}{
		{"Thread", "thread", ThreadCreationFailed},
		{"Message", "message", MessageSubmissionFailed},
		{"Run", "run", RunStartFailed},
		{"Poll", "poll", RunStatusFailed},
		{"Messages", "list", MessagesFetchFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{
				statuses: []*assistant.Run{run(assistant.StatusCompleted)},
				failOn:   map[string]error{tt.failOn: errors.New("network down")},
			}
			_, err := newTestOrchestrator(api).Generate(context.Background(), testCreds, JobRequest{Content: "x"}, nil)
			assert.Equal(t, tt.want, KindOf(err))
		})
	}
}

func TestGenerate_PollErrorMessageUsesAPIError(t *testing.T) {
	api := &fakeAPI{failOn: map[string]error{"poll": &assistant.APIError{StatusCode: 404, Message: "No run found"}}}
	_, err := newTestOrchestrator(api).Generate(context.Background(), testCreds, JobRequest{Content: "x"}, nil)
	assert.Equal(t, "Error retrieving run status: No run found", DisplayMessage(err))
	assert.Equal(t, 1, api.polls, "transport errors are not retried inside the loop")
}

func TestGenerate_CancelFailureIsIgnored(t *testing.T) {
	api := &fakeAPI{
		statuses: []*assistant.Run{run(assistant.StatusCompleted)},
		failOn:   map[string]error{"cancel": errors.New("already completed")},
	}
	cands, err := newTestOrchestrator(api).Generate(context.Background(), testCreds, JobRequest{Content: "x"}, nil)
	require.NoError(t, err)
	assert.Len(t, cands, 1)
}

func TestGenerate_MissingConfiguration(t *testing.T) {
	api := &fakeAPI{}
	o := newTestOrchestrator(api)

	for _, tc := range []struct {
		creds   assistant.Credentials
		content string
	}{
		{testCreds, "   "},
		{assistant.Credentials{AssistantID: "a"}, "x"},
		{assistant.Credentials{APIKey: "k"}, "x"},
	} {
		_, err := o.Generate(context.Background(), tc.creds, JobRequest{Content: tc.content}, nil)
		assert.Equal(t, MissingConfiguration, KindOf(err))
		assert.Equal(t, "Missing data.", DisplayMessage(err))
	}
	assert.Empty(t, api.queries)
}

func TestGenerate_ContextCancelledWhileWaiting(t *testing.T) {
	api := &fakeAPI{statuses: []*assistant.Run{run(assistant.StatusInProgress)}}
	o := NewOrchestrator(api, Options{Policy: backoff.Fixed{Interval: time.Hour}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := o.Generate(ctx, testCreds, JobRequest{Content: "x"}, nil)
	assert.Equal(t, RunStatusFailed, KindOf(err))
	assert.Equal(t, "Job was cancelled.", DisplayMessage(err))
	assert.Equal(t, 0, api.polls, "the first poll waits for the interval too")
}

func TestGenerate_OverHTTP(t *testing.T) {
	var polls int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/threads":
			_, _ = w.Write([]byte(`{"id":"thread_9"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/threads/thread_9/messages":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			assert.True(t, strings.HasSuffix(body["content"], "Style: News Headline"))
			_, _ = w.Write([]byte(`{"id":"msg_1"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/threads/thread_9/runs":
			_, _ = w.Write([]byte(`{"id":"run_9","status":"queued"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/threads/thread_9/runs/run_9":
			mu.Lock()
			polls++
			n := polls
			mu.Unlock()
			if n < 2 {
				_, _ = w.Write([]byte(`{"id":"run_9","status":"in_progress"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"run_9","status":"completed"}`))
		case r.URL.Path == "/threads/thread_9/runs/run_9/cancel":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Cannot cancel run with status 'completed'."}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/threads/thread_9/messages":
			_, _ = w.Write([]byte(validReply))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := assistant.NewClient(config.AssistantConfig{BaseURL: server.URL}, request.New(nil, request.ClientConfig{}))
	require.NoError(t, err)

	cands, err := newTestOrchestrator(client).Generate(context.Background(), testCreds,
		JobRequest{Content: "Body", Style: "news headline"}, nil)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, 2, polls)
}
