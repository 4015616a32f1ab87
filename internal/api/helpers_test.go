package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"occtitles/pkg/assistant"
	"occtitles/pkg/config"
	"occtitles/pkg/scorer"
	"occtitles/pkg/store"
	"occtitles/pkg/titles"
	"occtitles/pkg/tracker"
)

type mockStore struct {
	store.Store
	mu       sync.Mutex
	state    map[string]string
	applyErr error
}

func (m *mockStore) GetState(ctx context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.state[key]
	return val, ok
}

func (m *mockStore) SetState(ctx context.Context, key, val string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		m.state = make(map[string]string)
	}
	m.state[key] = val
	return nil
}

func (m *mockStore) DeleteState(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state, key)
	return nil
}

func (m *mockStore) ApplyState(ctx context.Context, changes map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return m.applyErr
	}
	for k, v := range changes {
		if v == "" {
			delete(m.state, k)
		} else {
			m.state[k] = v
		}
	}
	return nil
}

type fakeValidator struct {
	keyErr   error
	asstErr  error
	keys     []string
	assistID []string
}

func (v *fakeValidator) ValidateKey(_ context.Context, apiKey, _ string) error {
	v.keys = append(v.keys, apiKey)
	return v.keyErr
}

func (v *fakeValidator) ValidateAssistant(_ context.Context, creds assistant.Credentials) error {
	v.assistID = append(v.assistID, creds.AssistantID)
	return v.asstErr
}

// stubGen emits a couple of job events and returns a fixed ranking.
type stubGen struct {
	mu    sync.Mutex
	err   error
	delay time.Duration
	reqs  []titles.JobRequest
}

func (g *stubGen) Generate(ctx context.Context, req titles.JobRequest, obs titles.Observer) (*scorer.Batch, error) {
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	err, delay := g.err, g.delay
	g.mu.Unlock()

	if obs != nil {
		obs(titles.Event{JobID: "job", Status: titles.StatusMessageSent})
		obs(titles.Event{JobID: "job", Status: titles.StatusRunning, Attempts: 1})
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	b := scorer.Rank([]titles.TitleCandidate{
		{Index: 1, Text: "Coffee", Style: "Question", Sentiment: titles.Neutral},
		{Index: 2, Text: "How to Brew Better Coffee at Home Every Single Day", Style: "How-To", Sentiment: titles.Positive, Keywords: []string{"coffee"}},
	})
	return &b, nil
}

type testEnv struct {
	store     *mockStore
	cfg       *config.Config
	gen       *stubGen
	validator *fakeValidator
	titles    *TitlesHandler
	router    http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Assistant.Key = "sk-test-1234567890"
	cfg.Assistant.AssistantID = "asst_file"
	cfg.Editor.Retries = 0

	env := &testEnv{
		store:     &mockStore{state: map[string]string{}},
		cfg:       cfg,
		gen:       &stubGen{},
		validator: &fakeValidator{},
	}
	prov := config.NewProvider(cfg, env.store)
	env.titles = NewTitlesHandler(env.gen, prov)
	tr := tracker.New()
	tr.TrackAPISuccess("runs.get")
	tr.TrackJob("completed")
	env.router = NewRouter(Handlers{
		Settings: NewSettingsHandler(env.store, prov, env.validator),
		Stats:    NewStatsHandler(tr, env.titles.ActiveSessions),
		Titles:   env.titles,
	}, nil)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}
