package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"occtitles/pkg/assistant"
	"occtitles/pkg/config"
	"occtitles/pkg/db"
	"occtitles/pkg/store"
)

type fakeValidator struct {
	keyErr, asstErr error
	gotModel        string
}

func (f *fakeValidator) ValidateKey(_ context.Context, _, model string) error {
	f.gotModel = model
	return f.keyErr
}

func (f *fakeValidator) ValidateAssistant(_ context.Context, _ assistant.Credentials) error {
	return f.asstErr
}

func newStore(t *testing.T) store.Store {
	t.Helper()
	database, err := db.Init(":memory:")
	require.NoError(t, err)
	st := store.NewSQLiteStore(database)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStartup(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Assistant.Key = "sk-test"
	cfg.Assistant.AssistantID = "asst_1"
	st := newStore(t)
	prov := config.NewProvider(cfg, st)

	t.Run("AllPass", func(t *testing.T) {
		v := &fakeValidator{}
		results := Run(context.Background(), Startup(st, v, prov, true))
		require.Len(t, results, 3)
		for _, r := range results {
			assert.NoError(t, r.Error, r.Probe.Name)
		}
		assert.Equal(t, "gpt-4o-mini", v.gotModel)
		assert.NoError(t, AnalyzeResults(results))
	})

	t.Run("RemoteFailuresNonCritical", func(t *testing.T) {
		v := &fakeValidator{keyErr: errors.New("bad key"), asstErr: errors.New("no assistant")}
		results := Run(context.Background(), Startup(st, v, prov, false))
		assert.Error(t, results[1].Error)
		assert.Error(t, results[2].Error)
		assert.NoError(t, AnalyzeResults(results))
	})

	t.Run("RemoteFailuresCritical", func(t *testing.T) {
		v := &fakeValidator{keyErr: errors.New("bad key")}
		results := Run(context.Background(), Startup(st, v, prov, true))
		assert.ErrorContains(t, AnalyzeResults(results), "API Key")
	})

	t.Run("NotConfigured", func(t *testing.T) {
		empty := config.NewProvider(config.DefaultConfig(), nil)
		results := Run(context.Background(), Startup(st, &fakeValidator{}, empty, false))
		assert.ErrorIs(t, results[1].Error, ErrNotConfigured)
		assert.ErrorIs(t, results[2].Error, ErrNotConfigured)
	})
}

func TestRun_Timeout(t *testing.T) {
	results := Run(context.Background(), []Probe{{
		Name:    "Slow",
		Timeout: 10 * time.Millisecond,
		Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}})
	assert.ErrorIs(t, results[0].Error, context.DeadlineExceeded)
}
