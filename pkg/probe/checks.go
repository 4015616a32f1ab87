package probe

import (
	"context"
	"errors"

	"occtitles/pkg/assistant"
	"occtitles/pkg/config"
	"occtitles/pkg/store"
)

// Validator checks credentials against the remote API.
type Validator interface {
	ValidateKey(ctx context.Context, apiKey, model string) error
	ValidateAssistant(ctx context.Context, creds assistant.Credentials) error
}

// ErrNotConfigured is reported when a credential is empty.
var ErrNotConfigured = errors.New("not configured")

// Startup returns the standard probes: settings store, API key and assistant id.
// The remote checks are critical only when critical is set.
func Startup(st store.Store, v Validator, prov config.Provider, critical bool) []Probe {
	return []Probe{
		{
			Name:     "Settings Store",
			Critical: true,
			Check: func(ctx context.Context) error {
				_, err := st.ListState(ctx)
				return err
			},
		},
		{
			Name:     "API Key",
			Critical: critical,
			Check: func(ctx context.Context) error {
				key := prov.APIKey(ctx)
				if key == "" {
					return ErrNotConfigured
				}
				return v.ValidateKey(ctx, key, prov.Model(ctx))
			},
		},
		{
			Name:     "Assistant",
			Critical: critical,
			Check: func(ctx context.Context) error {
				creds := assistant.Credentials{APIKey: prov.APIKey(ctx), AssistantID: prov.AssistantID(ctx)}
				if creds.APIKey == "" || creds.AssistantID == "" {
					return ErrNotConfigured
				}
				return v.ValidateAssistant(ctx, creds)
			},
		},
	}
}
