package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"occtitles/pkg/assistant"
	"occtitles/pkg/config"
	"occtitles/pkg/logging"
	"occtitles/pkg/probe"
	"occtitles/pkg/store"
)

// SettingsHandler handles the settings API. Writes go to the store as
// overrides of the config file and take effect on the next job.
type SettingsHandler struct {
	store     store.Store
	cfgProv   config.Provider
	validator probe.Validator
}

// NewSettingsHandler creates a new SettingsHandler. v may be nil, in which
// case validation requests are rejected.
func NewSettingsHandler(st store.Store, cfg config.Provider, v probe.Validator) *SettingsHandler {
	return &SettingsHandler{
		store:     st,
		cfgProv:   cfg,
		validator: v,
	}
}

// SettingsResponse is the settings view. The API key is never returned in clear.
type SettingsResponse struct {
	APIKey          string   `json:"api_key"`
	APIKeySet       bool     `json:"api_key_set"`
	AssistantID     string   `json:"assistant_id"`
	Model           string   `json:"model"`
	PostTypes       []string `json:"post_types"`
	PollStrategy    string   `json:"poll_strategy"`
	PollInterval    string   `json:"poll_interval"`
	PollMaxAttempts int      `json:"poll_max_attempts"`
}

// SettingsRequest updates settings. Nil fields are left alone, an empty string
// removes the override so the config file value applies again.
type SettingsRequest struct {
	APIKey          *string `json:"api_key,omitempty"`
	AssistantID     *string `json:"assistant_id,omitempty"`
	Model           *string `json:"model,omitempty"`
	PostTypes       *string `json:"post_types,omitempty"`
	PollStrategy    *string `json:"poll_strategy,omitempty"`
	PollInterval    *string `json:"poll_interval,omitempty"`
	PollMaxAttempts *string `json:"poll_max_attempts,omitempty"`
	Validate        bool    `json:"validate,omitempty"`
}

func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings(r.Context()))
}

func (h *SettingsHandler) settings(ctx context.Context) SettingsResponse {
	key := h.cfgProv.APIKey(ctx)
	return SettingsResponse{
		APIKey:          logging.MaskSecret(key),
		APIKeySet:       key != "",
		AssistantID:     h.cfgProv.AssistantID(ctx),
		Model:           h.cfgProv.Model(ctx),
		PostTypes:       h.cfgProv.PostTypes(ctx),
		PollStrategy:    h.cfgProv.PollStrategy(ctx),
		PollInterval:    h.cfgProv.PollInterval(ctx).String(),
		PollMaxAttempts: h.cfgProv.PollMaxAttempts(ctx),
	}
}

func (h *SettingsHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	updates := req.updates()
	for key, val := range updates {
		if err := checkSetting(key, val); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ctx := r.Context()
	if req.Validate {
		if err := h.validate(ctx, updates); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}

	if err := h.store.ApplyState(ctx, updates); err != nil {
		slog.Error("Failed to save settings", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save settings.")
		return
	}
	if len(updates) > 0 {
		slog.Info("Settings updated", "keys", len(updates))
	}

	writeJSON(w, http.StatusOK, h.settings(ctx))
}

func (req *SettingsRequest) updates() map[string]string {
	out := make(map[string]string)
	set := func(key string, v *string) {
		if v != nil {
			out[key] = strings.TrimSpace(*v)
		}
	}
	set(config.KeyAPIKey, req.APIKey)
	set(config.KeyAssistantID, req.AssistantID)
	set(config.KeyModel, req.Model)
	set(config.KeyPostTypes, req.PostTypes)
	set(config.KeyPollStrategy, req.PollStrategy)
	set(config.KeyPollInterval, req.PollInterval)
	set(config.KeyPollMaxAttempts, req.PollMaxAttempts)
	return out
}

func checkSetting(key, val string) error {
	if !config.IsSettingKey(key) {
		return fmt.Errorf("Unknown setting %q.", key)
	}
	if val == "" {
		return nil
	}
	switch key {
	case config.KeyPollStrategy:
		if val != config.StrategyFixed && val != config.StrategyExponential {
			return fmt.Errorf("Poll strategy must be %q or %q.", config.StrategyFixed, config.StrategyExponential)
		}
	case config.KeyPollInterval:
		if d, err := config.ParseDuration(val); err != nil || d <= 0 {
			return fmt.Errorf("Invalid poll interval %q.", val)
		}
	case config.KeyPollMaxAttempts:
		if n, err := strconv.Atoi(val); err != nil || n <= 0 {
			return errors.New("Poll attempts must be a positive number.")
		}
	}
	return nil
}

// validate checks the credentials that would be in effect after the update.
func (h *SettingsHandler) validate(ctx context.Context, updates map[string]string) error {
	if h.validator == nil {
		return errors.New("Credential validation is not available.")
	}
	pick := func(key, current string) string {
		if v, ok := updates[key]; ok && v != "" {
			return v
		}
		return current
	}
	creds := assistant.Credentials{
		APIKey:      pick(config.KeyAPIKey, h.cfgProv.APIKey(ctx)),
		AssistantID: pick(config.KeyAssistantID, h.cfgProv.AssistantID(ctx)),
	}
	if creds.APIKey == "" {
		return errors.New("API key is not set.")
	}
	if err := h.validator.ValidateKey(ctx, creds.APIKey, pick(config.KeyModel, h.cfgProv.Model(ctx))); err != nil {
		return fmt.Errorf("Invalid API key: %v", err)
	}
	if creds.AssistantID == "" {
		return nil
	}
	if err := h.validator.ValidateAssistant(ctx, creds); err != nil {
		return fmt.Errorf("Invalid assistant ID: %v", err)
	}
	return nil
}
