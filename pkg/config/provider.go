package config

import (
	"context"
	"strconv"
	"strings"
	"time"

	"occtitles/pkg/store"
)

// Provider is the settings provider consumed by the title generator.
// Values are read once per job; nothing here is cached.
type Provider interface {
	// Credentials
	APIKey(ctx context.Context) string
	AssistantID(ctx context.Context) string
	Model(ctx context.Context) string

	// Editor
	PostTypes(ctx context.Context) []string
	PostTypeEnabled(ctx context.Context, postType string) bool

	// Polling
	PollStrategy(ctx context.Context) string
	PollInterval(ctx context.Context) time.Duration
	PollMaxAttempts(ctx context.Context) int

	// Raw access (for components that need deep access)
	AppConfig() *Config
}

// UnifiedProvider implements Provider by bridging static Config and persistent Store.
type UnifiedProvider struct {
	base  *Config
	store store.StateStore
}

// NewProvider creates a new UnifiedProvider. st may be nil.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{
		base:  base,
		store: st,
	}
}

func (p *UnifiedProvider) AppConfig() *Config { return p.base }

// --- Implementations ---

func (p *UnifiedProvider) APIKey(ctx context.Context) string {
	return p.getString(ctx, KeyAPIKey, p.base.Assistant.Key)
}

func (p *UnifiedProvider) AssistantID(ctx context.Context) string {
	return p.getString(ctx, KeyAssistantID, p.base.Assistant.AssistantID)
}

func (p *UnifiedProvider) Model(ctx context.Context) string {
	return p.getString(ctx, KeyModel, p.base.Assistant.Model)
}

func (p *UnifiedProvider) PostTypes(ctx context.Context) []string {
	return p.getList(ctx, KeyPostTypes, p.base.Editor.PostTypes)
}

func (p *UnifiedProvider) PostTypeEnabled(ctx context.Context, postType string) bool {
	for _, pt := range p.PostTypes(ctx) {
		if strings.EqualFold(pt, postType) {
			return true
		}
	}
	return false
}

func (p *UnifiedProvider) PollStrategy(ctx context.Context) string {
	s := p.getString(ctx, KeyPollStrategy, p.base.Poll.Strategy)
	if s != StrategyFixed && s != StrategyExponential {
		return StrategyFixed
	}
	return s
}

func (p *UnifiedProvider) PollInterval(ctx context.Context) time.Duration {
	return p.getDuration(ctx, KeyPollInterval, time.Duration(p.base.Poll.Interval))
}

func (p *UnifiedProvider) PollMaxAttempts(ctx context.Context) int {
	n := p.getInt(ctx, KeyPollMaxAttempts, p.base.Poll.MaxAttempts)
	if n <= 0 {
		return p.base.Poll.MaxAttempts
	}
	return n
}

// --- Helpers ---

func (p *UnifiedProvider) getString(ctx context.Context, key, fallback string) string {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val
		}
	}
	return fallback
}

func (p *UnifiedProvider) getInt(ctx context.Context, key string, fallback int) int {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if i, err := strconv.Atoi(val); err == nil {
				return i
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getDuration(ctx context.Context, key string, fallback time.Duration) time.Duration {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if dur, err := ParseDuration(val); err == nil {
				return dur
			}
		}
	}
	return fallback
}

// getList reads a comma separated override.
func (p *UnifiedProvider) getList(ctx context.Context, key string, fallback []string) []string {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			var out []string
			for _, part := range strings.Split(val, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return fallback
}
