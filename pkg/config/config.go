package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Env variables consulted when the config file leaves credentials empty.
const (
	EnvAPIKey      = "OPENAI_API_KEY"
	EnvAssistantID = "OCC_TITLES_ASSISTANT_ID"
)

// Poll strategies.
const (
	StrategyFixed       = "fixed"
	StrategyExponential = "exponential"
)

// Config holds the application configuration.
type Config struct {
	Request   RequestConfig   `yaml:"request"`
	Log       LogConfig       `yaml:"log"`
	DB        DBConfig        `yaml:"db"`
	Server    ServerConfig    `yaml:"server"`
	Assistant AssistantConfig `yaml:"assistant"`
	Poll      PollConfig      `yaml:"poll"`
	Editor    EditorConfig    `yaml:"editor"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"` // extra attempts on 429/5xx, 0 surfaces the first failure
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// AssistantConfig holds the remote assistant API settings.
type AssistantConfig struct {
	BaseURL      string `yaml:"base_url"`
	Key          string `yaml:"key"`
	AssistantID  string `yaml:"assistant_id"`
	Model        string `yaml:"model"`
	BetaHeader   string `yaml:"beta_header"`
	RequireValid bool   `yaml:"require_valid"` // fail startup when key/assistant checks fail
}

// PollConfig controls how a run is awaited.
type PollConfig struct {
	Strategy    string   `yaml:"strategy"`
	Interval    Duration `yaml:"interval"`
	MaxDelay    Duration `yaml:"max_delay"`
	MaxAttempts int      `yaml:"max_attempts"`
}

// EditorConfig holds settings for editor sessions.
type EditorConfig struct {
	PostTypes   []string `yaml:"post_types"`
	Retries     int      `yaml:"retries"`
	SessionTTL  Duration `yaml:"session_ttl"`
	TipInterval Duration `yaml:"tip_interval"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Request: RequestConfig{
			Retries: 0,
			Timeout: Duration(60 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(500 * time.Millisecond),
				MaxDelay:  Duration(10 * time.Second),
			},
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path: "./data/occtitles.db",
		},
		Server: ServerConfig{
			Address: "localhost:8787",
		},
		Assistant: AssistantConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o-mini",
			BetaHeader: "assistants=v2",
		},
		Poll: PollConfig{
			Strategy:    StrategyFixed,
			Interval:    Duration(5 * time.Second),
			MaxDelay:    Duration(30 * time.Second),
			MaxAttempts: 20,
		},
		Editor: EditorConfig{
			PostTypes:   []string{"post"},
			Retries:     1,
			SessionTTL:  Duration(2 * time.Hour),
			TipInterval: Duration(4 * time.Second),
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// Credentials missing from the file are taken from the environment but never written back.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if cfg.Assistant.Key == "" {
		if key := os.Getenv(EnvAPIKey); key != "" {
			cfg.Assistant.Key = key
		}
	}
	if cfg.Assistant.AssistantID == "" {
		if id := os.Getenv(EnvAssistantID); id != "" {
			cfg.Assistant.AssistantID = id
		}
	}
}

// Validate checks values that would otherwise break the poll loop.
func (c *Config) Validate() error {
	switch c.Poll.Strategy {
	case StrategyFixed, StrategyExponential:
	default:
		return fmt.Errorf("invalid poll strategy %q: must be %q or %q", c.Poll.Strategy, StrategyFixed, StrategyExponential)
	}
	if c.Poll.MaxAttempts <= 0 {
		return fmt.Errorf("poll.max_attempts must be positive, got %d", c.Poll.MaxAttempts)
	}
	if c.Poll.Interval < 0 {
		return fmt.Errorf("poll.interval must not be negative")
	}
	if c.Editor.Retries < 0 {
		return fmt.Errorf("editor.retries must not be negative")
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# OCC Titles Configuration
# ------------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
# Credentials may be left empty and supplied via OPENAI_API_KEY and
# OCC_TITLES_ASSISTANT_ID (or a .env file).

`)
	data = append(header, data...)

	reStrategy := regexp.MustCompile(`(?m)^(\s+)strategy:`)
	data = reStrategy.ReplaceAll(data, []byte("${1}# Options: fixed, exponential\n${1}strategy:"))

	reRetries := regexp.MustCompile(`(?m)^(\s+)retries: 1$`)
	data = reRetries.ReplaceAll(data, []byte("${1}# Whole-job retries after a reported failure\n${1}retries: 1"))

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
