package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name          string
		content       string // empty means no file
		env           map[string]string
		validate      func(*testing.T, *Config)
		checkFile     func(*testing.T, string)
		expectedError bool
	}{
		{
			name: "NewFile_Defaults",
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Poll.MaxAttempts != 20 {
					t.Errorf("expected default max attempts 20, got %d", cfg.Poll.MaxAttempts)
				}
				if time.Duration(cfg.Poll.Interval) != 5*time.Second {
					t.Errorf("expected default interval 5s, got %v", time.Duration(cfg.Poll.Interval))
				}
				if cfg.Assistant.BetaHeader != "assistants=v2" {
					t.Errorf("expected beta header assistants=v2, got %q", cfg.Assistant.BetaHeader)
				}
				if cfg.Editor.Retries != 1 {
					t.Errorf("expected editor retries 1, got %d", cfg.Editor.Retries)
				}
			},
			checkFile: func(t *testing.T, path string) {
				content, err := os.ReadFile(path)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if !strings.Contains(string(content), "max_attempts: 20") {
					t.Error("config file missing default values")
				}
				if !strings.Contains(string(content), "# Options: fixed, exponential") {
					t.Error("config file missing strategy options comment")
				}
			},
		},
		{
			name:    "ExistingFile_Override",
			content: "poll:\n  strategy: exponential\n  interval: 2s\n  max_attempts: 7\neditor:\n  post_types: [post, page]\n",
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Poll.Strategy != StrategyExponential {
					t.Errorf("expected exponential, got %q", cfg.Poll.Strategy)
				}
				if cfg.Poll.MaxAttempts != 7 {
					t.Errorf("expected 7 attempts, got %d", cfg.Poll.MaxAttempts)
				}
				if len(cfg.Editor.PostTypes) != 2 || cfg.Editor.PostTypes[1] != "page" {
					t.Errorf("unexpected post types %v", cfg.Editor.PostTypes)
				}
				if cfg.Server.Address != "localhost:8787" {
					t.Errorf("expected default server address to survive merge, got %q", cfg.Server.Address)
				}
			},
		},
		{
			name:    "Env_Fallback",
			content: "assistant:\n  key: \"\"\n",
			env:     map[string]string{EnvAPIKey: "sk-env", EnvAssistantID: "asst_env"},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Assistant.Key != "sk-env" {
					t.Errorf("expected key from env, got %q", cfg.Assistant.Key)
				}
				if cfg.Assistant.AssistantID != "asst_env" {
					t.Errorf("expected assistant id from env, got %q", cfg.Assistant.AssistantID)
				}
			},
			checkFile: func(t *testing.T, path string) {
				content, _ := os.ReadFile(path)
				if strings.Contains(string(content), "sk-env") {
					t.Error("env key must not be written back to disk")
				}
			},
		},
		{
			name:          "Invalid_Strategy",
			content:       "poll:\n  strategy: random\n",
			expectedError: true,
		},
		{
			name:          "Invalid_Attempts",
			content:       "poll:\n  max_attempts: 0\n",
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvAPIKey, "")
			t.Setenv(EnvAssistantID, "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := filepath.Join(t.TempDir(), "configs", "occtitles.yaml")
			if tt.content != "" {
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			}

			cfg, err := Load(path)
			if (err != nil) != tt.expectedError {
				t.Fatalf("Load() error = %v, expectedError %v", err, tt.expectedError)
			}
			if tt.expectedError {
				return
			}
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
			if tt.checkFile != nil {
				tt.checkFile(t, path)
			}
		})
	}
}

func TestGenerateDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "occtitles.yaml")

	if err := GenerateDefault(path); err != nil {
		t.Fatalf("GenerateDefault failed: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(content), "# OCC Titles Configuration") {
		t.Error("missing header comment")
	}

	// Existing file is left untouched.
	if err := os.WriteFile(path, []byte("server:\n  address: :1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := GenerateDefault(path); err != nil {
		t.Fatalf("GenerateDefault on existing file failed: %v", err)
	}
	content, _ = os.ReadFile(path)
	if string(content) != "server:\n  address: :1\n" {
		t.Errorf("existing config was overwritten: %q", content)
	}
}
