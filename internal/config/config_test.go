package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Dedupe.Threshold != 0.8 {
		t.Errorf("expected Threshold=0.8, got %v", cfg.Dedupe.Threshold)
	}

	if cfg.Dedupe.AutoMergeThreshold != 0.9 {
		t.Errorf("expected AutoMergeThreshold=0.9, got %v", cfg.Dedupe.AutoMergeThreshold)
	}

	if cfg.Scoring.Weights != (SignalWeights{Embedding: 0.4, Skill: 0.3, Experience: 0.2, Judge: 0.1}) {
		t.Errorf("unexpected signal weights: %+v", cfg.Scoring.Weights)
	}

	if cfg.Scoring.Blend != (BlendWeights{Base: 0.7, Feedback: 0.3}) {
		t.Errorf("unexpected blend weights: %+v", cfg.Scoring.Blend)
	}

	if cfg.Feedback.MinTokenLength != 3 || cfg.Feedback.TopKeywords != 50 {
		t.Errorf("unexpected feedback defaults: %+v", cfg.Feedback)
	}

	if cfg.Judge.Provider != "ollama" {
		t.Errorf("expected judge provider ollama, got %s", cfg.Judge.Provider)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "gemini judge with ollama fallback",
			modify: func(c *Config) {
				c.Judge.Provider = "gemini"
				c.Judge.Model = "gemini-2.5-flash"
				c.Judge.Fallback = "ollama"
			},
			wantErr: false,
		},
		{
			name: "invalid embedding provider",
			modify: func(c *Config) {
				c.Embedding.Provider = "openai"
			},
			wantErr: true,
		},
		{
			name: "signal weights do not sum to one",
			modify: func(c *Config) {
				c.Scoring.Weights.Judge = 0.5
			},
			wantErr: true,
		},
		{
			name: "negative blend weight",
			modify: func(c *Config) {
				c.Scoring.Blend = BlendWeights{Base: 1.3, Feedback: -0.3}
			},
			wantErr: true,
		},
		{
			name: "negative threshold",
			modify: func(c *Config) {
				c.Dedupe.Threshold = -0.1
			},
			wantErr: true,
		},
		{
			name: "NaN threshold",
			modify: func(c *Config) {
				c.Dedupe.Threshold = math.NaN()
			},
			wantErr: true,
		},
		{
			name: "NaN auto-merge threshold",
			modify: func(c *Config) {
				c.Dedupe.AutoMergeThreshold = math.NaN()
			},
			wantErr: true,
		},
		{
			name: "threshold above one is allowed",
			modify: func(c *Config) {
				c.Dedupe.Threshold = 1.1
			},
			wantErr: false,
		},
		{
			name: "zero timeout",
			modify: func(c *Config) {
				c.Embedding.TimeoutSeconds = 0
			},
			wantErr: true,
		},
		{
			name: "too many retries",
			modify: func(c *Config) {
				c.Judge.MaxRetries = 10
			},
			wantErr: true,
		},
		{
			name: "redis without ttl",
			modify: func(c *Config) {
				c.Cache.RedisURL = "redis://localhost:6379/0"
				c.Cache.TTLMinutes = 0
			},
			wantErr: true,
		},
		{
			name: "empty schedule",
			modify: func(c *Config) {
				c.Schedule.Spec = ""
			},
			wantErr: true,
		},
		{
			name: "invalid mcp transport",
			modify: func(c *Config) {
				c.MCP.Transport = "http"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[database]
path = "/tmp/jobrank-test.db"

[dedupe]
threshold = 0.85

[judge]
provider = "ollama"
model = "llama3:8b"
host = "http://ollama:11434"
timeout_seconds = 20
max_retries = 2
temperature = 0.2

[scoring.weights]
embedding = 0.5
skill = 0.3
experience = 0.1
judge = 0.1
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Dedupe.Threshold != 0.85 {
		t.Errorf("expected threshold 0.85, got %v", cfg.Dedupe.Threshold)
	}
	if cfg.Dedupe.AutoMergeThreshold != 0.9 {
		t.Errorf("expected default auto-merge threshold to survive, got %v", cfg.Dedupe.AutoMergeThreshold)
	}
	if cfg.Judge.Host != "http://ollama:11434" || cfg.Judge.Timeout() != 20*time.Second {
		t.Errorf("unexpected judge config: %+v", cfg.Judge)
	}
	if cfg.Scoring.Weights.Embedding != 0.5 {
		t.Errorf("expected embedding weight 0.5, got %v", cfg.Scoring.Weights.Embedding)
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[scoring.blend]
base = 0.9
feedback = 0.3
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "scoring.blend must sum to 1") {
		t.Errorf("expected blend sum error, got %v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestMarshal(t *testing.T) {
	data, err := Default().Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), "auto_merge_threshold") {
		t.Errorf("expected dedupe section in output:\n%s", data)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		input    string
		expected string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
	}

	for _, tt := range tests {
		result, err := expandPath(tt.input)
		if err != nil {
			t.Errorf("expandPath(%q) error: %v", tt.input, err)
		}
		if result != tt.expected {
			t.Errorf("expandPath(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
