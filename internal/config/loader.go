package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const weightTolerance = 1e-6

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	expandedPath, err := expandPath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand config path: %w", err)
	}

	data, err := os.ReadFile(expandedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s (run 'jobrank config init' to create)", expandedPath)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("failed to expand paths: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Marshal renders the configuration as TOML
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

// expandPath expands ~ to home directory
func expandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, path[1:]), nil
}

// expandPaths expands ~ in all path fields
func (c *Config) expandPaths() error {
	var err error

	c.Database.Path, err = expandPath(c.Database.Path)
	if err != nil {
		return err
	}

	c.Gemini.APIKeyFile, err = expandPath(c.Gemini.APIKeyFile)
	if err != nil {
		return err
	}

	return nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}

	validProviders := map[string]bool{"ollama": true, "gemini": true}
	if !validProviders[c.Embedding.Provider] {
		errs = append(errs, fmt.Errorf("embedding.provider must be 'ollama' or 'gemini', got '%s'", c.Embedding.Provider))
	}
	if !validProviders[c.Judge.Provider] {
		errs = append(errs, fmt.Errorf("judge.provider must be 'ollama' or 'gemini', got '%s'", c.Judge.Provider))
	}
	if c.Judge.Fallback != "" && !validProviders[c.Judge.Fallback] {
		errs = append(errs, fmt.Errorf("judge.fallback must be 'ollama' or 'gemini', got '%s'", c.Judge.Fallback))
	}
	errs = append(errs, validateService("embedding", c.Embedding)...)
	errs = append(errs, validateService("judge", c.Judge.ServiceConfig)...)
	if c.Judge.Temperature < 0 || c.Judge.Temperature > 2 {
		errs = append(errs, errors.New("judge.temperature must be between 0 and 2"))
	}

	if c.Cache.RedisURL != "" && c.Cache.TTLMinutes < 1 {
		errs = append(errs, errors.New("cache.ttl_minutes must be at least 1 when redis_url is set"))
	}

	if c.Dedupe.Threshold < 0 || math.IsNaN(c.Dedupe.Threshold) {
		errs = append(errs, errors.New("dedupe.threshold must not be negative"))
	}
	if math.IsNaN(c.Dedupe.AutoMergeThreshold) || c.Dedupe.AutoMergeThreshold < 0 || c.Dedupe.AutoMergeThreshold > 1 {
		errs = append(errs, errors.New("dedupe.auto_merge_threshold must be between 0 and 1"))
	}

	if c.Feedback.MinTokenLength < 1 {
		errs = append(errs, errors.New("feedback.min_token_length must be at least 1"))
	}
	if c.Feedback.TopKeywords < 1 {
		errs = append(errs, errors.New("feedback.top_keywords must be at least 1"))
	}
	if math.IsNaN(c.Feedback.MaxDocFreq) || c.Feedback.MaxDocFreq <= 0 || c.Feedback.MaxDocFreq > 1 {
		errs = append(errs, errors.New("feedback.max_doc_freq must be in (0, 1]"))
	}

	if err := c.Scoring.Weights.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Scoring.Blend.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Pipeline.BatchLimit < 0 {
		errs = append(errs, errors.New("pipeline.batch_limit must not be negative"))
	}
	if c.Schedule.Spec == "" {
		errs = append(errs, errors.New("schedule.spec is required"))
	}

	// MCP validation
	if c.MCP.Transport != "stdio" {
		errs = append(errs, fmt.Errorf("mcp.transport must be 'stdio', got '%s'", c.MCP.Transport))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

func validateService(name string, s ServiceConfig) []error {
	var errs []error
	if s.Model == "" {
		errs = append(errs, fmt.Errorf("%s.model is required", name))
	}
	if s.Provider == "ollama" && s.Host == "" {
		errs = append(errs, fmt.Errorf("%s.host is required for ollama", name))
	}
	if s.TimeoutSeconds < 1 || s.TimeoutSeconds > 600 {
		errs = append(errs, fmt.Errorf("%s.timeout_seconds must be between 1 and 600", name))
	}
	if s.MaxRetries < 0 || s.MaxRetries > 5 {
		errs = append(errs, fmt.Errorf("%s.max_retries must be between 0 and 5", name))
	}
	return errs
}

// Validate checks that each weight is in [0,1] and that they sum to 1
func (w SignalWeights) Validate() error {
	return validateWeights("scoring.weights", map[string]float64{
		"embedding":  w.Embedding,
		"skill":      w.Skill,
		"experience": w.Experience,
		"judge":      w.Judge,
	})
}

// Validate checks that each weight is in [0,1] and that they sum to 1
func (b BlendWeights) Validate() error {
	return validateWeights("scoring.blend", map[string]float64{
		"base":     b.Base,
		"feedback": b.Feedback,
	})
}

func validateWeights(section string, weights map[string]float64) error {
	var errs []error
	sum := 0.0
	for name, w := range weights {
		if w < 0 || w > 1 || math.IsNaN(w) {
			errs = append(errs, fmt.Errorf("%s.%s must be between 0 and 1, got %v", section, name, w))
		}
		sum += w
	}
	if math.Abs(sum-1) > weightTolerance {
		errs = append(errs, fmt.Errorf("%s must sum to 1, got %v", section, sum))
	}
	return errors.Join(errs...)
}

// EnsureDirectories creates the database directory
func (c *Config) EnsureDirectories() error {
	dir := filepath.Dir(c.Database.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
