package config

import "time"

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig `toml:"database"`
	Logging   LoggingConfig  `toml:"logging"`
	Embedding ServiceConfig  `toml:"embedding"`
	Judge     JudgeConfig    `toml:"judge"`
	Gemini    GeminiConfig   `toml:"gemini"`
	Cache     CacheConfig    `toml:"cache"`
	Dedupe    DedupeConfig   `toml:"dedupe"`
	Feedback  FeedbackConfig `toml:"feedback"`
	Scoring   ScoringConfig  `toml:"scoring"`
	Pipeline  PipelineConfig `toml:"pipeline"`
	Schedule  ScheduleConfig `toml:"schedule"`
	MCP       MCPConfig      `toml:"mcp"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Debug bool `toml:"debug"`
	JSON  bool `toml:"json"`
}

// ServiceConfig describes an external model endpoint
type ServiceConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	Host           string `toml:"host"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
}

// Timeout returns the per-attempt timeout as a duration
func (s ServiceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// JudgeConfig contains generative judge settings
type JudgeConfig struct {
	ServiceConfig
	Fallback      string  `toml:"fallback"`
	FallbackModel string  `toml:"fallback_model"`
	Temperature   float64 `toml:"temperature"`
}

// GeminiConfig contains Gemini API credentials. Models are taken from the
// embedding and judge sections when their provider is "gemini".
type GeminiConfig struct {
	// API key may also come from GEMINI_API_KEY
	APIKey     string `toml:"api_key"`
	APIKeyFile string `toml:"api_key_file"`
}

// CacheConfig contains embedding cache settings
type CacheConfig struct {
	RedisURL   string `toml:"redis_url"`
	TTLMinutes int    `toml:"ttl_minutes"`
}

// TTL returns the cache entry lifetime
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// DedupeConfig contains duplicate detection thresholds
type DedupeConfig struct {
	Threshold          float64 `toml:"threshold"`
	AutoMergeThreshold float64 `toml:"auto_merge_threshold"`
}

// FeedbackConfig contains keyword mining settings
type FeedbackConfig struct {
	MinTokenLength int     `toml:"min_token_length"`
	TopKeywords    int     `toml:"top_keywords"`
	MaxDocFreq     float64 `toml:"max_doc_freq"`
}

// ScoringConfig contains signal and blend weights
type ScoringConfig struct {
	Weights SignalWeights `toml:"weights"`
	Blend   BlendWeights  `toml:"blend"`
}

// SignalWeights weights the four match signals in the base score
type SignalWeights struct {
	Embedding  float64 `toml:"embedding"`
	Skill      float64 `toml:"skill"`
	Experience float64 `toml:"experience"`
	Judge      float64 `toml:"judge"`
}

// BlendWeights weights the stored score against the feedback score
type BlendWeights struct {
	Base     float64 `toml:"base"`
	Feedback float64 `toml:"feedback"`
}

// PipelineConfig contains batch run settings
type PipelineConfig struct {
	BatchLimit int  `toml:"batch_limit"`
	AutoMerge  bool `toml:"auto_merge"`
	DetectURLs bool `toml:"detect_urls"`
}

// ScheduleConfig contains the cron schedule for unattended runs
type ScheduleConfig struct {
	Spec string `toml:"spec"`
}

// MCPConfig contains MCP server settings
type MCPConfig struct {
	Enabled   bool   `toml:"enabled"`
	Transport string `toml:"transport"`
}

// DefaultSignalWeights returns the standard base score weights
func DefaultSignalWeights() SignalWeights {
	return SignalWeights{Embedding: 0.4, Skill: 0.3, Experience: 0.2, Judge: 0.1}
}

// DefaultBlendWeights returns the standard feedback blend
func DefaultBlendWeights() BlendWeights {
	return BlendWeights{Base: 0.7, Feedback: 0.3}
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "~/.local/share/jobrank/jobrank.db",
		},
		Embedding: ServiceConfig{
			Provider:       "ollama",
			Model:          "nomic-embed-text",
			Host:           "http://localhost:11434",
			TimeoutSeconds: 30,
			MaxRetries:     2,
		},
		Judge: JudgeConfig{
			ServiceConfig: ServiceConfig{
				Provider:       "ollama",
				Model:          "llama3:8b",
				Host:           "http://localhost:11434",
				TimeoutSeconds: 60,
				MaxRetries:     1,
			},
			Temperature: 0.1,
		},
		Cache: CacheConfig{
			TTLMinutes: 24 * 60,
		},
		Dedupe: DedupeConfig{
			Threshold:          0.8,
			AutoMergeThreshold: 0.9,
		},
		Feedback: FeedbackConfig{
			MinTokenLength: 3,
			TopKeywords:    50,
			MaxDocFreq:     0.9,
		},
		Scoring: ScoringConfig{
			Weights: DefaultSignalWeights(),
			Blend:   DefaultBlendWeights(),
		},
		Pipeline: PipelineConfig{
			BatchLimit: 200,
			AutoMerge:  false,
			DetectURLs: true,
		},
		Schedule: ScheduleConfig{
			Spec: "@every 6h",
		},
		MCP: MCPConfig{
			Enabled:   true,
			Transport: "stdio",
		},
	}
}
