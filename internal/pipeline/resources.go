package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vijay-prabhu/jobrank/internal/cache"
	"github.com/vijay-prabhu/jobrank/internal/config"
	"github.com/vijay-prabhu/jobrank/internal/database"
	"github.com/vijay-prabhu/jobrank/internal/llm"
	"github.com/vijay-prabhu/jobrank/internal/llm/gemini"
	"github.com/vijay-prabhu/jobrank/internal/llm/ollama"
	"github.com/vijay-prabhu/jobrank/internal/logger"
)

// judge answers are a bare number
const judgeNumPredict = 10

// Resources holds everything a run needs. Embedder and Judge are nil when
// their service could not be set up; the matching signals then degrade to 0.
type Resources struct {
	DB       *database.DB
	Embedder llm.Embedder
	Judge    llm.Generator

	closers []func() error
}

// Close releases every resource. It is safe to call more than once.
func (r *Resources) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

func (r *Resources) onClose(fn func() error) {
	r.closers = append(r.closers, fn)
}

// OpenFunc acquires the resources of one run
type OpenFunc func(ctx context.Context) (*Resources, error)

// OpenStore opens only the database
func OpenStore(cfg *config.Config) (*Resources, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	r := &Resources{DB: db}
	r.onClose(db.Close)
	return r, nil
}

// Open acquires the store, the embedder (behind the redis cache when one is
// configured) and the judge with its optional fallback. Only a store failure
// is an error.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Resources, error) {
	log = logger.OrNop(log)

	r, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(ctx, cfg, log)
	if err != nil {
		log.Warn("embedder unavailable", zap.Error(err))
	} else {
		r.Embedder = embedder
	}

	if r.Embedder != nil && cfg.Cache.RedisURL != "" {
		store, err := cache.OpenRedis(ctx, cfg.Cache.RedisURL)
		if err != nil {
			log.Warn("embedding cache unavailable, continuing without it", zap.Error(err))
		} else {
			r.onClose(store.Close)
			r.Embedder = cache.NewEmbedder(r.Embedder, store, cfg.Embedding.Model, cfg.Cache.TTL(), log)
		}
	}

	judge, err := newGenerator(ctx, cfg, cfg.Judge.Provider, cfg.Judge.Model, log)
	if err != nil {
		log.Warn("judge unavailable", zap.Error(err))
		judge = nil
	}
	if cfg.Judge.Fallback != "" {
		model := cfg.Judge.FallbackModel
		if model == "" {
			model = cfg.Judge.Model
		}
		fallback, ferr := newGenerator(ctx, cfg, cfg.Judge.Fallback, model, log)
		switch {
		case ferr != nil:
			log.Warn("judge fallback unavailable", zap.Error(ferr))
		case judge == nil:
			judge = fallback
		default:
			judge = llm.FallbackGenerator{Primary: judge, Fallback: fallback}
		}
	}
	if judge != nil {
		r.Judge = judge
	}

	return r, nil
}

func serviceOptions(s config.ServiceConfig) llm.Options {
	return llm.Options{Timeout: s.Timeout(), MaxRetries: s.MaxRetries}
}

func newEmbedder(ctx context.Context, cfg *config.Config, log *zap.Logger) (llm.Embedder, error) {
	s := cfg.Embedding
	log = logger.WithService(log, s.Provider, s.Model)

	switch s.Provider {
	case "ollama":
		return ollama.New(s.Host, s.Model, serviceOptions(s), ollama.WithLogger(log)), nil
	case "gemini":
		key, err := gemini.LoadAPIKey(cfg.Gemini.APIKey, cfg.Gemini.APIKeyFile)
		if err != nil {
			return nil, err
		}
		c, err := gemini.New(ctx, key, s.Model, 0, serviceOptions(s), log)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", s.Provider)
	}
}

// newGenerator builds a judge for provider and model. Timeouts and retries of
// the judge section apply to both the primary and the fallback.
func newGenerator(ctx context.Context, cfg *config.Config, provider, model string, log *zap.Logger) (llm.Generator, error) {
	s := cfg.Judge.ServiceConfig
	log = logger.WithService(log, provider, model)

	switch provider {
	case "ollama":
		host := s.Host
		if host == "" {
			host = cfg.Embedding.Host
		}
		return ollama.New(host, model, serviceOptions(s),
			ollama.WithTemperature(cfg.Judge.Temperature),
			ollama.WithNumPredict(judgeNumPredict),
			ollama.WithLogger(log),
		), nil
	case "gemini":
		key, err := gemini.LoadAPIKey(cfg.Gemini.APIKey, cfg.Gemini.APIKeyFile)
		if err != nil {
			return nil, err
		}
		c, err := gemini.New(ctx, key, model, cfg.Judge.Temperature, serviceOptions(s), log)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown judge provider %q", provider)
	}
}
