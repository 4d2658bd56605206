// Package pipeline runs deduplication, feedback analysis and scoring as one
// recorded batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vijay-prabhu/jobrank/internal/apperr"
	"github.com/vijay-prabhu/jobrank/internal/config"
	"github.com/vijay-prabhu/jobrank/internal/database"
	"github.com/vijay-prabhu/jobrank/internal/dedupe"
	"github.com/vijay-prabhu/jobrank/internal/feedback"
	"github.com/vijay-prabhu/jobrank/internal/logger"
	"github.com/vijay-prabhu/jobrank/internal/matching"
	"github.com/vijay-prabhu/jobrank/internal/ranking"
)

// Options controls a single run
type Options struct {
	DetectThreshold    float64
	DetectURLs         bool
	AutoMerge          bool
	AutoMergeThreshold float64
	Recompute          bool
	Unscored           bool
	Limit              int
	Progress           ProgressCallback
}

// OptionsFromConfig derives run options from the configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DetectThreshold:    cfg.Dedupe.Threshold,
		DetectURLs:         cfg.Pipeline.DetectURLs,
		AutoMerge:          cfg.Pipeline.AutoMerge,
		AutoMergeThreshold: cfg.Dedupe.AutoMergeThreshold,
		Limit:              cfg.Pipeline.BatchLimit,
	}
}

// RunResult is everything one run did
type RunResult struct {
	RunID      string                   `json:"run_id"`
	Status     database.RunStatus       `json:"status"`
	Detect     *dedupe.DetectResult     `json:"detect,omitempty"`
	URLDetect  *dedupe.DetectResult     `json:"url_detect,omitempty"`
	AutoMerge  *dedupe.AutoMergeResult  `json:"auto_merge,omitempty"`
	Feedback   *feedback.AnalysisResult `json:"feedback,omitempty"`
	Ranking    *ranking.BatchResult     `json:"ranking,omitempty"`
	Errors     []string                 `json:"errors,omitempty"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
}

// Duration returns how long the run took
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Runner executes pipeline runs
type Runner struct {
	cfg  *config.Config
	open OpenFunc
	log  *zap.Logger
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithOpener replaces how run resources are acquired
func WithOpener(open OpenFunc) RunnerOption {
	return func(r *Runner) { r.open = open }
}

// NewRunner creates a Runner
func NewRunner(cfg *config.Config, log *zap.Logger, options ...RunnerOption) *Runner {
	r := &Runner{cfg: cfg, log: logger.OrNop(log)}
	r.open = func(ctx context.Context) (*Resources, error) {
		return Open(ctx, r.cfg, r.log)
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Run executes detection, optional auto-merge, feedback analysis and scoring.
// Failed steps are recorded in RunResult.Errors; storage failures and
// cancellation end the run early.
func (r *Runner) Run(ctx context.Context, opts Options) (result *RunResult, err error) {
	res, err := r.open(ctx)
	if err != nil {
		return nil, apperr.Storage("pipeline.Run", err)
	}
	defer func() {
		if cerr := res.Close(); cerr != nil {
			r.log.Warn("failed to release run resources", zap.Error(cerr))
		}
	}()

	run := &database.PipelineRun{}
	if err := res.DB.CreatePipelineRun(ctx, run); err != nil {
		return nil, apperr.Storage("pipeline.Run", err)
	}

	log := r.log.With(logger.Run(run.ID))
	result = &RunResult{RunID: run.ID, StartedAt: run.StartedAt}
	log.Info("pipeline run started")

	err = r.steps(ctx, res, opts, result, log)

	result.FinishedAt = time.Now()
	result.Status = runStatus(err)
	fillRun(run, result, err)

	// the run row is written even when ctx was canceled
	if ferr := res.DB.FinishPipelineRun(context.WithoutCancel(ctx), run); ferr != nil {
		log.Error("failed to record run", zap.Error(ferr))
		err = errors.Join(err, apperr.Storage("pipeline.Run", ferr))
	}

	log.Info("pipeline run finished",
		zap.String("status", string(result.Status)),
		zap.Duration("duration", result.Duration()),
		zap.Int("errors", len(result.Errors)),
	)
	return result, err
}

func (r *Runner) steps(ctx context.Context, res *Resources, opts Options, result *RunResult, log *zap.Logger) error {
	detector := dedupe.New(res.DB, log)

	report := func(phase Phase, description string) time.Time {
		started := time.Now()
		if opts.Progress != nil {
			opts.Progress(Progress{Phase: phase, Description: description, StartedAt: started})
		}
		return started
	}

	// step records a failed step and reports whether the run must stop
	step := func(name string, err error) error {
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || apperr.IsKind(err, apperr.KindStorage) {
			return fmt.Errorf("%s: %w", name, err)
		}
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
		log.Warn("pipeline step failed", zap.String("step", name), zap.Error(err))
		return nil
	}

	var err error

	report(PhaseDetecting, "Detecting duplicate offers")
	result.Detect, err = detector.Detect(ctx, opts.DetectThreshold)
	if err := step("detect", err); err != nil {
		return err
	}

	if opts.DetectURLs {
		report(PhaseDetectingURL, "Detecting offers sharing a URL")
		result.URLDetect, err = detector.DetectByURL(ctx)
		if err := step("detect urls", err); err != nil {
			return err
		}
	}

	if opts.AutoMerge {
		report(PhaseMerging, "Merging duplicates")
		result.AutoMerge, err = detector.AutoMerge(ctx, opts.AutoMergeThreshold)
		if err := step("auto-merge", err); err != nil {
			return err
		}
	}

	report(PhaseAnalyzing, "Analyzing board feedback")
	analyzer := feedback.New(res.DB, feedback.OptionsFromConfig(r.cfg.Feedback), log)
	result.Feedback, err = analyzer.Analyze(ctx)
	if err := step("feedback", err); err != nil {
		return err
	}

	started := report(PhaseScoring, "Scoring offers")
	base, err := NewBaseScorer(ctx, r.cfg, res, log)
	if err := step("scoring", err); err != nil {
		return err
	}

	agg, err := ranking.New(res.DB, base, analyzer, r.cfg.Scoring.Blend, log)
	if err != nil {
		return step("scoring", err)
	}

	result.Ranking, err = agg.UpdateAll(ctx, ranking.Options{
		Recompute: opts.Recompute,
		Unscored:  opts.Unscored,
		Limit:     opts.Limit,
		Progress: func(current, total int) {
			if opts.Progress != nil {
				opts.Progress(Progress{
					Phase:       PhaseScoring,
					Current:     current,
					Total:       total,
					Description: "Scoring offers",
					StartedAt:   started,
				})
			}
		},
	})
	return step("scoring", err)
}

// NewBaseScorer scores against the stored user profile. It returns nil when
// there is no profile; offers without a stored score are then skipped.
func NewBaseScorer(ctx context.Context, cfg *config.Config, res *Resources, log *zap.Logger) (ranking.BaseScorer, error) {
	log = logger.OrNop(log)
	profile, err := res.DB.GetUserProfile(ctx)
	if err != nil {
		return nil, apperr.Storage("pipeline.NewBaseScorer", err)
	}
	if profile == nil {
		log.Warn("no user profile, only offers with a stored score will be ranked")
		return nil, nil
	}

	scorer, err := matching.NewScorer(res.Embedder, res.Judge, cfg.Scoring.Weights, log)
	if err != nil {
		return nil, err
	}
	return scorer.ForProfile(ctx, profile), nil
}

func runStatus(err error) database.RunStatus {
	switch {
	case err == nil:
		return database.RunSucceeded
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return database.RunCanceled
	default:
		return database.RunFailed
	}
}

func fillRun(run *database.PipelineRun, result *RunResult, err error) {
	run.Status = result.Status
	if result.Detect != nil {
		run.LinksFound += result.Detect.Created
	}
	if result.URLDetect != nil {
		run.LinksFound += result.URLDetect.Created
	}
	if result.AutoMerge != nil {
		run.Merged = result.AutoMerge.Merged
	}
	if result.Feedback != nil {
		run.CardsAnalyzed = result.Feedback.CardsAnalyzed
		run.KeywordsSaved = result.Feedback.KeywordsSaved
	}
	if result.Ranking != nil {
		run.Scored = result.Ranking.Scored
		run.Failed = result.Ranking.Failed
	}
	if err != nil {
		run.Error = err.Error()
	} else if len(result.Errors) > 0 {
		run.Error = fmt.Sprintf("%d step(s) failed: %s", len(result.Errors), result.Errors[0])
	}
}
