// Package ranking blends the profile match score with the feedback score and
// writes the result back to each offer.
package ranking

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/vijay-prabhu/jobrank/internal/apperr"
	"github.com/vijay-prabhu/jobrank/internal/config"
	"github.com/vijay-prabhu/jobrank/internal/database"
	"github.com/vijay-prabhu/jobrank/internal/feedback"
	"github.com/vijay-prabhu/jobrank/internal/logger"
	"github.com/vijay-prabhu/jobrank/internal/matching"
)

// ErrNoBaseScore is returned for an offer without a stored score when no
// profile scorer is available
var ErrNoBaseScore = errors.New("no stored score and no profile to score against")

// BaseScorer computes the profile match signals of an offer
type BaseScorer interface {
	Score(ctx context.Context, offer *database.Offer) matching.Signals
}

// FeedbackScorer scores offer text against mined feedback on a 0..1 scale
type FeedbackScorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// Options controls which offers are ranked and how
type Options struct {
	Recompute bool
	Unscored  bool
	Limit     int
	// Progress is called after each offer of a batch
	Progress func(current, total int)
}

// Result is the outcome of ranking one offer
type Result struct {
	OfferID  int64             `json:"offer_id"`
	Title    string            `json:"title"`
	Previous *float64          `json:"previous,omitempty"`
	Current  float64           `json:"current"`
	Feedback float64           `json:"feedback"`
	Final    float64           `json:"final"`
	Signals  *matching.Signals `json:"signals,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

// BatchResult summarizes UpdateAll
type BatchResult struct {
	Total   int      `json:"total"`
	Scored  int      `json:"scored"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
	Results []Result `json:"results,omitempty"`
}

// Aggregator writes final matching scores
type Aggregator struct {
	db       *database.DB
	base     BaseScorer
	feedback FeedbackScorer
	blend    config.BlendWeights
	log      *zap.Logger
}

// New validates the blend weights and creates an Aggregator. base may be nil,
// in which case only offers with a stored score can be ranked.
func New(db *database.DB, base BaseScorer, fb FeedbackScorer, blend config.BlendWeights, log *zap.Logger) (*Aggregator, error) {
	if err := blend.Validate(); err != nil {
		return nil, apperr.Validation("ranking.New", "%v", err)
	}
	return &Aggregator{db: db, base: base, feedback: fb, blend: blend, log: logger.OrNop(log)}, nil
}

// Blend combines a 0..100 current score with a 0..1 feedback score
func Blend(w config.BlendWeights, current, feedbackScore float64) float64 {
	final := w.Base*current + w.Feedback*feedbackScore*100
	return math.Max(0, math.Min(100, final))
}

// Update ranks one offer and stores its final score
func (a *Aggregator) Update(ctx context.Context, offer *database.Offer, opts Options) (*Result, error) {
	const op = "ranking.Update"
	log := a.log.With(logger.Offer(offer.ID))

	res := &Result{OfferID: offer.ID, Title: offer.Title, Previous: offer.MatchingScore}

	switch {
	case offer.MatchingScore != nil && !opts.Recompute:
		res.Current = *offer.MatchingScore
	case a.base != nil:
		sig := a.base.Score(ctx, offer)
		res.Signals = &sig
		res.Current = sig.Base
		for signal, msg := range sig.Errors {
			res.Warnings = append(res.Warnings, signal+": "+msg)
		}
	default:
		return nil, apperr.Validation(op, "offer %d: %w", offer.ID, ErrNoBaseScore)
	}

	res.Feedback = feedback.NeutralScore
	if a.feedback != nil {
		fb, err := a.feedback.Score(ctx, feedback.OfferText(offer))
		if err != nil {
			log.Warn("feedback score unavailable, using neutral", zap.Error(err))
			res.Warnings = append(res.Warnings, "feedback: "+err.Error())
		}
		res.Feedback = fb
	}

	res.Final = Blend(a.blend, res.Current, res.Feedback)

	if err := a.db.UpdateMatchingScore(ctx, offer.ID, res.Final); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.NotFound(op, "%v", err)
		}
		return nil, apperr.Storage(op, err)
	}
	offer.MatchingScore = &res.Final

	log.Debug("offer ranked",
		zap.Float64("current", res.Current),
		zap.Float64("feedback", res.Feedback),
		zap.Float64("final", res.Final),
	)
	return res, nil
}

// UpdateAll ranks offers one after another, unscored offers first and then the
// least recently scored. Offers that cannot be scored are skipped and failures
// are counted; neither stops the batch.
func (a *Aggregator) UpdateAll(ctx context.Context, opts Options) (*BatchResult, error) {
	offers, err := a.db.ListOffers(ctx, database.OfferListOptions{
		Unscored:     opts.Unscored,
		StalestFirst: true,
		Limit:        opts.Limit,
	})
	if err != nil {
		return nil, apperr.Storage("ranking.UpdateAll", err)
	}

	result := &BatchResult{Total: len(offers)}
	for i := range offers {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		res, err := a.Update(ctx, &offers[i], opts)
		switch {
		case err == nil:
			result.Scored++
			result.Results = append(result.Results, *res)
		case errors.Is(err, ErrNoBaseScore), apperr.IsKind(err, apperr.KindNotFound):
			result.Skipped++
			a.log.Warn("offer skipped", logger.Offer(offers[i].ID), zap.Error(err))
		default:
			result.Failed++
			result.Errors = append(result.Errors, err.Error())
			a.log.Warn("offer ranking failed", logger.Offer(offers[i].ID), zap.Error(err))
		}

		if opts.Progress != nil {
			opts.Progress(i+1, len(offers))
		}
	}

	a.log.Info("ranking complete",
		zap.Int("total", result.Total),
		zap.Int("scored", result.Scored),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}
