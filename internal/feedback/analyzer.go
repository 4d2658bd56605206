// Package feedback mines keywords from the board columns the user sorts offers
// into and turns them into a 0..1 preference score for new offers.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/vijay-prabhu/jobrank/internal/apperr"
	"github.com/vijay-prabhu/jobrank/internal/config"
	"github.com/vijay-prabhu/jobrank/internal/database"
	"github.com/vijay-prabhu/jobrank/internal/logger"
	"github.com/vijay-prabhu/jobrank/internal/textnorm"
)

// NeutralScore is returned when there is no feedback to compare against
const NeutralScore = 0.5

const (
	maxSuggested   = 20
	maxAvoided     = 10
	topPerPolarity = 20
	// offer text is tokenized like the vectorizer vocabulary: words of 2+ runes
	scoreTokenLen = 2
)

// Options tunes keyword extraction and the vector model
type Options struct {
	MinTokenLength int
	TopKeywords    int
	MaxDocFreq     float64
}

// OptionsFromConfig converts the feedback config section
func OptionsFromConfig(c config.FeedbackConfig) Options {
	return Options{
		MinTokenLength: c.MinTokenLength,
		TopKeywords:    c.TopKeywords,
		MaxDocFreq:     c.MaxDocFreq,
	}
}

// KeywordCount is a keyword and the number of cards it was extracted from
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// AnalysisResult summarizes one Analyze pass
type AnalysisResult struct {
	ColumnsAnalyzed int            `json:"columns_analyzed"`
	CardsAnalyzed   int            `json:"cards_analyzed"`
	KeywordsSaved   int            `json:"keywords_saved"`
	TopPositive     []KeywordCount `json:"top_positive,omitempty"`
	TopNegative     []KeywordCount `json:"top_negative,omitempty"`
}

// Suggestions are search keywords derived from the mined feedback
type Suggestions struct {
	Suggested []database.KeywordWeight `json:"suggested"`
	Avoided   []database.KeywordWeight `json:"avoided"`
}

type model struct {
	vec      *vectorizer
	positive *mat.VecDense
	negative *mat.VecDense
}

// Analyzer owns the feedback configs, keyword store and the lazily built vector model
type Analyzer struct {
	db   *database.DB
	opts Options
	log  *zap.Logger

	mu    sync.Mutex
	built bool
	model *model // nil after a build means cold start
}

// New creates an Analyzer over db
func New(db *database.DB, opts Options, log *zap.Logger) *Analyzer {
	if opts.MinTokenLength < 1 {
		opts.MinTokenLength = 3
	}
	if opts.TopKeywords < 1 {
		opts.TopKeywords = 50
	}
	if opts.MaxDocFreq <= 0 || opts.MaxDocFreq > 1 {
		opts.MaxDocFreq = 0.9
	}
	return &Analyzer{db: db, opts: opts, log: logger.OrNop(log)}
}

// Invalidate drops the cached vector model so the next Score rebuilds it
func (a *Analyzer) Invalidate() {
	a.mu.Lock()
	a.built = false
	a.model = nil
	a.mu.Unlock()
}

// EnsureConfig creates a feedback config with the default polarity for every
// board column that has none. It returns the number of configs created.
func (a *Analyzer) EnsureConfig(ctx context.Context) (int, error) {
	const op = "feedback.EnsureConfig"

	columns, err := a.db.ListBoardColumns(ctx)
	if err != nil {
		return 0, apperr.Storage(op, err)
	}

	created := 0
	for _, col := range columns {
		t, w := DefaultPolarity(col.Name)
		ok, err := a.db.CreateFeedbackConfig(ctx, &database.FeedbackConfig{
			ColumnID:     col.ID,
			ColumnName:   col.Name,
			FeedbackType: t,
			Weight:       w,
		})
		if err != nil {
			return created, apperr.Storage(op, fmt.Errorf("column %q: %w", col.Name, err))
		}
		if ok {
			created++
			a.log.Debug("feedback config created",
				zap.String("column", col.Name),
				zap.String("type", string(t)),
				zap.Float64("weight", w),
			)
		}
	}
	return created, nil
}

// Configs lists the feedback configs, creating missing defaults first
func (a *Analyzer) Configs(ctx context.Context) ([]database.FeedbackConfig, error) {
	if _, err := a.EnsureConfig(ctx); err != nil {
		return nil, err
	}
	configs, err := a.db.ListFeedbackConfigs(ctx)
	if err != nil {
		return nil, apperr.Storage("feedback.Configs", err)
	}
	return configs, nil
}

// UpdateConfig sets the polarity and weight of a column. The weight is clamped to [0,1].
func (a *Analyzer) UpdateConfig(ctx context.Context, column string, t database.FeedbackType, weight float64) (*database.FeedbackConfig, error) {
	const op = "feedback.UpdateConfig"

	if !t.Valid() {
		return nil, apperr.Validation(op, "unknown feedback type %q (want positive, negative or neutral)", t)
	}
	if math.IsNaN(weight) {
		return nil, apperr.Validation(op, "weight must be a number")
	}
	weight = math.Max(0, math.Min(1, weight))

	if _, err := a.EnsureConfig(ctx); err != nil {
		return nil, err
	}

	cfg, err := a.db.GetFeedbackConfigByColumn(ctx, column)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	if cfg == nil {
		return nil, apperr.NotFound(op, "no board column named %q", column)
	}

	if err := a.db.UpdateFeedbackConfig(ctx, cfg.ID, t, weight); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.NotFound(op, "%v", err)
		}
		return nil, apperr.Storage(op, err)
	}
	cfg.FeedbackType = t
	cfg.Weight = weight

	a.Invalidate()
	a.log.Info("feedback config updated",
		zap.String("column", cfg.ColumnName),
		zap.String("type", string(t)),
		zap.Float64("weight", weight),
	)
	return cfg, nil
}

// Analyze mines keywords from the cards of every weighted, non-neutral column
// and folds them into the keyword store. Each card counts once per keyword.
func (a *Analyzer) Analyze(ctx context.Context) (*AnalysisResult, error) {
	const op = "feedback.Analyze"

	configs, err := a.Configs(ctx)
	if err != nil {
		return nil, err
	}

	result := &AnalysisResult{}
	totals := map[database.FeedbackType]map[string]int{
		database.FeedbackPositive: {},
		database.FeedbackNegative: {},
	}

	for _, cfg := range configs {
		if cfg.FeedbackType == database.FeedbackNeutral || cfg.Weight <= 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		offers, err := a.db.ListColumnOffers(ctx, cfg.ColumnID)
		if err != nil {
			return result, apperr.Storage(op, fmt.Errorf("column %q: %w", cfg.ColumnName, err))
		}

		counts := map[string]int{}
		for i := range offers {
			for _, kw := range ExtractKeywords(OfferText(&offers[i]), a.opts.MinTokenLength, a.opts.TopKeywords) {
				counts[kw]++
			}
		}

		saved, err := a.db.AddKeywords(ctx, cfg.ID, counts, cfg.Weight)
		if err != nil {
			return result, apperr.Storage(op, fmt.Errorf("column %q: %w", cfg.ColumnName, err))
		}

		for kw, n := range counts {
			totals[cfg.FeedbackType][kw] += n
		}
		result.ColumnsAnalyzed++
		result.CardsAnalyzed += len(offers)
		result.KeywordsSaved += saved

		a.log.Debug("column analyzed",
			zap.String("column", cfg.ColumnName),
			zap.Int("cards", len(offers)),
			zap.Int("keywords", saved),
		)
	}

	result.TopPositive = topCounts(totals[database.FeedbackPositive], topPerPolarity)
	result.TopNegative = topCounts(totals[database.FeedbackNegative], topPerPolarity)

	a.Invalidate()
	a.log.Info("feedback analyzed",
		zap.Int("columns", result.ColumnsAnalyzed),
		zap.Int("cards", result.CardsAnalyzed),
		zap.Int("keywords", result.KeywordsSaved),
	)
	return result, nil
}

// Score returns the share of similarity text has with the positive feedback.
// It is 0.5 when no feedback has been mined. On a storage or vectorization
// failure the neutral score is returned together with the error.
func (a *Analyzer) Score(ctx context.Context, text string) (float64, error) {
	m, err := a.loadModel(ctx)
	if err != nil {
		return NeutralScore, apperr.Storage("feedback.Score", err)
	}
	if m == nil {
		return NeutralScore, nil
	}

	v, err := m.vec.transform(textnorm.Tokens(text, scoreTokenLen))
	if err != nil {
		return NeutralScore, fmt.Errorf("feedback.Score: %w", err)
	}
	pos := cosine(v, m.positive)
	neg := cosine(v, m.negative)

	total := pos + neg
	if total <= 0 {
		return NeutralScore, nil
	}
	return pos / total, nil
}

func (a *Analyzer) loadModel(ctx context.Context) (*model, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.built {
		return a.model, nil
	}

	m, err := a.buildModel(ctx)
	if err != nil {
		return nil, err
	}
	a.model = m
	a.built = true
	return m, nil
}

func (a *Analyzer) buildModel(ctx context.Context) (*model, error) {
	positive, err := a.keywordsOf(ctx, database.FeedbackPositive)
	if err != nil {
		return nil, err
	}
	negative, err := a.keywordsOf(ctx, database.FeedbackNegative)
	if err != nil {
		return nil, err
	}
	if len(positive) == 0 && len(negative) == 0 {
		a.log.Debug("no feedback keywords, using neutral score")
		return nil, nil
	}

	docs := [][]string{polarityDocument(positive), polarityDocument(negative)}
	vec, err := fitVectorizer(docs, a.opts.MaxDocFreq)
	if errors.Is(err, ErrEmptyVocabulary) {
		a.log.Debug("feedback vocabulary empty after pruning, using neutral score")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	a.log.Debug("feedback model built",
		zap.Int("positive_keywords", len(positive)),
		zap.Int("negative_keywords", len(negative)),
		zap.Int("vocabulary", vec.size()),
	)

	m := &model{vec: vec}
	if m.positive, err = vec.transform(docs[0]); err != nil {
		return nil, err
	}
	if m.negative, err = vec.transform(docs[1]); err != nil {
		return nil, err
	}
	return m, nil
}

func (a *Analyzer) keywordsOf(ctx context.Context, t database.FeedbackType) ([]database.KeywordWeight, error) {
	return a.db.ListKeywordWeights(ctx, database.KeywordListOptions{FeedbackType: &t})
}

// polarityDocument repeats each keyword round(occurrence*weight*10) times
func polarityDocument(keywords []database.KeywordWeight) []string {
	var doc []string
	for _, k := range keywords {
		n := int(math.Round(float64(k.Occurrence) * k.Weight * 10))
		for i := 0; i < n; i++ {
			doc = append(doc, k.Keyword)
		}
	}
	return doc
}

// Keywords lists mined keywords, strongest first. A nil type lists every polarity.
func (a *Analyzer) Keywords(ctx context.Context, t *database.FeedbackType, limit int) ([]database.KeywordWeight, error) {
	if t != nil && !t.Valid() {
		return nil, apperr.Validation("feedback.Keywords", "unknown feedback type %q", *t)
	}
	keywords, err := a.db.ListKeywordWeights(ctx, database.KeywordListOptions{FeedbackType: t, Limit: limit})
	if err != nil {
		return nil, apperr.Storage("feedback.Keywords", err)
	}
	return keywords, nil
}

// Suggest returns the strongest positive keywords to search for and the
// strongest negative keywords to avoid.
func (a *Analyzer) Suggest(ctx context.Context) (*Suggestions, error) {
	const op = "feedback.Suggest"

	positive, err := a.keywordsOf(ctx, database.FeedbackPositive)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}
	negative, err := a.keywordsOf(ctx, database.FeedbackNegative)
	if err != nil {
		return nil, apperr.Storage(op, err)
	}

	return &Suggestions{
		Suggested: distinctKeywords(positive, maxSuggested),
		Avoided:   distinctKeywords(negative, maxAvoided),
	}, nil
}

// ApplySuggestions stores the current suggestions as search keywords.
// Suggested keywords get weight 0.6+0.4w and avoided ones keep w; a stored
// keyword never loses weight. It returns the number of keywords written.
func (a *Analyzer) ApplySuggestions(ctx context.Context) (int, error) {
	s, err := a.Suggest(ctx)
	if err != nil {
		return 0, err
	}

	suggested := make(map[string]bool, len(s.Suggested))
	written := 0
	for _, k := range s.Suggested {
		suggested[k.Keyword] = true
		if err := a.db.UpsertSearchKeyword(ctx, &database.SearchKeyword{
			Keyword:  k.Keyword,
			Weight:   0.6 + 0.4*k.Weight,
			Polarity: database.FeedbackPositive,
		}); err != nil {
			return written, apperr.Storage("feedback.ApplySuggestions", err)
		}
		written++
	}

	for _, k := range s.Avoided {
		if suggested[k.Keyword] {
			continue
		}
		if err := a.db.UpsertSearchKeyword(ctx, &database.SearchKeyword{
			Keyword:  k.Keyword,
			Weight:   k.Weight,
			Polarity: database.FeedbackNegative,
		}); err != nil {
			return written, apperr.Storage("feedback.ApplySuggestions", err)
		}
		written++
	}

	a.log.Info("search keywords updated", zap.Int("keywords", written))
	return written, nil
}

// distinctKeywords keeps the first row of each keyword, up to limit
func distinctKeywords(keywords []database.KeywordWeight, limit int) []database.KeywordWeight {
	seen := map[string]bool{}
	out := []database.KeywordWeight{}
	for _, k := range keywords {
		if seen[k.Keyword] {
			continue
		}
		seen[k.Keyword] = true
		out = append(out, k)
		if len(out) == limit {
			break
		}
	}
	return out
}

// OfferText joins the fields keywords are mined from
func OfferText(o *database.Offer) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{o.Title, o.Description, o.Company, o.Location} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// ExtractKeywords returns up to limit distinct tokens of at least minLen runes,
// most frequent first. Ties keep their first appearance order.
func ExtractKeywords(text string, minLen, limit int) []string {
	tokens := textnorm.Tokens(text, minLen)
	if len(tokens) == 0 {
		return nil
	}

	counts := map[string]int{}
	var order []string
	for _, t := range tokens {
		if counts[t] == 0 {
			order = append(order, t)
		}
		counts[t]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}
	return order
}

func topCounts(counts map[string]int, limit int) []KeywordCount {
	out := make([]KeywordCount, 0, len(counts))
	for kw, n := range counts {
		out = append(out, KeywordCount{Keyword: kw, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
