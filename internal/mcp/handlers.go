package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/vijay-prabhu/jobrank/internal/database"
	"github.com/vijay-prabhu/jobrank/internal/dedupe"
	"github.com/vijay-prabhu/jobrank/internal/pipeline"
	"github.com/vijay-prabhu/jobrank/internal/ranking"
)

func (s *Server) registerHandlers() {
	s.handlers["detect_duplicates"] = s.handleDetectDuplicates
	s.handlers["list_duplicates"] = s.handleListDuplicates
	s.handlers["merge_offers"] = s.handleMergeOffers
	s.handlers["ignore_duplicate"] = s.handleIgnoreDuplicate
	s.handlers["analyze_feedback"] = s.handleAnalyzeFeedback
	s.handlers["feedback_keywords"] = s.handleFeedbackKeywords
	s.handlers["suggest_keywords"] = s.handleSuggestKeywords
	s.handlers["score_offer"] = s.handleScoreOffer
	s.handlers["run_pipeline"] = s.handleRunPipeline
	s.handlers["list_runs"] = s.handleListRuns
}

// decode unmarshals optional tool arguments into v
func decode(params json.RawMessage, v interface{}) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

type detectDuplicatesParams struct {
	Threshold *float64 `json:"threshold"`
	ByURL     bool     `json:"by_url"`
}

type detectDuplicatesResult struct {
	Similarity *dedupe.DetectResult `json:"similarity"`
	URL        *dedupe.DetectResult `json:"url,omitempty"`
}

func (s *Server) handleDetectDuplicates(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p detectDuplicatesParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}

	threshold := s.cfg.Dedupe.Threshold
	if p.Threshold != nil {
		threshold = *p.Threshold
	}

	detected, err := s.detector.Detect(ctx, threshold)
	if err != nil {
		return nil, err
	}
	out := detectDuplicatesResult{Similarity: detected}

	if p.ByURL {
		byURL, err := s.detector.DetectByURL(ctx)
		if err != nil {
			return nil, err
		}
		out.URL = byURL
	}
	return out, nil
}

type listDuplicatesParams struct {
	OfferID *int64 `json:"offer_id"`
}

func (s *Server) handleListDuplicates(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p listDuplicatesParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}

	links, err := s.detector.List(ctx, p.OfferID)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return "No duplicate links found.", nil
	}
	return links, nil
}

type mergeOffersParams struct {
	OriginalID  int64 `json:"original_id"`
	DuplicateID int64 `json:"duplicate_id"`
}

func (s *Server) handleMergeOffers(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p mergeOffersParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.OriginalID <= 0 || p.DuplicateID <= 0 {
		return nil, fmt.Errorf("original_id and duplicate_id are required")
	}

	merged, err := s.detector.Merge(ctx, p.OriginalID, p.DuplicateID)
	if err != nil {
		return nil, err
	}
	s.analyzer.Invalidate()
	return merged, nil
}

type ignoreDuplicateParams struct {
	LinkID int64 `json:"link_id"`
}

func (s *Server) handleIgnoreDuplicate(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p ignoreDuplicateParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.LinkID <= 0 {
		return nil, fmt.Errorf("link_id is required")
	}

	if err := s.detector.Ignore(ctx, p.LinkID); err != nil {
		return nil, err
	}
	return fmt.Sprintf("Duplicate link %d dismissed.", p.LinkID), nil
}

func (s *Server) handleAnalyzeFeedback(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return s.analyzer.Analyze(ctx)
}

type feedbackKeywordsParams struct {
	Type  string `json:"type"`
	Limit int    `json:"limit"`
}

func (s *Server) handleFeedbackKeywords(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p feedbackKeywordsParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}

	var t *database.FeedbackType
	if p.Type != "" && p.Type != "all" {
		ft := database.FeedbackType(strings.ToLower(p.Type))
		t = &ft
	}
	if p.Limit <= 0 {
		p.Limit = 30
	}

	return s.analyzer.Keywords(ctx, t, p.Limit)
}

type suggestKeywordsParams struct {
	Apply bool `json:"apply"`
}

type suggestKeywordsResult struct {
	Suggested []string `json:"suggested"`
	Avoided   []string `json:"avoided"`
	Stored    int      `json:"stored,omitempty"`
}

func (s *Server) handleSuggestKeywords(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p suggestKeywordsParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}

	suggestions, err := s.analyzer.Suggest(ctx)
	if err != nil {
		return nil, err
	}

	out := suggestKeywordsResult{
		Suggested: keywordNames(suggestions.Suggested),
		Avoided:   keywordNames(suggestions.Avoided),
	}
	if p.Apply {
		out.Stored, err = s.analyzer.ApplySuggestions(ctx)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func keywordNames(keywords []database.KeywordWeight) []string {
	names := make([]string, 0, len(keywords))
	for _, k := range keywords {
		names = append(names, k.Keyword)
	}
	return names
}

type scoreOfferParams struct {
	OfferID   int64 `json:"offer_id"`
	Recompute bool  `json:"recompute"`
}

func (s *Server) handleScoreOffer(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p scoreOfferParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.OfferID <= 0 {
		return nil, fmt.Errorf("offer_id is required")
	}

	offer, err := s.res.DB.GetOffer(ctx, p.OfferID)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if offer == nil {
		return nil, fmt.Errorf("offer not found: %d", p.OfferID)
	}

	base, err := pipeline.NewBaseScorer(ctx, s.cfg, s.res, s.log)
	if err != nil {
		return nil, err
	}
	agg, err := ranking.New(s.res.DB, base, s.analyzer, s.cfg.Scoring.Blend, s.log)
	if err != nil {
		return nil, err
	}

	return agg.Update(ctx, offer, ranking.Options{Recompute: p.Recompute})
}

type runPipelineParams struct {
	AutoMerge *bool `json:"auto_merge"`
	Recompute bool  `json:"recompute"`
	Limit     *int  `json:"limit"`
}

func (s *Server) handleRunPipeline(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p runPipelineParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if s.runner == nil {
		return nil, fmt.Errorf("pipeline runs are not available")
	}

	opts := pipeline.OptionsFromConfig(s.cfg)
	if p.AutoMerge != nil {
		opts.AutoMerge = *p.AutoMerge
	}
	if p.Limit != nil {
		opts.Limit = *p.Limit
	}
	opts.Recompute = p.Recompute

	run, err := s.runner.Run(ctx, opts)
	// the run changed keywords and offers behind the shared analyzer
	s.analyzer.Invalidate()
	if err != nil {
		return nil, err
	}
	return run, nil
}

type listRunsParams struct {
	Limit int `json:"limit"`
}

func (s *Server) handleListRuns(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p listRunsParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}

	runs, err := s.res.DB.ListPipelineRuns(ctx, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if len(runs) == 0 {
		return "No pipeline runs yet.", nil
	}
	return runs, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
