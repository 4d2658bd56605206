package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/vijay-prabhu/jobrank/internal/database"
)

// Resource defines an MCP resource
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

const (
	uriDuplicates = "jobrank://duplicates"
	uriKeywords   = "jobrank://keywords"
	uriRuns       = "jobrank://runs"
)

// ResourceDefinitions lists all available resources
var ResourceDefinitions = []Resource{
	{
		URI:         uriDuplicates,
		Name:        "Duplicate Summary",
		Description: "Duplicate link counts by similarity band and source",
		MimeType:    "text/plain",
	},
	{
		URI:         uriKeywords,
		Name:        "Keyword Suggestions",
		Description: "Keywords to search for and to avoid, learned from the board",
		MimeType:    "text/plain",
	},
	{
		URI:         uriRuns,
		Name:        "Recent Runs",
		Description: "Last 10 pipeline runs",
		MimeType:    "text/plain",
	},
}

// resourcesListResult is the response for resources/list
type resourcesListResult struct {
	Resources []Resource `json:"resources"`
}

// readResourceParams is the params for resources/read
type readResourceParams struct {
	URI string `json:"uri"`
}

// readResourceResult is the response for resources/read
type readResourceResult struct {
	Contents []resourceContent `json:"contents"`
}

type resourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}

func (s *Server) readResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case uriDuplicates:
		return s.duplicatesSummary(ctx)
	case uriKeywords:
		return s.keywordSummary(ctx)
	case uriRuns:
		return s.runsSummary(ctx)
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

func (s *Server) duplicatesSummary(ctx context.Context) (string, error) {
	stats, err := s.detector.Stats(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Duplicate links: %d\n", stats.Total)
	fmt.Fprintf(&b, "  high (>= 0.9):      %d\n", stats.HighSimilarity)
	fmt.Fprintf(&b, "  medium (0.7-0.9):   %d\n", stats.MediumSimilar)
	fmt.Fprintf(&b, "  low (< 0.7):        %d\n", stats.LowSimilarity)
	if len(stats.BySource) > 0 {
		b.WriteString("By source:\n")
		for _, source := range sortedKeys(stats.BySource) {
			fmt.Fprintf(&b, "  %s: %d\n", source, stats.BySource[source])
		}
	}
	return b.String(), nil
}

func (s *Server) keywordSummary(ctx context.Context) (string, error) {
	suggestions, err := s.analyzer.Suggest(ctx)
	if err != nil {
		return "", err
	}
	if len(suggestions.Suggested) == 0 && len(suggestions.Avoided) == 0 {
		return "No feedback keywords yet. Sort offers on the board and run analyze_feedback.", nil
	}

	var b strings.Builder
	writeKeywords(&b, "Search for", suggestions.Suggested)
	writeKeywords(&b, "Avoid", suggestions.Avoided)
	return b.String(), nil
}

func writeKeywords(b *strings.Builder, title string, keywords []database.KeywordWeight) {
	fmt.Fprintf(b, "%s:\n", title)
	for _, k := range keywords {
		fmt.Fprintf(b, "  %-24s %.2f\n", k.Keyword, k.Weight)
	}
}

func (s *Server) runsSummary(ctx context.Context) (string, error) {
	runs, err := s.res.DB.ListPipelineRuns(ctx, 10)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "No pipeline runs yet.", nil
	}

	var b strings.Builder
	for _, r := range runs {
		fmt.Fprintf(&b, "%s  %-9s links=%d merged=%d scored=%d failed=%d",
			r.StartedAt.Format("2006-01-02 15:04"), r.Status, r.LinksFound, r.Merged, r.Scored, r.Failed)
		if r.Error != "" {
			fmt.Fprintf(&b, "  error: %s", r.Error)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}
