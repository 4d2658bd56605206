package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/vijay-prabhu/jobrank/internal/database"
	"github.com/vijay-prabhu/jobrank/internal/dedupe"
	"github.com/vijay-prabhu/jobrank/internal/feedback"
	"github.com/vijay-prabhu/jobrank/internal/pipeline"
	"github.com/vijay-prabhu/jobrank/internal/ranking"
)

func TestJSONTo(t *testing.T) {
	var buf bytes.Buffer
	if err := JSONTo(&buf, &dedupe.DetectResult{Offers: 3, Created: 1}); err != nil {
		t.Fatalf("JSONTo failed: %v", err)
	}

	var got map[string]int
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if got["offers"] != 3 || got["created"] != 1 {
		t.Errorf("unexpected JSON: %v", got)
	}
}

func TestJSONLinesTo(t *testing.T) {
	var buf bytes.Buffer
	runs := []database.PipelineRun{{ID: "a", Status: database.RunSucceeded}, {ID: "b", Status: database.RunFailed}}
	if err := JSONLinesTo(&buf, runs); err != nil {
		t.Fatalf("JSONLinesTo failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	var first database.PipelineRun
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil || first.ID != "a" {
		t.Errorf("unexpected first line %q (%v)", lines[0], err)
	}

	buf.Reset()
	if err := JSONLinesTo(&buf, &dedupe.DetectResult{Offers: 2}); err != nil {
		t.Fatalf("JSONLinesTo failed: %v", err)
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Errorf("non-slice data should be one line, got %q", buf.String())
	}
}

func TestOutputToUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := OutputTo(&buf, "xml", []database.PipelineRun{}); err == nil {
		t.Error("expected error for unknown format")
	}
	if err := OutputTo(&buf, FormatTable, struct{}{}); err == nil {
		t.Error("expected error for unsupported table type")
	}
}

func TestTableTo(t *testing.T) {
	now := time.Now()
	finished := now.Add(2 * time.Second)

	tests := []struct {
		name string
		data interface{}
		want []string
	}{
		{
			name: "links",
			data: []database.DuplicateLink{{ID: 7, OriginalOfferID: 1, DuplicateOfferID: 2,
				SimilarityScore: 0.93, OriginalTitle: "Backend Dev", DuplicateTitle: "Backend Dev", CreatedAt: now}},
			want: []string{"Backend Dev", "0.93", "1 link(s)"},
		},
		{
			name: "no links",
			data: []database.DuplicateLink{},
			want: []string{"No duplicate links found."},
		},
		{
			name: "stats",
			data: &database.DuplicateStats{Total: 3, HighSimilarity: 2, LowSimilarity: 1,
				BySource: map[string]int{"indeed-linkedin": 3}},
			want: []string{"Total:            3", "indeed-linkedin"},
		},
		{
			name: "merge",
			data: &database.MergeResult{OriginalID: 1, DuplicateID: 2, CardsMoved: 1},
			want: []string{"Merged offer 2 into 1", "Board cards moved:  1"},
		},
		{
			name: "keywords",
			data: []database.KeywordWeight{{Keyword: "golang", Weight: 0.8, Occurrence: 5,
				FeedbackType: database.FeedbackPositive}},
			want: []string{"golang", "positive", "4.00"},
		},
		{
			name: "analysis",
			data: &feedback.AnalysisResult{CardsAnalyzed: 2,
				TopNegative: []feedback.KeywordCount{{Keyword: "junior", Count: 1}}},
			want: []string{"Cards analyzed:   2", "junior (1)"},
		},
		{
			name: "suggestions",
			data: &feedback.Suggestions{Suggested: []database.KeywordWeight{{Keyword: "golang", Weight: 1}}},
			want: []string{"search", "golang"},
		},
		{
			name: "ranking batch",
			data: &ranking.BatchResult{Total: 2, Scored: 1, Skipped: 1,
				Results: []ranking.Result{{OfferID: 4, Title: "SRE", Final: 72.5, Feedback: 0.5}}},
			want: []string{"SRE", "72.5", "Scored 1 of 2 offer(s), 1 skipped, 0 failed"},
		},
		{
			name: "run",
			data: &pipeline.RunResult{RunID: "abc", Status: database.RunSucceeded, StartedAt: now, FinishedAt: finished,
				Ranking: &ranking.BatchResult{Scored: 3}, Errors: []string{"detect: boom"}},
			want: []string{"Run abc succeeded", "3 scored", "detect: boom"},
		},
		{
			name: "runs",
			data: []database.PipelineRun{{ID: "0123456789abcdef", Status: database.RunFailed, StartedAt: now, FinishedAt: &finished}},
			want: []string{"01234567", "failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := TableTo(&buf, tt.data); err != nil {
				t.Fatalf("TableTo failed: %v", err)
			}
			out := buf.String()
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestTableToUnsupported(t *testing.T) {
	if err := TableTo(&bytes.Buffer{}, 42); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Senior Backend Engineer", 10); got != "Senior ..." {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("SRE", 10); got != "SRE" {
		t.Errorf("truncate() = %q", got)
	}
}
