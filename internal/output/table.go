package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/vijay-prabhu/jobrank/internal/database"
	"github.com/vijay-prabhu/jobrank/internal/dedupe"
	"github.com/vijay-prabhu/jobrank/internal/feedback"
	"github.com/vijay-prabhu/jobrank/internal/pipeline"
	"github.com/vijay-prabhu/jobrank/internal/ranking"
)

const titleWidth = 40

// Table writes data as a formatted table to stdout
func Table(data interface{}) error {
	return TableTo(os.Stdout, data)
}

// TableTo writes data as a formatted table to the given writer
func TableTo(w io.Writer, data interface{}) error {
	switch v := data.(type) {
	case []database.DuplicateLink:
		return linksTable(w, v)
	case *database.DuplicateStats:
		return duplicateStats(w, v)
	case *database.MergeResult:
		return mergeDetail(w, v)
	case *dedupe.DetectResult:
		return detectSummary(w, v)
	case *dedupe.AutoMergeResult:
		return autoMergeSummary(w, v)
	case []database.FeedbackConfig:
		return feedbackConfigTable(w, v)
	case []database.KeywordWeight:
		return keywordsTable(w, v)
	case *feedback.AnalysisResult:
		return analysisSummary(w, v)
	case *feedback.Suggestions:
		return suggestionsTable(w, v)
	case *ranking.Result:
		return rankingDetail(w, v)
	case *ranking.BatchResult:
		return rankingTable(w, v)
	case *pipeline.RunResult:
		return runSummary(w, v)
	case []database.PipelineRun:
		return runsTable(w, v)
	default:
		return fmt.Errorf("unsupported data type for table output: %T", data)
	}
}

func render(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	h := make([]any, len(header))
	for i, col := range header {
		h[i] = col
	}
	table.Header(h...)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func linksTable(w io.Writer, links []database.DuplicateLink) error {
	if len(links) == 0 {
		fmt.Fprintln(w, "No duplicate links found.")
		return nil
	}

	rows := make([][]string, 0, len(links))
	for _, l := range links {
		rows = append(rows, []string{
			strconv.FormatInt(l.ID, 10),
			fmt.Sprintf("%d %s", l.OriginalOfferID, truncate(l.OriginalTitle, titleWidth)),
			fmt.Sprintf("%d %s", l.DuplicateOfferID, truncate(l.DuplicateTitle, titleWidth)),
			fmt.Sprintf("%.2f", l.SimilarityScore),
			formatDate(l.CreatedAt),
		})
	}
	if err := render(w, []string{"Link", "Original", "Duplicate", "Similarity", "Found"}, rows); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d link(s)\n", len(links))
	return nil
}

func duplicateStats(w io.Writer, s *database.DuplicateStats) error {
	fmt.Fprintln(w, "Duplicate Links")
	fmt.Fprintln(w, "===============")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total:            %d\n", s.Total)
	fmt.Fprintf(w, "High (>= 0.9):    %d\n", s.HighSimilarity)
	fmt.Fprintf(w, "Medium (0.7-0.9): %d\n", s.MediumSimilar)
	fmt.Fprintf(w, "Low (< 0.7):      %d\n", s.LowSimilarity)

	if len(s.BySource) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	rows := make([][]string, 0, len(s.BySource))
	for _, pair := range sortedKeys(s.BySource) {
		rows = append(rows, []string{pair, strconv.Itoa(s.BySource[pair])})
	}
	return render(w, []string{"Sources", "Links"}, rows)
}

func mergeDetail(w io.Writer, r *database.MergeResult) error {
	fmt.Fprintf(w, "Merged offer %d into %d\n", r.DuplicateID, r.OriginalID)
	fmt.Fprintf(w, "  Fields adopted:     %d\n", r.FieldsAdopted)
	fmt.Fprintf(w, "  Skills moved:       %d\n", r.SkillsMoved)
	fmt.Fprintf(w, "  Transport moved:    %d\n", r.TransportMoved)
	fmt.Fprintf(w, "  Applications moved: %d\n", r.ApplicationsMoved)
	fmt.Fprintf(w, "  Board cards moved:  %d\n", r.CardsMoved)
	fmt.Fprintf(w, "  Links removed:      %d\n", r.LinksRemoved)
	return nil
}

func detectSummary(w io.Writer, r *dedupe.DetectResult) error {
	fmt.Fprintf(w, "Offers scanned:  %d\n", r.Offers)
	if r.Buckets > 0 {
		fmt.Fprintf(w, "Shared buckets:  %d\n", r.Buckets)
	}
	fmt.Fprintf(w, "Pairs compared:  %d\n", r.Compared)
	fmt.Fprintf(w, "Links created:   %d\n", r.Created)
	if r.Existing > 0 {
		fmt.Fprintf(w, "Already linked:  %d\n", r.Existing)
	}
	return nil
}

func autoMergeSummary(w io.Writer, r *dedupe.AutoMergeResult) error {
	fmt.Fprintf(w, "Merged:  %d\n", r.Merged)
	fmt.Fprintf(w, "Skipped: %d\n", r.Skipped)
	fmt.Fprintf(w, "Failed:  %d\n", r.Failed)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
	return nil
}

func feedbackConfigTable(w io.Writer, configs []database.FeedbackConfig) error {
	if len(configs) == 0 {
		fmt.Fprintln(w, "No board columns found.")
		return nil
	}

	rows := make([][]string, 0, len(configs))
	for _, c := range configs {
		rows = append(rows, []string{c.ColumnName, string(c.FeedbackType), fmt.Sprintf("%.2f", c.Weight)})
	}
	return render(w, []string{"Column", "Feedback", "Weight"}, rows)
}

func keywordsTable(w io.Writer, keywords []database.KeywordWeight) error {
	if len(keywords) == 0 {
		fmt.Fprintln(w, "No keywords found. Run 'jobrank feedback analyze' first.")
		return nil
	}

	rows := make([][]string, 0, len(keywords))
	for _, k := range keywords {
		rows = append(rows, []string{
			k.Keyword,
			string(k.FeedbackType),
			fmt.Sprintf("%.2f", k.Weight),
			strconv.Itoa(k.Occurrence),
			fmt.Sprintf("%.2f", k.Weight*float64(k.Occurrence)),
		})
	}
	return render(w, []string{"Keyword", "Feedback", "Weight", "Occurrence", "Strength"}, rows)
}

func analysisSummary(w io.Writer, r *feedback.AnalysisResult) error {
	fmt.Fprintf(w, "Columns analyzed: %d\n", r.ColumnsAnalyzed)
	fmt.Fprintf(w, "Cards analyzed:   %d\n", r.CardsAnalyzed)
	fmt.Fprintf(w, "Keywords saved:   %d\n", r.KeywordsSaved)

	if len(r.TopPositive) == 0 && len(r.TopNegative) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	n := max(len(r.TopPositive), len(r.TopNegative))
	rows := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		row := []string{"", ""}
		if i < len(r.TopPositive) {
			row[0] = fmt.Sprintf("%s (%d)", r.TopPositive[i].Keyword, r.TopPositive[i].Count)
		}
		if i < len(r.TopNegative) {
			row[1] = fmt.Sprintf("%s (%d)", r.TopNegative[i].Keyword, r.TopNegative[i].Count)
		}
		rows = append(rows, row)
	}
	return render(w, []string{"Positive", "Negative"}, rows)
}

func suggestionsTable(w io.Writer, s *feedback.Suggestions) error {
	if len(s.Suggested) == 0 && len(s.Avoided) == 0 {
		fmt.Fprintln(w, "No suggestions yet. Run 'jobrank feedback analyze' first.")
		return nil
	}

	rows := make([][]string, 0, len(s.Suggested)+len(s.Avoided))
	for _, k := range s.Suggested {
		rows = append(rows, []string{"search", k.Keyword, fmt.Sprintf("%.2f", k.Weight), strconv.Itoa(k.Occurrence)})
	}
	for _, k := range s.Avoided {
		rows = append(rows, []string{"avoid", k.Keyword, fmt.Sprintf("%.2f", k.Weight), strconv.Itoa(k.Occurrence)})
	}
	return render(w, []string{"Action", "Keyword", "Weight", "Occurrence"}, rows)
}

func rankingDetail(w io.Writer, r *ranking.Result) error {
	fmt.Fprintf(w, "Offer %d: %s\n", r.OfferID, r.Title)
	if r.Previous != nil {
		fmt.Fprintf(w, "  Previous score: %.1f\n", *r.Previous)
	}
	if r.Signals != nil {
		fmt.Fprintf(w, "  Embedding:      %.2f\n", r.Signals.Embedding)
		fmt.Fprintf(w, "  Skills:         %.2f\n", r.Signals.Skill)
		fmt.Fprintf(w, "  Experience:     %.2f\n", r.Signals.Experience)
		fmt.Fprintf(w, "  Judge:          %.2f\n", r.Signals.Judge)
	}
	fmt.Fprintf(w, "  Base score:     %.1f\n", r.Current)
	fmt.Fprintf(w, "  Feedback:       %.2f\n", r.Feedback)
	fmt.Fprintf(w, "  Final score:    %.1f\n", r.Final)
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
	return nil
}

func rankingTable(w io.Writer, r *ranking.BatchResult) error {
	if len(r.Results) > 0 {
		rows := make([][]string, 0, len(r.Results))
		for _, res := range r.Results {
			prev := "-"
			if res.Previous != nil {
				prev = fmt.Sprintf("%.1f", *res.Previous)
			}
			rows = append(rows, []string{
				strconv.FormatInt(res.OfferID, 10),
				truncate(res.Title, titleWidth),
				prev,
				fmt.Sprintf("%.2f", res.Feedback),
				fmt.Sprintf("%.1f", res.Final),
			})
		}
		if err := render(w, []string{"Offer", "Title", "Previous", "Feedback", "Score"}, rows); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Scored %d of %d offer(s), %d skipped, %d failed\n", r.Scored, r.Total, r.Skipped, r.Failed)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
	return nil
}

func runSummary(w io.Writer, r *pipeline.RunResult) error {
	fmt.Fprintf(w, "Run %s %s in %s\n", r.RunID, r.Status, r.Duration().Round(time.Millisecond))

	rows := [][]string{}
	if r.Detect != nil {
		rows = append(rows, []string{"Duplicate detection", fmt.Sprintf("%d link(s) created", r.Detect.Created)})
	}
	if r.URLDetect != nil {
		rows = append(rows, []string{"URL detection", fmt.Sprintf("%d link(s) created", r.URLDetect.Created)})
	}
	if r.AutoMerge != nil {
		rows = append(rows, []string{"Auto-merge", fmt.Sprintf("%d merged, %d skipped, %d failed",
			r.AutoMerge.Merged, r.AutoMerge.Skipped, r.AutoMerge.Failed)})
	}
	if r.Feedback != nil {
		rows = append(rows, []string{"Feedback", fmt.Sprintf("%d card(s), %d keyword(s)",
			r.Feedback.CardsAnalyzed, r.Feedback.KeywordsSaved)})
	}
	if r.Ranking != nil {
		rows = append(rows, []string{"Scoring", fmt.Sprintf("%d scored, %d skipped, %d failed",
			r.Ranking.Scored, r.Ranking.Skipped, r.Ranking.Failed)})
	}
	if len(rows) > 0 {
		fmt.Fprintln(w)
		if err := render(w, []string{"Step", "Result"}, rows); err != nil {
			return err
		}
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
	return nil
}

func runsTable(w io.Writer, runs []database.PipelineRun) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No pipeline runs recorded.")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		rows = append(rows, []string{
			shortID(r.ID),
			string(r.Status),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			duration,
			strconv.Itoa(r.LinksFound),
			strconv.Itoa(r.Merged),
			strconv.Itoa(r.Scored),
			strconv.Itoa(r.Failed),
		})
	}
	return render(w, []string{"Run", "Status", "Started", "Took", "Links", "Merged", "Scored", "Failed"}, rows)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("Jan 02")
}
