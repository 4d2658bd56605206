package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vijay-prabhu/jobrank/internal/feedback"
	"github.com/vijay-prabhu/jobrank/internal/pipeline"
	"github.com/vijay-prabhu/jobrank/internal/ranking"
)

var (
	scoreOfferID   int64
	scoreLimit     int
	scoreRecompute bool
	scoreUnscored  bool
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score offers against your profile and feedback",
	Long: `Score offers against your profile and board feedback.

Offers that already have a score keep it as their base unless --recompute is
given; the base is then blended with the feedback score and stored.

Examples:
  jobrank score                   # Rank every offer
  jobrank score --unscored        # Only offers without a score
  jobrank score --offer 42 --recompute`,
	Args: cobra.NoArgs,
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().Int64Var(&scoreOfferID, "offer", 0, "score a single offer")
	scoreCmd.Flags().IntVarP(&scoreLimit, "limit", "n", 0, "maximum offers to score (0 = all)")
	scoreCmd.Flags().BoolVar(&scoreRecompute, "recompute", false, "recompute the profile match even when a score is stored")
	scoreCmd.Flags().BoolVar(&scoreUnscored, "unscored", false, "only offers without a score")
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	res, err := pipeline.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer res.Close()

	base, err := pipeline.NewBaseScorer(ctx, cfg, res, log)
	if err != nil {
		return err
	}
	if base == nil {
		fmt.Println("No user profile found: only offers with a stored score will be ranked.")
	}

	analyzer := feedback.New(res.DB, feedback.OptionsFromConfig(cfg.Feedback), log)
	agg, err := ranking.New(res.DB, base, analyzer, cfg.Scoring.Blend, log)
	if err != nil {
		return err
	}

	opts := ranking.Options{
		Recompute: scoreRecompute,
		Unscored:  scoreUnscored,
		Limit:     scoreLimit,
	}

	if cmd.Flags().Changed("offer") {
		offer, err := res.DB.GetOffer(ctx, scoreOfferID)
		if err != nil {
			return err
		}
		if offer == nil {
			return fmt.Errorf("offer %d not found", scoreOfferID)
		}
		result, err := agg.Update(ctx, offer, opts)
		if err != nil {
			return fmt.Errorf("scoring failed: %w", err)
		}
		return render(result)
	}

	terminal := NewTerminal()
	progress := newProgressPrinter(terminal)
	opts.Progress = func(current, total int) {
		progress.print(pipeline.Progress{
			Phase:       pipeline.PhaseScoring,
			Current:     current,
			Total:       total,
			Description: "Scoring offers",
		})
	}

	result, err := agg.UpdateAll(ctx, opts)
	terminal.ClearLine()
	if err != nil {
		return fmt.Errorf("scoring failed: %w", err)
	}
	return render(result)
}
