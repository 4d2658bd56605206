package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vijay-prabhu/jobrank/internal/pipeline"
)

var (
	runAutoMerge bool
	runURLs      bool
	runRecompute bool
	runUnscored  bool
	runLimit     int
	runsLimit    int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline once",
	Long: `Run duplicate detection, optional auto-merge, feedback analysis and
scoring as one recorded run.

A failing step is reported and the run continues; database failures and
interrupts end it. Every run is recorded and listed by 'jobrank runs'.

Examples:
  jobrank run
  jobrank run --auto-merge --url
  jobrank run --recompute -o json`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent pipeline runs",
	Args:  cobra.NoArgs,
	RunE:  runListRuns,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runsCmd)

	runCmd.Flags().BoolVar(&runAutoMerge, "auto-merge", false, "merge duplicates above dedupe.auto_merge_threshold")
	runCmd.Flags().BoolVar(&runURLs, "url", false, "also link offers sharing a URL")
	runCmd.Flags().BoolVar(&runRecompute, "recompute", false, "recompute the profile match even when a score is stored")
	runCmd.Flags().BoolVar(&runUnscored, "unscored", false, "only score offers without a score")
	runCmd.Flags().IntVarP(&runLimit, "limit", "n", 0, "maximum offers to score (default: pipeline.batch_limit)")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum runs to show")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	opts := pipeline.OptionsFromConfig(cfg)
	if cmd.Flags().Changed("auto-merge") {
		opts.AutoMerge = runAutoMerge
	}
	if cmd.Flags().Changed("url") {
		opts.DetectURLs = runURLs
	}
	if cmd.Flags().Changed("limit") {
		opts.Limit = runLimit
	}
	opts.Recompute = runRecompute
	opts.Unscored = runUnscored

	terminal := NewTerminal()
	progress := newProgressPrinter(terminal)
	opts.Progress = progress.print

	result, err := pipeline.NewRunner(cfg, log).Run(cmd.Context(), opts)

	// Clear progress line
	terminal.ClearLine()

	if result != nil {
		if rerr := render(result); rerr != nil {
			return rerr
		}
	}
	if err != nil {
		return fmt.Errorf("pipeline run failed: %w", err)
	}
	return nil
}

func runListRuns(cmd *cobra.Command, args []string) error {
	_, log, res, err := openStore()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer res.Close()

	runs, err := res.DB.ListPipelineRuns(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}
	return render(runs)
}
