package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vijay-prabhu/jobrank/internal/dedupe"
)

var (
	dedupeThreshold float64
	dedupeByURL     bool
	dedupeOfferID   int64
	dedupeYes       bool
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Detect, review and merge duplicate offers",
	Long: `Detect offers that are re-posts of one another and merge them.

Offers are grouped by normalized title, company and location. Within a group
every offer is compared with the oldest one; pairs at or above the threshold
are recorded as duplicate links for review.`,
}

var dedupeDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Find duplicate offers and record links",
	Long: `Find duplicate offers and record links between them.

Running detection again never creates the same link twice.

Examples:
  jobrank dedupe detect
  jobrank dedupe detect --threshold 0.9
  jobrank dedupe detect --url`,
	Args: cobra.NoArgs,
	RunE: runDedupeDetect,
}

var dedupeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List duplicate links",
	Args:  cobra.NoArgs,
	RunE:  runDedupeList,
}

var dedupeMergeCmd = &cobra.Command{
	Use:   "merge <original-id> <duplicate-id>",
	Short: "Merge a duplicate offer into the original",
	Long: `Merge a duplicate offer into the original in a single transaction.

Empty fields of the original are filled from the duplicate, salary bounds,
scrape date and score keep the larger value, and transport info, applications
and board cards move to the original. The duplicate is then deleted.

Examples:
  jobrank dedupe merge 12 57
  jobrank dedupe merge 12 57 --yes`,
	Args: cobra.ExactArgs(2),
	RunE: runDedupeMerge,
}

var dedupeAutoMergeCmd = &cobra.Command{
	Use:   "auto-merge",
	Short: "Merge every linked pair above a threshold",
	Args:  cobra.NoArgs,
	RunE:  runDedupeAutoMerge,
}

var dedupeIgnoreCmd = &cobra.Command{
	Use:   "ignore <link-id>",
	Short: "Dismiss a duplicate link without merging",
	Args:  cobra.ExactArgs(1),
	RunE:  runDedupeIgnore,
}

var dedupeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show duplicate link statistics",
	Args:  cobra.NoArgs,
	RunE:  runDedupeStats,
}

func init() {
	rootCmd.AddCommand(dedupeCmd)
	dedupeCmd.AddCommand(dedupeDetectCmd)
	dedupeCmd.AddCommand(dedupeListCmd)
	dedupeCmd.AddCommand(dedupeMergeCmd)
	dedupeCmd.AddCommand(dedupeAutoMergeCmd)
	dedupeCmd.AddCommand(dedupeIgnoreCmd)
	dedupeCmd.AddCommand(dedupeStatsCmd)

	dedupeDetectCmd.Flags().Float64Var(&dedupeThreshold, "threshold", 0, "minimum similarity (default: dedupe.threshold)")
	dedupeDetectCmd.Flags().BoolVar(&dedupeByURL, "url", false, "also link offers sharing a URL")
	dedupeListCmd.Flags().Int64Var(&dedupeOfferID, "offer", 0, "only links involving this offer")
	dedupeMergeCmd.Flags().BoolVarP(&dedupeYes, "yes", "y", false, "merge without asking")
	dedupeAutoMergeCmd.Flags().Float64Var(&dedupeThreshold, "threshold", 0, "minimum similarity (default: dedupe.auto_merge_threshold)")
	dedupeAutoMergeCmd.Flags().BoolVarP(&dedupeYes, "yes", "y", false, "merge without asking")
}

func runDedupeDetect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, log, res, err := openStore()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer res.Close()

	threshold := cfg.Dedupe.Threshold
	if cmd.Flags().Changed("threshold") {
		threshold = dedupeThreshold
	}

	d := dedupe.New(res.DB, log)
	result, err := d.Detect(ctx, threshold)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	if dedupeByURL {
		byURL, err := d.DetectByURL(ctx)
		if err != nil {
			return fmt.Errorf("url detection failed: %w", err)
		}
		result.Compared += byURL.Compared
		result.Created += byURL.Created
		result.Existing += byURL.Existing
	}

	return render(result)
}

func runDedupeList(cmd *cobra.Command, args []string) error {
	_, log, res, err := openStore()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer res.Close()

	var offerID *int64
	if cmd.Flags().Changed("offer") {
		offerID = &dedupeOfferID
	}

	links, err := dedupe.New(res.DB, log).List(cmd.Context(), offerID)
	if err != nil {
		return err
	}
	return render(links)
}

func runDedupeMerge(cmd *cobra.Command, args []string) error {
	originalID, err := parseID(args[0], "original id")
	if err != nil {
		return err
	}
	duplicateID, err := parseID(args[1], "duplicate id")
	if err != nil {
		return err
	}

	_, log, res, err := openStore()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer res.Close()

	if !dedupeYes && !confirm(fmt.Sprintf("Merge offer %d into %d and delete %d", duplicateID, originalID, duplicateID)) {
		fmt.Println("Merge canceled.")
		return nil
	}

	result, err := dedupe.New(res.DB, log).Merge(cmd.Context(), originalID, duplicateID)
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}
	return render(result)
}

func runDedupeAutoMerge(cmd *cobra.Command, args []string) error {
	cfg, log, res, err := openStore()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer res.Close()

	threshold := cfg.Dedupe.AutoMergeThreshold
	if cmd.Flags().Changed("threshold") {
		threshold = dedupeThreshold
	}

	if !dedupeYes && !confirm(fmt.Sprintf("Merge every duplicate pair with similarity >= %.2f", threshold)) {
		fmt.Println("Auto-merge canceled.")
		return nil
	}

	result, err := dedupe.New(res.DB, log).AutoMerge(cmd.Context(), threshold)
	if err != nil {
		return fmt.Errorf("auto-merge failed: %w", err)
	}
	return render(result)
}

func runDedupeIgnore(cmd *cobra.Command, args []string) error {
	linkID, err := parseID(args[0], "link id")
	if err != nil {
		return err
	}

	_, log, res, err := openStore()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer res.Close()

	if err := dedupe.New(res.DB, log).Ignore(cmd.Context(), linkID); err != nil {
		return err
	}

	fmt.Printf("Link %d dismissed.\n", linkID)
	return nil
}

func runDedupeStats(cmd *cobra.Command, args []string) error {
	_, log, res, err := openStore()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer res.Close()

	stats, err := dedupe.New(res.DB, log).Stats(cmd.Context())
	if err != nil {
		return err
	}
	return render(stats)
}
