package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vijay-prabhu/jobrank/internal/database"
	"github.com/vijay-prabhu/jobrank/internal/feedback"
)

var (
	keywordsType  string
	keywordsLimit int
	suggestApply  bool
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Learn from how offers are sorted on the board",
	Long: `Learn from how offers are sorted on the board.

Each board column carries a polarity (positive, negative or neutral) and a
weight. Analysis mines keywords from the offers sitting in weighted columns
and uses them to score new offers.`,
}

var feedbackAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Mine keywords from board columns",
	Args:  cobra.NoArgs,
	RunE:  runFeedbackAnalyze,
}

var feedbackConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change column polarities",
}

var feedbackConfigListCmd = &cobra.Command{
	Use:   "list",
	Short: "List column polarities and weights",
	Args:  cobra.NoArgs,
	RunE:  runFeedbackConfigList,
}

var feedbackConfigSetCmd = &cobra.Command{
	Use:   "set <column> <positive|negative|neutral> <weight>",
	Short: "Set the polarity and weight of a column",
	Long: `Set the polarity and weight of a board column.

The column name is matched case-insensitively. Weights are clamped to [0,1].

Examples:
  jobrank feedback config set "Applied" positive 0.8
  jobrank feedback config set rejected negative 1`,
	Args: cobra.ExactArgs(3),
	RunE: runFeedbackConfigSet,
}

var feedbackKeywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "List mined keywords",
	Args:  cobra.NoArgs,
	RunE:  runFeedbackKeywords,
}

var feedbackSuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest search keywords from feedback",
	Long: `Suggest keywords to search for and keywords to avoid.

With --apply the suggestions are stored as search keywords for the scraper.`,
	Args: cobra.NoArgs,
	RunE: runFeedbackSuggest,
}

var feedbackScoreCmd = &cobra.Command{
	Use:   "score <offer-id>",
	Short: "Show the feedback score of one offer",
	Args:  cobra.ExactArgs(1),
	RunE:  runFeedbackScore,
}

func init() {
	rootCmd.AddCommand(feedbackCmd)
	feedbackCmd.AddCommand(feedbackAnalyzeCmd)
	feedbackCmd.AddCommand(feedbackConfigCmd)
	feedbackConfigCmd.AddCommand(feedbackConfigListCmd)
	feedbackConfigCmd.AddCommand(feedbackConfigSetCmd)
	feedbackCmd.AddCommand(feedbackKeywordsCmd)
	feedbackCmd.AddCommand(feedbackSuggestCmd)
	feedbackCmd.AddCommand(feedbackScoreCmd)

	feedbackKeywordsCmd.Flags().StringVar(&keywordsType, "type", "", "only keywords of this polarity (positive, negative)")
	feedbackKeywordsCmd.Flags().IntVar(&keywordsLimit, "limit", 50, "maximum keywords to show")
	feedbackSuggestCmd.Flags().BoolVar(&suggestApply, "apply", false, "store suggestions as search keywords")
}

func runFeedbackAnalyze(cmd *cobra.Command, args []string) error {
	cfg, log, res, err := openStore()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer res.Close()

	analyzer := feedback.New(res.DB, feedback.OptionsFromConfig(cfg.Feedback), log)
	result, err := analyzer.Analyze(cmd.Context())
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	return render(result)
}

func runFeedbackConfigList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, log, res, err := openStore()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer res.Close()

	analyzer := feedback.New(res.DB, feedback.OptionsFromConfig(cfg.Feedback), log)
	if _, err := analyzer.EnsureConfig(ctx); err != nil {
		return err
	}
	configs, err := analyzer.Configs(ctx)
	if err != nil {
		return err
	}
	return render(configs)
}

func runFeedbackConfigSet(cmd *cobra.Command, args []string) error {
	weight, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("invalid weight %q: %w", args[2], err)
	}
	t := database.FeedbackType(strings.ToLower(args[1]))

	cfg, log, res, err := openStore()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer res.Close()

	analyzer := feedback.New(res.DB, feedback.OptionsFromConfig(cfg.Feedback), log)
	updated, err := analyzer.UpdateConfig(cmd.Context(), args[0], t, weight)
	if err != nil {
		return err
	}
	return render([]database.FeedbackConfig{*updated})
}

func runFeedbackKeywords(cmd *cobra.Command, args []string) error {
	var t *database.FeedbackType
	if keywordsType != "" {
		ft := database.FeedbackType(strings.ToLower(keywordsType))
		t = &ft
	}

	cfg, log, res, err := openStore()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer res.Close()

	analyzer := feedback.New(res.DB, feedback.OptionsFromConfig(cfg.Feedback), log)
	keywords, err := analyzer.Keywords(cmd.Context(), t, keywordsLimit)
	if err != nil {
		return err
	}
	return render(keywords)
}

func runFeedbackSuggest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, log, res, err := openStore()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer res.Close()

	analyzer := feedback.New(res.DB, feedback.OptionsFromConfig(cfg.Feedback), log)
	suggestions, err := analyzer.Suggest(ctx)
	if err != nil {
		return err
	}
	if err := render(suggestions); err != nil {
		return err
	}

	if suggestApply {
		written, err := analyzer.ApplySuggestions(ctx)
		if err != nil {
			return fmt.Errorf("failed to store search keywords: %w", err)
		}
		fmt.Printf("\nStored %d search keywords.\n", written)
	}
	return nil
}

func runFeedbackScore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := parseID(args[0], "offer id")
	if err != nil {
		return err
	}

	cfg, log, res, err := openStore()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer res.Close()

	offer, err := res.DB.GetOffer(ctx, id)
	if err != nil {
		return err
	}
	if offer == nil {
		return fmt.Errorf("offer %d not found", id)
	}

	analyzer := feedback.New(res.DB, feedback.OptionsFromConfig(cfg.Feedback), log)
	score, err := analyzer.Score(ctx, feedback.OfferText(offer))
	if err != nil {
		return err
	}

	fmt.Printf("Offer %d: feedback score %.2f\n", id, score)
	return nil
}
