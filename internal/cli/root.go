package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vijay-prabhu/jobrank/internal/config"
	"github.com/vijay-prabhu/jobrank/internal/logger"
	"github.com/vijay-prabhu/jobrank/internal/output"
	"github.com/vijay-prabhu/jobrank/internal/pipeline"
)

var (
	// Version info set from main
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"

	// Global flags
	configPath string
	outputFmt  string
	debugLog   bool
	jsonLog    bool
)

// SetVersionInfo sets version information from build flags
func SetVersionInfo(v, c, b string) {
	version = v
	commit = c
	buildTime = b
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "jobrank",
	Short: "Deduplicate and rank scraped job offers",
	Long: `jobrank keeps a scraped job offer database clean and ranked.

It provides:
  - Duplicate detection and atomic merging of re-posted offers
  - Match scoring against your profile (embeddings, skills, experience, LLM judge)
  - Learning from the board columns you sort offers into
  - Scheduled pipeline runs`,
	SilenceUsage: true,
}

// Execute runs the root command. Interrupt and SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default: ~/.config/jobrank/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table",
		"output format (table, json, jsonl)")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "log-json", false, "write logs as JSON")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

func initConfig() {
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}
		configPath = filepath.Join(home, ".config", "jobrank", "config.toml")
	}
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("jobrank %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", buildTime)
	},
}

// setup loads the configuration and builds the logger. Flags override the
// logging section of the config file.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(jsonLog || cfg.Logging.JSON, debugLog || cfg.Logging.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}

// openStore is setup plus the database
func openStore() (*config.Config, *zap.Logger, *pipeline.Resources, error) {
	cfg, log, err := setup()
	if err != nil {
		return nil, nil, nil, err
	}

	res, err := pipeline.OpenStore(cfg)
	if err != nil {
		log.Sync()
		return nil, nil, nil, err
	}
	return cfg, log, res, nil
}

func render(data interface{}) error {
	return output.Output(outputFmt, data)
}

func parseID(arg, name string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", name, arg)
	}
	return id, nil
}

// confirm asks a yes/no question on the terminal. It returns false when the
// user declines or input is not interactive.
func confirm(label string) bool {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := prompt.Run()
	return err == nil
}
