package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vijay-prabhu/jobrank/internal/logger"
	"github.com/vijay-prabhu/jobrank/internal/pipeline"
	"github.com/vijay-prabhu/jobrank/internal/scheduler"
)

var scheduleSpec string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline on a cron schedule",
	Long: `Run the pipeline on a cron schedule until interrupted.

The schedule is a standard five-field cron expression or a descriptor such as
"@every 6h" or "@daily". A run that is still going when the next one is due
makes that tick be skipped.

Examples:
  jobrank schedule                       # Use schedule.spec from the config
  jobrank schedule --spec "0 */4 * * *"`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().StringVar(&scheduleSpec, "spec", "", "cron schedule (default: schedule.spec)")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	spec := cfg.Schedule.Spec
	if scheduleSpec != "" {
		spec = scheduleSpec
	}
	if spec == "" {
		return fmt.Errorf("no schedule: set schedule.spec in %s or pass --spec", configPath)
	}

	runner := pipeline.NewRunner(cfg, log)
	opts := pipeline.OptionsFromConfig(cfg)

	s, err := scheduler.New(spec, func(ctx context.Context) error {
		result, err := runner.Run(ctx, opts)
		if result != nil {
			log.Info("run summary",
				logger.Run(result.RunID),
				zap.String("status", string(result.Status)),
				zap.Int("step_errors", len(result.Errors)),
			)
		}
		return err
	}, log)
	if err != nil {
		return err
	}

	fmt.Printf("Scheduling pipeline runs (%s). Press Ctrl+C to stop.\n", spec)
	return s.Run(cmd.Context())
}
