// Package scheduler triggers pipeline runs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vijay-prabhu/jobrank/internal/logger"
)

// RunFunc performs one scheduled run
type RunFunc func(ctx context.Context) error

// Scheduler runs a RunFunc on a schedule, one run at a time. A tick that fires
// while a run is still in progress is skipped.
type Scheduler struct {
	cron *cron.Cron
	spec string
	run  RunFunc
	log  *zap.Logger
	ctx  context.Context
}

// New parses spec (standard five-field cron or a descriptor such as "@every 6h")
// and prepares a scheduler for run
func New(spec string, run RunFunc, log *zap.Logger) (*Scheduler, error) {
	log = logger.OrNop(log)
	s := &Scheduler{spec: spec, run: run, log: log, ctx: context.Background()}

	s.cron = cron.New(cron.WithChain(
		cron.Recover(cronLogger{log}),
		cron.SkipIfStillRunning(cronLogger{log}),
	))
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is canceled, then waits for an
// in-flight run to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()

	if entries := s.cron.Entries(); len(entries) > 0 {
		s.log.Info("scheduler started", zap.String("spec", s.spec), zap.Time("next", entries[0].Next))
	}

	<-ctx.Done()
	s.log.Info("scheduler stopping")
	<-s.cron.Stop().Done()
	return nil
}

func (s *Scheduler) tick() {
	if s.ctx.Err() != nil {
		return
	}

	s.log.Info("scheduled run starting")
	if err := s.run(s.ctx); err != nil {
		s.log.Error("scheduled run failed", zap.Error(err))
		return
	}
	s.log.Info("scheduled run finished")
}

// cronLogger adapts zap to the cron.Logger interface
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
