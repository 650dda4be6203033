package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/NewsGoat/internal/config"
)

var (
	cronSpec   string
	runAtStart bool
)

// scheduleCmd creates the "schedule" subcommand that crawls on a cron spec.
func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the crawl periodically on a cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := loadRuntime()
			if err != nil {
				return err
			}
			defer closeLog()
			if cronSpec != "" {
				cfg.Schedule.Cron = cronSpec
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := newScheduler(ctx, cfg, logger)
			if err != nil {
				return err
			}
			if runAtStart {
				go s.runJob()
			}
			s.cron.Start()
			logger.Info("scheduler started", "cron", cfg.Schedule.Cron)

			<-ctx.Done()
			logger.Info("scheduler stopping")
			<-s.cron.Stop().Done()
			s.running.Wait()
			return nil
		},
	}
	addRunFlags(cmd)
	cmd.Flags().StringVar(&cronSpec, "cron", "", "cron spec (default from config schedule.cron)")
	cmd.Flags().BoolVar(&runAtStart, "now", false, "also run once immediately")
	return cmd
}

type scheduler struct {
	ctx     context.Context
	cfg     *config.Config
	cron    *cron.Cron
	logger  *slog.Logger
	mu      sync.Mutex
	busy    bool
	running sync.WaitGroup
}

func newScheduler(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*scheduler, error) {
	s := &scheduler{
		ctx:    ctx,
		cfg:    cfg,
		cron:   cron.New(),
		logger: logger.With("component", "scheduler"),
	}
	if _, err := s.cron.AddFunc(cfg.Schedule.Cron, s.runJob); err != nil {
		return nil, fmt.Errorf("schedule.cron %q: %w", cfg.Schedule.Cron, err)
	}
	return s, nil
}

// runJob runs one crawl. A tick that arrives while a crawl is still
// running is skipped.
func (s *scheduler) runJob() {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		s.logger.Warn("previous crawl still running, skipping tick")
		return
	}
	s.busy = true
	s.running.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
		s.running.Done()
	}()

	s.logger.Info("scheduled crawl starting")
	if err := runOnce(s.ctx, s.cfg, s.logger); err != nil {
		s.logger.Error("scheduled crawl failed", "error", err)
	}
}
