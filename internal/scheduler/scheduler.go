package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/config"
	"github.com/mamadbah2/fieldtrack/internal/service/reporting"
)

const (
	jobTimeout    = 2 * time.Minute
	sweepSchedule = "@every 10m"
)

// Reporter is the reporting work run on a schedule.
type Reporter interface {
	SendDigest(ctx context.Context, to string) error
	ExportLedger(ctx context.Context) (int, error)
}

// Sweeper drops expired sessions.
type Sweeper interface {
	Sweep() int
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	reporter Reporter
	sweeper  Sweeper
	cfg      config.ReportingConfig
	logger   *zap.Logger
}

// NewScheduler creates a new scheduler instance running in the configured
// timezone.
func NewScheduler(cfg config.ReportingConfig, reporter Reporter, sweeper Sweeper, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		reporter: reporter,
		sweeper:  sweeper,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Start registers the jobs and starts the scheduler. The digest is skipped
// when no recipient is configured.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler")

	if s.cfg.DigestTo != "" {
		if _, err := s.cron.AddFunc(s.cfg.DigestSchedule, s.sendDigest); err != nil {
			return fmt.Errorf("schedule digest: %w", err)
		}
	} else {
		s.logger.Info("digest recipient not set, daily digest disabled")
	}

	if _, err := s.cron.AddFunc(s.cfg.ExportSchedule, s.exportLedger); err != nil {
		return fmt.Errorf("schedule ledger export: %w", err)
	}

	if s.sweeper != nil {
		if _, err := s.cron.AddFunc(sweepSchedule, s.sweepSessions); err != nil {
			return fmt.Errorf("schedule session sweep: %w", err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) sendDigest() {
	s.logger.Info("sending overdue digest")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.reporter.SendDigest(ctx, s.cfg.DigestTo); err != nil {
		s.logger.Error("failed to send overdue digest", zap.Error(err))
	}
}

func (s *Scheduler) exportLedger() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.reporter.ExportLedger(ctx)
	switch {
	case errors.Is(err, reporting.ErrExportDisabled):
		s.logger.Debug("ledger export not configured")
	case err != nil:
		s.logger.Error("failed to export dues ledger", zap.Error(err))
	default:
		s.logger.Info("dues ledger exported", zap.Int("farmers", n))
	}
}

func (s *Scheduler) sweepSessions() {
	if n := s.sweeper.Sweep(); n > 0 {
		s.logger.Debug("expired sessions swept", zap.Int("sessions", n))
	}
}
