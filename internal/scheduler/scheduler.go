package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/bustrack/internal/config"
	"github.com/mamadbah2/bustrack/internal/domain/models"
)

const jobTimeout = 2 * time.Minute

// DigestSender builds and delivers the previous day's digest.
type DigestSender interface {
	SendPreviousDay(ctx context.Context) (*models.DailyDigest, error)
}

// TrackerSweeper marks trackers offline once they stop reporting.
type TrackerSweeper interface {
	MarkStale(ctx context.Context, staleAfter time.Duration) (int64, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	digest   DigestSender
	trackers TrackerSweeper
	cfg      config.Config
	logger   *zap.Logger
}

// NewScheduler creates a new scheduler instance. Cron expressions are
// evaluated in loc.
func NewScheduler(cfg config.Config, digest DigestSender, trackers TrackerSweeper, loc *time.Location, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		digest:   digest,
		trackers: trackers,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler",
		zap.String("digest_schedule", s.cfg.Reporting.CronSchedule),
		zap.String("sweep_schedule", s.cfg.Trackers.SweepSchedule))

	if _, err := s.cron.AddFunc(s.cfg.Reporting.CronSchedule, s.sendDailyDigest); err != nil {
		return fmt.Errorf("schedule daily digest: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.Trackers.SweepSchedule, s.sweepTrackers); err != nil {
		return fmt.Errorf("schedule tracker sweep: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sendDailyDigest() {
	s.logger.Info("generating daily digest")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	digest, err := s.digest.SendPreviousDay(ctx)
	if err != nil {
		s.logger.Error("failed to send daily digest", zap.Error(err))
		return
	}
	s.logger.Info("daily digest sent", zap.String("date", digest.Date))
}

func (s *Scheduler) sweepTrackers() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.trackers.MarkStale(ctx, s.cfg.Trackers.StaleAfter)
	if err != nil {
		s.logger.Error("tracker sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("stale trackers marked offline", zap.Int64("count", n))
	}
}
