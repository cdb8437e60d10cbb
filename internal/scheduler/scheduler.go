package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/grainloss/internal/config"
	"github.com/mamadbah2/grainloss/internal/service/whatsapp"
)

const jobTimeout = 2 * time.Minute

// Reporter builds the scheduled messages.
type Reporter interface {
	WeeklyDigest(ctx context.Context, now time.Time) (string, error)
	FumigationAlert(ctx context.Context) (string, bool, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	reporter Reporter
	notifier whatsapp.Notifier
	cfg      config.SchedulerConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewScheduler creates a new scheduler running in the configured timezone.
func NewScheduler(cfg config.SchedulerConfig, reporter Reporter, notifier whatsapp.Notifier, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load scheduler timezone: %w", err)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		reporter: reporter,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().In(loc) },
	}, nil
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler",
		zap.String("fumigation_cron", s.cfg.FumigationCron),
		zap.String("digest_cron", s.cfg.DigestCron))

	if _, err := s.cron.AddFunc(s.cfg.FumigationCron, s.runJob("fumigation sweep", s.SendFumigationAlerts)); err != nil {
		return fmt.Errorf("schedule fumigation sweep: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.DigestCron, s.runJob("weekly digest", s.SendWeeklyDigest)); err != nil {
		return fmt.Errorf("schedule weekly digest: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

// SendWeeklyDigest builds and broadcasts the weekly loss digest.
func (s *Scheduler) SendWeeklyDigest(ctx context.Context) error {
	digest, err := s.reporter.WeeklyDigest(ctx, s.now())
	if err != nil {
		return fmt.Errorf("generate weekly digest: %w", err)
	}
	return s.notifier.Broadcast(ctx, digest)
}

// SendFumigationAlerts broadcasts the silos needing gasification, if any.
func (s *Scheduler) SendFumigationAlerts(ctx context.Context) error {
	msg, send, err := s.reporter.FumigationAlert(ctx)
	if err != nil {
		return fmt.Errorf("evaluate fumigation: %w", err)
	}
	if !send {
		s.logger.Info("no silo needs fumigation")
		return nil
	}
	return s.notifier.Broadcast(ctx, msg)
}

func (s *Scheduler) runJob(name string, job func(context.Context) error) func() {
	return func() {
		s.logger.Info("running job", zap.String("job", name))
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if err := job(ctx); err != nil {
			s.logger.Error("job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.logger.Info("job completed", zap.String("job", name))
	}
}
