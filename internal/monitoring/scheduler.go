package monitoring

import (
	"context"
	"fmt"
	"sync"

	"github.com/isdelr/ender-world-manager/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// SchedulerOptions configures the scheduled backup job.
type SchedulerOptions struct {
	Spec       string // Standard five-field cron expression
	Retention  int    // Archives kept per world, 0 keeps all
	AutoUpload bool   // Push each scheduled archive to remote storage
}

// Scheduler runs backups of the active world on a cron schedule.
type Scheduler struct {
	opts      SchedulerOptions
	worldSvc  services.WorldServiceProvider
	backupSvc services.BackupServiceProvider
	syncSvc   services.SyncServiceProvider
	eventSvc  services.EventServiceProvider
	cron      *cron.Cron
	running   sync.Mutex
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(opts SchedulerOptions, worldSvc services.WorldServiceProvider, backupSvc services.BackupServiceProvider, syncSvc services.SyncServiceProvider, eventSvc services.EventServiceProvider) *Scheduler {
	return &Scheduler{
		opts:      opts,
		worldSvc:  worldSvc,
		backupSvc: backupSvc,
		syncSvc:   syncSvc,
		eventSvc:  eventSvc,
	}
}

// Start registers the backup job and starts the cron runner.
func (s *Scheduler) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.opts.Spec, s.runOnce); err != nil {
		return fmt.Errorf("invalid backup schedule %q: %w", s.opts.Spec, err)
	}
	s.cron.Start()

	next := s.cron.Entries()[0].Next
	log.Info().Str("schedule", s.opts.Spec).Time("next_run", next).Msg("Starting backup scheduler...")
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Stopping backup scheduler.")
}

// runOnce is the cron job body. Overlapping runs are skipped.
func (s *Scheduler) runOnce() {
	if !s.running.TryLock() {
		log.Warn().Msg("Scheduler: Previous scheduled backup still running, skipping")
		return
	}
	defer s.running.Unlock()

	// Backup and upload enforce their own timeouts.
	if err := s.Execute(context.Background()); err != nil {
		log.Error().Err(err).Msg("Scheduler: Scheduled backup failed")
	}
}

// Execute backs up the active world, prunes old archives and uploads the new
// one as configured.
func (s *Scheduler) Execute(ctx context.Context) error {
	world := s.worldSvc.ActiveWorld()
	log.Info().Str("world", world).Msg("Scheduler: Executing scheduled backup")

	result, err := s.backupSvc.CreateBackup(ctx, world)
	if err != nil {
		msg := fmt.Sprintf("Scheduled backup of world '%s' failed: %s", world, services.UserMessage(err))
		s.eventSvc.CreateEvent("schedule.execute.fail", "error", msg, &world)
		return err
	}

	if s.opts.Retention > 0 {
		if _, err := s.backupSvc.PruneBackups(world, s.opts.Retention); err != nil {
			log.Error().Err(err).Str("world", world).Msg("Scheduler: Failed to prune old backups")
		}
	}

	if s.opts.AutoUpload {
		if !s.syncSvc.Status().Configured {
			log.Warn().Msg("Scheduler: Auto upload enabled but remote storage is not configured")
		} else if _, err := s.syncSvc.Upload(ctx, result.Filename); err != nil {
			return err
		}
	}

	msg := fmt.Sprintf("Scheduled backup of world '%s' completed: %s.", world, result.Filename)
	s.eventSvc.CreateEvent("schedule.execute.success", "info", msg, &world)
	return nil
}
