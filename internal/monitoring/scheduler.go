package monitoring

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const maintenanceTimeout = 30 * time.Second

// Scheduler runs periodic storage maintenance on a cron schedule.
type Scheduler struct {
	db   *sql.DB
	cron *cron.Cron
}

// NewScheduler creates a scheduler running maintenance on schedule, a standard
// cron expression or descriptor such as "@hourly". An empty schedule yields a
// scheduler with no jobs.
func NewScheduler(db *sql.DB, schedule string) (*Scheduler, error) {
	s := &Scheduler{db: db, cron: cron.New()}
	if schedule == "" {
		return s, nil
	}
	if _, err := s.cron.AddFunc(schedule, s.runMaintenance); err != nil {
		return nil, fmt.Errorf("invalid maintenance schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Run starts the scheduler in its own goroutine.
func (s *Scheduler) Run() {
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("Starting maintenance scheduler...")
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Stopped maintenance scheduler.")
}

// Maintain lets SQLite refresh its query planner statistics.
func (s *Scheduler) Maintain(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("optimize failed: %w", err)
	}
	return nil
}

func (s *Scheduler) runMaintenance() {
	ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
	defer cancel()

	start := time.Now()
	if err := s.Maintain(ctx); err != nil {
		log.Error().Err(err).Msg("Scheduled maintenance failed")
		return
	}
	log.Info().Dur("took", time.Since(start)).Msg("Scheduled maintenance completed")
}
