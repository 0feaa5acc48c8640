package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Janitor prunes stale session mirrors on a cron schedule. Long-lived
// installs otherwise accumulate mirror files for sessions that will never
// be read again.
type Janitor struct {
	store    Store
	maxAge   time.Duration
	schedule string
	log      zerolog.Logger
	cron     *cron.Cron
}

// NewJanitor creates a janitor pruning data older than maxAge on the given
// cron schedule (e.g. "@hourly").
func NewJanitor(store Store, maxAge time.Duration, schedule string, logger zerolog.Logger) *Janitor {
	if schedule == "" {
		schedule = "@hourly"
	}
	return &Janitor{
		store:    store,
		maxAge:   maxAge,
		schedule: schedule,
		log:      logger,
	}
}

// Start begins scheduled pruning. It returns an error if the schedule does
// not parse.
func (j *Janitor) Start() error {
	c := cron.New()
	_, err := c.AddFunc(j.schedule, func() {
		j.RunOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("parse janitor schedule %q: %w", j.schedule, err)
	}
	j.cron = c
	c.Start()
	j.log.Debug().Str("schedule", j.schedule).Dur("max_age", j.maxAge).Msg("session janitor started")
	return nil
}

// RunOnce prunes immediately, outside the schedule.
func (j *Janitor) RunOnce(ctx context.Context) {
	removed, err := j.store.Prune(ctx, j.maxAge)
	if err != nil {
		j.log.Warn().Err(err).Msg("session prune failed")
		return
	}
	if removed > 0 {
		j.log.Info().Int("removed", removed).Msg("pruned stale sessions")
	}
}

// Stop halts scheduled pruning and waits for a running job to finish.
func (j *Janitor) Stop() {
	if j.cron != nil {
		ctx := j.cron.Stop()
		<-ctx.Done()
	}
}
