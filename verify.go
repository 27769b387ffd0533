package linky

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultVerifySchedule checks the archive once an hour.
const DefaultVerifySchedule = "@hourly"

// ArchiveChecker is the part of the archive a Verifier needs.
type ArchiveChecker interface {
	Heartbeat(ctx context.Context) error
	Verify(ctx context.Context) error
}

// Verifier checks on a cron schedule that the archive is reachable and that
// its metadata matches its entries. Failures are logged and counted.
type Verifier struct {
	store    ArchiveChecker
	cron     *cron.Cron
	timeout  time.Duration
	failures atomic.Int64
	log      zerolog.Logger
}

// NewVerifier schedules checks of store. The schedule takes standard
// five-field cron expressions and descriptors such as "@every 10m".
func NewVerifier(store ArchiveChecker, schedule string, log zerolog.Logger) (*Verifier, error) {
	v := &Verifier{
		store:   store,
		cron:    cron.New(),
		timeout: time.Minute,
		log:     log,
	}

	if _, err := v.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
		defer cancel()
		v.Check(ctx)
	}); err != nil {
		return nil, fmt.Errorf("invalid verify schedule %q: %w", schedule, err)
	}

	return v, nil
}

// Start runs the schedule in the background.
func (v *Verifier) Start() {
	v.log.Info().Msg("Archive verifier starting")
	v.cron.Start()
}

// Stop halts the schedule and waits for a running check to finish.
func (v *Verifier) Stop() {
	<-v.cron.Stop().Done()
	v.log.Info().Msg("Archive verifier stopped")
}

// Check runs one verification.
func (v *Verifier) Check(ctx context.Context) error {
	if err := v.store.Heartbeat(ctx); err != nil {
		v.failures.Add(1)
		v.log.Error().Err(err).Msg("Archive unreachable")
		return err
	}
	if err := v.store.Verify(ctx); err != nil {
		v.failures.Add(1)
		v.log.Error().Err(err).Msg("Archive metadata check failed")
		return err
	}
	v.log.Debug().Msg("Archive metadata verified")
	return nil
}

// Failures counts failed checks since the verifier was created.
func (v *Verifier) Failures() int64 {
	return v.failures.Load()
}
