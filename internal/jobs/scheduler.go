package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/emogotchi/emogotchi-backend/internal/services"
)

// Scheduler sweeps the previous local day for users without a diary.
type Scheduler struct {
	Gen        Generator
	Dispatcher Dispatcher
	Interval   time.Duration
	Log        zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *Scheduler) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Run sweeps once immediately and then every Interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	s.Log.Info().Dur("interval", interval).Msg("diary scheduler started")

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if n, err := s.Sweep(ctx); err != nil {
			s.Log.Error().Err(err).Int("dispatched", n).Msg("diary sweep")
		} else {
			s.Log.Info().Int("dispatched", n).Msg("diary sweep")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Sweep dispatches one job per pending user of the previous day and
// returns how many were dispatched.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	day := s.now().AddDate(0, 0, -1)
	date := day.Format(services.DateLayout)

	users, err := s.Gen.PendingUsers(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("pending users for %s: %w", date, err)
	}
	n := 0
	for _, u := range users {
		if err := s.Dispatcher.Dispatch(ctx, DiaryJob{UUID: u, Date: date}); err != nil {
			return n, fmt.Errorf("dispatch %s: %w", u, err)
		}
		n++
		jobsDispatched.Inc()
	}
	return n, nil
}
