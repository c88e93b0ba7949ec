// Package jobs runs diary generation outside the request path.
//
// A Scheduler periodically finds users who chatted on the previous day and
// have no diary for it, and hands one DiaryJob per user to a Dispatcher.
// Two dispatchers exist: Pool runs jobs in-process on a bounded set of
// goroutines, and Publisher enqueues them on RabbitMQ for cmd/worker to
// consume with a Consumer.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emogotchi/emogotchi-backend/internal/domain"
	"github.com/emogotchi/emogotchi-backend/internal/services"
)

// DiaryJob asks for the diary of one user for one local date.
type DiaryJob struct {
	UUID string `json:"uuid"`
	Date string `json:"date"` // YYYY-MM-DD
}

// Validate reports whether the job can be executed.
func (j DiaryJob) Validate() error {
	if strings.TrimSpace(j.UUID) == "" {
		return errors.New("jobs: empty uuid")
	}
	if _, err := time.Parse(services.DateLayout, j.Date); err != nil {
		return fmt.Errorf("jobs: bad date %q: %w", j.Date, err)
	}
	return nil
}

// Generator is the diary surface jobs need. *services.DiaryService
// satisfies it.
type Generator interface {
	GenerateFor(ctx context.Context, uuid string, day time.Time) (*domain.DiaryEntry, error)
	PendingUsers(ctx context.Context, day time.Time) ([]string, error)
}

// Dispatcher accepts jobs for asynchronous execution.
type Dispatcher interface {
	Dispatch(ctx context.Context, job DiaryJob) error
	Close() error
}

// Execute runs one job against gen. The date is interpreted in the local
// zone so day boundaries match on-demand generation.
func Execute(ctx context.Context, gen Generator, job DiaryJob) error {
	if err := job.Validate(); err != nil {
		return err
	}
	day, _ := time.ParseInLocation(services.DateLayout, job.Date, time.Local)
	// midday keeps the day stable across DST shifts
	day = day.Add(12 * time.Hour)

	start := time.Now()
	_, err := gen.GenerateFor(ctx, job.UUID, day)
	observe(err, start)
	return err
}

// Retryable reports whether a failed job is worth running again.
func Retryable(err error) bool {
	return errors.Is(err, services.ErrUpstreamTimeout) || errors.Is(err, context.DeadlineExceeded)
}
