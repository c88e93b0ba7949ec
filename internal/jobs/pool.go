package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("jobs: dispatcher closed")

// Pool executes jobs in-process on a fixed number of goroutines.
type Pool struct {
	gen  Generator
	base context.Context
	log  zerolog.Logger

	mu     sync.RWMutex
	closed bool
	jobs   chan DiaryJob
	wg     sync.WaitGroup
}

// NewPool starts workers goroutines (at least one) that execute jobs with
// gen. The queue holds twice as many pending jobs as there are workers.
func NewPool(gen Generator, workers int, log zerolog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		gen:  gen,
		base: log.WithContext(context.Background()),
		log:  log,
		jobs: make(chan DiaryJob, workers*2),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work(i)
	}
	return p
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	for j := range p.jobs {
		if err := Execute(p.base, p.gen, j); err != nil {
			p.log.Error().Err(err).Int("worker", id).Str("uuid", j.UUID).Str("date", j.Date).Msg("diary job failed")
			continue
		}
		p.log.Debug().Int("worker", id).Str("uuid", j.UUID).Str("date", j.Date).Msg("diary job done")
	}
}

// Dispatch enqueues job, blocking while the queue is full.
func (p *Pool) Dispatch(ctx context.Context, job DiaryJob) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (p *Pool) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}
