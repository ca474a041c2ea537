package workerpool

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

var (
	ErrBacklogFull = errors.New("worker pool backlog is full")
	ErrClosed      = errors.New("worker pool is closed")
)

// Pool runs submitted jobs on at most Workers goroutines. Submit never blocks:
// jobs beyond the backlog are rejected. A panicking job is logged and does not
// take the pool down.
type Pool struct {
	jobs   chan func()
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

func New(workers, backlog int) *Pool {
	p := &Pool{
		jobs: make(chan func(), backlog),
		done: make(chan struct{}),
	}

	go p.run(pool.New().WithMaxGoroutines(workers))

	return p
}

func (p *Pool) run(workers *pool.Pool) {
	defer close(p.done)

	for job := range p.jobs {
		workers.Go(func() {
			var pc panics.Catcher
			pc.Try(job)
			if r := pc.Recovered(); r != nil {
				slog.Error("worker pool job panicked", "error", r.AsError())
			}
		})
	}

	workers.Wait()
}

func (p *Pool) Submit(job func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrBacklogFull
	}
}

// Close stops accepting jobs and waits for the queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	<-p.done
}
