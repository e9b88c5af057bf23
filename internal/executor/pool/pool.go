// Package pool bounds how many jobs execute at once and how many may wait.
package pool

import (
	"context"
	"sync/atomic"
	"time"

	appErr "codeexec/pkg/errors"
)

// Stats is a point-in-time view of the pool.
type Stats struct {
	Size     int   `json:"size"`
	Queue    int   `json:"queue"`
	Running  int64 `json:"running"`
	Waiting  int64 `json:"waiting"`
	Rejected int64 `json:"rejected"`
}

// Pool admits at most size concurrent jobs. Up to queueSize callers may wait
// for a slot for at most waitTimeout (zero waits until the caller's context
// ends); everyone else is rejected immediately.
type Pool struct {
	sem         chan struct{}
	queue       chan struct{}
	waitTimeout time.Duration

	running  atomic.Int64
	waiting  atomic.Int64
	rejected atomic.Int64
}

// New creates a pool. size below 1 is treated as 1; a negative queue as 0.
func New(size, queueSize int, waitTimeout time.Duration) *Pool {
	if size < 1 {
		size = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		sem:         make(chan struct{}, size),
		queue:       make(chan struct{}, queueSize),
		waitTimeout: waitTimeout,
	}
}

// Do runs fn once a slot is available. It returns JudgeQueueFull when the
// queue is full or the wait times out, and the context error if ctx ends first.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context)) error {
	if err := p.acquireSlot(ctx); err != nil {
		return err
	}
	defer p.releaseSlot()
	fn(ctx)
	return nil
}

// Stats reports current occupancy.
func (p *Pool) Stats() Stats {
	return Stats{
		Size:     cap(p.sem),
		Queue:    cap(p.queue),
		Running:  p.running.Load(),
		Waiting:  p.waiting.Load(),
		Rejected: p.rejected.Load(),
	}
}

func (p *Pool) acquireSlot(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		p.running.Add(1)
		return nil
	default:
	}

	select {
	case p.queue <- struct{}{}:
	default:
		return p.reject("execution queue is full")
	}
	p.waiting.Add(1)
	defer func() {
		p.waiting.Add(-1)
		<-p.queue
	}()

	var timeout <-chan time.Time
	if p.waitTimeout > 0 {
		timer := time.NewTimer(p.waitTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case p.sem <- struct{}{}:
		p.running.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return p.reject("worker pool is full")
	}
}

func (p *Pool) releaseSlot() {
	p.running.Add(-1)
	select {
	case <-p.sem:
	default:
	}
}

func (p *Pool) reject(msg string) error {
	p.rejected.Add(1)
	return appErr.New(appErr.JudgeQueueFull).WithMessage(msg)
}
