// Package sweeper periodically looks for pending claims that have waited
// past the review deadline and reports them for admin follow-up. It only
// reads; claims are never mutated from here.
package sweeper

import (
	"context"
	"sync"
	"time"

	"campuspay/internal/store"
)

const MaxWorkers = 4

type Store interface {
	ListStalePending(ctx context.Context, cutoff time.Time) ([]store.StaleClaim, error)
}

type Task struct {
	Cutoff     time.Time
	ResultChan chan<- []store.StaleClaim
	ErrorChan  chan<- error
}

type WorkerPool struct {
	store      Store
	tasks      chan Task
	wg         sync.WaitGroup
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	closed     bool
	mu         sync.Mutex
}

func NewWorkerPool(ctx context.Context, st Store, maxWorkers int) *WorkerPool {
	ctx, cancel := context.WithCancel(ctx)
	return &WorkerPool{
		store:      st,
		tasks:      make(chan Task, 100),
		maxWorkers: maxWorkers,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (wp *WorkerPool) Start() {
	for i := 0; i < wp.maxWorkers; i++ {
		go wp.worker()
	}
}

func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.closed {
		return
	}

	close(wp.tasks)
	wp.cancel()
	wp.closed = true
	wp.wg.Wait()
}

func (wp *WorkerPool) AddTask(task Task) {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.closed {
		return
	}

	wp.wg.Add(1)
	select {
	case wp.tasks <- task:
	case <-wp.ctx.Done():
		wp.wg.Done()
	}
}

func (wp *WorkerPool) worker() {
	for task := range wp.tasks {
		if err := wp.processTask(task); err != nil {
			select {
			case task.ErrorChan <- err:
			case <-wp.ctx.Done():
			}
		}
		wp.wg.Done()
	}
}

func (wp *WorkerPool) processTask(task Task) error {
	ctxWithTimeout, cancel := context.WithTimeout(wp.ctx, 30*time.Second)
	defer cancel()

	stale, err := wp.store.ListStalePending(ctxWithTimeout, task.Cutoff)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	select {
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	case task.ResultChan <- stale:
	}
	return nil
}

func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}
