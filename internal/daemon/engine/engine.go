// Package engine runs the daemon's background workers.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/grovetools/booth/internal/daemon/store"
	"github.com/sirupsen/logrus"
)

// Worker is a background loop that emits updates.
type Worker interface {
	// Name returns the worker's name for logging.
	Name() string

	// Run blocks until ctx is canceled. State changes are reported on updates.
	Run(ctx context.Context, updates chan<- store.Update) error
}

// Engine manages and runs all workers.
type Engine struct {
	store   *store.Store
	workers []Worker
	logger  *logrus.Entry
}

// New creates a new Engine instance.
func New(st *store.Store, logger *logrus.Entry) *Engine {
	return &Engine{
		store:  st,
		logger: logger,
	}
}

// Register adds a worker to the engine. Must be called before Start.
func (e *Engine) Register(w Worker) {
	e.workers = append(e.workers, w)
}

// Workers returns the registered worker names.
func (e *Engine) Workers() []string {
	names := make([]string, 0, len(e.workers))
	for _, w := range e.workers {
		names = append(names, w.Name())
	}
	return names
}

// Start runs all workers and blocks until ctx is canceled and every worker
// has returned.
func (e *Engine) Start(ctx context.Context) {
	updates := make(chan store.Update, 100)
	var workers sync.WaitGroup
	var consumer sync.WaitGroup

	// 1. Update consumer: fan worker updates out to subscribers
	consumer.Add(1)
	go func() {
		defer consumer.Done()
		for u := range updates {
			e.store.Broadcast(u)
		}
	}()

	// 2. Workers
	for _, w := range e.workers {
		workers.Add(1)
		go func(w Worker) {
			defer workers.Done()
			log := e.logger.WithField("worker", w.Name())
			log.Info("Starting worker")
			if err := runGuarded(ctx, w, updates); err != nil {
				log.WithError(err).Error("Worker failed")
				return
			}
			log.Debug("Worker stopped")
		}(w)
	}

	workers.Wait()
	close(updates)
	consumer.Wait()
}

// runGuarded turns a worker panic into an error so one faulty loop cannot
// take the daemon down.
func runGuarded(ctx context.Context, w Worker, updates chan<- store.Update) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %s panicked: %v", w.Name(), r)
		}
	}()
	return w.Run(ctx, updates)
}

// Emit sends u on updates unless ctx is done first.
func Emit(ctx context.Context, updates chan<- store.Update, u store.Update) {
	select {
	case updates <- u:
	case <-ctx.Done():
	}
}
