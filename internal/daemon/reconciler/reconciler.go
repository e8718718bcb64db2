// Package reconciler runs the periodic maintenance loop: it expires idle
// sessions and drains a bounded batch of the offline queue.
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grovetools/booth/errors"
	"github.com/grovetools/booth/internal/daemon/engine"
	"github.com/grovetools/booth/internal/daemon/store"
	"github.com/grovetools/booth/pkg/models"
	"github.com/sirupsen/logrus"
)

// Queue is the part of the offline queue the reconciler reads.
type Queue interface {
	DequeueBatch(maxItems int) []models.QueueItem
	Len() int
}

// Attempter uploads one queued item.
type Attempter interface {
	Attempt(ctx context.Context, item models.QueueItem) (string, error)
}

// NetworkState is the cached connectivity view.
type NetworkState interface {
	IsOnline() bool
}

// Options tunes the loop. Zero values take the defaults.
type Options struct {
	Interval       time.Duration
	ErrorBackoff   time.Duration
	SessionTimeout time.Duration
	BatchSize      int
	// StartDelay is the wait before the first tick, capped at Interval. It
	// leaves the network monitor time for its first probe.
	StartDelay time.Duration
}

// DefaultOptions returns the kiosk defaults.
func DefaultOptions() Options {
	return Options{
		Interval:       5 * time.Minute,
		ErrorBackoff:   time.Minute,
		SessionTimeout: 30 * time.Minute,
		BatchSize:      5,
		StartDelay:     10 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Interval <= 0 {
		o.Interval = def.Interval
	}
	if o.ErrorBackoff <= 0 {
		o.ErrorBackoff = def.ErrorBackoff
	}
	if o.SessionTimeout <= 0 {
		o.SessionTimeout = def.SessionTimeout
	}
	if o.BatchSize <= 0 {
		o.BatchSize = def.BatchSize
	}
	if o.StartDelay <= 0 {
		o.StartDelay = def.StartDelay
	}
	if o.StartDelay > o.Interval {
		o.StartDelay = o.Interval
	}
	return o
}

// Report summarizes one tick.
type Report struct {
	StartedAt time.Time `json:"started_at"`
	Expired   []string  `json:"expired,omitempty"`
	Online    bool      `json:"online"`
	Attempted int       `json:"attempted"`
	Uploaded  int       `json:"uploaded"`
	Failed    int       `json:"failed"`
	Remaining int       `json:"remaining"`
}

type flushRequest struct {
	reply chan flushReply
}

type flushReply struct {
	report Report
	err    error
}

// Reconciler is the background maintenance worker.
type Reconciler struct {
	store   *store.Store
	queue   Queue
	network NetworkState
	coord   Attempter
	logger  *logrus.Entry
	now     func() time.Time

	mu   sync.RWMutex
	opts Options

	flush        chan flushRequest
	reconfigured chan struct{}

	// hook runs at the start of every tick, for tests.
	hook func()
}

// New creates a reconciler.
func New(st *store.Store, q Queue, network NetworkState, coord Attempter, opts Options, logger *logrus.Entry) *Reconciler {
	return &Reconciler{
		store:        st,
		queue:        q,
		network:      network,
		coord:        coord,
		logger:       logger,
		now:          time.Now,
		opts:         opts.withDefaults(),
		flush:        make(chan flushRequest),
		reconfigured: make(chan struct{}, 1),
	}
}

// Name returns the worker name.
func (r *Reconciler) Name() string { return "reconciler" }

// Options returns the active options.
func (r *Reconciler) Options() Options {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.opts
}

// SetOptions applies new options; a running loop reschedules its next tick.
func (r *Reconciler) SetOptions(opts Options) {
	r.mu.Lock()
	r.opts = opts.withDefaults()
	r.mu.Unlock()

	select {
	case r.reconfigured <- struct{}{}:
	default:
	}
}

// Tick runs one reconciliation pass. Individual upload failures are logged
// and counted; only an unexpected fault (including a panic) returns an error.
func (r *Reconciler) Tick(ctx context.Context) (report Report, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.New(errors.ErrCodeInternal, fmt.Sprintf("reconcile tick panicked: %v", p))
		}
	}()
	if r.hook != nil {
		r.hook()
	}

	opts := r.Options()
	now := r.now()
	report.StartedAt = now

	report.Expired = r.store.ExpireOlderThan(now.Add(-opts.SessionTimeout))
	if len(report.Expired) > 0 {
		r.logger.WithField("sessions", report.Expired).Info("Expired idle sessions")
	}

	report.Online = r.network.IsOnline()
	if !report.Online {
		report.Remaining = r.queue.Len()
		return report, nil
	}

	for _, item := range r.queue.DequeueBatch(opts.BatchSize) {
		if ctx.Err() != nil {
			break
		}
		report.Attempted++
		if _, err := r.coord.Attempt(ctx, item); err != nil {
			// already logged by the coordinator
			report.Failed++
			continue
		}
		report.Uploaded++
	}
	report.Remaining = r.queue.Len()

	if report.Attempted > 0 {
		r.logger.WithFields(logrus.Fields{
			"attempted": report.Attempted,
			"uploaded":  report.Uploaded,
			"failed":    report.Failed,
			"remaining": report.Remaining,
		}).Info("Reconcile pass complete")
	}
	return report, nil
}

// Flush asks the running loop to tick immediately and waits for the report.
func (r *Reconciler) Flush(ctx context.Context) (Report, error) {
	req := flushRequest{reply: make(chan flushReply, 1)}
	select {
	case r.flush <- req:
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
	select {
	case rep := <-req.reply:
		return rep.report, rep.err
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
}

// Run loops until ctx is canceled. The first tick runs after StartDelay so a
// queue reloaded from disk drains soon after startup. A failed tick waits
// the error backoff instead of the normal interval.
func (r *Reconciler) Run(ctx context.Context, updates chan<- store.Update) error {
	timer := time.NewTimer(r.Options().StartDelay)
	defer timer.Stop()

	ticked := false
	for {
		var reply chan flushReply
		select {
		case <-ctx.Done():
			return nil
		case <-r.reconfigured:
			if ticked {
				resetTimer(timer, r.Options().Interval)
			}
			continue
		case req := <-r.flush:
			reply = req.reply
		case <-timer.C:
		}

		report, err := r.Tick(ctx)
		ticked = true
		if reply != nil {
			reply <- flushReply{report: report, err: err}
		}

		wait := r.Options().Interval
		if err != nil {
			wait = r.Options().ErrorBackoff
			r.logger.WithError(err).WithField("retry_in", wait).Error("Reconcile tick failed")
		} else if report.Attempted > 0 || len(report.Expired) > 0 {
			engine.Emit(ctx, updates, store.Update{Type: store.UpdateQueue, Source: r.Name(), Payload: report})
		}
		resetTimer(timer, wait)
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
