// Package netmon tracks kiosk connectivity in the background.
//
// The monitor polls a Prober on a fixed interval and caches the result.
// IsOnline and CurrentSSID only read the cache, so callers never wait on a
// live probe. A failed or timed-out probe counts as offline and stretches the
// next wait by the error backoff factor; the loop itself only stops when its
// context is canceled.
package netmon

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

// Prober performs one connectivity check.
type Prober interface {
	Name() string
	Probe(ctx context.Context) (online bool, ssid string, err error)
}

// Options tunes the monitor loop.
type Options struct {
	Interval      time.Duration
	Timeout       time.Duration
	BackoffFactor int
}

// DefaultOptions polls every 30s with a 5s probe timeout.
func DefaultOptions() Options {
	return Options{
		Interval:      30 * time.Second,
		Timeout:       5 * time.Second,
		BackoffFactor: 2,
	}
}

// Monitor is the NetworkMonitor worker.
type Monitor struct {
	prober Prober
	logger *logrus.Entry
	now    func() time.Time

	mu       sync.RWMutex
	opts     Options
	status   models.NetworkStatus
	probed   bool
	failures int
}

// New creates a monitor. The kiosk is considered offline until the first
// probe says otherwise.
func New(p Prober, opts Options, logger *logrus.Entry) *Monitor {
	return &Monitor{
		prober: p,
		opts:   opts.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Interval <= 0 {
		o.Interval = def.Interval
	}
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.BackoffFactor < 1 {
		o.BackoffFactor = def.BackoffFactor
	}
	return o
}

// Options returns the current polling options.
func (m *Monitor) Options() Options {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.opts
}

// SetOptions replaces the polling options. The new interval applies from
// the next poll.
func (m *Monitor) SetOptions(opts Options) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts = opts.withDefaults()
}

// Name returns the worker name.
func (m *Monitor) Name() string { return "netmon" }

// IsOnline returns the last probed state.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Online
}

// CurrentSSID returns the last probed SSID, empty when unknown or offline.
func (m *Monitor) CurrentSSID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.SSID
}

// Status returns a copy of the cached state.
func (m *Monitor) Status() models.NetworkStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// ConsecutiveFailures returns how many probes in a row have failed.
func (m *Monitor) ConsecutiveFailures() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failures
}

// Check runs one probe, updates the cache and reports whether the state
// changed. The returned error is the probe failure, already folded into an
// offline state.
func (m *Monitor) Check(ctx context.Context) (changed bool, err error) {
	online, ssid, err := m.probe(ctx)
	if err != nil {
		online, ssid = false, ""
	}
	if !online {
		ssid = ""
	}

	m.mu.Lock()
	prev := m.status
	first := !m.probed
	m.probed = true
	m.status = models.NetworkStatus{Online: online, SSID: ssid, CheckedAt: m.now()}
	if err != nil {
		m.failures++
	} else {
		m.failures = 0
	}
	failures := m.failures
	m.mu.Unlock()

	changed = first || prev.Online != online || prev.SSID != ssid
	if changed {
		fields := logrus.Fields{"online": online, "ssid": ssid}
		if err != nil {
			fields["error"] = err.Error()
		}
		switch {
		case first:
			m.logger.WithFields(fields).Info("Network status determined")
		case online:
			m.logger.WithFields(fields).Info("Network came online")
		default:
			m.logger.WithFields(fields).Warn("Network went offline")
		}
	} else if err != nil {
		m.logger.WithError(err).WithField("failures", failures).Debug("Connectivity probe failed")
	}
	return changed, err
}

// probe runs the prober in its own goroutine bounded by the probe timeout.
// A prober that ignores its context is abandoned, not waited on.
func (m *Monitor) probe(ctx context.Context) (bool, string, error) {
	timeout := m.Options().Timeout
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		online bool
		ssid   string
		err    error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("probe panicked: %v", r)}
			}
		}()
		online, ssid, err := m.prober.Probe(pctx)
		done <- result{online, ssid, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return false, "", errors.ProbeFailed(m.prober.Name(), timeout, r.err)
		}
		return r.online, r.ssid, nil
	case <-pctx.Done():
		return false, "", errors.ProbeFailed(m.prober.Name(), timeout, pctx.Err())
	}
}

// Run polls until ctx is canceled.
func (m *Monitor) Run(ctx context.Context, updates chan<- store.Update) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		changed, err := m.Check(ctx)
		if changed && ctx.Err() == nil {
			engine.Emit(ctx, updates, store.Update{
				Type:    store.UpdateNetwork,
				Source:  m.Name(),
				Payload: m.Status(),
			})
		}

		opts := m.Options()
		wait := opts.Interval
		if err != nil {
			wait = opts.Interval * time.Duration(opts.BackoffFactor)
		}
		timer.Reset(wait)
	}
}
