// Package reload keeps the running daemon in step with booth.yml.
package reload

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/grovetools/booth/config"
	"github.com/grovetools/booth/internal/daemon/engine"
	"github.com/grovetools/booth/internal/daemon/netmon"
	"github.com/grovetools/booth/internal/daemon/orchestrator"
	"github.com/grovetools/booth/internal/daemon/reconciler"
	"github.com/grovetools/booth/internal/daemon/store"
	"github.com/grovetools/booth/pkg/camera"
	"github.com/grovetools/booth/pkg/upload"
	"github.com/sirupsen/logrus"
)

// ApplyFunc pushes a configuration into a running component.
type ApplyFunc func(cfg *config.Config)

// Reloader owns the current configuration and re-applies it whenever the
// config file changes on disk.
type Reloader struct {
	debounce time.Duration
	logger   *logrus.Entry

	mu       sync.RWMutex
	current  *config.Config
	appliers []ApplyFunc

	changed chan struct{}
}

// New creates a reloader seeded with the configuration the daemon started with.
func New(cfg *config.Config, debounce time.Duration, logger *logrus.Entry) *Reloader {
	return &Reloader{
		debounce: debounce,
		logger:   logger,
		current:  cfg,
		changed:  make(chan struct{}, 1),
	}
}

// Name returns the worker name.
func (r *Reloader) Name() string { return "config-watcher" }

// OnApply registers fn to receive every applied configuration.
func (r *Reloader) OnApply(fn ApplyFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appliers = append(r.appliers, fn)
}

// Current returns the configuration in effect.
func (r *Reloader) Current() *config.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Apply makes cfg current and pushes it to every registered component.
func (r *Reloader) Apply(cfg *config.Config) {
	r.mu.Lock()
	prev := r.current
	r.current = cfg
	appliers := append([]ApplyFunc(nil), r.appliers...)
	r.mu.Unlock()

	if prev != nil {
		if !reflect.DeepEqual(prev.Server, cfg.Server) {
			r.logger.Warn("Server settings changed; restart boothd to apply them")
		}
		if !reflect.DeepEqual(prev.Queue, cfg.Queue) {
			r.logger.Warn("Queue settings changed; restart boothd to apply them")
		}
	}
	for _, fn := range appliers {
		fn(cfg)
	}
}

// Reload re-reads the current config file. An invalid file is logged and
// the running configuration is kept.
func (r *Reloader) Reload() (*config.Config, error) {
	path := r.Current().Path()
	if path == "" {
		return r.Current(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		r.logger.WithError(err).WithField("path", path).Error("Config reload failed, keeping previous configuration")
		return nil, err
	}
	r.Apply(cfg)
	r.logger.WithField("path", path).Info("Configuration reloaded")
	return cfg, nil
}

// Run watches the config file until ctx is canceled. Without a config file
// there is nothing to watch and Run just waits.
func (r *Reloader) Run(ctx context.Context, updates chan<- store.Update) error {
	path := r.Current().Path()
	if path == "" {
		<-ctx.Done()
		return nil
	}

	w, err := config.NewWatcher(path, r.debounce, r.logger)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx, func(string) {
			select {
			case r.changed <- struct{}{}:
			default:
			}
		})
	}()
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.changed:
			cfg, err := r.Reload()
			if err != nil {
				continue
			}
			engine.Emit(ctx, updates, store.Update{
				Type:    store.UpdateConfigReload,
				Source:  r.Name(),
				Payload: map[string]interface{}{"path": cfg.Path(), "version": cfg.Version},
			})
		}
	}
}

// NetmonOptions maps the network section onto monitor options.
func NetmonOptions(cfg *config.Config) netmon.Options {
	return netmon.Options{
		Interval:      cfg.Network.PollInterval.D(),
		Timeout:       cfg.Network.ProbeTimeout.D(),
		BackoffFactor: cfg.Network.BackoffFactor,
	}
}

// ReconcilerOptions maps the reconciler and session sections onto loop options.
func ReconcilerOptions(cfg *config.Config) reconciler.Options {
	return reconciler.Options{
		Interval:       cfg.Reconciler.Interval.D(),
		ErrorBackoff:   cfg.Reconciler.ErrorBackoff.D(),
		SessionTimeout: cfg.Session.Timeout.D(),
		BatchSize:      cfg.Reconciler.BatchSize,
	}
}

// OrchestratorOptions maps the session and camera sections onto capture options.
func OrchestratorOptions(cfg *config.Config) orchestrator.Options {
	return orchestrator.Options{
		MaxPhotos: cfg.Session.MaxPhotos,
		Overlay:   cfg.Camera.OverlayEnabled,
		Flash:     cfg.Camera.FlashEnabled,
	}
}

// CameraOptions maps the camera section onto capture hardware options.
func CameraOptions(cfg *config.Config) camera.Options {
	c := cfg.Camera
	return camera.Options{
		Command:      c.Command,
		PicturesDir:  c.PicturesDir,
		Width:        c.Width,
		Height:       c.Height,
		Timeout:      c.Timeout.D(),
		OverlayPath:  c.OverlayPath,
		FlashDevice:  c.FlashDevice,
		FlashTrigger: c.FlashTrigger,
		FlashDelay:   c.FlashDelay.D(),
		FlashBaud:    c.FlashBaud,
	}
}

// UploadOptions maps the upload section onto client options.
func UploadOptions(cfg *config.Config) upload.Options {
	u := cfg.Upload
	return upload.Options{
		Endpoint:     u.Endpoint,
		Token:        u.Token,
		Timeout:      u.Timeout.D(),
		FolderPrefix: u.FolderPrefix,
		ParentFolder: u.ParentFolder,
	}
}
