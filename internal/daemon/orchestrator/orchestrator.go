// Package orchestrator is the foreground capture entry point: one call per
// button press, always ending in a terminal result.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/grovetools/booth/errors"
	"github.com/grovetools/booth/internal/daemon/queue"
	"github.com/grovetools/booth/internal/daemon/store"
	"github.com/grovetools/booth/pkg/models"
	"github.com/sirupsen/logrus"
)

// Camera is the capture collaborator.
type Camera interface {
	Capture(ctx context.Context) (string, error)
	// ApplyOverlay never fails; it returns path unchanged when compositing is
	// not possible.
	ApplyOverlay(ctx context.Context, path string) string
	TriggerFlash(ctx context.Context) bool
}

// Uploader runs one hot-path upload.
type Uploader interface {
	Upload(ctx context.Context, path, sessionID string) (models.UploadResult, error)
}

// NetworkState is the cached connectivity view.
type NetworkState interface {
	IsOnline() bool
}

// Options controls capture behavior.
type Options struct {
	// MaxPhotos starts a new session once a session holds this many photos. Zero disables the cap.
	MaxPhotos int
	Overlay   bool
	Flash     bool
}

// Request is one capture request.
type Request struct {
	// SessionID reuses an existing session ("take another"). Empty starts a new one.
	SessionID string `json:"session_id,omitempty"`
	// Overlay overrides Options.Overlay when set.
	Overlay *bool `json:"overlay,omitempty"`
}

// Orchestrator is the CaptureOrchestrator.
type Orchestrator struct {
	store    *store.Store
	queue    *queue.Queue
	network  NetworkState
	camera   Camera
	uploader Uploader
	logger   *logrus.Entry

	optsMu sync.RWMutex
	opts   Options

	// the camera is a single physical device
	hwMu sync.Mutex
}

// New creates an orchestrator.
func New(st *store.Store, q *queue.Queue, network NetworkState, camera Camera, uploader Uploader, opts Options, logger *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		store:    st,
		queue:    q,
		network:  network,
		camera:   camera,
		uploader: uploader,
		opts:     opts,
		logger:   logger,
	}
}

// SetOptions replaces the capture options.
func (o *Orchestrator) SetOptions(opts Options) {
	o.optsMu.Lock()
	defer o.optsMu.Unlock()
	o.opts = opts
}

// Options returns the current capture options.
func (o *Orchestrator) Options() Options {
	o.optsMu.RLock()
	defer o.optsMu.RUnlock()
	return o.opts
}

// Capture takes one photo. Only a camera failure yields Success=false; every
// later problem degrades to queueing the photo for the background uploader.
func (o *Orchestrator) Capture(ctx context.Context, req Request) models.CaptureResult {
	opts := o.Options()
	sessionID := o.resolveSession(req.SessionID, opts.MaxPhotos)
	log := o.logger.WithField("session_id", sessionID)

	path, err := o.shoot(ctx, opts.Flash)
	if err != nil {
		log.WithError(err).Error("Capture failed")
		result := models.CaptureResult{
			Success:   false,
			SessionID: sessionID,
			Error:     err.Error(),
			ErrorCode: string(errors.GetCode(err)),
		}
		o.publish(result)
		return result
	}
	log = log.WithField("photo_path", path)

	overlay := opts.Overlay
	if req.Overlay != nil {
		overlay = *req.Overlay
	}
	if overlay {
		path = o.camera.ApplyOverlay(ctx, path)
	}

	var remoteURL string
	if o.network.IsOnline() {
		res, err := o.uploader.Upload(ctx, path, sessionID)
		if err != nil {
			log.WithError(err).Warn("Immediate upload failed, queueing photo")
		} else {
			remoteURL = res.URL
			o.store.AttachFolder(sessionID, res.FolderRef, res.FolderURL)
		}
	}

	// The photo is recorded before it is queued, so a background upload of
	// the queued item always finds it to mark.
	if err := o.store.AddPhoto(sessionID, path, remoteURL); err != nil {
		// the session expired mid-capture; the queued upload does not need it
		log.WithError(err).Warn("Session vanished before photo could be recorded")
	}

	queued := false
	if remoteURL == "" {
		if err := o.queue.Enqueue(sessionID, path); err != nil {
			log.WithError(err).Error("Offline queue write failed; photo is queued in memory only")
		}
		queued = true
	}

	result := models.CaptureResult{
		Success:   true,
		SessionID: sessionID,
		PhotoPath: path,
		RemoteURL: remoteURL,
		IsOnline:  remoteURL != "",
		Queued:    queued,
	}
	log.WithFields(logrus.Fields{"online": result.IsOnline, "queued": queued}).Info("Photo captured")
	o.publish(result)
	return result
}

// resolveSession reuses a live session with room for another photo, or
// creates a fresh one.
func (o *Orchestrator) resolveSession(requested string, maxPhotos int) string {
	if requested == "" {
		return o.store.CreateSession()
	}

	sess, err := o.store.Get(requested)
	if err != nil {
		o.logger.WithField("session_id", requested).Info("Requested session is gone, starting a new one")
		return o.store.CreateSession()
	}
	if maxPhotos > 0 && len(sess.Photos) >= maxPhotos {
		o.logger.WithFields(logrus.Fields{
			"session_id": requested,
			"photos":     len(sess.Photos),
		}).Info("Session is full, starting a new one")
		return o.store.CreateSession()
	}
	if err := o.store.Touch(requested); err != nil {
		return o.store.CreateSession()
	}
	return requested
}

// shoot fires the flash and captures, off the caller's goroutine.
func (o *Orchestrator) shoot(ctx context.Context, flash bool) (string, error) {
	type result struct {
		path string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		o.hwMu.Lock()
		defer o.hwMu.Unlock()
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: errors.CaptureFailed(fmt.Errorf("camera panicked: %v", r))}
			}
		}()

		if flash && !o.camera.TriggerFlash(ctx) {
			o.logger.Debug("Flash did not fire")
		}
		path, err := o.camera.Capture(ctx)
		if err != nil && errors.GetCode(err) != errors.ErrCodeCaptureFailed {
			err = errors.CaptureFailed(err)
		}
		done <- result{path, err}
	}()

	r := <-done
	return r.path, r.err
}

func (o *Orchestrator) publish(result models.CaptureResult) {
	o.store.Broadcast(store.Update{Type: store.UpdateCapture, Source: "capture", Payload: result})
}
