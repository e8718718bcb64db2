// Package coordinator performs single upload attempts for queued photos and
// applies their outcome to the session store and the offline queue.
package coordinator

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

// Uploader performs one upload. It must be safe to call repeatedly for the
// same photo.
type Uploader interface {
	Upload(ctx context.Context, path, sessionID string) (models.UploadResult, error)
}

// NetworkState is the cached connectivity view.
type NetworkState interface {
	IsOnline() bool
}

// Coordinator is the UploadCoordinator.
type Coordinator struct {
	store    *store.Store
	queue    *queue.Queue
	network  NetworkState
	uploader Uploader
	logger   *logrus.Entry

	mu       sync.Mutex
	attempts map[models.QueueKey]int
}

// New creates a coordinator.
func New(st *store.Store, q *queue.Queue, network NetworkState, uploader Uploader, logger *logrus.Entry) *Coordinator {
	return &Coordinator{
		store:    st,
		queue:    q,
		network:  network,
		uploader: uploader,
		logger:   logger,
		attempts: make(map[models.QueueKey]int),
	}
}

// Upload runs the uploader off the caller's goroutine and waits for it. A
// panicking uploader is reported as a transient failure.
func (c *Coordinator) Upload(ctx context.Context, path, sessionID string) (models.UploadResult, error) {
	type result struct {
		res models.UploadResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: errors.UploadFailed(path, true, fmt.Errorf("uploader panicked: %v", r))}
			}
		}()
		res, err := c.uploader.Upload(ctx, path, sessionID)
		done <- result{res, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return models.UploadResult{}, classify(path, r.err)
		}
		if r.res.URL == "" {
			return models.UploadResult{}, errors.UploadFailed(path, true, fmt.Errorf("uploader returned no URL"))
		}
		return r.res, nil
	case <-ctx.Done():
		return models.UploadResult{}, errors.UploadFailed(path, true, ctx.Err())
	}
}

// Attempt tries to upload one queued item.
//
// Offline short-circuits with an UPLOAD_DEFERRED error without calling the
// uploader. On success the photo is marked uploaded (best effort) and the
// item is removed from the queue (always). On failure the item is left in
// the queue exactly as it was.
func (c *Coordinator) Attempt(ctx context.Context, item models.QueueItem) (string, error) {
	if !c.network.IsOnline() {
		return "", errors.UploadDeferred(item.PhotoPath)
	}

	log := c.logger.WithFields(logrus.Fields{
		"session_id": item.SessionID,
		"photo_path": item.PhotoPath,
	})

	res, err := c.Upload(ctx, item.PhotoPath, item.SessionID)
	if err != nil {
		n := c.recordFailure(item.Key())
		entry := log.WithError(err).WithField("attempts", n)
		if errors.IsTransient(err) {
			entry.Info("Upload attempt failed, will retry")
		} else {
			entry.Warn("Upload attempt failed with a permanent error, will keep retrying")
		}
		return "", err
	}

	c.Commit(item.SessionID, item.PhotoPath, res)
	log.WithField("url", res.URL).Info("Queued photo uploaded")
	return res.URL, nil
}

// Commit applies a successful upload. The queue removal is authoritative and
// runs even when the session is gone; the session update is cosmetic.
func (c *Coordinator) Commit(sessionID, photoPath string, res models.UploadResult) {
	c.store.AttachFolder(sessionID, res.FolderRef, res.FolderURL)
	if !c.store.MarkUploaded(sessionID, photoPath, res.URL) && !c.store.Exists(sessionID) {
		c.logger.WithField("session_id", sessionID).Debug("Session expired before upload completed")
	}

	if err := c.queue.Remove(sessionID, photoPath); err != nil {
		// in-memory removal already happened; durability is degraded
		c.logger.WithError(err).WithField("photo_path", photoPath).Error("Failed to persist queue removal")
	}

	c.mu.Lock()
	delete(c.attempts, models.QueueKey{SessionID: sessionID, PhotoPath: photoPath})
	c.mu.Unlock()

	c.store.Broadcast(store.Update{Type: store.UpdateUpload, Source: "coordinator", Payload: map[string]string{
		"session_id": sessionID,
		"photo_path": photoPath,
		"url":        res.URL,
	}})
}

// Attempts returns how many times an item has failed in this process.
func (c *Coordinator) Attempts(sessionID, photoPath string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts[models.QueueKey{SessionID: sessionID, PhotoPath: photoPath}]
}

func (c *Coordinator) recordFailure(key models.QueueKey) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[key]++
	return c.attempts[key]
}

// classify wraps foreign errors as transient upload failures.
func classify(path string, err error) error {
	if errors.GetCode(err) == errors.ErrCodeUploadFailed {
		return err
	}
	return errors.UploadFailed(path, errors.IsTransient(err), err)
}
