// Package queue provides the durable offline upload queue.
//
// The queue is an ordered list of photos waiting for upload, at most one
// entry per (session, photo) pair. Every mutation rewrites the whole queue
// through a Persister before returning, so a restart recovers exactly the
// pending set as of the last successful mutation. Items are only removed on
// confirmed upload; DequeueBatch never removes anything.
package queue

import (
	"sync"
	"time"

	"github.com/grovetools/booth/errors"
	"github.com/grovetools/booth/pkg/models"
	"github.com/sirupsen/logrus"
)

// Persister stores and recovers the full queue contents.
type Persister interface {
	// Load returns the persisted items in queue order. A missing store is an empty queue.
	Load() ([]models.QueueItem, error)
	// Save atomically replaces the persisted queue with items.
	Save(items []models.QueueItem) error
	// Location describes where the queue lives, for logs and errors.
	Location() string
	Close() error
}

// Queue is the in-memory, authoritative view of pending uploads.
type Queue struct {
	mu        sync.Mutex
	items     []models.QueueItem
	index     map[models.QueueKey]struct{}
	persister Persister
	logger    *logrus.Entry
	now       func() time.Time
}

// Open loads the persisted queue. Load failures are logged and the queue
// starts empty; the kiosk keeps working with degraded durability.
func Open(p Persister, logger *logrus.Entry) *Queue {
	q := &Queue{
		index:     make(map[models.QueueKey]struct{}),
		persister: p,
		logger:    logger,
		now:       time.Now,
	}

	items, err := p.Load()
	if err != nil {
		logger.WithError(err).WithField("path", p.Location()).Error("Failed to load offline queue, starting empty")
		return q
	}

	for _, item := range items {
		key := item.Key()
		if _, dup := q.index[key]; dup {
			continue
		}
		q.index[key] = struct{}{}
		q.items = append(q.items, item)
	}
	if len(q.items) > 0 {
		logger.WithField("items", len(q.items)).Info("Offline queue loaded from disk")
	}
	return q
}

// Enqueue adds a photo to the back of the queue. Enqueueing a pair that is
// already queued is a no-op. A returned PersistenceError means the item is
// queued in memory but the write to stable storage failed.
func (q *Queue) Enqueue(sessionID, photoPath string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := models.QueueKey{SessionID: sessionID, PhotoPath: photoPath}
	if _, exists := q.index[key]; exists {
		return nil
	}

	q.items = append(q.items, models.QueueItem{
		SessionID:  sessionID,
		PhotoPath:  photoPath,
		EnqueuedAt: q.now().UTC(),
	})
	q.index[key] = struct{}{}
	return q.persistLocked()
}

// DequeueBatch returns up to maxItems of the oldest items without removing them.
func (q *Queue) DequeueBatch(maxItems int) []models.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	if maxItems <= 0 {
		return nil
	}
	n := len(q.items)
	if maxItems < n {
		n = maxItems
	}
	out := make([]models.QueueItem, n)
	copy(out, q.items[:n])
	return out
}

// Remove deletes a specific item. Removing an absent item is a no-op.
func (q *Queue) Remove(sessionID, photoPath string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := models.QueueKey{SessionID: sessionID, PhotoPath: photoPath}
	if _, exists := q.index[key]; !exists {
		return nil
	}

	kept := q.items[:0]
	for _, item := range q.items {
		if item.Key() != key {
			kept = append(kept, item)
		}
	}
	// clear the tail so removed items are not retained by the backing array
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = models.QueueItem{}
	}
	q.items = kept
	delete(q.index, key)
	return q.persistLocked()
}

// Contains reports whether the pair is queued.
func (q *Queue) Contains(sessionID, photoPath string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.index[models.QueueKey{SessionID: sessionID, PhotoPath: photoPath}]
	return ok
}

// Snapshot returns a copy of the queue in order.
func (q *Queue) Snapshot() []models.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.QueueItem, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Location returns where the queue is persisted.
func (q *Queue) Location() string {
	return q.persister.Location()
}

// Close releases the persister.
func (q *Queue) Close() error {
	return q.persister.Close()
}

// persistLocked writes the whole queue. Writes happen under the lock so a
// newer snapshot can never be overwritten by an older one.
func (q *Queue) persistLocked() error {
	snapshot := make([]models.QueueItem, len(q.items))
	copy(snapshot, q.items)
	if err := q.persister.Save(snapshot); err != nil {
		return errors.PersistenceFailed(q.persister.Location(), err)
	}
	return nil
}
