package queue

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/grovetools/booth/errors"
	"github.com/grovetools/booth/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l.WithField("component", "queue-test")
}

// failingPersister fails every save after the first `ok` saves.
type failingPersister struct {
	mu    sync.Mutex
	ok    int
	saves int
}

func (p *failingPersister) Load() ([]models.QueueItem, error) { return nil, nil }
func (p *failingPersister) Save(items []models.QueueItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	if p.saves > p.ok {
		return fmt.Errorf("disk full")
	}
	return nil
}
func (p *failingPersister) Location() string { return "memory" }
func (p *failingPersister) Close() error     { return nil }

func assertSameItems(t *testing.T, want, got []models.QueueItem) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].SessionID, got[i].SessionID, "item %d session", i)
		assert.Equal(t, want[i].PhotoPath, got[i].PhotoPath, "item %d path", i)
		assert.True(t, want[i].EnqueuedAt.Equal(got[i].EnqueuedAt), "item %d enqueued_at: %v != %v", i, want[i].EnqueuedAt, got[i].EnqueuedAt)
	}
}

// backends returns a fresh persister of each kind.
func backends(t *testing.T) map[string]func() Persister {
	dir := t.TempDir()
	return map[string]func() Persister{
		"file": func() Persister {
			return NewFilePersister(filepath.Join(dir, DefaultFileName))
		},
		"sqlite": func() Persister {
			p, err := OpenSQLitePersister(filepath.Join(dir, DefaultDBName))
			require.NoError(t, err)
			t.Cleanup(func() { _ = p.Close() })
			return p
		},
	}
}

func TestEnqueueIdempotent(t *testing.T) {
	for name, newPersister := range backends(t) {
		t.Run(name, func(t *testing.T) {
			q := Open(newPersister(), testLogger())

			for i := 0; i < 5; i++ {
				require.NoError(t, q.Enqueue("s1", "/pics/a.jpg"))
			}
			require.NoError(t, q.Enqueue("s1", "/pics/b.jpg"))
			require.NoError(t, q.Enqueue("s2", "/pics/a.jpg"))

			snap := q.Snapshot()
			require.Len(t, snap, 3)
			matching := 0
			for _, item := range snap {
				if item.SessionID == "s1" && item.PhotoPath == "/pics/a.jpg" {
					matching++
				}
			}
			assert.Equal(t, 1, matching)
		})
	}
}

func TestDequeueBatchDoesNotRemove(t *testing.T) {
	q := Open(NewFilePersister(filepath.Join(t.TempDir(), DefaultFileName)), testLogger())
	for i := 0; i < 8; i++ {
		require.NoError(t, q.Enqueue("s1", fmt.Sprintf("/pics/%d.jpg", i)))
	}

	first := q.DequeueBatch(5)
	second := q.DequeueBatch(5)

	require.Len(t, first, 5)
	assert.Equal(t, first, second)
	assert.Equal(t, 8, q.Len())
	for i, item := range first {
		assert.Equal(t, fmt.Sprintf("/pics/%d.jpg", i), item.PhotoPath, "oldest first")
	}

	assert.Len(t, q.DequeueBatch(100), 8)
	assert.Empty(t, q.DequeueBatch(0))
}

func TestRemove(t *testing.T) {
	q := Open(NewFilePersister(filepath.Join(t.TempDir(), DefaultFileName)), testLogger())
	require.NoError(t, q.Enqueue("s1", "/pics/a.jpg"))
	require.NoError(t, q.Enqueue("s1", "/pics/b.jpg"))
	require.NoError(t, q.Enqueue("s1", "/pics/c.jpg"))

	require.NoError(t, q.Remove("s1", "/pics/b.jpg"))
	require.NoError(t, q.Remove("s1", "/pics/b.jpg"), "second remove is a no-op")
	require.NoError(t, q.Remove("other", "/pics/a.jpg"), "absent item is a no-op")

	snap := q.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "/pics/a.jpg", snap[0].PhotoPath)
	assert.Equal(t, "/pics/c.jpg", snap[1].PhotoPath)
	assert.False(t, q.Contains("s1", "/pics/b.jpg"))

	// re-enqueue after removal is allowed and goes to the back
	require.NoError(t, q.Enqueue("s1", "/pics/b.jpg"))
	snap = q.Snapshot()
	assert.Equal(t, "/pics/b.jpg", snap[2].PhotoPath)
}

func TestRestartRecoversSnapshot(t *testing.T) {
	for name, newPersister := range backends(t) {
		t.Run(name, func(t *testing.T) {
			p := newPersister()
			q := Open(p, testLogger())
			require.NoError(t, q.Enqueue("s1", "/pics/a.jpg"))
			require.NoError(t, q.Enqueue("s2", "/pics/b.jpg"))
			require.NoError(t, q.Enqueue("s1", "/pics/c.jpg"))
			require.NoError(t, q.Remove("s2", "/pics/b.jpg"))
			before := q.Snapshot()

			restarted := Open(p, testLogger())
			assertSameItems(t, before, restarted.Snapshot())
		})
	}
}

func TestPersistenceFailureKeepsMemoryAuthoritative(t *testing.T) {
	p := &failingPersister{ok: 1}
	q := Open(p, testLogger())

	require.NoError(t, q.Enqueue("s1", "/pics/a.jpg"))

	err := q.Enqueue("s1", "/pics/b.jpg")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodePersistenceFailed))
	assert.True(t, q.Contains("s1", "/pics/b.jpg"), "in-memory queue keeps the item")

	err = q.Remove("s1", "/pics/a.jpg")
	require.Error(t, err)
	assert.False(t, q.Contains("s1", "/pics/a.jpg"))
}

func TestOpenDeduplicatesPersistedItems(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	content := `version: 1
items:
  - session_id: s1
    photo_path: /pics/a.jpg
    enqueued_at: 2026-10-16T10:00:00Z
  - session_id: s1
    photo_path: /pics/a.jpg
    enqueued_at: 2026-10-16T10:05:00Z
  - session_id: s2
    photo_path: /pics/b.jpg
    enqueued_at: 2026-10-16T10:06:00Z
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	q := Open(NewFilePersister(path), testLogger())
	snap := q.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "s1", snap[0].SessionID)
	assert.Equal(t, 10, snap[0].EnqueuedAt.Hour())
	assert.Equal(t, 0, snap[0].EnqueuedAt.Minute())
}

func TestCorruptFileIsQuarantined(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("items: [this is: not: valid"), 0644))

	q := Open(NewFilePersister(path), testLogger())
	assert.Equal(t, 0, q.Len())

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestFileSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	q := Open(NewFilePersister(filepath.Join(dir, DefaultFileName)), testLogger())
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue("s1", fmt.Sprintf("/pics/%d.jpg", i)))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, DefaultFileName, entries[0].Name())
}

func TestConcurrentMutations(t *testing.T) {
	q := Open(NewFilePersister(filepath.Join(t.TempDir(), DefaultFileName)), testLogger())
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				path := fmt.Sprintf("/pics/%d-%d.jpg", w, i)
				assert.NoError(t, q.Enqueue("s", path))
				assert.NoError(t, q.Enqueue("s", path))
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 100, q.Len())
}
