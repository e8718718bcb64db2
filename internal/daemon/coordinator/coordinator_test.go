package coordinator

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/booth/errors"
	"github.com/grovetools/booth/internal/daemon/queue"
	"github.com/grovetools/booth/internal/daemon/store"
	"github.com/grovetools/booth/pkg/models"
	"github.com/grovetools/booth/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *store.Store
	queue    *queue.Queue
	network  *testutil.StaticNetwork
	uploader *testutil.FakeUploader
	coord    *Coordinator
}

func newFixture(t *testing.T, online bool) *fixture {
	t.Helper()
	f := &fixture{
		store:    store.New(),
		queue:    queue.Open(queue.NewFilePersister(filepath.Join(t.TempDir(), queue.DefaultFileName)), testutil.Logger()),
		network:  testutil.NewStaticNetwork(online),
		uploader: testutil.NewFakeUploader(),
	}
	f.coord = New(f.store, f.queue, f.network, f.uploader, testutil.Logger())
	return f
}

// pending records a photo the way the capture path does when no URL was obtained.
func (f *fixture) pending(t *testing.T, sessionID, path string) models.QueueItem {
	t.Helper()
	require.NoError(t, f.queue.Enqueue(sessionID, path))
	require.NoError(t, f.store.AddPhoto(sessionID, path, ""))
	return f.queue.Snapshot()[f.queue.Len()-1]
}

func TestAttemptOfflineDefers(t *testing.T) {
	f := newFixture(t, false)
	id := f.store.CreateSession()
	item := f.pending(t, id, "/pics/a.jpg")

	url, err := f.coord.Attempt(context.Background(), item)
	require.Error(t, err)
	assert.Empty(t, url)
	assert.True(t, errors.Is(err, errors.ErrCodeUploadDeferred))
	assert.Empty(t, f.uploader.Calls(), "uploader must not be called while offline")
	assert.Equal(t, 1, f.queue.Len())
}

func TestAttemptSuccess(t *testing.T) {
	f := newFixture(t, true)
	id := f.store.CreateSession()
	item := f.pending(t, id, "/pics/a.jpg")

	url, err := f.coord.Attempt(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, "https://drive.example/file/a.jpg", url)

	assert.False(t, f.queue.Contains(id, "/pics/a.jpg"))
	sess, err := f.store.Get(id)
	require.NoError(t, err)
	assert.True(t, sess.Photos[0].Uploaded)
	assert.Equal(t, url, sess.Photos[0].RemoteURL)
	assert.Equal(t, "folder-"+id, sess.DriveFolderRef)
}

func TestAttemptSuccessWithExpiredSessionStillRemoves(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.queue.Enqueue("long-gone", "/pics/old.jpg"))
	item := f.queue.Snapshot()[0]

	_, err := f.coord.Attempt(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, 0, f.queue.Len())
}

func TestAttemptFailureLeavesItemUntouched(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"transient", testutil.TransientUploadError("/pics/a.jpg"), true},
		{"permanent", testutil.PermanentUploadError("/pics/a.jpg"), false},
		{"unclassified", fmt.Errorf("connection reset"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			id := f.store.CreateSession()
			item := f.pending(t, id, "/pics/a.jpg")
			before := f.queue.Snapshot()
			f.uploader.SetErr(tt.err)

			_, err := f.coord.Attempt(context.Background(), item)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeUploadFailed))
			assert.Equal(t, tt.transient, errors.IsTransient(err))

			assert.Equal(t, before, f.queue.Snapshot())
			sess, _ := f.store.Get(id)
			assert.False(t, sess.Photos[0].Uploaded)
			assert.Equal(t, 1, f.coord.Attempts(id, "/pics/a.jpg"))
		})
	}
}

func TestAttemptRetryAfterFailure(t *testing.T) {
	f := newFixture(t, true)
	id := f.store.CreateSession()
	item := f.pending(t, id, "/pics/a.jpg")

	f.uploader.SetErr(testutil.PermanentUploadError("/pics/a.jpg"))
	_, err := f.coord.Attempt(context.Background(), item)
	require.Error(t, err)
	_, err = f.coord.Attempt(context.Background(), item)
	require.Error(t, err)
	assert.Equal(t, 2, f.coord.Attempts(id, "/pics/a.jpg"))

	f.uploader.SetErr(nil)
	_, err = f.coord.Attempt(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, 0, f.coord.Attempts(id, "/pics/a.jpg"))
	assert.Equal(t, 0, f.queue.Len())
}

func TestOfflineToOnlineScenario(t *testing.T) {
	f := newFixture(t, false)
	id := f.store.CreateSession()
	item := f.pending(t, id, "/pics/a.jpg")

	assert.Equal(t, 1, f.queue.Len())
	qr, err := f.store.QRPayload(id)
	require.NoError(t, err)
	assert.Equal(t, models.QROffline, qr.Type)

	f.network.SetOnline(true)
	_, err = f.coord.Attempt(context.Background(), item)
	require.NoError(t, err)

	assert.Equal(t, 0, f.queue.Len())
	qr, err = f.store.QRPayload(id)
	require.NoError(t, err)
	assert.Equal(t, models.QROnline, qr.Type)
	assert.Equal(t, 1, qr.PhotoCount)
	assert.Equal(t, "https://drive.example/folder/"+id, qr.URL)
}

type panicUploader struct{}

func (panicUploader) Upload(ctx context.Context, path, sessionID string) (models.UploadResult, error) {
	panic("boom")
}

type slowUploader struct{}

func (slowUploader) Upload(ctx context.Context, path, sessionID string) (models.UploadResult, error) {
	<-ctx.Done()
	return models.UploadResult{}, ctx.Err()
}

func TestUploadGuards(t *testing.T) {
	f := newFixture(t, true)

	c := New(f.store, f.queue, f.network, panicUploader{}, testutil.Logger())
	_, err := c.Upload(context.Background(), "/pics/a.jpg", "s")
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))

	c = New(f.store, f.queue, f.network, slowUploader{}, testutil.Logger())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Upload(ctx, "/pics/a.jpg", "s")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeUploadFailed))
}
