package boothclient

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/booth/errors"
	"github.com/grovetools/booth/internal/daemon/orchestrator"
	"github.com/grovetools/booth/internal/daemon/queue"
	"github.com/grovetools/booth/internal/daemon/server"
	"github.com/grovetools/booth/internal/daemon/store"
	"github.com/grovetools/booth/pkg/models"
	"github.com/grovetools/booth/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type daemon struct {
	socket string
	store  *store.Store
	queue  *queue.Queue
	camera *testutil.FakeCamera
}

// startDaemon serves a real API with fake hardware on a temporary socket.
func startDaemon(t *testing.T) *daemon {
	t.Helper()
	dir, err := os.MkdirTemp("", "boothc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	d := &daemon{
		socket: filepath.Join(dir, "boothd.sock"),
		store:  store.New(),
		queue:  queue.Open(queue.NewFilePersister(filepath.Join(dir, queue.DefaultFileName)), testutil.Logger()),
		camera: testutil.NewFakeCamera(dir),
	}
	network := testutil.NewStaticNetwork(false)
	orch := orchestrator.New(d.store, d.queue, network, d.camera, testutil.NewFakeUploader(), orchestrator.Options{}, testutil.Logger())
	srv := server.New(server.Deps{
		Store:    d.store,
		Queue:    d.queue,
		Network:  network,
		Capturer: orch,
	}, testutil.Logger())

	go func() { _ = srv.ListenAndServe(d.socket, "") }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	c := New(d.socket)
	require.Eventually(t, c.IsRunning, 5*time.Second, 20*time.Millisecond)
	return d
}

func TestConnectWithoutDaemon(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "missing.sock")
	_, err := Connect(socket)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeDaemonNotRunning))

	c := New(socket)
	assert.False(t, c.IsRunning())
	_, err = c.Queue(context.Background())
	assert.True(t, errors.Is(err, errors.ErrCodeDaemonNotRunning))
}

func TestCaptureAndQR(t *testing.T) {
	d := startDaemon(t)
	c, err := Connect(d.socket)
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	result, err := c.Capture(ctx, orchestrator.Request{})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.True(t, result.Queued)

	qr, err := c.QR(ctx, result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.QROffline, qr.Type)
	assert.Equal(t, 1, qr.PhotoCount)

	items, err := c.Queue(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, result.PhotoPath, items[0].PhotoPath)

	sessions, err := c.Sessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.QueueLength)
	assert.False(t, st.Network.Online)
}

func TestErrorsAreDecoded(t *testing.T) {
	d := startDaemon(t)
	c := New(d.socket)

	_, err := c.QR(context.Background(), "unknown")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeSessionNotFound))

	// no reconciler wired
	_, err = c.Flush(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInternal))
}

func TestStream(t *testing.T) {
	d := startDaemon(t)
	c := New(d.socket)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := c.Stream(ctx)
	require.NoError(t, err)

	first := <-updates
	assert.Equal(t, string(server.UpdateInitial), first.Type)

	s, err := c.CreateSession(ctx)
	require.NoError(t, err)

	select {
	case u := <-updates:
		assert.Equal(t, string(store.UpdateSessions), u.Type)
		assert.Contains(t, string(u.Payload), s.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("expected a sessions update")
	}

	cancel()
	for range updates {
	}
}

func TestNonJSONErrorBody(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusBadGateway,
		Body:       http.NoBody,
	}
	err := decodeError(resp)
	assert.True(t, errors.Is(err, errors.ErrCodeInternal))
	assert.Contains(t, err.Error(), "502")
}
