package engine_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/booth/internal/daemon/coordinator"
	"github.com/grovetools/booth/internal/daemon/engine"
	"github.com/grovetools/booth/internal/daemon/netmon"
	"github.com/grovetools/booth/internal/daemon/orchestrator"
	"github.com/grovetools/booth/internal/daemon/queue"
	"github.com/grovetools/booth/internal/daemon/reconciler"
	"github.com/grovetools/booth/internal/daemon/store"
	"github.com/grovetools/booth/pkg/models"
	"github.com/grovetools/booth/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panicker struct{}

func (panicker) Name() string { return "panicker" }

func (panicker) Run(ctx context.Context, updates chan<- store.Update) error {
	panic("boom")
}

type ticker struct{ name string }

func (t ticker) Name() string { return t.name }

func (t ticker) Run(ctx context.Context, updates chan<- store.Update) error {
	engine.Emit(ctx, updates, store.Update{Type: store.UpdateQueue, Source: t.name})
	<-ctx.Done()
	return nil
}

func startEngine(t *testing.T, eng *engine.Engine) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		eng.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("engine did not stop")
		}
	})
	return cancel
}

func TestWorkerPanicIsContained(t *testing.T) {
	st := store.New()
	sub := st.Subscribe()
	defer st.Unsubscribe(sub)

	eng := engine.New(st, testutil.Logger())
	eng.Register(panicker{})
	eng.Register(ticker{name: "healthy"})
	assert.Equal(t, []string{"panicker", "healthy"}, eng.Workers())

	startEngine(t, eng)

	select {
	case u := <-sub:
		assert.Equal(t, "healthy", u.Source)
	case <-time.After(5 * time.Second):
		t.Fatal("healthy worker update was not broadcast")
	}
}

func TestStartReturnsAfterCancel(t *testing.T) {
	eng := engine.New(store.New(), testutil.Logger())
	eng.Register(ticker{name: "a"})
	eng.Register(ticker{name: "b"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		eng.Start(ctx)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return")
	}
}

// An offline capture is queued and uploaded by the reconciler once the
// monitor sees the network come back, which flips the session's QR online.
func TestOfflineCaptureIsUploadedWhenNetworkReturns(t *testing.T) {
	dir := t.TempDir()
	logger := testutil.Logger()

	st := store.New()
	q := queue.Open(queue.NewFilePersister(filepath.Join(dir, queue.DefaultFileName)), logger)
	defer q.Close()

	prober := testutil.NewFakeProber(testutil.ProbeResult{Online: false})
	mon := netmon.New(prober, netmon.Options{
		Interval:      20 * time.Millisecond,
		Timeout:       10 * time.Millisecond,
		BackoffFactor: 1,
	}, logger)

	uploader := testutil.NewFakeUploader()
	coord := coordinator.New(st, q, mon, uploader, logger)
	recon := reconciler.New(st, q, mon, coord, reconciler.Options{
		Interval:       30 * time.Millisecond,
		ErrorBackoff:   30 * time.Millisecond,
		SessionTimeout: time.Hour,
		BatchSize:      5,
	}, logger)
	orch := orchestrator.New(st, q, mon, testutil.NewFakeCamera(dir), coord, orchestrator.Options{}, logger)

	sub := st.Subscribe()
	defer st.Unsubscribe(sub)

	eng := engine.New(st, logger)
	eng.Register(mon)
	eng.Register(recon)
	startEngine(t, eng)

	require.Eventually(t, func() bool { return prober.Calls() > 0 }, 5*time.Second, 5*time.Millisecond)

	result := orch.Capture(context.Background(), orchestrator.Request{})
	require.True(t, result.Success, result.Error)
	require.True(t, result.Queued)
	assert.False(t, result.IsOnline)

	qr, err := st.QRPayload(result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.QROffline, qr.Type)
	assert.Empty(t, uploader.Calls())

	prober.Set(testutil.ProbeResult{Online: true, SSID: "venue"})

	require.Eventually(t, func() bool {
		qr, err := st.QRPayload(result.SessionID)
		return err == nil && qr.Type == models.QROnline && q.Len() == 0
	}, 5*time.Second, 10*time.Millisecond)

	calls := uploader.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, result.PhotoPath, calls[0].Path)
	assert.Equal(t, result.SessionID, calls[0].SessionID)
	assert.Equal(t, "venue", mon.CurrentSSID())

	// the network change reached subscribers
	sawNetwork := false
	timeout := time.After(time.Second)
	for !sawNetwork {
		select {
		case u := <-sub:
			sawNetwork = u.Type == store.UpdateNetwork
		case <-timeout:
			t.Fatal("no network update broadcast")
		}
	}
}
