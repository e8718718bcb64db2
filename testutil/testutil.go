// Package testutil holds collaborator fakes and helpers shared by the booth tests.
package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/booth/errors"
	"github.com/grovetools/booth/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// RandomString generates a random hex string of the specified length
func RandomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return hex.EncodeToString(bytes)[:length]
}

// Logger returns a logger entry that discards output.
func Logger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.DebugLevel)
	return l.WithField("component", "test")
}

// WriteJPEG writes a solid-colour JPEG of the given size and returns its path.
func WriteJPEG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 90}))
	return path
}

// Clock is a manually advanced clock.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock creates a clock frozen at t.
func NewClock(t time.Time) *Clock {
	return &Clock{t: t}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// ProbeResult is one scripted answer of a FakeProber.
type ProbeResult struct {
	Online bool
	SSID   string
	Err    error
	// Block makes the probe wait for its context to expire.
	Block bool
}

// FakeProber replays scripted results. After the script runs out the last
// result repeats.
type FakeProber struct {
	mu      sync.Mutex
	results []ProbeResult
	calls   int
}

// NewFakeProber creates a prober that returns results in order.
func NewFakeProber(results ...ProbeResult) *FakeProber {
	return &FakeProber{results: results}
}

// Name implements netmon.Prober.
func (p *FakeProber) Name() string { return "fake" }

// Probe implements netmon.Prober.
func (p *FakeProber) Probe(ctx context.Context) (bool, string, error) {
	p.mu.Lock()
	var r ProbeResult
	if len(p.results) > 0 {
		idx := p.calls
		if idx >= len(p.results) {
			idx = len(p.results) - 1
		}
		r = p.results[idx]
	}
	p.calls++
	p.mu.Unlock()

	if r.Block {
		<-ctx.Done()
		return false, "", ctx.Err()
	}
	return r.Online, r.SSID, r.Err
}

// Set replaces the script with a single repeating result.
func (p *FakeProber) Set(r ProbeResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = []ProbeResult{r}
	p.calls = 0
}

// Calls returns how many probes ran.
func (p *FakeProber) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// StaticNetwork is a fixed online/offline answer for components that only
// read the cached network state.
type StaticNetwork struct {
	mu     sync.Mutex
	online bool
}

// NewStaticNetwork creates a network state.
func NewStaticNetwork(online bool) *StaticNetwork {
	return &StaticNetwork{online: online}
}

// IsOnline reports the configured state.
func (n *StaticNetwork) IsOnline() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online
}

// Status returns the state as a NetworkStatus.
func (n *StaticNetwork) Status() models.NetworkStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return models.NetworkStatus{Online: n.online}
}

// SetOnline flips the state.
func (n *StaticNetwork) SetOnline(online bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.online = online
}

// UploadCall records one FakeUploader invocation.
type UploadCall struct {
	Path      string
	SessionID string
}

// FakeUploader returns deterministic URLs, or Err when set.
type FakeUploader struct {
	mu    sync.Mutex
	Err   error
	calls []UploadCall
	// FailPaths fails uploads of specific photos.
	FailPaths map[string]error
}

// NewFakeUploader creates an uploader that always succeeds.
func NewFakeUploader() *FakeUploader {
	return &FakeUploader{FailPaths: make(map[string]error)}
}

// Upload implements the uploader contract.
func (u *FakeUploader) Upload(ctx context.Context, path, sessionID string) (models.UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, UploadCall{Path: path, SessionID: sessionID})

	if err, ok := u.FailPaths[path]; ok {
		return models.UploadResult{}, err
	}
	if u.Err != nil {
		return models.UploadResult{}, u.Err
	}
	return models.UploadResult{
		URL:       "https://drive.example/file/" + filepath.Base(path),
		FolderRef: "folder-" + sessionID,
		FolderURL: "https://drive.example/folder/" + sessionID,
	}, nil
}

// SetErr makes every following upload fail with err (nil restores success).
func (u *FakeUploader) SetErr(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Err = err
}

// Calls returns a copy of the recorded calls.
func (u *FakeUploader) Calls() []UploadCall {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]UploadCall, len(u.calls))
	copy(out, u.calls)
	return out
}

// TransientUploadError is a retryable upload failure.
func TransientUploadError(path string) error {
	return errors.UploadFailed(path, true, fmt.Errorf("503 service unavailable"))
}

// PermanentUploadError is a non-retryable upload failure.
func PermanentUploadError(path string) error {
	return errors.UploadFailed(path, false, fmt.Errorf("401 unauthorized"))
}

// FakeCamera produces sequentially named files in Dir.
type FakeCamera struct {
	mu         sync.Mutex
	Dir        string
	CaptureErr error
	// OverlayFails makes ApplyOverlay return its input.
	OverlayFails bool
	captures     int
	flashes      int
	overlays     int
}

// NewFakeCamera creates a camera writing into dir.
func NewFakeCamera(dir string) *FakeCamera {
	return &FakeCamera{Dir: dir}
}

// Capture writes an empty photo file and returns its path.
func (c *FakeCamera) Capture(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CaptureErr != nil {
		return "", errors.CaptureFailed(c.CaptureErr)
	}
	c.captures++
	path := filepath.Join(c.Dir, fmt.Sprintf("photo_%03d.jpg", c.captures))
	if err := os.WriteFile(path, []byte("jpeg"), 0644); err != nil {
		return "", errors.CaptureFailed(err)
	}
	return path, nil
}

// ApplyOverlay returns a derived path, or the input when overlays fail.
func (c *FakeCamera) ApplyOverlay(ctx context.Context, path string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overlays++
	if c.OverlayFails {
		return path
	}
	out := path[:len(path)-len(filepath.Ext(path))] + "_overlay.jpg"
	if err := os.WriteFile(out, []byte("jpeg+overlay"), 0644); err != nil {
		return path
	}
	return out
}

// TriggerFlash counts flash requests.
func (c *FakeCamera) TriggerFlash(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flashes++
	return true
}

// Captures returns how many photos were taken.
func (c *FakeCamera) Captures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captures
}

// Flashes returns how many flashes were triggered.
func (c *FakeCamera) Flashes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flashes
}
