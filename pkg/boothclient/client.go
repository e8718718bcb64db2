// Package boothclient talks to a running boothd over its Unix socket.
package boothclient

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/grovetools/booth/errors"
	"github.com/grovetools/booth/internal/daemon/orchestrator"
	"github.com/grovetools/booth/internal/daemon/reconciler"
	"github.com/grovetools/booth/internal/daemon/server"
	"github.com/grovetools/booth/pkg/models"
)

// baseURL is the dummy host used for Unix socket HTTP requests.
// The actual connection goes through the Unix socket, not this URL.
const baseURL = "http://unix"

// Client calls the daemon's HTTP API.
type Client struct {
	httpClient *http.Client
	socketPath string
}

// New creates a client for the daemon socket. It does not connect.
func New(socketPath string) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			// captures wait on the camera and the hot-path upload
			Timeout: 2 * time.Minute,
		},
		socketPath: socketPath,
	}
}

// Connect returns a client when the daemon is reachable, or a
// DAEMON_NOT_RUNNING error.
func Connect(socketPath string) (*Client, error) {
	if _, err := os.Stat(socketPath); err != nil {
		return nil, errors.DaemonNotRunning(socketPath)
	}
	conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
	if err != nil {
		return nil, errors.DaemonNotRunning(socketPath)
	}
	conn.Close()
	return New(socketPath), nil
}

// SocketPath returns the daemon socket.
func (c *Client) SocketPath() string { return c.socketPath }

// IsRunning returns true if the daemon is available and responding.
func (c *Client) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Status returns the daemon summary.
func (c *Client) Status(ctx context.Context) (*server.Status, error) {
	var out server.Status
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Network returns the cached connectivity state.
func (c *Client) Network(ctx context.Context) (models.NetworkStatus, error) {
	var out models.NetworkStatus
	err := c.do(ctx, http.MethodGet, "/api/network", nil, &out)
	return out, err
}

// Sessions returns the live sessions.
func (c *Client) Sessions(ctx context.Context) ([]*models.Session, error) {
	var out []*models.Session
	if err := c.do(ctx, http.MethodGet, "/api/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSession starts an empty session.
func (c *Client) CreateSession(ctx context.Context) (*models.Session, error) {
	var out models.Session
	if err := c.do(ctx, http.MethodPost, "/api/sessions", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QR returns the QR payload of a session.
func (c *Client) QR(ctx context.Context, sessionID string) (*models.QRPayload, error) {
	var out models.QRPayload
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+sessionID+"/qr", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Capture presses the shutter. The result is returned even when the capture
// itself failed; only transport problems are errors.
func (c *Client) Capture(ctx context.Context, req orchestrator.Request) (models.CaptureResult, error) {
	var out models.CaptureResult
	err := c.do(ctx, http.MethodPost, "/api/capture", req, &out)
	return out, err
}

// Queue returns the pending uploads in order.
func (c *Client) Queue(ctx context.Context) ([]models.QueueItem, error) {
	var out []models.QueueItem
	if err := c.do(ctx, http.MethodGet, "/api/queue", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Flush runs a reconcile pass now and returns its report.
func (c *Client) Flush(ctx context.Context) (reconciler.Report, error) {
	var out reconciler.Report
	err := c.do(ctx, http.MethodPost, "/api/queue/flush", nil, &out)
	return out, err
}

// UpdateSettings changes admin settings.
func (c *Client) UpdateSettings(ctx context.Context, pin string, values map[string]interface{}) (*server.SettingsResponse, error) {
	var out server.SettingsResponse
	body := server.SettingsRequest{PIN: pin, Values: values}
	if err := c.do(ctx, http.MethodPost, "/api/settings", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends a JSON request and decodes a JSON response. Non-2xx responses
// are decoded as BoothErrors.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var opErr *net.OpError
		if stderrors.As(err, &opErr) && opErr.Op == "dial" {
			return errors.DaemonNotRunning(c.socketPath).WithDetail("cause", err.Error())
		}
		return errors.Wrap(err, errors.ErrCodeInternal, fmt.Sprintf("%s %s failed", method, path))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var boothErr errors.BoothError
	if err := json.Unmarshal(data, &boothErr); err == nil && boothErr.Code != "" {
		return &boothErr
	}
	return errors.New(errors.ErrCodeInternal, fmt.Sprintf("daemon returned status %d", resp.StatusCode)).
		WithDetail("body", string(bytes.TrimSpace(data)))
}

// Close cleans up any resources used by the client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
