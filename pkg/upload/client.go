// Package upload sends photos to the cloud upload gateway.
//
// The gateway owns the remote storage account. boothd posts each photo as a
// multipart form naming the session folder; the gateway creates the folder on
// first use and answers with links to the file and the folder.
package upload

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grovetools/booth/errors"
	"github.com/grovetools/booth/pkg/models"
	"github.com/grovetools/booth/version"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

// Options configures the client.
type Options struct {
	Endpoint     string
	Token        string
	Timeout      time.Duration
	FolderPrefix string
	ParentFolder string
}

// response is the gateway's JSON answer.
type response struct {
	URL       string `json:"url"`
	FolderID  string `json:"folder_id"`
	FolderURL string `json:"folder_url"`
	Error     string `json:"error,omitempty"`
}

// Client uploads photos over HTTP.
type Client struct {
	http   *http.Client
	logger *logrus.Entry

	mu   sync.RWMutex
	opts Options
}

// New creates a client. The per-request timeout comes from opts.Timeout.
func New(opts Options, logger *logrus.Entry) *Client {
	return &Client{
		http:   &http.Client{},
		logger: logger,
		opts:   opts,
	}
}

// SetOptions replaces the client options for subsequent uploads.
func (c *Client) SetOptions(opts Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts = opts
}

func (c *Client) options() Options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opts
}

// FolderName is the remote folder for a session.
func (o Options) FolderName(sessionID string) string {
	return o.FolderPrefix + sessionID
}

// Upload sends one photo into the session's folder. Errors are UPLOAD_FAILED
// BoothErrors classified as transient or permanent.
func (c *Client) Upload(ctx context.Context, path, sessionID string) (models.UploadResult, error) {
	opts := c.options()
	if opts.Endpoint == "" {
		return models.UploadResult{}, errors.UploadFailed(path, false, fmt.Errorf("no upload endpoint configured"))
	}

	digest, err := fileDigest(path)
	if err != nil {
		// the photo is gone or unreadable; retrying will not bring it back
		return models.UploadResult{}, errors.UploadFailed(path, false, err)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	body, contentType := multipartBody(path, map[string]string{
		"session_id": sessionID,
		"folder":     opts.FolderName(sessionID),
		"parent":     opts.ParentFolder,
	})
	defer body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(opts.Endpoint, "/")+"/upload", body)
	if err != nil {
		return models.UploadResult{}, errors.UploadFailed(path, false, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("User-Agent", version.GetInfo().UserAgent())
	req.Header.Set("Idempotency-Key", sessionID+":"+digest)
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	log := c.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"photo_path": path,
		"request_id": requestID,
	})
	log.Debug("Uploading photo")

	resp, err := c.http.Do(req)
	if err != nil {
		// refused connections, DNS failures, resets and timeouts all clear up on their own
		return models.UploadResult{}, errors.UploadFailed(path, true, err)
	}
	defer resp.Body.Close()

	var parsed response
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := resp.Status
		if decodeErr == nil && parsed.Error != "" {
			msg = fmt.Sprintf("%s: %s", resp.Status, parsed.Error)
		}
		return models.UploadResult{}, errors.UploadFailed(path, TransientStatus(resp.StatusCode), fmt.Errorf("%s", msg)).
			WithDetail("status", resp.StatusCode)
	}
	if decodeErr != nil {
		return models.UploadResult{}, errors.UploadFailed(path, true, fmt.Errorf("decode gateway response: %w", decodeErr))
	}
	if parsed.URL == "" {
		return models.UploadResult{}, errors.UploadFailed(path, false, fmt.Errorf("gateway response has no url"))
	}

	log.WithField("url", parsed.URL).Debug("Photo uploaded")
	return models.UploadResult{
		URL:       parsed.URL,
		FolderRef: parsed.FolderID,
		FolderURL: parsed.FolderURL,
	}, nil
}

// TransientStatus reports whether an HTTP status is worth retrying soon:
// timeouts, throttling and server errors. Other 4xx answers (bad token,
// quota, rejected file) need an operator.
func TransientStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}

// fileDigest returns the BLAKE3 hex digest of the file. The gateway uses it
// with the session id to drop duplicate deliveries.
func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// multipartBody streams fields and the photo through a pipe so large
// photos are never held in memory.
func multipartBody(path string, fields map[string]string) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := func() error {
			for k, v := range fields {
				if v == "" {
					continue
				}
				if err := mw.WriteField(k, v); err != nil {
					return err
				}
			}
			part, err := mw.CreateFormFile("file", filepath.Base(path))
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			if _, err := io.Copy(part, f); err != nil {
				return err
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()

	return pr, mw.FormDataContentType()
}
