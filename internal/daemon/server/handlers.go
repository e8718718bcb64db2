package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/grovetools/booth/config"
	"github.com/grovetools/booth/errors"
	"github.com/grovetools/booth/internal/daemon/orchestrator"
	"github.com/grovetools/booth/internal/daemon/store"
	"github.com/grovetools/booth/pkg/models"
	"github.com/grovetools/booth/version"
)

// Status is the /api/status response.
type Status struct {
	Version     string               `json:"version"`
	Network     models.NetworkStatus `json:"network"`
	QueueLength int                  `json:"queue_length"`
	QueuePath   string               `json:"queue_path,omitempty"`
	Sessions    int                  `json:"sessions"`
	Workers     []string             `json:"workers,omitempty"`
	Config      *RunningConfig       `json:"config,omitempty"`
}

// SettingsRequest is the /api/settings body.
type SettingsRequest struct {
	PIN    string                 `json:"pin"`
	Values map[string]interface{} `json:"values"`
}

// SettingsResponse lists the applied keys and the resulting config.
type SettingsResponse struct {
	Updated []string       `json:"updated"`
	Config  *RunningConfig `json:"config"`
}

func (s *Server) handleStatus(c *gin.Context) {
	st := Status{
		Version: version.GetInfo().Version,
		Workers: s.deps.Workers,
	}
	if s.deps.Network != nil {
		st.Network = s.deps.Network.Status()
	}
	if s.deps.Queue != nil {
		st.QueueLength = s.deps.Queue.Len()
		st.QueuePath = s.deps.Queue.Location()
	}
	if s.deps.Store != nil {
		st.Sessions = s.deps.Store.Len()
	}
	if s.deps.Settings != nil {
		st.Config = NewRunningConfig(s.deps.Settings.Current(), s.startedAt)
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleNetwork(c *gin.Context) {
	if s.deps.Network == nil {
		unavailable(c, "network monitor")
		return
	}
	c.JSON(http.StatusOK, s.deps.Network.Status())
}

func (s *Server) handleListSessions(c *gin.Context) {
	if s.deps.Store == nil {
		unavailable(c, "session store")
		return
	}
	c.JSON(http.StatusOK, s.deps.Store.GetSessions())
}

func (s *Server) handleCreateSession(c *gin.Context) {
	if s.deps.Store == nil {
		unavailable(c, "session store")
		return
	}
	id := s.deps.Store.CreateSession()
	sess, err := s.deps.Store.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (s *Server) handleQR(c *gin.Context) {
	if s.deps.Store == nil {
		unavailable(c, "session store")
		return
	}
	qr, err := s.deps.Store.QRPayload(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, qr)
}

// handleCapture always answers 200 with the terminal CaptureResult; callers
// check Success.
func (s *Server) handleCapture(c *gin.Context) {
	if s.deps.Capturer == nil {
		unavailable(c, "capture")
		return
	}
	var req orchestrator.Request
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		writeError(c, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid capture request"))
		return
	}
	c.JSON(http.StatusOK, s.deps.Capturer.Capture(c.Request.Context(), req))
}

func (s *Server) handleQueue(c *gin.Context) {
	if s.deps.Queue == nil {
		unavailable(c, "offline queue")
		return
	}
	c.JSON(http.StatusOK, s.deps.Queue.Snapshot())
}

func (s *Server) handleFlush(c *gin.Context) {
	if s.deps.Flusher == nil {
		unavailable(c, "reconciler")
		return
	}
	report, err := s.deps.Flusher.Flush(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleSettings(c *gin.Context) {
	if s.deps.Settings == nil {
		unavailable(c, "settings")
		return
	}
	var req SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid settings request"))
		return
	}

	cfg, keys, err := config.UpdateSettings(s.deps.Settings.Current(), req.PIN, req.Values)
	if err != nil {
		if errors.Is(err, errors.ErrCodePermissionDenied) {
			s.logger.WithField("client", c.ClientIP()).Warn("Rejected settings update with wrong PIN")
		}
		writeError(c, err)
		return
	}

	// the file watcher would pick this up too; applying now makes the
	// response reflect the new values
	s.deps.Settings.Apply(cfg)
	s.logger.WithField("keys", keys).Info("Settings updated")
	if s.deps.Store != nil {
		s.deps.Store.Broadcast(store.Update{
			Type:    store.UpdateConfigReload,
			Source:  "settings",
			Payload: map[string]interface{}{"path": cfg.Path(), "keys": keys},
		})
	}

	c.JSON(http.StatusOK, SettingsResponse{
		Updated: keys,
		Config:  NewRunningConfig(cfg, s.startedAt),
	})
}

// statusFor maps an error code to an HTTP status.
func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeSessionNotFound, errors.ErrCodeConfigNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidInput, errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		return http.StatusBadRequest
	case errors.ErrCodePermissionDenied:
		return http.StatusForbidden
	case errors.ErrCodePersistenceFailed:
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a BoothError body.
func writeError(c *gin.Context, err error) {
	boothErr := asBoothError(err)
	c.AbortWithStatusJSON(statusFor(boothErr.Code), boothErr)
}

func asBoothError(err error) *errors.BoothError {
	for e := err; e != nil; {
		if be, ok := e.(*errors.BoothError); ok {
			return be
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return errors.Wrap(err, errors.ErrCodeInternal, err.Error())
}

func unavailable(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable,
		errors.New(errors.ErrCodeInternal, what+" not initialized"))
}
