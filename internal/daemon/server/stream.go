package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/grovetools/booth/internal/daemon/store"
	"github.com/grovetools/booth/pkg/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// UpdateInitial is the first message on every stream.
const UpdateInitial store.UpdateType = "initial"

// Snapshot is the payload of the initial stream message.
type Snapshot struct {
	Sessions    []*models.Session    `json:"sessions"`
	Network     models.NetworkStatus `json:"network"`
	QueueLength int                  `json:"queue_length"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	origins := s.origins()
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(origins) == 0 {
				return true
			}
			for _, o := range origins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
}

func (s *Server) snapshot() Snapshot {
	snap := Snapshot{Sessions: []*models.Session{}}
	if s.deps.Store != nil {
		snap.Sessions = s.deps.Store.GetSessions()
	}
	if s.deps.Network != nil {
		snap.Network = s.deps.Network.Status()
	}
	if s.deps.Queue != nil {
		snap.QueueLength = s.deps.Queue.Len()
	}
	return snap
}

// handleStream pushes every store update to the client as a JSON message.
// The client only needs to answer pings; anything it sends is discarded.
func (s *Server) handleStream(c *gin.Context) {
	if s.deps.Store == nil {
		unavailable(c, "session store")
		return
	}

	conn, err := s.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already wrote the HTTP error
		s.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := s.deps.Store.Subscribe()
	defer s.deps.Store.Unsubscribe(ch)

	s.logger.Debug("Stream client connected")

	closed := make(chan struct{})
	go readPump(conn, closed)

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(store.Update{Type: UpdateInitial, Source: "server", Payload: s.snapshot()}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			s.logger.Debug("Stream client disconnected")
			return
		case <-c.Request.Context().Done():
			return
		case u, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(u); err != nil {
				s.logger.WithError(err).Debug("Stream write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump keeps the read deadline moving on pongs and signals closed when
// the connection goes away.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
