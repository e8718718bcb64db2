package boothclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/gorilla/websocket"
)

// StateUpdate is one message from the daemon stream. Payload is decoded by
// the caller according to Type.
type StateUpdate struct {
	Type    string          `json:"type"`
	Source  string          `json:"source,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Stream subscribes to real-time state updates. The first message is the
// "initial" snapshot. The channel is closed when ctx is cancelled or the
// connection is lost.
func (c *Client) Stream(ctx context.Context) (<-chan StateUpdate, error) {
	dialer := websocket.Dialer{
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", c.socketPath)
		},
	}

	conn, _, err := dialer.DialContext(ctx, "ws://unix/api/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to stream: %w", err)
	}

	ch := make(chan StateUpdate, 10)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(ch)
		defer conn.Close()
		for {
			var update StateUpdate
			if err := conn.ReadJSON(&update); err != nil {
				if _, ok := err.(*json.SyntaxError); ok {
					continue // Skip malformed data
				}
				return
			}
			select {
			case ch <- update:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}
