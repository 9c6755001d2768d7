// ABOUTME: Viewer wraps one WebSocket connection with a read pump and a write pump
// ABOUTME: Slow viewers lose frames instead of stalling the broadcast

package hub

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // 1MB
	sendBufferSize = 256
)

// Viewer is a single connected presentation client.
type Viewer struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte // closed by the hub on unregister
}

func newViewer(id string, h *Hub, conn *websocket.Conn) *Viewer {
	return &Viewer{
		id:   id,
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// ID returns the viewer's unique identifier.
func (v *Viewer) ID() string {
	return v.id
}

// readPump delivers inbound frames to the hub until the connection fails.
func (v *Viewer) readPump() {
	defer func() {
		v.hub.unregister(v)
		v.conn.Close()
	}()

	v.conn.SetReadLimit(maxMessageSize)
	_ = v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := v.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				v.hub.logger.Info("viewer disconnected unexpectedly", "viewer_id", v.id, "error", err)
			}
			return
		}
		v.hub.handleCommand(v, data)
	}
}

// writePump drains the send buffer and keeps the connection alive with pings.
func (v *Viewer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		v.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-v.send:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = v.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := v.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
