package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// connSender wraps one websocket connection to serialize concurrent
// writes, implementing room.Sender. Gorilla's Conn forbids concurrent
// writers, so every outbound frame passes through this mutex.
type connSender struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *connSender) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *connSender) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

func (c *connSender) writeClose(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.conn.Close()
}

// CloseWithCode implements room.Sender, letting the room runtime send a
// specific close code (e.g. 4001 on a disconnect-triggered match end)
// rather than an abrupt TCP close.
func (c *connSender) CloseWithCode(code int, reason string) error {
	c.writeClose(code, reason)
	return nil
}
