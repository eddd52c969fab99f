package web

import (
	"sync"

	"github.com/gorilla/websocket"
)

type concurrentConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newConn(c *websocket.Conn) *concurrentConn {
	return &concurrentConn{conn: c}
}

func (c *concurrentConn) writeMessage(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// readloop drains client frames until the connection fails, the stream is one way.
func (c *concurrentConn) readloop() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			log.Debug(err)
			return
		}
	}
}
