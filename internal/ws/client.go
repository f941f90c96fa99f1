package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Client wraps one websocket connection. gorilla connections allow a single
// concurrent writer, so every write goes through the mutex: broadcasts, timer
// callbacks, and the session's own handlers all share it.
type Client struct {
	userID string
	conn   *websocket.Conn
	mu     sync.Mutex
}

// NewClient wraps an upgraded connection for a user.
func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{userID: userID, conn: conn}
}

// UserID returns the user this connection belongs to.
func (c *Client) UserID() string {
	return c.userID
}

// SendJSON writes one JSON frame.
func (c *Client) SendJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
