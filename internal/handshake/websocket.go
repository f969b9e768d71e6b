package handshake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// WSChannel is a Channel over one websocket connection. Any message read from
// the connection counts as an acknowledgment from that editor.
type WSChannel struct {
	conn    *websocket.Conn
	acks    chan struct{}
	writeMu sync.Mutex
	once    sync.Once
	done    chan struct{}
}

// DialEditor connects to the editor endpoint at url.
func DialEditor(ctx context.Context, url string) (*WSChannel, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dialing editor %s: %w", url, err)
	}
	return NewWSChannel(conn), nil
}

// NewWSChannel wraps an established connection and starts reading acks.
func NewWSChannel(conn *websocket.Conn) *WSChannel {
	c := &WSChannel{
		conn: conn,
		acks: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *WSChannel) readLoop() {
	defer close(c.acks)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		select {
		case c.acks <- struct{}{}:
		case <-c.done:
			return
		default:
			// An ack is already pending.
		}
	}
}

// Send writes payload as a JSON text message.
func (c *WSChannel) Send(ctx context.Context, payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteJSON(payload)
}

// Acks returns the acknowledgment channel. It is closed when the connection
// ends.
func (c *WSChannel) Acks() <-chan struct{} {
	return c.acks
}

// Close sends a close frame and closes the connection.
func (c *WSChannel) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
