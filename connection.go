package nostr

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/coder/websocket"
)

// Connection is a thin wrapper over a client websocket.
type Connection struct {
	conn *websocket.Conn
}

// NewConnection dials url. ctx only bounds the opening handshake.
func NewConnection(ctx context.Context, url string, requestHeader http.Header) (*Connection, error) {
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: requestHeader,
	})
	if err != nil {
		return nil, err
	}

	c.SetReadLimit(2 << 24) // 33MB

	return &Connection{conn: c}, nil
}

func (c *Connection) WriteMessage(ctx context.Context, data []byte) error {
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// ReadMessage reads the next data message into buf.
func (c *Connection) ReadMessage(ctx context.Context, buf io.Writer) error {
	_, reader, err := c.conn.Reader(ctx)
	if err != nil {
		return fmt.Errorf("failed to get reader: %w", err)
	}
	if _, err := io.Copy(buf, reader); err != nil {
		return fmt.Errorf("failed to read message: %w", err)
	}
	return nil
}

func (c *Connection) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *Connection) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
