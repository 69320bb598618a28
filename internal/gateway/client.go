package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/google/uuid"

	"github.com/nextlevelbuilder/goclaw/pkg/protocol"
)

// Client is one connected WebSocket peer: a browser tab, the CLI channel,
// or an SDK consumer. It owns the read loop (RPC Request dispatch) and a
// buffered write loop (Response + EventFrame delivery), so a slow reader
// never blocks the server from broadcasting to other clients.
type Client struct {
	id     string
	userID string // set once the "connect" method authenticates, empty until then

	conn   *websocket.Conn
	server *Server

	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient wraps an upgraded WebSocket connection.
func NewClient(conn *websocket.Conn, server *Server) *Client {
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		server: server,
		send:   make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

// Run drives the read and write loops until the connection closes or ctx is
// cancelled.
func (c *Client) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writeLoop(ctx)
	c.readLoop(ctx)
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var req protocol.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			c.writeResponse(protocol.Response{
				Error: protocol.NewError(protocol.ErrCodeParseError, "invalid JSON request"),
			})
			continue
		}

		if !c.server.rateLimiter.Allow(c.id) {
			c.writeResponse(protocol.Response{
				ID:    req.ID,
				Error: protocol.NewError(protocol.ErrCodeRateLimited, "rate limit exceeded"),
			})
			continue
		}

		resp := c.server.router.Dispatch(ctx, c, req)
		c.writeResponse(resp)
	}
}

func (c *Client) writeResponse(resp protocol.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.closed:
	}
}

// SendEvent pushes an unsolicited EventFrame to this client.
func (c *Client) SendEvent(event protocol.EventFrame) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	case <-c.closed:
	default:
		slog.Warn("client send buffer full, dropping event", "client", c.id, "event", event.Type)
	}
}

func (c *Client) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close shuts down the client's write loop and underlying connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

func (c *Client) String() string {
	return fmt.Sprintf("client(%s)", c.id)
}

// UserID returns the authenticated user ID set by the connect handshake,
// or "" if the client hasn't connected yet.
func (c *Client) UserID() string {
	return c.userID
}
