package registry

import (
	"sync/atomic"
	"time"

	"trading-backbone/src/helpers"
	"trading-backbone/src/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	// Buffered send channel so fan-out never blocks on one consumer.
	sendBufferSize = 256
)

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

// Client is the production IConnection: a gorilla websocket with a buffered
// send channel drained by a dedicated write pump.
type Client struct {
	id       string
	subject  string
	conn     *websocket.Conn
	send     chan interface{}
	registry *Registry
	logger   *logger.Logger
	closed   atomic.Bool
}

// -----------------------------------------------------------------------------

func NewClient(reg *Registry, conn *websocket.Conn, subject string, log *logger.Logger) *Client {
	return &Client{
		id:       uuid.NewString(),
		subject:  subject,
		conn:     conn,
		send:     make(chan interface{}, sendBufferSize),
		registry: reg,
		logger:   log,
	}
}

// -----------------------------------------------------------------------------

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Subject() string {
	return c.subject
}

// -----------------------------------------------------------------------------

// Send enqueues a payload without blocking. A full buffer means the consumer
// is too slow to keep; the caller turns the error into a disconnect.
func (c *Client) Send(payload interface{}) error {
	if c.closed.Load() {
		return helpers.NewConnectionError("connection already closed", nil)
	}

	select {
	case c.send <- payload:
		return nil
	default:
		return helpers.NewConnectionError("send buffer full", nil)
	}
}

// -----------------------------------------------------------------------------

// Close tears the transport down. The read pump observes the closed socket
// and exits; the write pump exits on its next write.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

// -----------------------------------------------------------------------------
// readPump - handles incoming messages from the client.
// Acts as a watchdog for the connection.
// -----------------------------------------------------------------------------

func (c *Client) ReadPump(handle func(*Client, []byte)) {
	defer func() {
		c.registry.Disconnect(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Info("WebSocket error for %s: %v", c.subject, err)
			}
			return
		}
		handle(c, message)
	}
}

// -----------------------------------------------------------------------------
// writePump - sends messages to the client.
// -----------------------------------------------------------------------------

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(payload); err != nil {
				c.logger.Info("Write error for %s: %v", c.subject, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
