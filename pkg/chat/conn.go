package chat

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrTransportClosed signals that the peer ended the connection. It is the
// expected termination of a session, not a failure.
var ErrTransportClosed = errors.New("transport closed")

// ErrConnClosed is returned by Send once the connection has been closed.
var ErrConnClosed = errors.New("connection closed")

// ErrSlowConsumer is returned by Send when the peer cannot keep up and the
// outbound buffer is full. The frame is dropped.
var ErrSlowConsumer = errors.New("send buffer full")

// Conn is one realtime transport session.
type Conn interface {
	// ID returns the unique identity of the connection.
	ID() string
	// ReadFrame blocks until the next inbound frame arrives. It returns
	// ErrTransportClosed when the peer disconnected.
	ReadFrame() ([]byte, error)
	// Send queues payload for delivery without blocking. A failed send is a
	// cheap local error; it is never retried.
	Send(payload []byte) error
	// Close releases the transport. It is safe to call more than once.
	Close() error
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	sendBufferSize = 16
)

// WSConn adapts a gorilla websocket connection to Conn. Writes go through a
// dedicated pump goroutine; reads happen on the caller's goroutine.
type WSConn struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

func NewWSConn(conn *websocket.Conn, logger *slog.Logger) *WSConn {
	if logger == nil {
		logger = slog.Default()
	}
	c := &WSConn{
		id:     uuid.New().String(),
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: logger,
	}

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.writeLoop()

	return c
}

func (c *WSConn) ID() string {
	return c.id
}

func (c *WSConn) ReadFrame() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if isClosedErr(err) {
			return nil, ErrTransportClosed
		}
		return nil, err
	}
	return data, nil
}

func (c *WSConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (c *WSConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	return nil
}

func (c *WSConn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logger.Debug("exited write loop", slog.String("conn.id", c.id))
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("write frame", slog.String("conn.id", c.id), slog.Any("error", err))
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

func isClosedErr(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return true
	}
	// reads unblocked by our own Close surface as a closed network error
	return errors.Is(err, net.ErrClosed)
}
