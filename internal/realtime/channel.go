package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	writeWait               = 10 * time.Second
	pongWait                = 60 * time.Second
	pingInterval            = 30 * time.Second
	frameBuffer             = 32
)

// ErrClosed is returned by Send after the channel has been closed.
var ErrClosed = errors.New("realtime: channel closed")

// Channel is one open connection subscribed to a single topic. Inbound
// MESSAGE frames arrive on Frames() in receipt order; the channel performs no
// reordering or deduplication. Close is idempotent and always safe.
type Channel interface {
	Send(destination string, payload any) error
	Frames() <-chan Frame
	Close() error
}

// Dialer opens channels. The coordinator takes it as an interface so tests
// can substitute an in-memory implementation.
type Dialer interface {
	Dial(ctx context.Context, topic, token string) (Channel, error)
}

// WebSocketDialer dials the platform's /ws endpoint.
type WebSocketDialer struct {
	// URL is the websocket endpoint, e.g. "ws://host:8082/ws".
	URL string
	// HandshakeTimeout bounds dial plus subscription acknowledgement.
	HandshakeTimeout time.Duration
}

// Dial opens the connection, subscribes to the topic, and waits for the
// broker's CONNECTED acknowledgement. On any failure the caller gets an error
// and no channel; there is no partial success.
func (d *WebSocketDialer) Dial(ctx context.Context, topic, token string) (Channel, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}

	target := d.URL
	if token != "" {
		target += "?token=" + url.QueryEscape(token)
	}

	dialer := &websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}

	ch := &wsChannel{
		conn:   conn,
		frames: make(chan Frame, frameBuffer),
		closed: make(chan struct{}),
	}

	if err := ch.writeFrame(Frame{Command: CommandSubscribe, Destination: topic}); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	if err := ch.awaitConnected(timeout); err != nil {
		_ = ch.Close()
		return nil, err
	}

	go ch.readLoop()
	go ch.pingLoop()
	return ch, nil
}

type wsChannel struct {
	conn   *websocket.Conn
	frames chan Frame

	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

// awaitConnected blocks until the broker acknowledges the subscription.
// Anything other than a CONNECTED frame is a protocol-level rejection.
func (c *wsChannel) awaitConnected(timeout time.Duration) error {
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))

	var f Frame
	if err := c.conn.ReadJSON(&f); err != nil {
		return fmt.Errorf("await handshake: %w", err)
	}
	switch f.Command {
	case CommandConnected:
		return nil
	case CommandError:
		return fmt.Errorf("broker rejected subscription: %s", string(f.Body))
	default:
		return fmt.Errorf("unexpected handshake frame %q", f.Command)
	}
}

func (c *wsChannel) readLoop() {
	defer close(c.frames)

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			return
		}
		if f.Command != CommandMessage {
			continue
		}
		select {
		case c.frames <- f:
		case <-c.closed:
			return
		}
	}
}

func (c *wsChannel) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

// Send publishes a fire-and-forget frame. Delivery acknowledgement, where
// needed, is application-level.
func (c *wsChannel) Send(destination string, payload any) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.writeFrame(Frame{Command: CommandSend, Destination: destination, Body: body})
}

func (c *wsChannel) Frames() <-chan Frame {
	return c.frames
}

// Close tears the connection down. Safe to call any number of times,
// including when the handshake never completed.
func (c *wsChannel) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)

		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		_ = c.conn.Close()
	})
	return nil
}

func (c *wsChannel) writeFrame(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
