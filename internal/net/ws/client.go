package ws

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ThePuug/closed-economy/internal/event"
	"github.com/ThePuug/closed-economy/internal/net/proto"
)

const defaultInboxSize = 256

// ErrClosed is returned once the client connection has shut down.
var ErrClosed = errors.New("ws: connection closed")

// ClientConfig tunes the client transport.
type ClientConfig struct {
	Logger    *log.Logger
	InboxSize int
	WriteWait time.Duration
}

// Client is the session side of the transport. Transmit sends tries; decoded
// confirmations arrive on Inbox in the order the host sent them.
type Client struct {
	conn      *websocket.Conn
	logger    *log.Logger
	writeWait time.Duration
	inbox     chan proto.Message

	writeMu sync.Mutex
	once    sync.Once
	done    chan struct{}
	errMu   sync.Mutex
	err     error
}

// Dial connects to the host websocket endpoint at url.
func Dial(ctx context.Context, url string, cfg ClientConfig) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	size := cfg.InboxSize
	if size <= 0 {
		size = defaultInboxSize
	}
	writeWait := cfg.WriteWait
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	c := &Client{
		conn:      conn,
		logger:    logger,
		writeWait: writeWait,
		inbox:     make(chan proto.Message, size),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.inbox)
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.fail(err)
			} else {
				c.fail(ErrClosed)
			}
			return
		}
		msg, err := proto.Decode(payload)
		if err != nil {
			c.logger.Printf("discarding malformed confirmation: %v", err)
			continue
		}
		if msg.Type != proto.TypeDo {
			c.logger.Printf("discarding unexpected %s message", msg.Type)
			continue
		}
		select {
		case c.inbox <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *Client) fail(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
	c.once.Do(func() { close(c.done) })
}

// Inbox yields decoded confirmations. It is closed when the connection ends.
func (c *Client) Inbox() <-chan proto.Message {
	return c.inbox
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection ended, nil while it is open.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Transmit sends a try to the host. The broadcast flag has no meaning on
// the client side and is ignored.
func (c *Client) Transmit(tid event.TID, evt event.Event, seq event.Seq, _ bool) {
	if err := c.Send(tid, evt, seq); err != nil {
		c.logger.Printf("failed to send %s: %v", evt.Kind, err)
	}
}

// Send encodes and writes one try.
func (c *Client) Send(tid event.TID, evt event.Event, seq event.Seq) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	data, err := proto.EncodeTry(tid, evt, seq)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal close frame and shuts the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	c.fail(ErrClosed)
	return c.conn.Close()
}
