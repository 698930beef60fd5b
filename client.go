package lineproto

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"nhooyr.io/websocket"
)

// Client speaks the line protocol from the connecting side.
// Call is safe for concurrent use; calls are serialized so each response is
// paired with its request.
type Client struct {
	conn      net.Conn
	transport *Transport

	mu sync.Mutex
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn, opts ...TransportOption) *Client {
	return &Client{
		conn:      conn,
		transport: NewTransport(conn, NewLineCodec(0), opts...),
	}
}

// Dial connects to a line protocol server over TCP.
func Dial(ctx context.Context, addr string, opts ...TransportOption) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	return NewClient(conn, opts...), nil
}

// DialWebSocket connects to a server exposed through WebSocketHandler.
// The returned client stays usable after ctx is done; use Close to end it.
func DialWebSocket(ctx context.Context, url string, opts ...TransportOption) (*Client, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	return NewClient(websocket.NetConn(context.Background(), c, websocket.MessageText), opts...), nil
}

// Call sends req and waits for its response. If ctx is done first the
// connection's deadline is forced so the pending I/O returns, and the
// connection should be considered unusable.
func (c *Client) Call(ctx context.Context, req Message) (Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := c.transport.Send(req); err != nil {
		return "", c.callErr(ctx, err)
	}

	resp, err := c.transport.Receive()
	if err != nil {
		return "", c.callErr(ctx, err)
	}

	return resp, nil
}

func (c *Client) callErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// LocalAddr returns the local network address.
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}
