package wire

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

// Client delivers frames to the ingestion service. Each Post opens a fresh
// connection and closes it when the reply has been read; there is no pooling
// and no retry — retry policy belongs to the capture agent's tick schedule.
type Client struct {
	host    string
	port    int
	path    string
	timeout time.Duration
}

// NewClient builds a client for the given service endpoint. A zero timeout
// means no I/O deadline is applied.
func NewClient(host string, port int, path string, timeout time.Duration) *Client {
	return &Client{host: host, port: port, path: path, timeout: timeout}
}

// Addr returns the dial target.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.host, fmt.Sprintf("%d", c.port))
}

// Post frames one image and writes it to the service, then reads the raw
// reply until the peer closes the stream. The reply bytes are returned
// unmodified, headers included; interpreting them is the caller's concern.
func (c *Client) Post(ctx context.Context, frame []byte) ([]byte, error) {
	boundary := NewBoundary()
	body := Encode(frame, boundary)
	head := RequestHead(c.host, c.path, boundary, len(body))

	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.Addr(), err)
	}
	defer conn.Close()

	if c.timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("set deadline: %w", err)
		}
	}

	if _, err := conn.Write(head); err != nil {
		return nil, fmt.Errorf("write request head: %w", err)
	}
	if _, err := conn.Write(body); err != nil {
		return nil, fmt.Errorf("write request body: %w", err)
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	return reply, nil
}
