// Package upstream owns the connection to the BGP monitor and decodes its
// framed <BGP_MESSAGE>...</BGP_MESSAGE> document stream. It implements
// exactly the four operations spec.md §6 allows the core to call:
// connect, read_one_message, is_connected, close.
//
// Grounded on stages/connect.go's dial-with-timeout shape and
// stages/read.go's stream-reading loop; neither teacher file speaks this
// framing, so the scanner itself is hand-written against net/bufio.
package upstream

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
)

const (
	openTag  = "<BGP_MESSAGE>"
	closeTag = "</BGP_MESSAGE>"
)

// Client is the upstream BGP-monitor connection. It is not safe for
// concurrent use by more than one reader goroutine -- spec.md §5 gives
// the upstream reader exclusive ownership of it.
type Client struct {
	host string
	port int

	conn      net.Conn
	r         *bufio.Reader
	connected atomic.Bool
}

func New(host string, port int) *Client {
	return &Client{host: host, port: port}
}

// Connect dials the upstream monitor. A timeout is applied via ctx, the
// way stages/connect.go threads a context.WithTimeout into DialContext.
func (c *Client) Connect(ctx context.Context) error {
	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect upstream %s: %w", addr, err)
	}
	c.conn = conn
	c.r = bufio.NewReaderSize(conn, 64*1024)
	c.connected.Store(true)
	return nil
}

// IsConnected is the liveness predicate spec.md §4.3 calls to detect
// transport disconnect.
func (c *Client) IsConnected() bool { return c.connected.Load() }

func (c *Client) Close() error {
	c.connected.Store(false)
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// ReadOneMessage blocks until one complete <BGP_MESSAGE>...</BGP_MESSAGE>
// document has arrived and returns its raw bytes, tags included. Any
// returned error marks the client disconnected: on a raw byte stream
// there is no distinction between a transient read error and a closed
// connection, so every error here is the transport-disconnect case
// spec.md §4.3 describes.
func (c *Client) ReadOneMessage() ([]byte, error) {
	if err := c.skipUntil(openTag); err != nil {
		c.connected.Store(false)
		return nil, fmt.Errorf("upstream read: %w", err)
	}

	body, err := c.readUntilInclusive(closeTag)
	if err != nil {
		c.connected.Store(false)
		return nil, fmt.Errorf("upstream read: %w", err)
	}

	msg := make([]byte, 0, len(openTag)+len(body))
	msg = append(msg, openTag...)
	msg = append(msg, body...)
	return msg, nil
}

// skipUntil consumes and discards bytes up to and including the first
// occurrence of tag (whitespace between documents is expected and
// dropped this way).
func (c *Client) skipUntil(tag string) error {
	window := make([]byte, 0, len(tag))
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return err
		}
		window = slideWindow(window, b, len(tag))
		if string(window) == tag {
			return nil
		}
	}
}

// readUntilInclusive returns every byte read up to and including the
// first occurrence of tag.
func (c *Client) readUntilInclusive(tag string) ([]byte, error) {
	var buf []byte
	window := make([]byte, 0, len(tag))
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return nil, err
		}
		buf = append(buf, b)
		window = slideWindow(window, b, len(tag))
		if string(window) == tag {
			return buf, nil
		}
	}
}

func slideWindow(window []byte, b byte, max int) []byte {
	window = append(window, b)
	if len(window) > max {
		window = window[len(window)-max:]
	}
	return window
}
