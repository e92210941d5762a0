package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// Client is the driver end of the socket.
type Client struct {
	conn    net.Conn
	framer  *Framer
	pending [][]byte
	buf     []byte
}

// Dial connects to the canvas listening at path.
func Dial(ctx context.Context, path string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return &Client{conn: conn, framer: NewFramer(DefaultMaxLine), buf: make([]byte, 4096)}, nil
}

// DialRetry keeps dialing until the socket accepts or ctx is done, so a
// driver can talk to a canvas that was just spawned and is not listening yet.
func DialRetry(ctx context.Context, path string, interval time.Duration) (*Client, error) {
	for {
		c, err := Dial(ctx, path)
		if err == nil {
			return c, nil
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ctx.Err(), err)
		case <-time.After(interval):
		}
	}
}

func (c *Client) Send(msg Inbound) error {
	if msg.Config != nil {
		cfg := msg.Config.Normalize()
		msg.Config = &cfg
	}
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}

// Next returns the next well-formed message from the canvas.
func (c *Client) Next(ctx context.Context) (Outbound, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
	} else {
		_ = c.conn.SetReadDeadline(time.Time{})
	}
	for {
		for len(c.pending) > 0 {
			line := c.pending[0]
			c.pending = c.pending[1:]
			msg, err := DecodeOutbound(line)
			if err != nil {
				continue
			}
			return msg, nil
		}
		if err := ctx.Err(); err != nil {
			return Outbound{}, err
		}
		n, err := c.conn.Read(c.buf)
		if n > 0 {
			lines, _ := c.framer.Feed(c.buf[:n])
			c.pending = append(c.pending, lines...)
			continue
		}
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) && ctx.Err() != nil {
				return Outbound{}, ctx.Err()
			}
			return Outbound{}, fmt.Errorf("read: %w", err)
		}
	}
}

// Await skips messages until one of type t arrives.
func (c *Client) Await(ctx context.Context, t Type) (Outbound, error) {
	for {
		msg, err := c.Next(ctx)
		if err != nil {
			return Outbound{}, err
		}
		if msg.Type == t {
			return msg, nil
		}
	}
}

func (c *Client) Close() error {
	return c.conn.Close()
}
