package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/memviewlab/memview/session"
)

// DefaultWriteTimeout bounds how long one pump write may stall on the
// viewer's socket before reporting would-block.
const DefaultWriteTimeout = 10 * time.Millisecond

// acceptPoll is how often the accept loop wakes up to check ctx.
const acceptPoll = 250 * time.Millisecond

// TCP listens for a viewer on a TCP endpoint.
type TCP struct {
	ln           *net.TCPListener
	writeTimeout time.Duration
}

// Listen opens a listener on addr (for example "127.0.0.1:7421", or
// ":0" to pick a free port).
func Listen(addr string) (*TCP, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("memview transport: %w", err)
	}
	return &TCP{
		ln:           ln.(*net.TCPListener),
		writeTimeout: DefaultWriteTimeout,
	}, nil
}

// SetWriteTimeout overrides DefaultWriteTimeout for future connections.
func (t *TCP) SetWriteTimeout(d time.Duration) {
	t.writeTimeout = d
}

// Addr returns the bound address, useful with ":0".
func (t *TCP) Addr() net.Addr {
	return t.ln.Addr()
}

// WaitForViewer blocks until a viewer dials in or ctx is canceled.
func (t *TCP) WaitForViewer(ctx context.Context) (io.WriteCloser, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := t.ln.SetDeadline(time.Now().Add(acceptPoll)); err != nil {
			return nil, err
		}
		conn, err := t.ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return nil, err
		}
		return &viewerConn{Conn: conn, timeout: t.writeTimeout}, nil
	}
}

// Close stops listening. An established viewer connection is unaffected;
// the session owns and closes it.
func (t *TCP) Close() error {
	return t.ln.Close()
}

// viewerConn maps write deadline hits to the pump's would-block
// contract.
type viewerConn struct {
	net.Conn
	timeout time.Duration
}

func (c *viewerConn) Write(p []byte) (int, error) {
	if err := c.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	n, err := c.Conn.Write(p)
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return n, session.ErrWouldBlock
	}
	return n, err
}
