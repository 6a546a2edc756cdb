package wsa

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// Default control/data ports, per the wire contract's connect string
// TCPIP::<host>[::<ctrl,data>].
const (
	DefaultControlPort = 37001
	DefaultDataPort    = 37000

	defaultControlTimeout = 1000 * time.Millisecond
	defaultDataTimeout    = 5000 * time.Millisecond

	maxSendRetries = 3
)

// controlConn wraps the control-socket TCP connection. Reads are
// one-shot (a single recv, possibly short); sends retry short writes
// up to maxSendRetries times.
type controlConn struct {
	conn    net.Conn
	timeout time.Duration
}

// dataConn wraps the data-socket TCP connection. Reads loop until the
// requested byte count has arrived or the timeout elapses.
type dataConn struct {
	conn    net.Conn
	timeout time.Duration
}

func dialControl(addr string, timeout time.Duration) (*controlConn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, wrapErr(KindResource, CodeOpenFailed, "dial control", "failed to connect control socket", err)
	}
	tuneNoDelay(conn)
	if timeout <= 0 {
		timeout = defaultControlTimeout
	}
	return &controlConn{conn: conn, timeout: timeout}, nil
}

func dialData(addr string, timeout time.Duration) (*dataConn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, wrapErr(KindResource, CodeOpenFailed, "dial data", "failed to connect data socket", err)
	}
	if timeout <= 0 {
		timeout = defaultDataTimeout
	}
	return &dataConn{conn: conn, timeout: timeout}, nil
}

// tuneNoDelay disables Nagle's algorithm on the control socket, the
// way the teacher tunes its multicast sockets with raw SO_ options
// (radiod_status.go) — generalized here to the portable x/sys/unix
// equivalent for a plain TCP connection.
func tuneNoDelay(conn net.Conn) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	raw, err := tc.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	})
}

func (c *controlConn) Close() error { return c.conn.Close() }
func (c *dataConn) Close() error    { return c.conn.Close() }

// Send writes cmd, retrying short writes up to maxSendRetries times.
func (c *controlConn) Send(cmd []byte) (int, error) {
	return sendFrame(c.conn, cmd, c.timeout)
}

func (d *dataConn) Send(cmd []byte) (int, error) {
	return sendFrame(d.conn, cmd, d.timeout)
}

func sendFrame(conn net.Conn, buf []byte, timeout time.Duration) (int, error) {
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return 0, wrapErr(KindTransport, CodeSocketError, "send", "set write deadline", err)
	}
	total := 0
	for attempt := 0; total < len(buf) && attempt <= maxSendRetries; attempt++ {
		n, err := conn.Write(buf[total:])
		if err != nil {
			return total, wrapErr(KindTransport, CodeSocketError, "send", "write failed", err)
		}
		total += n
		if n == 0 {
			break
		}
	}
	if total < len(buf) {
		return total, newErr(KindTransport, CodeSendFailed, "send", fmt.Sprintf("short write after %d retries: %d/%d bytes", maxSendRetries, total, len(buf)))
	}
	return total, nil
}

// RecvOneShot performs a single recv into buf, returning however many
// bytes arrived (possibly fewer than len(buf)). Used by the control
// channel, whose replies are newline-terminated and read line-at-a-time
// by the caller.
func (c *controlConn) RecvOneShot(buf []byte) (int, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, wrapErr(KindTransport, CodeSocketError, "recv", "set read deadline", err)
	}
	n, err := c.conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, newErr(KindTransport, CodeSocketTimeout, "recv", "control recv timed out")
		}
		return n, wrapErr(KindTransport, CodeSocketError, "recv", "control recv failed", err)
	}
	if n == 0 {
		return 0, newErr(KindTransport, CodeSocketDropped, "recv", "control socket returned zero bytes")
	}
	return n, nil
}

// RecvExact reads exactly len(buf) bytes from the data socket, looping
// until satisfied or the timeout elapses.
func (d *dataConn) RecvExact(buf []byte) error {
	deadline := time.Now().Add(d.timeout)
	if err := d.conn.SetReadDeadline(deadline); err != nil {
		return wrapErr(KindTransport, CodeSocketError, "recv", "set read deadline", err)
	}
	read := 0
	for read < len(buf) {
		n, err := d.conn.Read(buf[read:])
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return newErr(KindTransport, CodeSocketTimeout, "recv", "data recv timed out")
			}
			return wrapErr(KindTransport, CodeSocketError, "recv", "data recv failed", err)
		}
		if n == 0 {
			return newErr(KindTransport, CodeSocketDropped, "recv", "data socket returned zero bytes")
		}
		read += n
	}
	return nil
}
