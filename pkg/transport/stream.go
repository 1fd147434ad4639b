// Package transport provides the byte stream a chirpstore client talks
// over.
package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

type Error string

func (e Error) Error() string {
	return string(e)
}

// ErrConnectionClosed is reported when the stream is closed or the
// transport stops accepting bytes.
const ErrConnectionClosed = Error("connection closed")

// ConnError is a transport-level failure. A stream that reported a
// ConnError must not be reused.
type ConnError struct {
	Op   string
	Addr string
	Err  error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// IsConnError reports whether err is a transport failure.
func IsConnError(err error) bool {
	var ce *ConnError
	return errors.As(err, &ce) || errors.Is(err, ErrConnectionClosed)
}

// Stream is an ordered, bidirectional byte channel over a single
// connection. It is not safe for concurrent use except for Close.
type Stream struct {
	conn   io.ReadWriteCloser
	reader *bufio.Reader
	addr   string

	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

// Dial opens a TCP connection to addr ("host:port").
func Dial(addr string, timeout time.Duration) (*Stream, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, &ConnError{Op: "dial", Addr: addr, Err: err}
	}
	return New(conn), nil
}

// New wraps an existing connection. If conn is a *net.TCPConn, TCP_NODELAY
// is enabled.
func New(conn io.ReadWriteCloser) *Stream {
	addr := "unknown"
	if nc, ok := conn.(net.Conn); ok {
		if tcpConn, ok := nc.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}
		if remoteAddr := nc.RemoteAddr(); remoteAddr != nil {
			addr = remoteAddr.String()
		}
	}
	return &Stream{
		conn:   conn,
		reader: bufio.NewReader(conn),
		addr:   addr,
		closed: make(chan struct{}),
	}
}

// Addr reports the remote address of the stream.
func (s *Stream) Addr() string { return s.addr }

// Read implements io.Reader over the buffered connection. End of stream is
// reported as io.EOF; other failures are wrapped in a *ConnError.
func (s *Stream) Read(p []byte) (int, error) {
	if s.isClosed() {
		return 0, ErrConnectionClosed
	}
	n, err := s.reader.Read(p)
	if err != nil && err != io.EOF {
		return n, &ConnError{Op: "read", Addr: s.addr, Err: err}
	}
	return n, err
}

// ReadN blocks until n bytes are available or the peer closes the stream.
// Fewer than n bytes are returned only when the stream ended, and the
// caller must treat that as truncation.
func (s *Stream) ReadN(n int) ([]byte, error) {
	buf := make([]byte, n)
	nr, err := io.ReadFull(s, buf)
	if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
		return buf[:nr], nil
	}
	return buf[:nr], err
}

// Write blocks until all of p has been accepted by the transport.
func (s *Stream) Write(p []byte) (int, error) {
	if s.isClosed() {
		return 0, ErrConnectionClosed
	}
	pos := 0
	for pos < len(p) {
		nw, err := s.conn.Write(p[pos:])
		pos += nw
		if err != nil {
			return pos, &ConnError{Op: "write", Addr: s.addr, Err: err}
		}
		if nw == 0 {
			return pos, &ConnError{Op: "write", Addr: s.addr, Err: ErrConnectionClosed}
		}
	}
	return pos, nil
}

// SetDeadline sets a read and write deadline on the underlying connection,
// if it supports one. The zero time clears the deadline.
func (s *Stream) SetDeadline(t time.Time) error {
	if nc, ok := s.conn.(net.Conn); ok {
		return nc.SetDeadline(t)
	}
	return nil
}

// Close closes the connection. It is safe to call more than once and after
// a failure; only the first call reaches the connection.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *Stream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}
