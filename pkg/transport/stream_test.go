package transport_test

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasonrowsell/chirpstore/pkg/transport"
)

// stuckConn accepts no bytes and reports no error.
type stuckConn struct {
	closes int
}

func (c *stuckConn) Read(p []byte) (int, error)  { return 0, io.EOF }
func (c *stuckConn) Write(p []byte) (int, error) { return 0, nil }
func (c *stuckConn) Close() error                { c.closes++; return nil }

func TestReadNFull(t *testing.T) {
	a, b := net.Pipe()
	s := transport.New(a)
	defer s.Close()

	go func() {
		b.Write([]byte("hel"))
		b.Write([]byte("lo world"))
	}()

	got, err := s.ReadN(5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
	got, err = s.ReadN(6)
	require.NoError(t, err)
	assert.Equal(t, " world", string(got))
}

func TestReadNShortOnClose(t *testing.T) {
	a, b := net.Pipe()
	s := transport.New(a)
	defer s.Close()

	go func() {
		b.Write([]byte("abc"))
		b.Close()
	}()

	got, err := s.ReadN(8)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got), "short read signals stream closure")
}

func TestWriteZeroProgress(t *testing.T) {
	conn := &stuckConn{}
	s := transport.New(conn)

	_, err := s.Write([]byte("data"))
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrConnectionClosed)
	assert.True(t, transport.IsConnError(err))
}

func TestWriteAfterPeerClosed(t *testing.T) {
	a, b := net.Pipe()
	s := transport.New(a)
	defer s.Close()
	require.NoError(t, b.Close())

	_, err := s.Write([]byte("data"))
	require.Error(t, err)
	var ce *transport.ConnError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, "write", ce.Op)
}

func TestCloseIdempotent(t *testing.T) {
	conn := &stuckConn{}
	s := transport.New(conn)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, conn.closes)

	_, err := s.Write([]byte("x"))
	assert.ErrorIs(t, err, transport.ErrConnectionClosed)
	_, err = s.Read(make([]byte, 1))
	assert.ErrorIs(t, err, transport.ErrConnectionClosed)
}

func TestDialFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	_, err = transport.Dial(addr, 500*time.Millisecond)
	require.Error(t, err)
	assert.True(t, transport.IsConnError(err))
}

func TestDialSuccess(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := l.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	s, err := transport.Dial(l.Addr().String(), time.Second)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, l.Addr().String(), s.Addr())

	peer := <-accepted
	defer peer.Close()
	require.NoError(t, s.SetDeadline(time.Now().Add(time.Second)))
	_, err = s.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(peer, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))
}
