package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/jasonrowsell/chirpstore/pkg/protocol"
	"github.com/jasonrowsell/chirpstore/pkg/transport"
)

const defaultDialTimeout = 2 * time.Second

// Options are optional settings for a Client. A nil *Options is ready to use.
type Options struct {
	// Revision selects the wire encodings. Defaults to protocol.DefaultRevision.
	Revision protocol.Revision

	// DialTimeout bounds connection establishment in New. Defaults to 2s.
	DialTimeout time.Duration

	// CallTimeout, if positive, sets a transport deadline covering each
	// round trip. By default a call waits as long as the peer does.
	CallTimeout time.Duration

	// Logger receives connection lifecycle events. Defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics, if set, records per-method call counts and latencies.
	Metrics *Metrics
}

func (o *Options) revision() protocol.Revision {
	if o == nil || o.Revision == nil {
		return protocol.DefaultRevision
	}
	return o.Revision
}

func (o *Options) dialTimeout() time.Duration {
	if o == nil || o.DialTimeout <= 0 {
		return defaultDialTimeout
	}
	return o.DialTimeout
}

func (o *Options) callTimeout() time.Duration {
	if o == nil {
		return 0
	}
	return o.CallTimeout
}

func (o *Options) logger() *zap.Logger {
	if o == nil || o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o *Options) metrics() *Metrics {
	if o == nil {
		return nil
	}
	return o.Metrics
}

// Client is a synchronous chirpstore client bound to one connection.
//
// A Client carries one request at a time; concurrent callers are
// serialized. After a protocol or transport failure the connection is
// closed and every later call reports ErrClosed.
type Client struct {
	stream  *transport.Stream
	builder *protocol.RequestBuilder
	rev     protocol.Revision
	addr    string

	callTimeout time.Duration
	log         *zap.Logger
	metrics     *Metrics

	// Held for the full round trip so responses cannot interleave.
	mu     sync.Mutex
	closed atomic.Bool
}

// New dials addr ("host:port") and returns a client for the connection.
func New(addr string, opts *Options) (*Client, error) {
	s, err := transport.Dial(addr, opts.dialTimeout())
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return newClient(s, opts), nil
}

// NewWithConn creates a new client using an existing network connection.
// The client takes ownership of conn and closes it on Close.
func NewWithConn(conn net.Conn, opts *Options) (*Client, error) {
	if conn == nil {
		return nil, fmt.Errorf("cannot create client with nil connection")
	}
	return newClient(transport.New(conn), opts), nil
}

func newClient(s *transport.Stream, opts *Options) *Client {
	rev := opts.revision()
	c := &Client{
		stream:      s,
		builder:     protocol.NewRequestBuilder(rev),
		rev:         rev,
		addr:        s.Addr(),
		callTimeout: opts.callTimeout(),
		metrics:     opts.metrics(),
	}
	c.log = opts.logger().With(
		zap.String("session", uuid.NewString()),
		zap.String("addr", c.addr),
		zap.String("revision", rev.Name()),
	)
	c.log.Debug("client connected")
	return c
}

// With dials addr, calls fn with the client and closes the client when fn
// returns, whatever the outcome.
func With(addr string, opts *Options, fn func(*Client) error) (err error) {
	c, err := New(addr, opts)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, c.Close()) }()
	return fn(c)
}

// Revision reports the protocol revision used by c.
func (c *Client) Revision() protocol.Revision { return c.rev }

// Close closes the connection. It is safe to call more than once and
// concurrently with a blocked call, which is then interrupted.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.log.Debug("client closed")
	return c.stream.Close()
}

// Status reports the server status document.
func (c *Client) Status() (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	body, err := c.call(protocol.MethodStatus, nil)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("status: invalid response: %w", err)
	}
	return doc, nil
}

// Len reports the number of keys in the store.
func (c *Client) Len() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	body, err := c.call(protocol.MethodLen, nil)
	if err != nil {
		return 0, err
	}
	n, err := c.rev.DecodeCount(body)
	if err != nil {
		c.closeConnOnError(err)
		return 0, fmt.Errorf("len: %w", err)
	}
	return n, nil
}

// List returns up to count keys at or after start in lexicographic order,
// and the cursor at which the next page begins. A count of 0 asks for the
// server's default page size.
func (c *Client) List(count int, start string) (protocol.Listing, error) {
	args, err := c.rev.EncodeListArgs(count, []byte(start))
	if err != nil {
		return protocol.Listing{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	body, err := c.call(protocol.MethodList, args)
	if err != nil {
		return protocol.Listing{}, err
	}
	l, err := protocol.DecodeListing(c.rev, body)
	if err != nil {
		c.closeConnOnError(err)
		return protocol.Listing{}, err
	}
	return l, nil
}

// Get fetches the value stored for key. A missing key is reported as an
// error matching ErrNotFound.
func (c *Client) Get(key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	body, err := c.call(protocol.MethodGet, []byte(key))
	if err != nil {
		return nil, unfilterErr(err, key)
	}
	return body, nil
}

// Size reports the size in bytes of the value stored for key. Not every
// protocol revision has a size method; those report ErrUnsupportedMethod.
func (c *Client) Size(key string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	body, err := c.call(protocol.MethodSize, []byte(key))
	if err != nil {
		return 0, unfilterErr(err, key)
	}
	n, err := c.rev.DecodeCount(body)
	if err != nil {
		c.closeConnOnError(err)
		return 0, fmt.Errorf("size: %w", err)
	}
	return n, nil
}

// Scan calls fn for every key at or after start, fetching pageSize keys
// per round trip. If fn returns ErrStopScan, Scan stops and returns nil;
// any other error from fn is returned as-is.
func (c *Client) Scan(start string, pageSize int, fn func(key []byte) error) error {
	next := start
	for {
		page, err := c.List(pageSize, next)
		if err != nil {
			return err
		}
		if len(page.Keys) == 0 {
			return nil
		}
		for _, key := range page.Keys {
			if err := fn(key); errors.Is(err, ErrStopScan) {
				return nil
			} else if err != nil {
				return err
			}
		}
		if !page.HasMore() {
			return nil
		}
		next = string(page.Cursor)
	}
}

// call sends one request and waits for its response. Assumes lock is held.
func (c *Client) call(method protocol.Method, args []byte) (body []byte, err error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	start := time.Now()
	defer func() { c.metrics.observe(method, start, err) }()

	id, payload, err := c.builder.Build(method, args)
	if err != nil {
		return nil, err
	}

	if c.callTimeout > 0 {
		if err := c.stream.SetDeadline(start.Add(c.callTimeout)); err != nil {
			return nil, fmt.Errorf("set deadline: %w", err)
		}
		defer c.stream.SetDeadline(time.Time{})
	}

	if err := protocol.WritePacket(c.stream, protocol.PacketRequest, payload); err != nil {
		c.closeConnOnError(err)
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	pkt, err := protocol.ReadPacket(c.stream)
	if err == io.EOF {
		err = &transport.ConnError{Op: "read", Addr: c.addr, Err: transport.ErrConnectionClosed}
	}
	if err != nil {
		c.closeConnOnError(err)
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if pkt.Type != protocol.PacketResponse {
		err = &protocol.ProtocolError{Msg: fmt.Sprintf("unexpected packet type %d", pkt.Type)}
		c.closeConnOnError(err)
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	body, err = protocol.ParseResponse(c.rev, id, pkt.Payload)
	if err != nil {
		if IsFatal(err) {
			c.closeConnOnError(err)
		}
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	c.log.Debug("call complete",
		zap.String("method", string(method)),
		zap.Uint32("id", id),
		zap.Int("bytes", len(body)),
	)
	return body, nil
}

// closeConnOnError closes the connection and marks the client as closed
// when a fatal error occurs.
func (c *Client) closeConnOnError(err error) {
	if c.closed.Swap(true) {
		return
	}
	c.log.Warn("closing connection after fatal error", zap.Error(err))
	if cerr := c.stream.Close(); cerr != nil {
		c.log.Debug("close after error failed", zap.Error(cerr))
	}
}
