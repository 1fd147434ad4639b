package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/jasonrowsell/chirpstore/internal/cache"
	"github.com/jasonrowsell/chirpstore/pkg/protocol"
)

const defaultListLimit = 256

// Options are optional settings for a Server.
type Options struct {
	// Revision selects the wire encodings. Defaults to protocol.DefaultRevision.
	Revision protocol.Revision

	// ListLimit is the page size used when a list request asks for 0 keys.
	ListLimit int

	Logger *zap.Logger
}

// Server serves the chirpstore protocol from an in-memory cache.
type Server struct {
	cache     *cache.Cache
	rev       protocol.Revision
	listLimit int
	log       *zap.Logger
	stats     *stats

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	shutdown chan struct{}
}

func New(c *cache.Cache, opts *Options) *Server {
	s := &Server{
		cache:     c,
		rev:       protocol.DefaultRevision,
		listLimit: defaultListLimit,
		log:       zap.NewNop(),
		stats:     newStats(),
		conns:     make(map[net.Conn]struct{}),
		shutdown:  make(chan struct{}),
	}
	if opts != nil {
		if opts.Revision != nil {
			s.rev = opts.Revision
		}
		if opts.ListLimit > 0 {
			s.listLimit = opts.ListLimit
		}
		if opts.Logger != nil {
			s.log = opts.Logger
		}
	}
	s.log = s.log.With(zap.String("revision", s.rev.Name()))
	return s
}

// ListenAndServe listens on the TCP address addr and serves connections
// until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve accepts connections on l until Shutdown is called. It closes l
// before returning.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	select {
	case <-s.shutdown:
		s.mu.Unlock()
		l.Close()
		return nil
	default:
	}
	s.listener = l
	s.mu.Unlock()
	defer l.Close()

	s.log.Info("chirpstore server listening", zap.String("addr", l.Addr().String()))

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return nil // Graceful shutdown initiated
			default:
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.Warn("temporary accept error; retrying", zap.Error(err))
				time.Sleep(10 * time.Millisecond)
				continue
			}
			s.log.Error("permanent accept error; stopping listener", zap.Error(err))
			return err
		}
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}

		if !s.track(conn) {
			conn.Close()
			return nil
		}
		go func(c net.Conn) {
			defer s.untrack(c)
			s.handleConnection(c)
		}(conn)
	}
}

// Addr reports the address the server is listening on, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting connections, closes active connections and
// waits for their handlers to finish.
func (s *Server) Shutdown() error {
	var err error
	s.mu.Lock()
	select {
	case <-s.shutdown:
		s.mu.Unlock()
		return nil
	default:
	}
	close(s.shutdown) // Signal listener to stop accepting
	if s.listener != nil {
		err = multierr.Append(err, ignoreClosed(s.listener.Close()))
	}
	for conn := range s.conns {
		err = multierr.Append(err, ignoreClosed(conn.Close()))
	}
	s.mu.Unlock()

	s.wg.Wait() // Wait for all active connections to finish
	s.log.Info("server connections closed")
	return err
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.shutdown:
		return false
	default:
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	s.stats.connOpened()
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.stats.connClosed()
	s.wg.Done()
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	log := s.log.With(zap.Stringer("remote", conn.RemoteAddr()))

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	for {
		// 1. Read and parse the request
		pkt, err := protocol.ReadPacket(reader)
		if err != nil {
			if err == io.EOF {
				log.Debug("connection closed by peer")
			} else {
				log.Warn("error reading request", zap.Error(err))
			}
			return // No response is possible on a corrupt stream
		}
		if pkt.Type != protocol.PacketRequest {
			log.Warn("unexpected packet type", zap.Stringer("type", pkt.Type))
			return
		}
		req, err := protocol.DecodeRequest(s.rev, pkt.Payload)
		if err != nil {
			log.Warn("malformed request", zap.Error(err))
			return
		}

		// 2. Execute the request
		status, body := s.execute(req)
		s.stats.request(req.Method, status)
		if status != protocol.StatusSuccess {
			log.Debug("request failed",
				zap.String("method", string(req.Method)),
				zap.Uint32("id", req.ID),
				zap.Int8("status", status),
			)
		}

		// 3. Write and flush the response
		if err := protocol.WritePacket(writer, protocol.PacketResponse,
			protocol.EncodeResponse(req.ID, status, body)); err != nil {
			log.Warn("error writing response", zap.Error(err))
			return
		}
		if err := writer.Flush(); err != nil {
			log.Warn("error flushing response", zap.Error(err))
			return
		}
	}
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
