package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jasonrowsell/chirpstore/pkg/protocol"
)

type stats struct {
	started time.Time
	conns   atomic.Int64

	mu       sync.Mutex
	requests map[protocol.Method]uint64
	failures uint64
}

func newStats() *stats {
	return &stats{
		started:  time.Now(),
		requests: make(map[protocol.Method]uint64),
	}
}

func (st *stats) connOpened()        { st.conns.Add(1) }
func (st *stats) connClosed()        { st.conns.Add(-1) }
func (st *stats) activeConns() int64 { return st.conns.Load() }

func (st *stats) uptime() time.Duration { return time.Since(st.started) }

func (st *stats) request(m protocol.Method, status int8) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.requests[m]++
	if status != protocol.StatusSuccess {
		st.failures++
	}
}

// snapshot returns request counts by method name, plus the total number of
// failed requests under "failed".
func (st *stats) snapshot() map[string]uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make(map[string]uint64, len(st.requests)+1)
	for m, n := range st.requests {
		out[string(m)] = n
	}
	out["failed"] = st.failures
	return out
}
