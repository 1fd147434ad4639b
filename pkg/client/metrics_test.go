package client

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasonrowsell/chirpstore/pkg/protocol"
	"github.com/jasonrowsell/chirpstore/pkg/transport"
)

func TestMetricsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	start := time.Now()
	m.observe(protocol.MethodGet, start, nil)
	m.observe(protocol.MethodGet, start, &KeyError{Key: "k", Err: ErrNotFound, Service: &protocol.ServiceError{Code: 404}})
	m.observe(protocol.MethodGet, start, &protocol.ProtocolError{Msg: "bad"})
	m.observe(protocol.MethodLen, start, &transport.ConnError{Op: "read", Err: transport.ErrConnectionClosed})
	m.observe(protocol.MethodLen, start, errors.New("other"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("get", outcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("get", outcomeService)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("get", outcomeProtocol)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("len", outcomeConn)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("len", outcomeOther)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestMetricsSharedRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m1, err := NewMetrics(reg)
	require.NoError(t, err)
	m2, err := NewMetrics(reg)
	require.NoError(t, err)

	m1.observe(protocol.MethodStatus, time.Now(), nil)
	m2.observe(protocol.MethodStatus, time.Now(), nil)
	assert.Equal(t, 2.0, testutil.ToFloat64(m1.calls.WithLabelValues("status", outcomeOK)))
}

func TestMetricsNil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.observe(protocol.MethodGet, time.Now(), nil) })
}
