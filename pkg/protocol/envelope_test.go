package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasonrowsell/chirpstore/pkg/protocol"
)

var revisions = []protocol.Revision{protocol.V1, protocol.Legacy}

func TestRequestBuilderSequence(t *testing.T) {
	b := protocol.NewRequestBuilder(protocol.V1)
	assert.Zero(t, b.LastID())

	for want := uint32(1); want <= 3; want++ {
		id, payload, err := b.Build(protocol.MethodGet, []byte("key"))
		require.NoError(t, err)
		assert.Equal(t, want, id)
		assert.Equal(t, want, b.LastID())

		req, err := protocol.DecodeRequest(protocol.V1, payload)
		require.NoError(t, err)
		assert.Equal(t, want, req.ID)
		assert.Equal(t, protocol.MethodGet, req.Method)
		assert.Equal(t, "key", string(req.Args))
	}
}

func TestRequestLayout(t *testing.T) {
	t.Run("V1", func(t *testing.T) {
		_, payload, err := protocol.NewRequestBuilder(protocol.V1).Build(protocol.MethodLen, nil)
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0, 0, 1, 3, 'l', 'e', 'n'}, payload)
	})
	t.Run("Legacy", func(t *testing.T) {
		_, payload, err := protocol.NewRequestBuilder(protocol.Legacy).Build(protocol.MethodLen, nil)
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0, 0, 1, 0, 0, 0, 105}, payload)
	})
}

func TestRequestBuilderUnsupported(t *testing.T) {
	b := protocol.NewRequestBuilder(protocol.V1)
	_, _, err := b.Build(protocol.MethodSize, []byte("key"))
	assert.ErrorIs(t, err, protocol.ErrUnsupportedMethod)
	assert.Zero(t, b.LastID(), "unsupported method must not consume an id")

	id, _, err := b.Build(protocol.MethodStatus, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id)
}

func TestDecodeRequestUnknownOpcode(t *testing.T) {
	req, err := protocol.DecodeRequest(protocol.Legacy, []byte{0, 0, 0, 7, 0, 0, 1, 0, 'x'})
	require.NoError(t, err)
	assert.Equal(t, uint32(7), req.ID)
	assert.Equal(t, protocol.Method("#256"), req.Method)
	assert.Equal(t, "x", string(req.Args))
}

func TestParseResponseSuccess(t *testing.T) {
	payload := protocol.EncodeResponse(42, 0, []byte("value"))
	body, err := protocol.ParseResponse(protocol.V1, 42, payload)
	require.NoError(t, err)
	assert.Equal(t, "value", string(body))
}

func TestParseResponseIDMismatch(t *testing.T) {
	payload := protocol.EncodeResponse(41, 0, []byte("value"))
	_, err := protocol.ParseResponse(protocol.V1, 42, payload)
	require.Error(t, err)
	assert.True(t, protocol.IsProtocolError(err))
	assert.Contains(t, err.Error(), "got 41, want 42")
}

func TestParseResponseShort(t *testing.T) {
	_, err := protocol.ParseResponse(protocol.V1, 1, []byte{0, 0, 0, 1})
	assert.True(t, protocol.IsProtocolError(err))
}

func TestServiceErrorDecode(t *testing.T) {
	tests := []struct {
		name    string
		rev     protocol.Revision
		body    []byte
		code    uint32
		message string
		hasMsg  bool
		aux     string
	}{
		{"V1/NotFound", protocol.V1, []byte{0x51, 0x06}, 404, "", false, ""},
		{"V1/Empty", protocol.V1, nil, 0, "", false, ""},
		{"V1/Exists", protocol.V1, []byte{0x41, 0x06, 6 << 2, 'e', 'x', 'i', 's', 't', 's'}, 400, "exists", true, ""},
		{"V1/Aux", protocol.V1, []byte{0x41, 0x06, 1 << 2, 'm', 'k', 'e', 'y'}, 400, "m", true, "key"},
		{"Legacy/NotFound", protocol.Legacy, []byte{0x01, 0x94}, 404, "", false, ""},
		{"Legacy/Exists", protocol.Legacy, []byte{0x01, 0x90, 0, 6, 'e', 'x', 'i', 's', 't', 's'}, 400, "exists", true, ""},
		{"Legacy/Aux", protocol.Legacy, []byte{0x01, 0x94, 0, 0, 'k'}, 404, "", true, "k"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := protocol.ParseResponse(tc.rev, 9, protocol.EncodeResponse(9, 1, tc.body))
			se, ok := protocol.AsServiceError(err)
			require.True(t, ok, "got %v, want *ServiceError", err)
			assert.Equal(t, int8(1), se.Status)
			assert.Equal(t, tc.code, se.Code)
			assert.Equal(t, tc.message, string(se.Message))
			assert.Equal(t, tc.hasMsg, se.HasMessage())
			assert.Equal(t, tc.aux, string(se.Aux))
			assert.False(t, protocol.IsProtocolError(err))
		})
	}
}

func TestServiceErrorRoundTrip(t *testing.T) {
	errs := []*protocol.ServiceError{
		{Status: 4, Code: 404},
		{Status: 4, Code: 400, Message: []byte("key exists")},
		{Status: 4, Code: 404, Message: []byte("key not found"), Aux: []byte("some-key")},
		{Status: 4, Code: 500, Message: []byte{}, Aux: []byte("aux-only")},
	}
	for _, rev := range revisions {
		for _, want := range errs {
			body, err := rev.EncodeServiceError(want)
			require.NoError(t, err)
			got, err := rev.DecodeServiceError(want.Status, body)
			require.NoError(t, err)
			assert.Equal(t, want.Code, got.Code, "%s", rev.Name())
			assert.Equal(t, string(want.Message), string(got.Message), "%s", rev.Name())
			assert.Equal(t, want.Message != nil || len(want.Aux) != 0, got.HasMessage(), "%s", rev.Name())
			assert.Equal(t, string(want.Aux), string(got.Aux), "%s", rev.Name())
		}
	}
}

func TestServiceErrorMalformed(t *testing.T) {
	_, err := protocol.Legacy.DecodeServiceError(1, []byte{0x01})
	assert.True(t, protocol.IsProtocolError(err))

	_, err = protocol.Legacy.DecodeServiceError(1, []byte{0x01, 0x94, 0, 9, 'x'})
	assert.True(t, protocol.IsProtocolError(err))

	_, err = protocol.V1.DecodeServiceError(1, []byte{0x51, 0x06, 9 << 2, 'x'})
	assert.True(t, protocol.IsProtocolError(err))
}

func TestCountEncoding(t *testing.T) {
	t.Run("V1", func(t *testing.T) {
		assert.Equal(t, []byte{0}, protocol.V1.EncodeCount(0))
		assert.Equal(t, []byte{0x01, 0x01}, protocol.V1.EncodeCount(257))

		n, err := protocol.V1.DecodeCount([]byte{0x01, 0x01})
		require.NoError(t, err)
		assert.Equal(t, uint64(257), n)

		_, err = protocol.V1.DecodeCount(make([]byte, 9))
		assert.Error(t, err)
	})
	t.Run("Legacy", func(t *testing.T) {
		assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 1, 1}, protocol.Legacy.EncodeCount(257))

		n, err := protocol.Legacy.DecodeCount([]byte{0, 0, 0, 0, 0, 0, 1, 1})
		require.NoError(t, err)
		assert.Equal(t, uint64(257), n)

		_, err = protocol.Legacy.DecodeCount([]byte{1, 1})
		assert.Error(t, err)
	})
	for _, rev := range revisions {
		for _, v := range []uint64{0, 1, 255, 256, 1 << 40, ^uint64(0)} {
			got, err := rev.DecodeCount(rev.EncodeCount(v))
			require.NoError(t, err)
			assert.Equal(t, v, got, "%s", rev.Name())
		}
	}
}

func TestListArgs(t *testing.T) {
	for _, rev := range revisions {
		args, err := rev.EncodeListArgs(122, []byte("the coolth of your evening smile"))
		require.NoError(t, err)
		count, start, err := rev.DecodeListArgs(args)
		require.NoError(t, err)
		assert.Equal(t, 122, count, "%s", rev.Name())
		assert.Equal(t, "the coolth of your evening smile", string(start), "%s", rev.Name())

		_, err = rev.EncodeListArgs(-1, nil)
		assert.Error(t, err)
	}

	args, err := protocol.V1.EncodeListArgs(2, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{2 << 2}, args)
}

func TestRevisionByName(t *testing.T) {
	for name, want := range map[string]protocol.Revision{
		"":       protocol.DefaultRevision,
		"v1":     protocol.V1,
		"VARINT": protocol.V1,
		"legacy": protocol.Legacy,
		" v0 ":   protocol.Legacy,
	} {
		got, err := protocol.RevisionByName(name)
		require.NoError(t, err, "name %q", name)
		assert.Equal(t, want.Name(), got.Name(), "name %q", name)
	}
	_, err := protocol.RevisionByName("v9")
	assert.Error(t, err)

	assert.True(t, protocol.Legacy.Supports(protocol.MethodSize))
	assert.False(t, protocol.V1.Supports(protocol.MethodSize))
}
