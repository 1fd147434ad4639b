package protocol_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasonrowsell/chirpstore/pkg/protocol"
)

func TestPacketRoundTrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		[]byte("x"),
		[]byte("hey there delilah"),
		bytes.Repeat([]byte{0xab}, 70000),
	}
	for _, ptype := range []protocol.PacketType{protocol.PacketRequest, protocol.PacketResponse} {
		for _, payload := range payloads {
			enc := protocol.EncodePacket(ptype, payload)
			require.Len(t, enc, protocol.HeaderSize+len(payload))

			pkt, err := protocol.ReadPacket(bytes.NewReader(enc))
			require.NoError(t, err)
			assert.Equal(t, ptype, pkt.Type)
			assert.Equal(t, len(payload), len(pkt.Payload))
			assert.True(t, bytes.Equal(payload, pkt.Payload))
		}
	}
}

func TestPacketHeaderLayout(t *testing.T) {
	enc := protocol.EncodePacket(protocol.PacketResponse, []byte("abc"))
	assert.Equal(t, []byte{'C', 'P', 0, 4, 0, 0, 0, 3, 'a', 'b', 'c'}, enc)
}

func TestReadPacketSequence(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, protocol.WritePacket(&buf, protocol.PacketRequest, []byte("one")))
	require.NoError(t, protocol.WritePacket(&buf, protocol.PacketResponse, []byte("two")))

	p1, err := protocol.ReadPacket(&buf)
	require.NoError(t, err)
	assert.Equal(t, "one", string(p1.Payload))
	p2, err := protocol.ReadPacket(&buf)
	require.NoError(t, err)
	assert.Equal(t, "two", string(p2.Payload))

	_, err = protocol.ReadPacket(&buf)
	assert.Equal(t, io.EOF, err)
}

func TestReadPacketInvalidHeader(t *testing.T) {
	enc := protocol.EncodePacket(protocol.PacketResponse, []byte("abc"))
	enc[1] = 'X'
	_, err := protocol.ReadPacket(bytes.NewReader(enc))
	require.Error(t, err)
	assert.True(t, protocol.IsProtocolError(err))
	assert.Contains(t, err.Error(), "invalid header")
}

func TestReadPacketTruncated(t *testing.T) {
	enc := protocol.EncodePacket(protocol.PacketResponse, []byte("abcdef"))

	t.Run("Payload", func(t *testing.T) {
		_, err := protocol.ReadPacket(bytes.NewReader(enc[:len(enc)-2]))
		require.Error(t, err)
		assert.True(t, protocol.IsProtocolError(err))
		assert.Contains(t, err.Error(), "truncated payload")
	})
	t.Run("EmptyPayload", func(t *testing.T) {
		_, err := protocol.ReadPacket(bytes.NewReader(enc[:protocol.HeaderSize]))
		require.Error(t, err)
		assert.True(t, protocol.IsProtocolError(err))
	})
	t.Run("Header", func(t *testing.T) {
		_, err := protocol.ReadPacket(bytes.NewReader(enc[:5]))
		require.Error(t, err)
		assert.True(t, protocol.IsProtocolError(err))
		assert.Contains(t, err.Error(), "truncated header")
	})
}

func TestReadPacketTooLarge(t *testing.T) {
	hdr := []byte{'C', 'P', 0, 4, 0xff, 0xff, 0xff, 0xff}
	_, err := protocol.ReadPacket(bytes.NewReader(hdr))
	require.Error(t, err)
	assert.True(t, protocol.IsProtocolError(err))
}
