package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Packet is one framed unit of the wire protocol.
type Packet struct {
	Type    PacketType
	Payload []byte
}

func (p Packet) String() string {
	return fmt.Sprintf("Packet(%s, %d bytes)", p.Type, len(p.Payload))
}

// EncodePacket returns the 8-byte header for a packet of the given type
// followed by payload.
func EncodePacket(ptype PacketType, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	copy(buf[0:3], magic[:])
	buf[3] = byte(ptype)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

// WritePacket encodes a packet and writes it to w in a single call.
func WritePacket(w io.Writer, ptype PacketType, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("payload length %d exceeds maximum %d", len(payload), MaxPayloadSize)
	}
	if _, err := w.Write(EncodePacket(ptype, payload)); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	return nil
}

// ReadPacket reads one packet from r.
//
// If r is at end of stream before any header byte is read, ReadPacket
// returns io.EOF. A bad signature, a partial header or a payload shorter
// than its declared length is reported as a *ProtocolError; the stream
// cannot be used after that.
func ReadPacket(r io.Reader) (Packet, error) {
	var header [HeaderSize]byte

	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return Packet{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Packet{}, &ProtocolError{Msg: "truncated header", Err: err}
		}
		return Packet{}, fmt.Errorf("failed to read packet header: %w", err)
	}

	if header[0] != magic[0] || header[1] != magic[1] || header[2] != magic[2] {
		return Packet{}, protocolErrorf("invalid header %q", header[:3])
	}
	ptype := PacketType(header[3])
	plen := binary.BigEndian.Uint32(header[4:8])
	if plen > MaxPayloadSize {
		return Packet{}, protocolErrorf("payload length %d exceeds maximum %d", plen, MaxPayloadSize)
	}

	payload := make([]byte, plen)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return Packet{}, &ProtocolError{Msg: "truncated payload", Err: err}
		}
		return Packet{}, fmt.Errorf("failed to read packet payload: %w", err)
	}
	return Packet{Type: ptype, Payload: payload}, nil
}
