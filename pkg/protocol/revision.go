package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Revision is one version of the wire encodings that changed over the life
// of the protocol: how methods are named, how lengths are prefixed, and how
// counts and service errors are laid out. Framing and envelope headers are
// shared by all revisions.
type Revision interface {
	// Name is the configuration name of the revision.
	Name() string

	// Supports reports whether the revision has a wire form for m.
	Supports(m Method) bool

	// AppendMethod appends the wire form of m to buf.
	AppendMethod(buf []byte, m Method) ([]byte, error)

	// ParseMethod decodes a method from the front of data.
	ParseMethod(data []byte) (Method, []byte, error)

	// AppendBlob appends a length-prefixed blob to buf.
	AppendBlob(buf, blob []byte) ([]byte, error)

	// ParseBlob splits a length-prefixed blob from the front of data.
	ParseBlob(data []byte) (blob, rest []byte, err error)

	// EncodeListArgs encodes the arguments of the list method.
	EncodeListArgs(count int, start []byte) ([]byte, error)

	// DecodeListArgs decodes the arguments of the list method.
	DecodeListArgs(data []byte) (count int, start []byte, err error)

	// EncodeCount encodes the result of the len and size methods.
	EncodeCount(n uint64) []byte

	// DecodeCount decodes the result of the len and size methods.
	DecodeCount(data []byte) (uint64, error)

	// EncodeServiceError encodes the body of a failed response.
	EncodeServiceError(e *ServiceError) ([]byte, error)

	// DecodeServiceError decodes the body of a failed response.
	DecodeServiceError(status int8, data []byte) (*ServiceError, error)
}

var (
	// V1 is the current revision: string method tokens and Vint30 lengths.
	V1 Revision = v1{}

	// Legacy is the earlier revision: numeric opcodes and fixed-width
	// big-endian lengths.
	Legacy Revision = legacy{}
)

// DefaultRevision is used when no revision is configured.
var DefaultRevision = V1

// RevisionByName returns the revision with the given configuration name.
// An empty name selects DefaultRevision.
func RevisionByName(name string) (Revision, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return DefaultRevision, nil
	case "v1", "varint":
		return V1, nil
	case "legacy", "v0", "fixed":
		return Legacy, nil
	default:
		return nil, fmt.Errorf("unknown protocol revision %q", name)
	}
}

// v1 writes methods as [1] len [len] token and uses Vint30 everywhere a
// length appears.
type v1 struct{}

func (v1) Name() string { return "v1" }

func (v1) Supports(m Method) bool {
	switch m {
	case MethodStatus, MethodGet, MethodPut, MethodDelete, MethodList,
		MethodLen, MethodCASPut, MethodCASKey:
		return true
	}
	return false
}

func (r v1) AppendMethod(buf []byte, m Method) ([]byte, error) {
	if !r.Supports(m) {
		return buf, fmt.Errorf("%w: %q (revision %s)", ErrUnsupportedMethod, m, r.Name())
	}
	buf = append(buf, byte(len(m)))
	return append(buf, m...), nil
}

func (v1) ParseMethod(data []byte) (Method, []byte, error) {
	if len(data) == 0 {
		return "", data, ErrShortInput
	}
	n := int(data[0])
	if len(data) < 1+n {
		return "", data, ErrShortInput
	}
	return Method(data[1 : 1+n]), data[1+n:], nil
}

func (v1) AppendBlob(buf, blob []byte) ([]byte, error) { return AppendBytes(buf, blob) }

func (v1) ParseBlob(data []byte) ([]byte, []byte, error) { return DecodeBytes(data) }

func (v1) EncodeListArgs(count int, start []byte) ([]byte, error) {
	if count < 0 {
		return nil, fmt.Errorf("invalid list count %d", count)
	}
	if count > MaxVint30 {
		return nil, fmt.Errorf("list count %d: %w", count, ErrVintRange)
	}
	buf := make([]byte, 0, Vint30Len(uint32(count))+len(start))
	buf, _ = EncodeVint30(buf, uint32(count))
	return append(buf, start...), nil
}

func (v1) DecodeListArgs(data []byte) (int, []byte, error) {
	count, rest, err := DecodeVint30(data)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid list request (malformed count): %w", err)
	}
	return int(count), rest, nil
}

// EncodeCount packs n little-endian with high zero bytes trimmed. Zero is a
// single zero byte.
func (v1) EncodeCount(n uint64) []byte {
	var buf [8]byte
	if n == 0 {
		return buf[:1]
	}
	i := 0
	for ; n != 0; n >>= 8 {
		buf[i] = byte(n)
		i++
	}
	return buf[:i]
}

func (v1) DecodeCount(data []byte) (uint64, error) {
	if len(data) > 8 {
		return 0, protocolErrorf("count has %d bytes, want at most 8", len(data))
	}
	var padded [8]byte
	copy(padded[:], data)
	return binary.LittleEndian.Uint64(padded[:]), nil
}

// EncodeServiceError writes [V] code [Vn] msglen [n] message [rest] aux.
// The message section is omitted when both message and aux are absent.
func (v1) EncodeServiceError(e *ServiceError) ([]byte, error) {
	if e.Code > MaxVint30 {
		return nil, fmt.Errorf("service error code %d: %w", e.Code, ErrVintRange)
	}
	buf, _ := EncodeVint30(nil, e.Code)
	if e.Message == nil && len(e.Aux) == 0 {
		return buf, nil
	}
	buf, err := AppendBytes(buf, e.Message)
	if err != nil {
		return nil, err
	}
	return append(buf, e.Aux...), nil
}

func (v1) DecodeServiceError(status int8, data []byte) (*ServiceError, error) {
	se := &ServiceError{Status: status}
	if len(data) == 0 {
		return se, nil
	}
	code, rest, err := DecodeVint30(data)
	if err != nil {
		return nil, &ProtocolError{Msg: "malformed service error code", Err: err}
	}
	se.Code = code
	if len(rest) == 0 {
		return se, nil
	}
	msg, rest, err := DecodeBytes(rest)
	if err != nil {
		return nil, &ProtocolError{Msg: "malformed service error message", Err: err}
	}
	se.Message = append([]byte{}, msg...)
	if len(rest) != 0 {
		se.Aux = rest
	}
	return se, nil
}

// Opcodes of the legacy revision.
var legacyOpcodes = map[Method]uint32{
	MethodStatus: 99,
	MethodGet:    100,
	MethodPut:    101,
	MethodDelete: 102,
	MethodSize:   103,
	MethodList:   104,
	MethodLen:    105,
	MethodCASPut: 201,
	MethodCASKey: 202,
}

var legacyMethods = func() map[uint32]Method {
	m := make(map[uint32]Method, len(legacyOpcodes))
	for name, op := range legacyOpcodes {
		m[op] = name
	}
	return m
}()

// legacy writes methods as 4-byte opcodes and prefixes blobs with 2-byte
// big-endian lengths.
type legacy struct{}

func (legacy) Name() string { return "legacy" }

func (legacy) Supports(m Method) bool {
	_, ok := legacyOpcodes[m]
	return ok
}

func (r legacy) AppendMethod(buf []byte, m Method) ([]byte, error) {
	op, ok := legacyOpcodes[m]
	if !ok {
		return buf, fmt.Errorf("%w: %q (revision %s)", ErrUnsupportedMethod, m, r.Name())
	}
	return binary.BigEndian.AppendUint32(buf, op), nil
}

// ParseMethod maps an opcode back to its method. Unknown opcodes are
// returned as "#<opcode>" so a server can still report them.
func (legacy) ParseMethod(data []byte) (Method, []byte, error) {
	if len(data) < 4 {
		return "", data, ErrShortInput
	}
	op := binary.BigEndian.Uint32(data[:4])
	m, ok := legacyMethods[op]
	if !ok {
		m = Method(fmt.Sprintf("#%d", op))
	}
	return m, data[4:], nil
}

func (legacy) AppendBlob(buf, blob []byte) ([]byte, error) {
	if len(blob) > 0xffff {
		return buf, fmt.Errorf("blob length %d exceeds 16 bits", len(blob))
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(blob)))
	return append(buf, blob...), nil
}

func (legacy) ParseBlob(data []byte) ([]byte, []byte, error) {
	if len(data) < 2 {
		return nil, data, ErrShortInput
	}
	n := int(binary.BigEndian.Uint16(data[:2]))
	if len(data) < 2+n {
		return nil, data, ErrShortInput
	}
	return data[2 : 2+n : 2+n], data[2+n:], nil
}

func (legacy) EncodeListArgs(count int, start []byte) ([]byte, error) {
	if count < 0 || uint64(count) > 0xffffffff {
		return nil, fmt.Errorf("invalid list count %d", count)
	}
	buf := make([]byte, 4, 4+len(start))
	binary.BigEndian.PutUint32(buf, uint32(count))
	return append(buf, start...), nil
}

func (legacy) DecodeListArgs(data []byte) (int, []byte, error) {
	if len(data) < 4 {
		return 0, nil, fmt.Errorf("invalid list request (malformed count): %w", ErrShortInput)
	}
	return int(binary.BigEndian.Uint32(data[:4])), data[4:], nil
}

func (legacy) EncodeCount(n uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, n)
}

func (legacy) DecodeCount(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, protocolErrorf("count has %d bytes, want 8", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// EncodeServiceError writes [2] code [2] msglen [n] message [rest] aux.
func (legacy) EncodeServiceError(e *ServiceError) ([]byte, error) {
	if e.Code > 0xffff {
		return nil, fmt.Errorf("service error code %d exceeds 16 bits", e.Code)
	}
	if len(e.Message) > 0xffff {
		return nil, fmt.Errorf("service error message length %d exceeds 16 bits", len(e.Message))
	}
	buf := binary.BigEndian.AppendUint16(nil, uint16(e.Code))
	if e.Message == nil && len(e.Aux) == 0 {
		return buf, nil
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(e.Message)))
	buf = append(buf, e.Message...)
	return append(buf, e.Aux...), nil
}

func (legacy) DecodeServiceError(status int8, data []byte) (*ServiceError, error) {
	se := &ServiceError{Status: status}
	if len(data) == 0 {
		return se, nil
	}
	if len(data) < 2 {
		return nil, protocolErrorf("malformed service error code")
	}
	se.Code = uint32(binary.BigEndian.Uint16(data[:2]))
	if len(data) == 2 {
		return se, nil
	}
	if len(data) < 4 {
		return nil, protocolErrorf("malformed service error message length")
	}
	n := int(binary.BigEndian.Uint16(data[2:4]))
	if len(data) < 4+n {
		return nil, protocolErrorf("service error message truncated")
	}
	se.Message = append([]byte{}, data[4:4+n]...)
	if len(data) > 4+n {
		se.Aux = data[4+n:]
	}
	return se, nil
}
