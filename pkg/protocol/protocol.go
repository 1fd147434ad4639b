// Package protocol implements the chirpstore wire format: packet framing,
// request and response envelopes, Vint30 integers, service errors and key
// listings. The encodings that changed between protocol revisions are
// isolated behind the Revision interface.
package protocol

// Packet types
type PacketType uint8

const (
	PacketRequest  PacketType = 2
	PacketResponse PacketType = 4
)

func (t PacketType) String() string {
	switch t {
	case PacketRequest:
		return "REQUEST"
	case PacketResponse:
		return "RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// Method names an operation of the store service. How a method is written
// on the wire depends on the Revision.
type Method string

const (
	MethodStatus Method = "status"
	MethodGet    Method = "get"
	MethodPut    Method = "put"
	MethodDelete Method = "delete"
	MethodSize   Method = "size"
	MethodList   Method = "list"
	MethodLen    Method = "len"
	MethodCASPut Method = "cas-put"
	MethodCASKey Method = "cas-key"
)

// Response status values. Any non-zero status is a failure whose body is a
// service error payload.
const (
	StatusSuccess       int8 = 0
	StatusUnknownMethod int8 = 1
	StatusDuplicateID   int8 = 2
	StatusCanceled      int8 = 3
	StatusServiceError  int8 = 4
)

// Service error codes
const (
	CodeKeyExists   uint32 = 400
	CodeKeyNotFound uint32 = 404
)

// Size constants
const (
	HeaderSize     = 8       // 3 (magic) + 1 (type) + 4 (length)
	MaxPayloadSize = 1 << 26 // 64MB limit for a single packet
	MaxMethodLen   = 255
)

// magic is the packet signature.
var magic = [3]byte{'C', 'P', 0}
