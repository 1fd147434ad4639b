package protocol

import (
	"encoding/binary"
	"fmt"
)

// Request is a decoded request envelope.
type Request struct {
	ID     uint32
	Method Method
	Args   []byte

	// Encoding:
	// [4] id [method] [rest] args
}

// Response is a decoded response envelope.
type Response struct {
	ID     uint32
	Status int8
	Body   []byte

	// Encoding:
	// [4] id [1] status [rest] body
}

// RequestBuilder builds correlated request envelopes for one connection.
// The zero sequence is never issued; the first request has ID 1.
type RequestBuilder struct {
	rev  Revision
	last uint32
}

// NewRequestBuilder returns a builder that writes methods using rev.
func NewRequestBuilder(rev Revision) *RequestBuilder {
	return &RequestBuilder{rev: rev}
}

// Revision reports the revision used by b.
func (b *RequestBuilder) Revision() Revision { return b.rev }

// LastID reports the most recently issued request ID, or 0.
func (b *RequestBuilder) LastID() uint32 { return b.last }

// Build assigns the next sequence ID and encodes a request for method with
// the given argument bytes. An unsupported method does not consume an ID.
func (b *RequestBuilder) Build(m Method, args []byte) (uint32, []byte, error) {
	if !b.rev.Supports(m) {
		return 0, nil, fmt.Errorf("%w: %q (revision %s)", ErrUnsupportedMethod, m, b.rev.Name())
	}
	if b.last == ^uint32(0) {
		return 0, nil, fmt.Errorf("request sequence exhausted")
	}
	id := b.last + 1

	buf := make([]byte, 4, 4+1+len(m)+len(args))
	binary.BigEndian.PutUint32(buf, id)
	buf, err := b.rev.AppendMethod(buf, m)
	if err != nil {
		return 0, nil, err
	}
	b.last = id
	return id, append(buf, args...), nil
}

// DecodeRequest parses a request envelope.
func DecodeRequest(rev Revision, payload []byte) (Request, error) {
	if len(payload) < 4 {
		return Request{}, protocolErrorf("request envelope too short (%d bytes)", len(payload))
	}
	req := Request{ID: binary.BigEndian.Uint32(payload[:4])}
	m, rest, err := rev.ParseMethod(payload[4:])
	if err != nil {
		return req, &ProtocolError{Msg: "malformed method", Err: err}
	}
	req.Method = m
	req.Args = rest
	return req, nil
}

// EncodeResponse builds a response envelope.
func EncodeResponse(id uint32, status int8, body []byte) []byte {
	buf := make([]byte, 5, 5+len(body))
	binary.BigEndian.PutUint32(buf[:4], id)
	buf[4] = byte(status)
	return append(buf, body...)
}

// DecodeResponse splits a response envelope into its fields.
func DecodeResponse(payload []byte) (Response, error) {
	if len(payload) < 5 {
		return Response{}, protocolErrorf("response envelope too short (%d bytes)", len(payload))
	}
	return Response{
		ID:     binary.BigEndian.Uint32(payload[:4]),
		Status: int8(payload[4]),
		Body:   payload[5:],
	}, nil
}

// ParseResponse decodes the response to the request with expectedID.
//
// A response for any other ID means the stream is desynchronized and is
// reported as a *ProtocolError. A non-zero status is decoded as a
// *ServiceError. Otherwise the success body is returned as-is.
func ParseResponse(rev Revision, expectedID uint32, payload []byte) ([]byte, error) {
	rsp, err := DecodeResponse(payload)
	if err != nil {
		return nil, err
	}
	if rsp.ID != expectedID {
		return nil, protocolErrorf("unexpected response id, got %d, want %d", rsp.ID, expectedID)
	}
	if rsp.Status != 0 {
		se, err := rev.DecodeServiceError(rsp.Status, rsp.Body)
		if err != nil {
			return nil, err
		}
		return nil, se
	}
	return rsp.Body, nil
}
