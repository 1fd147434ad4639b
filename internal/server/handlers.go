package server

import (
	"encoding/json"
	"time"

	"github.com/jasonrowsell/chirpstore/pkg/protocol"
)

// execute runs one request against the cache and returns the response
// status and body.
func (s *Server) execute(req protocol.Request) (int8, []byte) {
	if !s.rev.Supports(req.Method) {
		return s.fail(protocol.StatusUnknownMethod, 0, "unknown method "+string(req.Method), nil)
	}
	switch req.Method {
	case protocol.MethodStatus:
		return s.handleStatus()
	case protocol.MethodGet:
		return s.handleGet(req.Args)
	case protocol.MethodPut:
		return s.handlePut(req.Args)
	case protocol.MethodDelete:
		return s.handleDelete(req.Args)
	case protocol.MethodSize:
		return s.handleSize(req.Args)
	case protocol.MethodList:
		return s.handleList(req.Args)
	case protocol.MethodLen:
		return protocol.StatusSuccess, s.rev.EncodeCount(uint64(s.cache.Len()))
	default:
		return s.fail(protocol.StatusUnknownMethod, 0, "unknown method "+string(req.Method), nil)
	}
}

// fail encodes a service error body. If the error cannot be encoded the
// response carries the status alone.
func (s *Server) fail(status int8, code uint32, msg string, aux []byte) (int8, []byte) {
	e := &protocol.ServiceError{Status: status, Code: code, Aux: aux}
	if msg != "" {
		e.Message = []byte(msg)
	}
	body, err := s.rev.EncodeServiceError(e)
	if err != nil {
		return status, nil
	}
	return status, body
}

func (s *Server) notFound(key []byte) (int8, []byte) {
	return s.fail(protocol.StatusServiceError, protocol.CodeKeyNotFound, "key not found", key)
}

func (s *Server) handleStatus() (int8, []byte) {
	doc := map[string]any{
		"revision":    s.rev.Name(),
		"keys":        s.cache.Len(),
		"uptime":      s.stats.uptime().Round(time.Second).String(),
		"connections": s.stats.activeConns(),
		"requests":    s.stats.snapshot(),
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return s.fail(protocol.StatusServiceError, 500, err.Error(), nil)
	}
	return protocol.StatusSuccess, body
}

func (s *Server) handleGet(key []byte) (int8, []byte) {
	value, found := s.cache.Get(string(key))
	if !found {
		return s.notFound(key)
	}
	return protocol.StatusSuccess, value
}

// put arguments: [1] replace [blob] key [rest] value
func (s *Server) handlePut(args []byte) (int8, []byte) {
	if len(args) == 0 {
		return s.fail(protocol.StatusServiceError, 400, "malformed put arguments", nil)
	}
	replace := args[0] != 0
	key, value, err := s.rev.ParseBlob(args[1:])
	if err != nil {
		return s.fail(protocol.StatusServiceError, 400, "malformed put arguments", nil)
	}
	if replace {
		s.cache.Set(string(key), value)
		return protocol.StatusSuccess, nil
	}
	if !s.cache.Add(string(key), value) {
		return s.fail(protocol.StatusServiceError, protocol.CodeKeyExists, "key exists", key)
	}
	return protocol.StatusSuccess, nil
}

func (s *Server) handleDelete(key []byte) (int8, []byte) {
	if !s.cache.Delete(string(key)) {
		return s.notFound(key)
	}
	return protocol.StatusSuccess, nil
}

func (s *Server) handleSize(key []byte) (int8, []byte) {
	size, found := s.cache.Size(string(key))
	if !found {
		return s.notFound(key)
	}
	return protocol.StatusSuccess, s.rev.EncodeCount(uint64(size))
}

func (s *Server) handleList(args []byte) (int8, []byte) {
	count, start, err := s.rev.DecodeListArgs(args)
	if err != nil {
		return s.fail(protocol.StatusServiceError, 400, "malformed list arguments", nil)
	}
	if count <= 0 {
		count = s.listLimit
	}
	keys, next := s.cache.List(string(start), count)

	l := protocol.Listing{Keys: make([][]byte, len(keys))}
	if next != "" {
		l.Cursor = []byte(next)
	}
	for i, key := range keys {
		l.Keys[i] = []byte(key)
	}
	body, err := protocol.EncodeListing(s.rev, l)
	if err != nil {
		return s.fail(protocol.StatusServiceError, 500, err.Error(), nil)
	}
	return protocol.StatusSuccess, body
}
