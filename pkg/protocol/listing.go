package protocol

// Listing is one page of keys returned by the list method.
type Listing struct {
	// Cursor is the key at which the next page starts. Empty means there
	// are no further keys.
	Cursor []byte
	Keys   [][]byte

	// Encoding:
	// [blob] cursor |: [blob] key :|
}

// HasMore reports whether another page follows this one.
func (l Listing) HasMore() bool { return len(l.Cursor) != 0 }

// DecodeListing decodes a list response body. The first blob is the cursor
// and every following blob is a key, in order.
func DecodeListing(rev Revision, payload []byte) (Listing, error) {
	var l Listing
	if len(payload) == 0 {
		return l, nil
	}
	cursor, rest, err := rev.ParseBlob(payload)
	if err != nil {
		return Listing{}, &ProtocolError{Msg: "invalid list response (malformed cursor)", Err: err}
	}
	l.Cursor = cursor
	for len(rest) != 0 {
		var key []byte
		key, rest, err = rev.ParseBlob(rest)
		if err != nil {
			return Listing{}, &ProtocolError{Msg: "invalid list response (malformed key)", Err: err}
		}
		l.Keys = append(l.Keys, key)
	}
	return l, nil
}

// EncodeListing encodes l as a list response body.
func EncodeListing(rev Revision, l Listing) ([]byte, error) {
	size := len(l.Cursor) + 4
	for _, key := range l.Keys {
		size += len(key) + 4
	}
	buf, err := rev.AppendBlob(make([]byte, 0, size), l.Cursor)
	if err != nil {
		return nil, err
	}
	for _, key := range l.Keys {
		if buf, err = rev.AppendBlob(buf, key); err != nil {
			return nil, err
		}
	}
	return buf, nil
}
