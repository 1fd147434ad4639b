package protocol

// MaxVint30 is the largest value representable as a Vint30.
const MaxVint30 = 1<<30 - 1

// Vint30Len reports the number of bytes needed to encode v, or 0 if v is
// out of range.
func Vint30Len(v uint32) int {
	switch {
	case v < 1<<6:
		return 1
	case v < 1<<14:
		return 2
	case v < 1<<22:
		return 3
	case v < 1<<30:
		return 4
	default:
		return 0
	}
}

// EncodeVint30 appends the minimal encoding of v to buf.
//
// The low 2 bits of the first byte hold the encoded length minus one, and
// v<<2 is packed little-endian across the encoded bytes.
func EncodeVint30(buf []byte, v uint32) ([]byte, error) {
	n := Vint30Len(v)
	if n == 0 {
		return buf, ErrVintRange
	}
	w := v<<2 | uint32(n-1)
	for i := 0; i < n; i++ {
		buf = append(buf, byte(w>>(8*i)))
	}
	return buf, nil
}

// DecodeVint30 decodes a Vint30 from the front of data and returns the value
// and the remaining bytes.
func DecodeVint30(data []byte) (uint32, []byte, error) {
	if len(data) == 0 {
		return 0, data, ErrShortInput
	}
	n := int(data[0]&3) + 1
	if len(data) < n {
		return 0, data, ErrShortInput
	}
	var w uint32
	for i := 0; i < n; i++ {
		w |= uint32(data[i]) << (8 * i)
	}
	return w >> 2, data[n:], nil
}

// AppendBytes appends blob to buf prefixed by its Vint30 length.
func AppendBytes(buf, blob []byte) ([]byte, error) {
	if len(blob) > MaxVint30 {
		return buf, ErrVintRange
	}
	buf, err := EncodeVint30(buf, uint32(len(blob)))
	if err != nil {
		return buf, err
	}
	return append(buf, blob...), nil
}

// DecodeBytes decodes a Vint30 length n from the front of data and splits
// off the next n bytes.
func DecodeBytes(data []byte) (blob, rest []byte, err error) {
	n, rest, err := DecodeVint30(data)
	if err != nil {
		return nil, data, err
	}
	if uint32(len(rest)) < n {
		return nil, data, ErrShortInput
	}
	return rest[:n:n], rest[n:], nil
}
