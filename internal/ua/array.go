package ua

// Encodable is implemented by every fixed-shape type in this package that
// participates in the generic array helpers below (service message
// structs implement it too).
type Encodable interface {
	byteLen() int
	encode(e *Encoder)
}

// ArrayByteLen sums an encoded array's length: a 4-byte count plus each
// element's byteLen, mirroring the generated codec's byte_len_array.
func ArrayByteLen[T Encodable](items []T) int {
	n := 4
	for _, it := range items {
		n += it.byteLen()
	}
	return n
}

// WriteArray writes a null (-1 length) array when items is nil, otherwise
// the count followed by each encoded element.
func WriteArray[T Encodable](e *Encoder, items []T) {
	if items == nil {
		e.WriteInt32(-1)
		return
	}
	e.WriteInt32(int32(len(items)))
	for _, it := range items {
		it.encode(e)
	}
}

// ReadArray reads an array via decodeOne, returning nil for a null array.
func ReadArray[T any](d *Decoder, decodeOne func(*Decoder) (T, error)) ([]T, error) {
	n, err := d.ArrayLen()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}
	items := make([]T, n)
	for i := range items {
		v, err := decodeOne(d)
		if err != nil {
			return nil, err
		}
		items[i] = v
	}
	return items, nil
}

// ArrayByteLenFunc sums lengths for element types that don't implement
// Encodable directly (e.g. string, []byte, via a caller-supplied sizer).
func ArrayByteLenFunc[T any](items []T, size func(T) int) int {
	n := 4
	for _, it := range items {
		n += size(it)
	}
	return n
}
