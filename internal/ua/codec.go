package ua

import (
	"encoding/binary"
	"io"
	"math"
)

// DefaultMaxByteStringLength is the default cap enforced by Decoder on any
// string or array length prefix, per OPC UA Part 6.
const DefaultMaxByteStringLength = 64 * 1024

// Encoder serializes OPC UA primitives to an io.Writer in little-endian
// wire order. It never returns an error for the primitive writers below;
// Err() surfaces the first failure so callers can check once at the end
// of a long chain of writes, mirroring how the generated message structs
// accumulate encode() calls in the original schema-driven codec.
type Encoder struct {
	w   io.Writer
	n   int
	err error
}

func NewEncoder(w io.Writer) *Encoder { return &Encoder{w: w} }

func (e *Encoder) Err() error { return e.err }

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int { return e.n }

func (e *Encoder) write(p []byte) {
	if e.err != nil {
		return
	}
	n, err := e.w.Write(p)
	e.n += n
	if err != nil {
		e.err = err
	}
}

func (e *Encoder) WriteBoolean(v bool) {
	if v {
		e.write([]byte{1})
	} else {
		e.write([]byte{0})
	}
}

func (e *Encoder) WriteByte(v byte) { e.write([]byte{v}) }

func (e *Encoder) WriteSByte(v int8) { e.write([]byte{byte(v)}) }

func (e *Encoder) WriteUint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.write(b[:])
}

func (e *Encoder) WriteInt16(v int16) { e.WriteUint16(uint16(v)) }

func (e *Encoder) WriteUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.write(b[:])
}

func (e *Encoder) WriteInt32(v int32) { e.WriteUint32(uint32(v)) }

func (e *Encoder) WriteUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.write(b[:])
}

func (e *Encoder) WriteInt64(v int64) { e.WriteUint64(uint64(v)) }

func (e *Encoder) WriteFloat32(v float32) { e.WriteUint32(math.Float32bits(v)) }

func (e *Encoder) WriteFloat64(v float64) { e.WriteUint64(math.Float64bits(v)) }

// WriteString writes a UAString: an int32 length followed by UTF-8 bytes.
// A negative length (null) is encoded as -1 with no body; empty strings
// are distinct from null strings on the wire.
func (e *Encoder) WriteString(s string, isNull bool) {
	if isNull {
		e.WriteInt32(-1)
		return
	}
	e.WriteInt32(int32(len(s)))
	e.write([]byte(s))
}

// WriteByteString writes a ByteString: identical framing to WriteString
// but raw bytes with no UTF-8 meaning. nil is encoded as null.
func (e *Encoder) WriteByteString(b []byte) {
	if b == nil {
		e.WriteInt32(-1)
		return
	}
	e.WriteInt32(int32(len(b)))
	e.write(b)
}

func (e *Encoder) WriteDateTime(t DateTime) { e.WriteInt64(int64(t)) }

// Decoder deserializes OPC UA primitives from an io.Reader, enforcing a
// configurable cap on decoded string/array lengths (OPC UA Part 6).
type Decoder struct {
	r       io.Reader
	n       int
	MaxSize int
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, MaxSize: DefaultMaxByteStringLength}
}

// Len returns the number of bytes consumed so far.
func (d *Decoder) Len() int { return d.n }

func (d *Decoder) readFull(p []byte) error {
	n, err := io.ReadFull(d.r, p)
	d.n += n
	if err != nil {
		return errEOF(err.Error())
	}
	return nil
}

func (d *Decoder) ReadBoolean() (bool, error) {
	var b [1]byte
	if err := d.readFull(b[:]); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func (d *Decoder) ReadByte() (byte, error) {
	var b [1]byte
	if err := d.readFull(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) ReadSByte() (int8, error) {
	b, err := d.ReadByte()
	return int8(b), err
}

func (d *Decoder) ReadUint16() (uint16, error) {
	var b [2]byte
	if err := d.readFull(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func (d *Decoder) ReadInt16() (int16, error) {
	v, err := d.ReadUint16()
	return int16(v), err
}

func (d *Decoder) ReadUint32() (uint32, error) {
	var b [4]byte
	if err := d.readFull(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (d *Decoder) ReadInt32() (int32, error) {
	v, err := d.ReadUint32()
	return int32(v), err
}

func (d *Decoder) ReadUint64() (uint64, error) {
	var b [8]byte
	if err := d.readFull(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func (d *Decoder) ReadInt64() (int64, error) {
	v, err := d.ReadUint64()
	return int64(v), err
}

func (d *Decoder) ReadFloat32() (float32, error) {
	v, err := d.ReadUint32()
	return math.Float32frombits(v), err
}

func (d *Decoder) ReadFloat64() (float64, error) {
	v, err := d.ReadUint64()
	return math.Float64frombits(v), err
}

func (d *Decoder) readLengthPrefix() (int32, error) {
	n, err := d.ReadInt32()
	if err != nil {
		return 0, err
	}
	if n > 0 && int(n) > d.maxSize() {
		return 0, errLengthExceeded("length prefix exceeds configured maximum")
	}
	return n, nil
}

func (d *Decoder) maxSize() int {
	if d.MaxSize <= 0 {
		return DefaultMaxByteStringLength
	}
	return d.MaxSize
}

// ReadString reads a UAString. isNull is true iff the wire length was -1.
func (d *Decoder) ReadString() (s string, isNull bool, err error) {
	n, err := d.readLengthPrefix()
	if err != nil {
		return "", false, err
	}
	if n < 0 {
		return "", true, nil
	}
	if n == 0 {
		return "", false, nil
	}
	buf := make([]byte, n)
	if err := d.readFull(buf); err != nil {
		return "", false, err
	}
	return string(buf), false, nil
}

// ReadByteString reads a ByteString; nil return means the wire value was null.
func (d *Decoder) ReadByteString() ([]byte, error) {
	n, err := d.readLengthPrefix()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	if err := d.readFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *Decoder) ReadDateTime() (DateTime, error) {
	v, err := d.ReadInt64()
	return DateTime(v), err
}

// ArrayLen validates and returns an array length prefix, or -1 for a null array.
func (d *Decoder) ArrayLen() (int32, error) { return d.readLengthPrefix() }
