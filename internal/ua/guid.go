package ua

import (
	"fmt"

	"github.com/google/uuid"
)

// Guid is a 16-byte globally unique identifier. Its wire layout is not a
// straight byte dump of RFC 4122: the first three fields are little-endian
// and the last two are big-endian (OPC UA Part 6), so encode/decodeGuid
// rearrange the bytes field by field rather than copying them as-is.
type Guid uuid.UUID

// NullGuid is the all-zero Guid.
var NullGuid Guid

// NewGuid returns a random v4 Guid.
func NewGuid() Guid { return Guid(uuid.New()) }

func (g Guid) String() string { return uuid.UUID(g).String() }

// ParseGuid parses the canonical hyphenated text form.
func ParseGuid(s string) (Guid, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Guid{}, fmt.Errorf("invalid guid %q: %w", s, err)
	}
	return Guid(u), nil
}

func (Guid) byteLen() int { return 16 }

// encode writes the OPC UA mixed-endian image described in OPC UA Part 6:
// Data1 (uint32 LE), Data2 (uint16 LE), Data3 (uint16 LE), Data4 (8 bytes, as-is).
func (g Guid) encode(e *Encoder) {
	b := uuid.UUID(g)
	e.WriteUint32(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
	e.WriteUint16(uint16(b[4])<<8 | uint16(b[5]))
	e.WriteUint16(uint16(b[6])<<8 | uint16(b[7]))
	for i := 8; i < 16; i++ {
		e.WriteByte(b[i])
	}
}

func decodeGuid(d *Decoder) (Guid, error) {
	data1, err := d.ReadUint32()
	if err != nil {
		return Guid{}, err
	}
	data2, err := d.ReadUint16()
	if err != nil {
		return Guid{}, err
	}
	data3, err := d.ReadUint16()
	if err != nil {
		return Guid{}, err
	}
	var tail [8]byte
	for i := range tail {
		b, err := d.ReadByte()
		if err != nil {
			return Guid{}, err
		}
		tail[i] = b
	}
	var u uuid.UUID
	u[0], u[1], u[2], u[3] = byte(data1>>24), byte(data1>>16), byte(data1>>8), byte(data1)
	u[4], u[5] = byte(data2>>8), byte(data2)
	u[6], u[7] = byte(data3>>8), byte(data3)
	copy(u[8:], tail[:])
	return Guid(u), nil
}
