package ua

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// IdentifierKind tags which variant a NodeId's Identifier field holds.
type IdentifierKind int

const (
	IdentifierNumeric IdentifierKind = iota
	IdentifierString
	IdentifierGuid
	IdentifierByteString
)

// NodeId is a namespace index paired with one of four identifier kinds,
// per OPC UA Part 6. Namespace 0 is the standard OPC UA information model.
type NodeId struct {
	Namespace  uint16
	Kind       IdentifierKind
	Numeric    uint32
	Text       string
	GuidValue  Guid
	ByteString []byte
}

func NewNumericNodeId(ns uint16, id uint32) NodeId {
	return NodeId{Namespace: ns, Kind: IdentifierNumeric, Numeric: id}
}

func NewStringNodeId(ns uint16, id string) NodeId {
	return NodeId{Namespace: ns, Kind: IdentifierString, Text: id}
}

func NewGuidNodeId(ns uint16, id Guid) NodeId {
	return NodeId{Namespace: ns, Kind: IdentifierGuid, GuidValue: id}
}

func NewByteStringNodeId(ns uint16, id []byte) NodeId {
	return NodeId{Namespace: ns, Kind: IdentifierByteString, ByteString: id}
}

// NullNodeId is the zero value: ns=0, Numeric(0).
var NullNodeId = NewNumericNodeId(0, 0)

func (n NodeId) IsNull() bool {
	return n.Namespace == 0 && n.Kind == IdentifierNumeric && n.Numeric == 0
}

func (n NodeId) Equal(o NodeId) bool {
	if n.Namespace != o.Namespace || n.Kind != o.Kind {
		return false
	}
	switch n.Kind {
	case IdentifierNumeric:
		return n.Numeric == o.Numeric
	case IdentifierString:
		return n.Text == o.Text
	case IdentifierGuid:
		return n.GuidValue == o.GuidValue
	case IdentifierByteString:
		return string(n.ByteString) == string(o.ByteString)
	}
	return false
}

// Key is a comparable value suitable for use as a map key, since NodeId
// itself contains a slice field.
func (n NodeId) Key() interface{} {
	switch n.Kind {
	case IdentifierNumeric:
		return fmt.Sprintf("i:%d:%d", n.Namespace, n.Numeric)
	case IdentifierString:
		return fmt.Sprintf("s:%d:%s", n.Namespace, n.Text)
	case IdentifierGuid:
		return fmt.Sprintf("g:%d:%s", n.Namespace, n.GuidValue)
	default:
		return fmt.Sprintf("b:%d:%s", n.Namespace, string(n.ByteString))
	}
}

func (n NodeId) String() string {
	var body string
	switch n.Kind {
	case IdentifierNumeric:
		body = fmt.Sprintf("i=%d", n.Numeric)
	case IdentifierString:
		body = fmt.Sprintf("s=%s", n.Text)
	case IdentifierGuid:
		body = fmt.Sprintf("g=%s", n.GuidValue)
	case IdentifierByteString:
		body = fmt.Sprintf("b=%s", base64.StdEncoding.EncodeToString(n.ByteString))
	}
	if n.Namespace == 0 {
		return body
	}
	return fmt.Sprintf("ns=%d;%s", n.Namespace, body)
}

// ParseNodeId parses the textual form `ns=<n>;<type>=<value>` described in
// OPC UA Part 6. Namespace is optional and defaults to 0.
func ParseNodeId(s string) (NodeId, error) {
	rest := s
	ns := uint16(0)
	if strings.HasPrefix(rest, "ns=") {
		idx := strings.IndexByte(rest, ';')
		if idx < 0 {
			return NodeId{}, fmt.Errorf("opcua: malformed node id %q: missing ';' after namespace", s)
		}
		nsStr := rest[len("ns="):idx]
		n, err := strconv.ParseUint(nsStr, 10, 32)
		if err != nil || n > 65535 {
			return NodeId{}, fmt.Errorf("opcua: malformed node id %q: invalid namespace", s)
		}
		ns = uint16(n)
		rest = rest[idx+1:]
	}
	if len(rest) < 2 || rest[1] != '=' {
		return NodeId{}, fmt.Errorf("opcua: malformed node id %q: expected <type>=<value>", s)
	}
	kind, value := rest[0], rest[2:]
	switch kind {
	case 'i':
		v, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return NodeId{}, fmt.Errorf("opcua: malformed numeric node id %q: %w", s, err)
		}
		return NewNumericNodeId(ns, uint32(v)), nil
	case 's':
		if value == "" {
			return NodeId{}, fmt.Errorf("opcua: malformed node id %q: string identifier must be non-empty", s)
		}
		return NewStringNodeId(ns, value), nil
	case 'g':
		g, err := ParseGuid(value)
		if err != nil {
			return NodeId{}, fmt.Errorf("opcua: malformed guid node id %q: %w", s, err)
		}
		return NewGuidNodeId(ns, g), nil
	case 'b':
		b, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return NodeId{}, fmt.Errorf("opcua: malformed bytestring node id %q: %w", s, err)
		}
		return NewByteStringNodeId(ns, b), nil
	default:
		return NodeId{}, fmt.Errorf("opcua: malformed node id %q: unknown identifier type %q", s, string(kind))
	}
}

// Encoding masks for the compact NodeId wire forms (OPC UA Part 6).
const (
	nodeIDEncodingTwoByte  = 0x00
	nodeIDEncodingFourByte = 0x01
	nodeIDEncodingNumeric  = 0x02
	nodeIDEncodingString   = 0x03
	nodeIDEncodingGuid     = 0x04
	nodeIDEncodingByteStr  = 0x05
)

func (n NodeId) byteLen() int { return n.byteLenWithFlags(0) }

// byteLenWithFlags mirrors encodeWithFlags's form selection exactly, so
// ExpandedNodeId.byteLen() (which must pass non-zero flags whenever a
// namespace URI or server index forces the full numeric form) always
// agrees with what encodeWithFlags actually writes (OPC UA Part 6:
// byte_len(x) == |encode(x)|).
func (n NodeId) byteLenWithFlags(flags byte) int {
	switch n.Kind {
	case IdentifierNumeric:
		switch {
		case n.Namespace == 0 && n.Numeric <= 255 && flags == 0:
			return 2
		case n.Namespace <= 255 && n.Numeric <= 65535 && flags == 0:
			return 4
		default:
			return 1 + 2 + 4
		}
	case IdentifierString:
		return 1 + 2 + 4 + len(n.Text)
	case IdentifierGuid:
		return 1 + 2 + 16
	default:
		return 1 + 2 + 4 + len(n.ByteString)
	}
}

func (n NodeId) encode(e *Encoder) { n.encodeWithFlags(e, 0) }

// EncodeNodeId/DecodeNodeId expose the binary NodeId codec to callers
// outside this package, such as the service dispatcher reading the
// request-type NodeId that precedes every service body (OPC UA Part 6).
func EncodeNodeId(n NodeId, e *Encoder)       { n.encode(e) }
func DecodeNodeId(d *Decoder) (NodeId, error) { return decodeNodeId(d) }

// ByteLen exposes NodeId's wire length to callers outside this package.
func (n NodeId) ByteLen() int { return n.byteLen() }

// encodeWithFlags writes the NodeId with extra high bits OR'd into its
// leading encoding-mask byte, used by ExpandedNodeId to fold in the
// namespace-URI/server-index presence flags without a second byte.
func (n NodeId) encodeWithFlags(e *Encoder, flags byte) {
	switch n.Kind {
	case IdentifierNumeric:
		switch {
		case n.Namespace == 0 && n.Numeric <= 255 && flags == 0:
			e.WriteByte(nodeIDEncodingTwoByte)
			e.WriteByte(byte(n.Numeric))
		case n.Namespace <= 255 && n.Numeric <= 65535 && flags == 0:
			e.WriteByte(nodeIDEncodingFourByte)
			e.WriteByte(byte(n.Namespace))
			e.WriteUint16(uint16(n.Numeric))
		default:
			e.WriteByte(nodeIDEncodingNumeric | flags)
			e.WriteUint16(n.Namespace)
			e.WriteUint32(n.Numeric)
		}
	case IdentifierString:
		e.WriteByte(nodeIDEncodingString | flags)
		e.WriteUint16(n.Namespace)
		e.WriteString(n.Text, false)
	case IdentifierGuid:
		e.WriteByte(nodeIDEncodingGuid | flags)
		e.WriteUint16(n.Namespace)
		n.GuidValue.encode(e)
	default:
		e.WriteByte(nodeIDEncodingByteStr | flags)
		e.WriteUint16(n.Namespace)
		e.WriteByteString(n.ByteString)
	}
}

func decodeNodeId(d *Decoder) (NodeId, error) {
	n, _, err := decodeNodeIdWithFlags(d)
	return n, err
}

// decodeNodeIdWithFlags also returns the high flag bits (namespace-URI /
// server-index presence) an ExpandedNodeId may have folded into the mask.
func decodeNodeIdWithFlags(d *Decoder) (NodeId, byte, error) {
	raw, err := d.ReadByte()
	if err != nil {
		return NodeId{}, 0, err
	}
	flags := raw & (expandedFlagNamespaceURI | expandedFlagServerIndex)
	mask := raw &^ (expandedFlagNamespaceURI | expandedFlagServerIndex)
	n, err := decodeNodeIdBody(d, mask)
	return n, flags, err
}

func decodeNodeIdBody(d *Decoder, mask byte) (NodeId, error) {
	switch mask {
	case nodeIDEncodingTwoByte:
		v, err := d.ReadByte()
		if err != nil {
			return NodeId{}, err
		}
		return NewNumericNodeId(0, uint32(v)), nil
	case nodeIDEncodingFourByte:
		ns, err := d.ReadByte()
		if err != nil {
			return NodeId{}, err
		}
		v, err := d.ReadUint16()
		if err != nil {
			return NodeId{}, err
		}
		return NewNumericNodeId(uint16(ns), uint32(v)), nil
	case nodeIDEncodingNumeric:
		ns, err := d.ReadUint16()
		if err != nil {
			return NodeId{}, err
		}
		v, err := d.ReadUint32()
		if err != nil {
			return NodeId{}, err
		}
		return NewNumericNodeId(ns, v), nil
	case nodeIDEncodingString:
		ns, err := d.ReadUint16()
		if err != nil {
			return NodeId{}, err
		}
		s, isNull, err := d.ReadString()
		if err != nil {
			return NodeId{}, err
		}
		if isNull {
			s = ""
		}
		return NewStringNodeId(ns, s), nil
	case nodeIDEncodingGuid:
		ns, err := d.ReadUint16()
		if err != nil {
			return NodeId{}, err
		}
		g, err := decodeGuid(d)
		if err != nil {
			return NodeId{}, err
		}
		return NewGuidNodeId(ns, g), nil
	case nodeIDEncodingByteStr:
		ns, err := d.ReadUint16()
		if err != nil {
			return NodeId{}, err
		}
		b, err := d.ReadByteString()
		if err != nil {
			return NodeId{}, err
		}
		return NewByteStringNodeId(ns, b), nil
	default:
		return NodeId{}, errInvalid(fmt.Sprintf("unknown node id encoding mask 0x%02x", mask))
	}
}

// ExpandedNodeId is a NodeId plus the optional cross-server fields from
// OPC UA Part 6.
type ExpandedNodeId struct {
	NodeId          NodeId
	NamespaceURI    string
	HasNamespaceURI bool
	ServerIndex     uint32
}

func NewExpandedNodeId(id NodeId) ExpandedNodeId { return ExpandedNodeId{NodeId: id} }

var NullExpandedNodeId = ExpandedNodeId{NodeId: NullNodeId}

func (e ExpandedNodeId) IsNull() bool {
	return e.NodeId.IsNull() && !e.HasNamespaceURI && e.ServerIndex == 0
}

const (
	expandedFlagNamespaceURI = 0x80
	expandedFlagServerIndex  = 0x40
)

func (e ExpandedNodeId) byteLen() int {
	var flags byte
	if e.HasNamespaceURI {
		flags |= expandedFlagNamespaceURI
	}
	if e.ServerIndex != 0 {
		flags |= expandedFlagServerIndex
	}
	n := e.NodeId.byteLenWithFlags(flags)
	if e.HasNamespaceURI {
		n += 4 + len(e.NamespaceURI)
	}
	if e.ServerIndex != 0 {
		n += 4
	}
	return n
}

func (e ExpandedNodeId) encode(enc *Encoder) {
	var flags byte
	if e.HasNamespaceURI {
		flags |= expandedFlagNamespaceURI
	}
	if e.ServerIndex != 0 {
		flags |= expandedFlagServerIndex
	}
	e.NodeId.encodeWithFlags(enc, flags)
	if e.HasNamespaceURI {
		enc.WriteString(e.NamespaceURI, false)
	}
	if e.ServerIndex != 0 {
		enc.WriteUint32(e.ServerIndex)
	}
}

func decodeExpandedNodeId(d *Decoder) (ExpandedNodeId, error) {
	id, flags, err := decodeNodeIdWithFlags(d)
	if err != nil {
		return ExpandedNodeId{}, err
	}
	e := ExpandedNodeId{NodeId: id}
	if flags&expandedFlagNamespaceURI != 0 {
		uri, isNull, err := d.ReadString()
		if err != nil {
			return ExpandedNodeId{}, err
		}
		if !isNull {
			e.HasNamespaceURI = true
			e.NamespaceURI = uri
		}
	}
	if flags&expandedFlagServerIndex != 0 {
		idx, err := d.ReadUint32()
		if err != nil {
			return ExpandedNodeId{}, err
		}
		e.ServerIndex = idx
	}
	return e, nil
}
