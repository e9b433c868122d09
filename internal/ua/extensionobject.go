package ua

// ExtensionObject wraps an opaque, type-tagged body: either absent, a raw
// ByteString payload, or an XML fragment (OPC UA Part 6). Higher layers that
// know the concrete type behind TypeId decode Body themselves.
type ExtensionObject struct {
	TypeId   NodeId
	Encoding ExtensionEncoding
	Body     []byte
}

type ExtensionEncoding byte

const (
	ExtensionEncodingNone       ExtensionEncoding = 0
	ExtensionEncodingByteString ExtensionEncoding = 1
	ExtensionEncodingXML        ExtensionEncoding = 2
)

var NullExtensionObject = ExtensionObject{TypeId: NullNodeId}

func (o ExtensionObject) IsNull() bool {
	return o.TypeId.IsNull() && o.Encoding == ExtensionEncodingNone
}

func (o ExtensionObject) byteLen() int {
	n := o.TypeId.byteLen() + 1
	if o.Encoding != ExtensionEncodingNone {
		n += 4 + len(o.Body)
	}
	return n
}

func (o ExtensionObject) encode(e *Encoder) {
	o.TypeId.encode(e)
	e.WriteByte(byte(o.Encoding))
	switch o.Encoding {
	case ExtensionEncodingByteString, ExtensionEncodingXML:
		e.WriteByteString(o.Body)
	}
}

func decodeExtensionObject(d *Decoder) (ExtensionObject, error) {
	typeId, err := decodeNodeId(d)
	if err != nil {
		return ExtensionObject{}, err
	}
	enc, err := d.ReadByte()
	if err != nil {
		return ExtensionObject{}, err
	}
	o := ExtensionObject{TypeId: typeId, Encoding: ExtensionEncoding(enc)}
	switch o.Encoding {
	case ExtensionEncodingByteString, ExtensionEncodingXML:
		body, err := d.ReadByteString()
		if err != nil {
			return ExtensionObject{}, err
		}
		o.Body = body
	case ExtensionEncodingNone:
	default:
		return ExtensionObject{}, errInvalid("unknown extension object encoding byte")
	}
	return o, nil
}
