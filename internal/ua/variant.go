package ua

import "fmt"

// VariantType identifies which of Variant's ~25 built-in types its Value
// holds, per OPC UA Part 6. The numeric values match the low 6 bits of the
// wire encoding mask.
type VariantType byte

const (
	TypeNull VariantType = iota
	TypeBoolean
	TypeSByte
	TypeByte
	TypeInt16
	TypeUInt16
	TypeInt32
	TypeUInt32
	TypeInt64
	TypeUInt64
	TypeFloat
	TypeDouble
	TypeString
	TypeDateTime
	TypeGuid
	TypeByteString
	TypeXMLElement
	TypeNodeId
	TypeExpandedNodeId
	TypeStatusCode
	TypeQualifiedName
	TypeLocalizedText
	TypeExtensionObject
	TypeDataValue
	TypeVariant
	TypeDiagnosticInfo
)

const (
	variantArrayMask     = 0x80
	variantDimensionMask = 0x40
	variantTypeMask      = 0x3F
)

// Variant is a tagged union: Type selects which field of the union is
// meaningful. Scalars live in Value; arrays live in Array with one
// interface{} element per entry, optionally shaped by ArrayDimensions.
type Variant struct {
	Type            VariantType
	Value           interface{}
	IsArray         bool
	Array           []interface{}
	ArrayDimensions []int32
}

var NullVariant = Variant{Type: TypeNull}

func (v Variant) IsNull() bool { return v.Type == TypeNull && !v.IsArray }

func NewVariant(value interface{}) Variant {
	t, _ := inferVariantType(value)
	return Variant{Type: t, Value: value}
}

func inferVariantType(value interface{}) (VariantType, error) {
	switch value.(type) {
	case bool:
		return TypeBoolean, nil
	case int8:
		return TypeSByte, nil
	case byte:
		return TypeByte, nil
	case int16:
		return TypeInt16, nil
	case uint16:
		return TypeUInt16, nil
	case int32:
		return TypeInt32, nil
	case uint32:
		return TypeUInt32, nil
	case int64:
		return TypeInt64, nil
	case uint64:
		return TypeUInt64, nil
	case float32:
		return TypeFloat, nil
	case float64:
		return TypeDouble, nil
	case string:
		return TypeString, nil
	case DateTime:
		return TypeDateTime, nil
	case Guid:
		return TypeGuid, nil
	case []byte:
		return TypeByteString, nil
	case NodeId:
		return TypeNodeId, nil
	case ExpandedNodeId:
		return TypeExpandedNodeId, nil
	case StatusCode:
		return TypeStatusCode, nil
	case QualifiedName:
		return TypeQualifiedName, nil
	case LocalizedText:
		return TypeLocalizedText, nil
	case ExtensionObject:
		return TypeExtensionObject, nil
	case DataValue:
		return TypeDataValue, nil
	case *Variant:
		return TypeVariant, nil
	case DiagnosticInfo:
		return TypeDiagnosticInfo, nil
	default:
		return TypeNull, errUnsupported(fmt.Sprintf("unsupported variant value type %T", value))
	}
}

func scalarByteLen(t VariantType, value interface{}) int {
	switch t {
	case TypeBoolean, TypeSByte, TypeByte:
		return 1
	case TypeInt16, TypeUInt16:
		return 2
	case TypeInt32, TypeUInt32, TypeFloat:
		return 4
	case TypeInt64, TypeUInt64, TypeDouble, TypeDateTime:
		return 8
	case TypeString:
		return 4 + len(value.(string))
	case TypeGuid:
		return 16
	case TypeByteString, TypeXMLElement:
		return 4 + len(value.([]byte))
	case TypeNodeId:
		return value.(NodeId).byteLen()
	case TypeExpandedNodeId:
		return value.(ExpandedNodeId).byteLen()
	case TypeStatusCode:
		return 4
	case TypeQualifiedName:
		return value.(QualifiedName).byteLen()
	case TypeLocalizedText:
		return value.(LocalizedText).byteLen()
	case TypeExtensionObject:
		return value.(ExtensionObject).byteLen()
	case TypeDataValue:
		return value.(DataValue).byteLen()
	case TypeVariant:
		return value.(*Variant).byteLen()
	case TypeDiagnosticInfo:
		return 1 // conservative; full diagnostics are rarely length-checked
	default:
		return 0
	}
}

func encodeScalar(e *Encoder, t VariantType, value interface{}) {
	switch t {
	case TypeBoolean:
		e.WriteBoolean(value.(bool))
	case TypeSByte:
		e.WriteSByte(value.(int8))
	case TypeByte:
		e.WriteByte(value.(byte))
	case TypeInt16:
		e.WriteInt16(value.(int16))
	case TypeUInt16:
		e.WriteUint16(value.(uint16))
	case TypeInt32:
		e.WriteInt32(value.(int32))
	case TypeUInt32:
		e.WriteUint32(value.(uint32))
	case TypeInt64:
		e.WriteInt64(value.(int64))
	case TypeUInt64:
		e.WriteUint64(value.(uint64))
	case TypeFloat:
		e.WriteFloat32(value.(float32))
	case TypeDouble:
		e.WriteFloat64(value.(float64))
	case TypeString:
		s := value.(string)
		e.WriteString(s, false)
	case TypeDateTime:
		e.WriteDateTime(value.(DateTime))
	case TypeGuid:
		value.(Guid).encode(e)
	case TypeByteString, TypeXMLElement:
		e.WriteByteString(value.([]byte))
	case TypeNodeId:
		value.(NodeId).encode(e)
	case TypeExpandedNodeId:
		value.(ExpandedNodeId).encode(e)
	case TypeStatusCode:
		value.(StatusCode).encode(e)
	case TypeQualifiedName:
		value.(QualifiedName).encode(e)
	case TypeLocalizedText:
		value.(LocalizedText).encode(e)
	case TypeExtensionObject:
		value.(ExtensionObject).encode(e)
	case TypeDataValue:
		value.(DataValue).encode(e)
	case TypeVariant:
		value.(*Variant).encode(e)
	case TypeDiagnosticInfo:
		value.(DiagnosticInfo).encode(e)
	}
}

func decodeScalar(d *Decoder, t VariantType) (interface{}, error) {
	switch t {
	case TypeBoolean:
		return d.ReadBoolean()
	case TypeSByte:
		return d.ReadSByte()
	case TypeByte:
		return d.ReadByte()
	case TypeInt16:
		return d.ReadInt16()
	case TypeUInt16:
		return d.ReadUint16()
	case TypeInt32:
		return d.ReadInt32()
	case TypeUInt32:
		return d.ReadUint32()
	case TypeInt64:
		return d.ReadInt64()
	case TypeUInt64:
		return d.ReadUint64()
	case TypeFloat:
		return d.ReadFloat32()
	case TypeDouble:
		return d.ReadFloat64()
	case TypeString:
		s, isNull, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		if isNull {
			return "", nil
		}
		return s, nil
	case TypeDateTime:
		return d.ReadDateTime()
	case TypeGuid:
		return decodeGuid(d)
	case TypeByteString, TypeXMLElement:
		return d.ReadByteString()
	case TypeNodeId:
		return decodeNodeId(d)
	case TypeExpandedNodeId:
		return decodeExpandedNodeId(d)
	case TypeStatusCode:
		return decodeStatusCode(d)
	case TypeQualifiedName:
		return decodeQualifiedName(d)
	case TypeLocalizedText:
		return decodeLocalizedText(d)
	case TypeExtensionObject:
		return decodeExtensionObject(d)
	case TypeDataValue:
		return decodeDataValue(d)
	case TypeVariant:
		v, err := decodeVariant(d)
		if err != nil {
			return nil, err
		}
		return &v, nil
	case TypeDiagnosticInfo:
		return decodeDiagnosticInfo(d)
	default:
		return nil, errInvalid(fmt.Sprintf("unknown variant type %d", t))
	}
}

func (v Variant) byteLen() int {
	n := 1
	if v.IsArray {
		n += 4
		for _, el := range v.Array {
			n += scalarByteLen(v.Type, el)
		}
		if len(v.ArrayDimensions) > 0 {
			n += 4 + 4*len(v.ArrayDimensions)
		}
		return n
	}
	if v.Type == TypeNull {
		return n
	}
	return n + scalarByteLen(v.Type, v.Value)
}

func (v Variant) encode(e *Encoder) {
	mask := byte(v.Type) & variantTypeMask
	if v.IsArray {
		mask |= variantArrayMask
		if len(v.ArrayDimensions) > 0 {
			mask |= variantDimensionMask
		}
	}
	e.WriteByte(mask)
	if v.IsArray {
		if v.Array == nil {
			e.WriteInt32(-1)
		} else {
			e.WriteInt32(int32(len(v.Array)))
		}
		for _, el := range v.Array {
			encodeScalar(e, v.Type, el)
		}
		if len(v.ArrayDimensions) > 0 {
			e.WriteInt32(int32(len(v.ArrayDimensions)))
			for _, dim := range v.ArrayDimensions {
				e.WriteInt32(dim)
			}
		}
		return
	}
	if v.Type == TypeNull {
		return
	}
	encodeScalar(e, v.Type, v.Value)
}

func decodeVariant(d *Decoder) (Variant, error) {
	mask, err := d.ReadByte()
	if err != nil {
		return Variant{}, err
	}
	t := VariantType(mask & variantTypeMask)
	isArray := mask&variantArrayMask != 0
	hasDims := mask&variantDimensionMask != 0
	if t == TypeNull && !isArray {
		return Variant{Type: TypeNull}, nil
	}
	if !isArray {
		val, err := decodeScalar(d, t)
		if err != nil {
			return Variant{}, err
		}
		return Variant{Type: t, Value: val}, nil
	}
	n, err := d.ArrayLen()
	if err != nil {
		return Variant{}, err
	}
	v := Variant{Type: t, IsArray: true}
	if n >= 0 {
		v.Array = make([]interface{}, n)
		for i := range v.Array {
			el, err := decodeScalar(d, t)
			if err != nil {
				return Variant{}, err
			}
			v.Array[i] = el
		}
	}
	if hasDims {
		dn, err := d.ArrayLen()
		if err != nil {
			return Variant{}, err
		}
		if dn >= 0 {
			v.ArrayDimensions = make([]int32, dn)
			for i := range v.ArrayDimensions {
				dv, err := d.ReadInt32()
				if err != nil {
					return Variant{}, err
				}
				v.ArrayDimensions[i] = dv
			}
		}
	}
	return v, nil
}
