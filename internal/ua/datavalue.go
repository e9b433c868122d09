package ua

// DataValue pairs a Variant with its quality and timestamps. Every field
// is optional; a leading bit mask marks which are present (OPC UA Part 6), so a
// Read response can omit server timestamps when the client didn't ask for
// them (TimestampsToReturn) without wasting wire bytes.
type DataValue struct {
	Value    Variant
	HasValue bool

	Status    StatusCode
	HasStatus bool

	SourceTimestamp    DateTime
	HasSourceTimestamp bool
	SourcePicoseconds  uint16
	HasSourcePico      bool

	ServerTimestamp    DateTime
	HasServerTimestamp bool
	ServerPicoseconds  uint16
	HasServerPico      bool
}

const (
	dataValueMaskValue           = 0x01
	dataValueMaskStatus          = 0x02
	dataValueMaskSourceTimestamp = 0x04
	dataValueMaskServerTimestamp = 0x08
	dataValueMaskSourcePico      = 0x10
	dataValueMaskServerPico      = 0x20
)

// NewDataValue builds a DataValue carrying only a value, good status
// implied by absence and no timestamps — the common case for sampled
// MonitoredItem notifications.
func NewDataValue(v Variant) DataValue {
	return DataValue{Value: v, HasValue: true}
}

func (dv DataValue) mask() byte {
	var m byte
	if dv.HasValue {
		m |= dataValueMaskValue
	}
	if dv.HasStatus {
		m |= dataValueMaskStatus
	}
	if dv.HasSourceTimestamp {
		m |= dataValueMaskSourceTimestamp
	}
	if dv.HasServerTimestamp {
		m |= dataValueMaskServerTimestamp
	}
	if dv.HasSourcePico {
		m |= dataValueMaskSourcePico
	}
	if dv.HasServerPico {
		m |= dataValueMaskServerPico
	}
	return m
}

func (dv DataValue) byteLen() int {
	n := 1
	if dv.HasValue {
		n += dv.Value.byteLen()
	}
	if dv.HasStatus {
		n += 4
	}
	if dv.HasSourceTimestamp {
		n += 8
	}
	if dv.HasServerTimestamp {
		n += 8
	}
	if dv.HasSourcePico {
		n += 2
	}
	if dv.HasServerPico {
		n += 2
	}
	return n
}

func (dv DataValue) encode(e *Encoder) {
	e.WriteByte(dv.mask())
	if dv.HasValue {
		dv.Value.encode(e)
	}
	if dv.HasStatus {
		dv.Status.encode(e)
	}
	if dv.HasSourceTimestamp {
		e.WriteDateTime(dv.SourceTimestamp)
	}
	if dv.HasServerTimestamp {
		e.WriteDateTime(dv.ServerTimestamp)
	}
	if dv.HasSourcePico {
		e.WriteUint16(dv.SourcePicoseconds)
	}
	if dv.HasServerPico {
		e.WriteUint16(dv.ServerPicoseconds)
	}
}

func decodeDataValue(d *Decoder) (DataValue, error) {
	mask, err := d.ReadByte()
	if err != nil {
		return DataValue{}, err
	}
	var dv DataValue
	if mask&dataValueMaskValue != 0 {
		v, err := decodeVariant(d)
		if err != nil {
			return DataValue{}, err
		}
		dv.Value = v
		dv.HasValue = true
	}
	if mask&dataValueMaskStatus != 0 {
		s, err := decodeStatusCode(d)
		if err != nil {
			return DataValue{}, err
		}
		dv.Status = s
		dv.HasStatus = true
	}
	if mask&dataValueMaskSourceTimestamp != 0 {
		t, err := d.ReadDateTime()
		if err != nil {
			return DataValue{}, err
		}
		dv.SourceTimestamp = t
		dv.HasSourceTimestamp = true
	}
	if mask&dataValueMaskServerTimestamp != 0 {
		t, err := d.ReadDateTime()
		if err != nil {
			return DataValue{}, err
		}
		dv.ServerTimestamp = t
		dv.HasServerTimestamp = true
	}
	if mask&dataValueMaskSourcePico != 0 {
		p, err := d.ReadUint16()
		if err != nil {
			return DataValue{}, err
		}
		dv.SourcePicoseconds = p
		dv.HasSourcePico = true
	}
	if mask&dataValueMaskServerPico != 0 {
		p, err := d.ReadUint16()
		if err != nil {
			return DataValue{}, err
		}
		dv.ServerPicoseconds = p
		dv.HasServerPico = true
	}
	return dv, nil
}
