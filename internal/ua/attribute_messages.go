package ua

// AttributeId enumerates the node attributes Read/Write can target.
// Only the subset this server's address space actually stores is named;
// unknown ids fail with BadAttributeIdInvalid.
type AttributeId uint32

const (
	AttributeNodeId AttributeId = iota + 1
	AttributeNodeClass
	AttributeBrowseName
	AttributeDisplayName
	AttributeDescription
	AttributeWriteMask
	AttributeUserWriteMask
	_ // IsAbstract, Symmetric, InverseName, ContainsNoLoops, EventNotifier: not modeled
	_
	_
	_
	_
	AttributeValue
	AttributeDataType
	AttributeValueRank
	AttributeArrayDimensions
	AttributeAccessLevel
	AttributeUserAccessLevel
	AttributeMinimumSamplingInterval
	AttributeHistorizing
	AttributeExecutable
	AttributeUserExecutable
)

// TimestampsToReturn selects which DataValue timestamps a Read/Publish
// response populates (OPC UA Part 6 DataValue).
type TimestampsToReturn int32

const (
	TimestampsSource TimestampsToReturn = iota
	TimestampsServer
	TimestampsBoth
	TimestampsNeither
)

// ReadValueId names one (node, attribute) pair to read or monitor,
// shared by the Read and CreateMonitoredItems services (OPC UA Part 4).
type ReadValueId struct {
	NodeId       NodeId
	AttributeId  AttributeId
	IndexRange   string
	DataEncoding QualifiedName
}

func (r ReadValueId) byteLen() int {
	return r.NodeId.byteLen() + 4 + 4 + len(r.IndexRange) + r.DataEncoding.byteLen()
}
func (r ReadValueId) encode(e *Encoder) {
	r.NodeId.encode(e)
	e.WriteUint32(uint32(r.AttributeId))
	e.WriteString(r.IndexRange, r.IndexRange == "")
	r.DataEncoding.encode(e)
}
func decodeReadValueId(d *Decoder) (ReadValueId, error) {
	var r ReadValueId
	var err error
	if r.NodeId, err = decodeNodeId(d); err != nil {
		return r, err
	}
	attr, err := d.ReadUint32()
	if err != nil {
		return r, err
	}
	r.AttributeId = AttributeId(attr)
	if r.IndexRange, _, err = d.ReadString(); err != nil {
		return r, err
	}
	if r.DataEncoding, err = decodeQualifiedName(d); err != nil {
		return r, err
	}
	return r, nil
}

type ReadRequest struct {
	RequestHeader      RequestHeader
	MaxAge             float64
	TimestampsToReturn TimestampsToReturn
	NodesToRead        []ReadValueId
}

func DecodeReadRequest(d *Decoder) (ReadRequest, error) {
	var r ReadRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.MaxAge, err = d.ReadFloat64(); err != nil {
		return r, err
	}
	t, err := d.ReadInt32()
	if err != nil {
		return r, err
	}
	r.TimestampsToReturn = TimestampsToReturn(t)
	if r.NodesToRead, err = ReadArray(d, decodeReadValueId); err != nil {
		return r, err
	}
	return r, nil
}

type ReadResponse struct {
	ResponseHeader ResponseHeader
	Results        []DataValue
}

func (r ReadResponse) ByteLen() int { return r.ResponseHeader.byteLen() + ArrayByteLen(r.Results) }
func (r ReadResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	WriteArray(e, r.Results)
}

// WriteValue pairs a ReadValueId with the DataValue to install (OPC UA Part 4).
type WriteValue struct {
	NodeId      NodeId
	AttributeId AttributeId
	IndexRange  string
	Value       DataValue
}

func (w WriteValue) byteLen() int {
	return w.NodeId.byteLen() + 4 + 4 + len(w.IndexRange) + w.Value.byteLen()
}
func (w WriteValue) encode(e *Encoder) {
	w.NodeId.encode(e)
	e.WriteUint32(uint32(w.AttributeId))
	e.WriteString(w.IndexRange, w.IndexRange == "")
	w.Value.encode(e)
}
func decodeWriteValue(d *Decoder) (WriteValue, error) {
	var w WriteValue
	var err error
	if w.NodeId, err = decodeNodeId(d); err != nil {
		return w, err
	}
	attr, err := d.ReadUint32()
	if err != nil {
		return w, err
	}
	w.AttributeId = AttributeId(attr)
	if w.IndexRange, _, err = d.ReadString(); err != nil {
		return w, err
	}
	if w.Value, err = decodeDataValue(d); err != nil {
		return w, err
	}
	return w, nil
}

type WriteRequest struct {
	RequestHeader RequestHeader
	NodesToWrite  []WriteValue
}

func DecodeWriteRequest(d *Decoder) (WriteRequest, error) {
	var r WriteRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.NodesToWrite, err = ReadArray(d, decodeWriteValue); err != nil {
		return r, err
	}
	return r, nil
}

type WriteResponse struct {
	ResponseHeader ResponseHeader
	Results        []StatusCode
}

func (r WriteResponse) ByteLen() int { return r.ResponseHeader.byteLen() + 4 + 4*len(r.Results) }
func (r WriteResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	if r.Results == nil {
		e.WriteInt32(-1)
		return
	}
	e.WriteInt32(int32(len(r.Results)))
	for _, s := range r.Results {
		s.encode(e)
	}
}
