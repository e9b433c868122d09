package ua

// MonitoringMode mirrors the three states a MonitoredItem can be in
// (OPC UA Part 4).
type MonitoringMode int32

const (
	MonitoringDisabled MonitoringMode = iota
	MonitoringSampling
	MonitoringReporting
)

// DataChangeTrigger selects which parts of a DataValue must differ for a
// change to be reported (OPC UA Part 4).
type DataChangeTrigger int32

const (
	TriggerStatus DataChangeTrigger = iota
	TriggerStatusValue
	TriggerStatusValueTimestamp
)

// DeadbandType selects how DataChangeFilter suppresses small changes
// (OPC UA Part 4).
type DeadbandType int32

const (
	DeadbandNone DeadbandType = iota
	DeadbandAbsolute
	DeadbandPercent
)

var dataChangeFilterTypeId = NewNumericNodeId(0, 722) // DataChangeFilter_Encoding_DefaultBinary

// DataChangeFilter is the only MonitoringFilter this server implements
// (OPC UA Part 4); it arrives/leaves wrapped in an ExtensionObject the way
// every MonitoringFilter variant does on the wire.
type DataChangeFilter struct {
	Trigger       DataChangeTrigger
	DeadbandType  DeadbandType
	DeadbandValue float64
}

func (f DataChangeFilter) toExtensionObject() ExtensionObject {
	buf := &byteBuffer{}
	e := NewEncoder(buf)
	e.WriteInt32(int32(f.Trigger))
	e.WriteInt32(int32(f.DeadbandType))
	e.WriteFloat64(f.DeadbandValue)
	return ExtensionObject{TypeId: dataChangeFilterTypeId, Encoding: ExtensionEncodingByteString, Body: buf.data}
}

// DecodeDataChangeFilter decodes a filter body previously produced by
// toExtensionObject. Callers check o.TypeId against
// dataChangeFilterTypeId before calling this.
func DecodeDataChangeFilter(o ExtensionObject) (DataChangeFilter, error) {
	if o.Encoding == ExtensionEncodingNone {
		return DataChangeFilter{}, nil
	}
	d := NewDecoder(&byteReader{data: o.Body})
	var f DataChangeFilter
	trig, err := d.ReadInt32()
	if err != nil {
		return f, err
	}
	f.Trigger = DataChangeTrigger(trig)
	dbt, err := d.ReadInt32()
	if err != nil {
		return f, err
	}
	f.DeadbandType = DeadbandType(dbt)
	if f.DeadbandValue, err = d.ReadFloat64(); err != nil {
		return f, err
	}
	return f, nil
}

// IsDataChangeFilter reports whether o names the DataChangeFilter wire
// type, letting dispatch tell it apart from EventFilter/AggregateFilter
// (neither of which this server implements; it serves data changes only).
func IsDataChangeFilter(o ExtensionObject) bool { return o.TypeId.Equal(dataChangeFilterTypeId) }

// MonitoringParameters configures one MonitoredItem (OPC UA Part 4).
type MonitoringParameters struct {
	ClientHandle     uint32
	SamplingInterval float64
	Filter           ExtensionObject
	QueueSize        uint32
	DiscardOldest    bool
}

func (p MonitoringParameters) byteLen() int {
	return 4 + 8 + p.Filter.byteLen() + 4 + 1
}
func (p MonitoringParameters) encode(e *Encoder) {
	e.WriteUint32(p.ClientHandle)
	e.WriteFloat64(p.SamplingInterval)
	p.Filter.encode(e)
	e.WriteUint32(p.QueueSize)
	e.WriteBoolean(p.DiscardOldest)
}
func decodeMonitoringParameters(d *Decoder) (MonitoringParameters, error) {
	var p MonitoringParameters
	var err error
	if p.ClientHandle, err = d.ReadUint32(); err != nil {
		return p, err
	}
	if p.SamplingInterval, err = d.ReadFloat64(); err != nil {
		return p, err
	}
	if p.Filter, err = decodeExtensionObject(d); err != nil {
		return p, err
	}
	if p.QueueSize, err = d.ReadUint32(); err != nil {
		return p, err
	}
	if p.DiscardOldest, err = d.ReadBoolean(); err != nil {
		return p, err
	}
	return p, nil
}

// MonitoredItemCreateRequest is one item to create (OPC UA Part 6 target tuple
// + MonitoringParameters).
type MonitoredItemCreateRequest struct {
	ItemToMonitor       ReadValueId
	MonitoringMode      MonitoringMode
	RequestedParameters MonitoringParameters
}

func (r MonitoredItemCreateRequest) byteLen() int {
	return r.ItemToMonitor.byteLen() + 4 + r.RequestedParameters.byteLen()
}
func decodeMonitoredItemCreateRequest(d *Decoder) (MonitoredItemCreateRequest, error) {
	var r MonitoredItemCreateRequest
	var err error
	if r.ItemToMonitor, err = decodeReadValueId(d); err != nil {
		return r, err
	}
	mode, err := d.ReadInt32()
	if err != nil {
		return r, err
	}
	r.MonitoringMode = MonitoringMode(mode)
	if r.RequestedParameters, err = decodeMonitoringParameters(d); err != nil {
		return r, err
	}
	return r, nil
}

// MonitoredItemCreateResult is one item's creation outcome.
type MonitoredItemCreateResult struct {
	StatusCode              StatusCode
	MonitoredItemId         uint32
	RevisedSamplingInterval float64
	RevisedQueueSize        uint32
	FilterResult            ExtensionObject
}

func (r MonitoredItemCreateResult) byteLen() int {
	return 4 + 4 + 8 + 4 + r.FilterResult.byteLen()
}
func (r MonitoredItemCreateResult) encode(e *Encoder) {
	r.StatusCode.encode(e)
	e.WriteUint32(r.MonitoredItemId)
	e.WriteFloat64(r.RevisedSamplingInterval)
	e.WriteUint32(r.RevisedQueueSize)
	r.FilterResult.encode(e)
}

type CreateMonitoredItemsRequest struct {
	RequestHeader      RequestHeader
	SubscriptionId     uint32
	TimestampsToReturn TimestampsToReturn
	ItemsToCreate      []MonitoredItemCreateRequest
}

func DecodeCreateMonitoredItemsRequest(d *Decoder) (CreateMonitoredItemsRequest, error) {
	var r CreateMonitoredItemsRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.SubscriptionId, err = d.ReadUint32(); err != nil {
		return r, err
	}
	t, err := d.ReadInt32()
	if err != nil {
		return r, err
	}
	r.TimestampsToReturn = TimestampsToReturn(t)
	if r.ItemsToCreate, err = ReadArray(d, decodeMonitoredItemCreateRequest); err != nil {
		return r, err
	}
	return r, nil
}

type CreateMonitoredItemsResponse struct {
	ResponseHeader ResponseHeader
	Results        []MonitoredItemCreateResult
}

func (r CreateMonitoredItemsResponse) ByteLen() int {
	return r.ResponseHeader.byteLen() + ArrayByteLen(r.Results)
}
func (r CreateMonitoredItemsResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	WriteArray(e, r.Results)
}

// MonitoredItemModifyRequest adjusts an existing item's parameters.
type MonitoredItemModifyRequest struct {
	MonitoredItemId     uint32
	RequestedParameters MonitoringParameters
}

func (r MonitoredItemModifyRequest) byteLen() int { return 4 + r.RequestedParameters.byteLen() }
func decodeMonitoredItemModifyRequest(d *Decoder) (MonitoredItemModifyRequest, error) {
	var r MonitoredItemModifyRequest
	var err error
	if r.MonitoredItemId, err = d.ReadUint32(); err != nil {
		return r, err
	}
	if r.RequestedParameters, err = decodeMonitoringParameters(d); err != nil {
		return r, err
	}
	return r, nil
}

// MonitoredItemModifyResult mirrors MonitoredItemCreateResult minus the id.
type MonitoredItemModifyResult struct {
	StatusCode              StatusCode
	RevisedSamplingInterval float64
	RevisedQueueSize        uint32
	FilterResult            ExtensionObject
}

func (r MonitoredItemModifyResult) byteLen() int { return 4 + 8 + 4 + r.FilterResult.byteLen() }
func (r MonitoredItemModifyResult) encode(e *Encoder) {
	r.StatusCode.encode(e)
	e.WriteFloat64(r.RevisedSamplingInterval)
	e.WriteUint32(r.RevisedQueueSize)
	r.FilterResult.encode(e)
}

type ModifyMonitoredItemsRequest struct {
	RequestHeader      RequestHeader
	SubscriptionId     uint32
	TimestampsToReturn TimestampsToReturn
	ItemsToModify      []MonitoredItemModifyRequest
}

func DecodeModifyMonitoredItemsRequest(d *Decoder) (ModifyMonitoredItemsRequest, error) {
	var r ModifyMonitoredItemsRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.SubscriptionId, err = d.ReadUint32(); err != nil {
		return r, err
	}
	t, err := d.ReadInt32()
	if err != nil {
		return r, err
	}
	r.TimestampsToReturn = TimestampsToReturn(t)
	if r.ItemsToModify, err = ReadArray(d, decodeMonitoredItemModifyRequest); err != nil {
		return r, err
	}
	return r, nil
}

type ModifyMonitoredItemsResponse struct {
	ResponseHeader ResponseHeader
	Results        []MonitoredItemModifyResult
}

func (r ModifyMonitoredItemsResponse) ByteLen() int {
	return r.ResponseHeader.byteLen() + ArrayByteLen(r.Results)
}
func (r ModifyMonitoredItemsResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	WriteArray(e, r.Results)
}

type SetMonitoringModeRequest struct {
	RequestHeader    RequestHeader
	SubscriptionId   uint32
	MonitoringMode   MonitoringMode
	MonitoredItemIds []uint32
}

func DecodeSetMonitoringModeRequest(d *Decoder) (SetMonitoringModeRequest, error) {
	var r SetMonitoringModeRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.SubscriptionId, err = d.ReadUint32(); err != nil {
		return r, err
	}
	m, err := d.ReadInt32()
	if err != nil {
		return r, err
	}
	r.MonitoringMode = MonitoringMode(m)
	if r.MonitoredItemIds, err = readUint32Array(d); err != nil {
		return r, err
	}
	return r, nil
}

type SetMonitoringModeResponse struct {
	ResponseHeader ResponseHeader
	Results        []StatusCode
}

func (r SetMonitoringModeResponse) ByteLen() int {
	return r.ResponseHeader.byteLen() + 4 + 4*len(r.Results)
}
func (r SetMonitoringModeResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	writeStatusCodeArray(e, r.Results)
}

type DeleteMonitoredItemsRequest struct {
	RequestHeader    RequestHeader
	SubscriptionId   uint32
	MonitoredItemIds []uint32
}

func DecodeDeleteMonitoredItemsRequest(d *Decoder) (DeleteMonitoredItemsRequest, error) {
	var r DeleteMonitoredItemsRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.SubscriptionId, err = d.ReadUint32(); err != nil {
		return r, err
	}
	if r.MonitoredItemIds, err = readUint32Array(d); err != nil {
		return r, err
	}
	return r, nil
}

type DeleteMonitoredItemsResponse struct {
	ResponseHeader ResponseHeader
	Results        []StatusCode
}

func (r DeleteMonitoredItemsResponse) ByteLen() int {
	return r.ResponseHeader.byteLen() + 4 + 4*len(r.Results)
}
func (r DeleteMonitoredItemsResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	writeStatusCodeArray(e, r.Results)
}

// SetTriggeringRequest links items so that a report from a triggering
// item forces a linked item's current value to be reported too
// (OPC UA Part 4 service routing table).
type SetTriggeringRequest struct {
	RequestHeader    RequestHeader
	SubscriptionId   uint32
	TriggeringItemId uint32
	LinksToAdd       []uint32
	LinksToRemove    []uint32
}

func DecodeSetTriggeringRequest(d *Decoder) (SetTriggeringRequest, error) {
	var r SetTriggeringRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.SubscriptionId, err = d.ReadUint32(); err != nil {
		return r, err
	}
	if r.TriggeringItemId, err = d.ReadUint32(); err != nil {
		return r, err
	}
	if r.LinksToAdd, err = readUint32Array(d); err != nil {
		return r, err
	}
	if r.LinksToRemove, err = readUint32Array(d); err != nil {
		return r, err
	}
	return r, nil
}

type SetTriggeringResponse struct {
	ResponseHeader ResponseHeader
	AddResults     []StatusCode
	RemoveResults  []StatusCode
}

func (r SetTriggeringResponse) ByteLen() int {
	return r.ResponseHeader.byteLen() + 4 + 4*len(r.AddResults) + 4 + 4 + 4*len(r.RemoveResults)
}
func (r SetTriggeringResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	writeStatusCodeArray(e, r.AddResults)
	e.WriteInt32(-1) // AddDiagnosticInfos
	writeStatusCodeArray(e, r.RemoveResults)
}

// byteReader is a minimal io.Reader over an in-memory slice, used to
// decode filter bodies pulled out of an already-decoded ExtensionObject.
type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) Read(p []byte) (int, error) {
	n := copy(p, r.data[r.pos:])
	r.pos += n
	if n == 0 && len(p) > 0 {
		return 0, errEOF("byteReader: exhausted")
	}
	return n, nil
}
