package ua

// CreateSubscriptionRequest establishes a new Subscription (OPC UA Part 4).
type CreateSubscriptionRequest struct {
	RequestHeader               RequestHeader
	RequestedPublishingInterval float64
	RequestedLifetimeCount      uint32
	RequestedMaxKeepAliveCount  uint32
	MaxNotificationsPerPublish  uint32
	PublishingEnabled           bool
	Priority                    byte
}

func DecodeCreateSubscriptionRequest(d *Decoder) (CreateSubscriptionRequest, error) {
	var r CreateSubscriptionRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.RequestedPublishingInterval, err = d.ReadFloat64(); err != nil {
		return r, err
	}
	if r.RequestedLifetimeCount, err = d.ReadUint32(); err != nil {
		return r, err
	}
	if r.RequestedMaxKeepAliveCount, err = d.ReadUint32(); err != nil {
		return r, err
	}
	if r.MaxNotificationsPerPublish, err = d.ReadUint32(); err != nil {
		return r, err
	}
	if r.PublishingEnabled, err = d.ReadBoolean(); err != nil {
		return r, err
	}
	if r.Priority, err = d.ReadByte(); err != nil {
		return r, err
	}
	return r, nil
}

type CreateSubscriptionResponse struct {
	ResponseHeader            ResponseHeader
	SubscriptionId            uint32
	RevisedPublishingInterval float64
	RevisedLifetimeCount      uint32
	RevisedMaxKeepAliveCount  uint32
}

func (r CreateSubscriptionResponse) ByteLen() int { return r.ResponseHeader.byteLen() + 4 + 8 + 4 + 4 }
func (r CreateSubscriptionResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	e.WriteUint32(r.SubscriptionId)
	e.WriteFloat64(r.RevisedPublishingInterval)
	e.WriteUint32(r.RevisedLifetimeCount)
	e.WriteUint32(r.RevisedMaxKeepAliveCount)
}

type ModifySubscriptionRequest struct {
	RequestHeader               RequestHeader
	SubscriptionId              uint32
	RequestedPublishingInterval float64
	RequestedLifetimeCount      uint32
	RequestedMaxKeepAliveCount  uint32
	MaxNotificationsPerPublish  uint32
	Priority                    byte
}

func DecodeModifySubscriptionRequest(d *Decoder) (ModifySubscriptionRequest, error) {
	var r ModifySubscriptionRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.SubscriptionId, err = d.ReadUint32(); err != nil {
		return r, err
	}
	if r.RequestedPublishingInterval, err = d.ReadFloat64(); err != nil {
		return r, err
	}
	if r.RequestedLifetimeCount, err = d.ReadUint32(); err != nil {
		return r, err
	}
	if r.RequestedMaxKeepAliveCount, err = d.ReadUint32(); err != nil {
		return r, err
	}
	if r.MaxNotificationsPerPublish, err = d.ReadUint32(); err != nil {
		return r, err
	}
	if r.Priority, err = d.ReadByte(); err != nil {
		return r, err
	}
	return r, nil
}

type ModifySubscriptionResponse struct {
	ResponseHeader            ResponseHeader
	RevisedPublishingInterval float64
	RevisedLifetimeCount      uint32
	RevisedMaxKeepAliveCount  uint32
}

func (r ModifySubscriptionResponse) ByteLen() int { return r.ResponseHeader.byteLen() + 8 + 4 + 4 }
func (r ModifySubscriptionResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	e.WriteFloat64(r.RevisedPublishingInterval)
	e.WriteUint32(r.RevisedLifetimeCount)
	e.WriteUint32(r.RevisedMaxKeepAliveCount)
}

type SetPublishingModeRequest struct {
	RequestHeader     RequestHeader
	PublishingEnabled bool
	SubscriptionIds   []uint32
}

func DecodeSetPublishingModeRequest(d *Decoder) (SetPublishingModeRequest, error) {
	var r SetPublishingModeRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.PublishingEnabled, err = d.ReadBoolean(); err != nil {
		return r, err
	}
	if r.SubscriptionIds, err = readUint32Array(d); err != nil {
		return r, err
	}
	return r, nil
}

type SetPublishingModeResponse struct {
	ResponseHeader ResponseHeader
	Results        []StatusCode
}

func (r SetPublishingModeResponse) ByteLen() int {
	return r.ResponseHeader.byteLen() + 4 + 4*len(r.Results)
}
func (r SetPublishingModeResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	writeStatusCodeArray(e, r.Results)
}

type DeleteSubscriptionsRequest struct {
	RequestHeader   RequestHeader
	SubscriptionIds []uint32
}

func DecodeDeleteSubscriptionsRequest(d *Decoder) (DeleteSubscriptionsRequest, error) {
	var r DeleteSubscriptionsRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.SubscriptionIds, err = readUint32Array(d); err != nil {
		return r, err
	}
	return r, nil
}

type DeleteSubscriptionsResponse struct {
	ResponseHeader ResponseHeader
	Results        []StatusCode
}

func (r DeleteSubscriptionsResponse) ByteLen() int {
	return r.ResponseHeader.byteLen() + 4 + 4*len(r.Results)
}
func (r DeleteSubscriptionsResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	writeStatusCodeArray(e, r.Results)
}

// SubscriptionAcknowledgement names one notification sequence number the
// client has consumed, evicting it from the retransmission queue
// (OPC UA Part 4 Publish pairing).
type SubscriptionAcknowledgement struct {
	SubscriptionId uint32
	SequenceNumber uint32
}

func (a SubscriptionAcknowledgement) byteLen() int { return 8 }
func (a SubscriptionAcknowledgement) encode(e *Encoder) {
	e.WriteUint32(a.SubscriptionId)
	e.WriteUint32(a.SequenceNumber)
}
func decodeSubscriptionAcknowledgement(d *Decoder) (SubscriptionAcknowledgement, error) {
	var a SubscriptionAcknowledgement
	var err error
	if a.SubscriptionId, err = d.ReadUint32(); err != nil {
		return a, err
	}
	if a.SequenceNumber, err = d.ReadUint32(); err != nil {
		return a, err
	}
	return a, nil
}

type PublishRequest struct {
	RequestHeader                RequestHeader
	SubscriptionAcknowledgements []SubscriptionAcknowledgement
}

func DecodePublishRequest(d *Decoder) (PublishRequest, error) {
	var r PublishRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.SubscriptionAcknowledgements, err = ReadArray(d, decodeSubscriptionAcknowledgement); err != nil {
		return r, err
	}
	return r, nil
}

// MonitoredItemNotification is one sampled data change, carrying the
// client_handle the client supplied at CreateMonitoredItems so it can
// match notifications back to its own bookkeeping (OPC UA Part 4).
type MonitoredItemNotification struct {
	ClientHandle uint32
	Value        DataValue
}

func (n MonitoredItemNotification) byteLen() int { return 4 + n.Value.byteLen() }
func (n MonitoredItemNotification) encode(e *Encoder) {
	e.WriteUint32(n.ClientHandle)
	n.Value.encode(e)
}

// DataChangeNotification is a NotificationMessage payload carrying one
// or more MonitoredItemNotifications (OPC UA Part 4). Encoded inside an
// ExtensionObject the way every NotificationData variant is.
type DataChangeNotification struct {
	MonitoredItems []MonitoredItemNotification
}

var dataChangeNotificationTypeId = NewNumericNodeId(0, 811) // DataChangeNotification_Encoding_DefaultBinary

// ToExtensionObject wraps the notification for carriage inside a
// NotificationMessage.NotificationData entry (OPC UA Part 4).
func (n DataChangeNotification) ToExtensionObject() ExtensionObject { return n.toExtensionObject() }

func (n DataChangeNotification) toExtensionObject() ExtensionObject {
	buf := &byteBuffer{}
	e := NewEncoder(buf)
	e.WriteInt32(int32(len(n.MonitoredItems)))
	for _, it := range n.MonitoredItems {
		it.encode(e)
	}
	e.WriteInt32(-1) // DiagnosticInfos: unused
	return ExtensionObject{TypeId: dataChangeNotificationTypeId, Encoding: ExtensionEncodingByteString, Body: buf.data}
}

// StatusChangeNotification reports a subscription-level status change
// (e.g. GoodSubscriptionTransferred after TransferSubscriptions).
type StatusChangeNotification struct {
	Status StatusCode
}

var statusChangeNotificationTypeId = NewNumericNodeId(0, 821)

// ToExtensionObject wraps the notification for carriage inside a
// NotificationMessage.NotificationData entry (OPC UA Part 4).
func (n StatusChangeNotification) ToExtensionObject() ExtensionObject { return n.toExtensionObject() }

func (n StatusChangeNotification) toExtensionObject() ExtensionObject {
	buf := &byteBuffer{}
	e := NewEncoder(buf)
	n.Status.encode(e)
	diagInfoNull := DiagnosticInfo{}
	diagInfoNull.encode(e)
	return ExtensionObject{TypeId: statusChangeNotificationTypeId, Encoding: ExtensionEncodingByteString, Body: buf.data}
}

// NotificationMessage is the unit cached in a subscription's
// retransmission queue and carried in a PublishResponse (OPC UA Part 4).
type NotificationMessage struct {
	SequenceNumber   uint32
	PublishTime      DateTime
	NotificationData []ExtensionObject
}

func (m NotificationMessage) byteLen() int {
	return 4 + 8 + ArrayByteLen(m.NotificationData)
}
func (m NotificationMessage) encode(e *Encoder) {
	e.WriteUint32(m.SequenceNumber)
	e.WriteDateTime(m.PublishTime)
	WriteArray(e, m.NotificationData)
}

type PublishResponse struct {
	ResponseHeader           ResponseHeader
	SubscriptionId           uint32
	AvailableSequenceNumbers []uint32
	MoreNotifications        bool
	NotificationMessage      NotificationMessage
	Results                  []StatusCode
}

func (r PublishResponse) ByteLen() int {
	n := r.ResponseHeader.byteLen() + 4
	n += 4 + 4*len(r.AvailableSequenceNumbers)
	n += 1
	n += r.NotificationMessage.byteLen()
	n += 4 + 4*len(r.Results)
	n += 4 // DiagnosticInfos: null array
	return n
}
func (r PublishResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	e.WriteUint32(r.SubscriptionId)
	writeUint32Array(e, r.AvailableSequenceNumbers)
	e.WriteBoolean(r.MoreNotifications)
	r.NotificationMessage.encode(e)
	writeStatusCodeArray(e, r.Results)
	e.WriteInt32(-1)
}

type RepublishRequest struct {
	RequestHeader            RequestHeader
	SubscriptionId           uint32
	RetransmitSequenceNumber uint32
}

func DecodeRepublishRequest(d *Decoder) (RepublishRequest, error) {
	var r RepublishRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.SubscriptionId, err = d.ReadUint32(); err != nil {
		return r, err
	}
	if r.RetransmitSequenceNumber, err = d.ReadUint32(); err != nil {
		return r, err
	}
	return r, nil
}

type RepublishResponse struct {
	ResponseHeader      ResponseHeader
	NotificationMessage NotificationMessage
}

func (r RepublishResponse) ByteLen() int {
	return r.ResponseHeader.byteLen() + r.NotificationMessage.byteLen()
}
func (r RepublishResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	r.NotificationMessage.encode(e)
}

type TransferSubscriptionsRequest struct {
	RequestHeader     RequestHeader
	SubscriptionIds   []uint32
	SendInitialValues bool
}

func DecodeTransferSubscriptionsRequest(d *Decoder) (TransferSubscriptionsRequest, error) {
	var r TransferSubscriptionsRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.SubscriptionIds, err = readUint32Array(d); err != nil {
		return r, err
	}
	if r.SendInitialValues, err = d.ReadBoolean(); err != nil {
		return r, err
	}
	return r, nil
}

// TransferResult is one subscription's transfer outcome.
type TransferResult struct {
	StatusCode               StatusCode
	AvailableSequenceNumbers []uint32
}

func (r TransferResult) byteLen() int { return 4 + 4 + 4*len(r.AvailableSequenceNumbers) }
func (r TransferResult) encode(e *Encoder) {
	r.StatusCode.encode(e)
	writeUint32Array(e, r.AvailableSequenceNumbers)
}

type TransferSubscriptionsResponse struct {
	ResponseHeader ResponseHeader
	Results        []TransferResult
}

func (r TransferSubscriptionsResponse) ByteLen() int {
	return r.ResponseHeader.byteLen() + ArrayByteLen(r.Results)
}
func (r TransferSubscriptionsResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	WriteArray(e, r.Results)
}

func readUint32Array(d *Decoder) ([]uint32, error) {
	n, err := d.ArrayLen()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}
	items := make([]uint32, n)
	for i := range items {
		if items[i], err = d.ReadUint32(); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func writeUint32Array(e *Encoder, items []uint32) {
	if items == nil {
		e.WriteInt32(-1)
		return
	}
	e.WriteInt32(int32(len(items)))
	for _, v := range items {
		e.WriteUint32(v)
	}
}

func writeStatusCodeArray(e *Encoder, items []StatusCode) {
	if items == nil {
		e.WriteInt32(-1)
		return
	}
	e.WriteInt32(int32(len(items)))
	for _, s := range items {
		s.encode(e)
	}
}

// byteBuffer is a minimal growable []byte sink satisfying io.Writer,
// used to pre-encode NotificationData bodies into an ExtensionObject's
// ByteString before the outer message is measured (ExtensionObject's
// byteLen needs the body length up front, per OPC UA Part 6).
type byteBuffer struct{ data []byte }

func (b *byteBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}
