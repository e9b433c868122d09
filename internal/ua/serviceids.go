package ua

import "bytes"

// ServiceTypeId is the numeric NodeId identifying a request or response
// message's concrete type, carried as the leading NodeId of every MSG
// body (OPC UA Part 6's service table). The codec's per-message
// DecodeXxxRequest functions all start at RequestHeader; peeling and
// restoring this envelope is the dispatcher's job, the same split
// PeekActivateSessionUserTokenType already draws on for the nested
// UserIdentityToken envelope (internal/ua/session_messages.go).
type ServiceTypeId uint32

// Binary type ids for the services this server implements, numbered per
// the standard OPC UA Part 6 "<Service>_Encoding_DefaultBinary" registry.
// Exported so the dispatcher (a separate package) can switch on them.
const (
	IdServiceFault ServiceTypeId = 397

	IdFindServersRequest  ServiceTypeId = 422
	IdFindServersResponse ServiceTypeId = 425

	IdGetEndpointsRequest  ServiceTypeId = 428
	IdGetEndpointsResponse ServiceTypeId = 431

	IdOpenSecureChannelRequest   ServiceTypeId = 446
	IdOpenSecureChannelResponse  ServiceTypeId = 449
	IdCloseSecureChannelRequest  ServiceTypeId = 452
	IdCloseSecureChannelResponse ServiceTypeId = 455

	IdCreateSessionRequest    ServiceTypeId = 461
	IdCreateSessionResponse   ServiceTypeId = 464
	IdActivateSessionRequest  ServiceTypeId = 467
	IdActivateSessionResponse ServiceTypeId = 470
	IdCloseSessionRequest     ServiceTypeId = 473
	IdCloseSessionResponse    ServiceTypeId = 476

	IdBrowseRequest                         ServiceTypeId = 527
	IdBrowseResponse                        ServiceTypeId = 530
	IdBrowseNextRequest                     ServiceTypeId = 533
	IdBrowseNextResponse                    ServiceTypeId = 536
	IdTranslateBrowsePathsToNodeIdsRequest  ServiceTypeId = 554
	IdTranslateBrowsePathsToNodeIdsResponse ServiceTypeId = 557
	IdRegisterNodesRequest                  ServiceTypeId = 560
	IdRegisterNodesResponse                 ServiceTypeId = 563
	IdUnregisterNodesRequest                ServiceTypeId = 566
	IdUnregisterNodesResponse               ServiceTypeId = 569

	IdReadRequest   ServiceTypeId = 631
	IdReadResponse  ServiceTypeId = 634
	IdWriteRequest  ServiceTypeId = 673
	IdWriteResponse ServiceTypeId = 676

	IdCallRequest  ServiceTypeId = 712
	IdCallResponse ServiceTypeId = 715

	IdCreateMonitoredItemsRequest  ServiceTypeId = 751
	IdCreateMonitoredItemsResponse ServiceTypeId = 754
	IdModifyMonitoredItemsRequest  ServiceTypeId = 763
	IdModifyMonitoredItemsResponse ServiceTypeId = 766
	IdSetMonitoringModeRequest     ServiceTypeId = 769
	IdSetMonitoringModeResponse    ServiceTypeId = 772
	IdSetTriggeringRequest         ServiceTypeId = 775
	IdSetTriggeringResponse        ServiceTypeId = 778
	IdDeleteMonitoredItemsRequest  ServiceTypeId = 781
	IdDeleteMonitoredItemsResponse ServiceTypeId = 784

	IdCreateSubscriptionRequest     ServiceTypeId = 787
	IdCreateSubscriptionResponse    ServiceTypeId = 790
	IdModifySubscriptionRequest     ServiceTypeId = 793
	IdModifySubscriptionResponse    ServiceTypeId = 796
	IdSetPublishingModeRequest      ServiceTypeId = 799
	IdSetPublishingModeResponse     ServiceTypeId = 802
	IdPublishRequest                ServiceTypeId = 826
	IdPublishResponse               ServiceTypeId = 829
	IdRepublishRequest              ServiceTypeId = 832
	IdRepublishResponse             ServiceTypeId = 835
	IdTransferSubscriptionsRequest  ServiceTypeId = 841
	IdTransferSubscriptionsResponse ServiceTypeId = 844
	IdDeleteSubscriptionsRequest    ServiceTypeId = 845
	IdDeleteSubscriptionsResponse   ServiceTypeId = 848
)

// PeekServiceTypeId reads only the leading NodeId off an inbound MSG body
// without disturbing the full decode a handler makes afterwards on the
// same bytes, mirroring PeekActivateSessionUserTokenType's approach.
func PeekServiceTypeId(body []byte) (ServiceTypeId, error) {
	d := NewDecoder(bytes.NewReader(body))
	id, err := decodeNodeId(d)
	if err != nil {
		return 0, err
	}
	return ServiceTypeId(id.Numeric), nil
}

// StripServiceEnvelope returns body with its leading NodeId type id
// removed, leaving exactly what the DecodeXxxRequest functions expect to
// start reading at (a RequestHeader).
func StripServiceEnvelope(body []byte) ([]byte, error) {
	d := NewDecoder(bytes.NewReader(body))
	if _, err := decodeNodeId(d); err != nil {
		return nil, err
	}
	return body[d.Len():], nil
}

// EncodeServiceEnvelope prepends typeId as a four-byte-form numeric NodeId
// (every id above is over 255 and fits the four-byte encoding's range)
// ahead of an already-encoded response body, the wire shape every
// ExtensionObject-free top-level response message shares.
func EncodeServiceEnvelope(typeId ServiceTypeId, body []byte) []byte {
	buf := &byteBuffer{}
	e := NewEncoder(buf)
	NewNumericNodeId(0, uint32(typeId)).encode(e)
	buf.data = append(buf.data, body...)
	return buf.data
}
