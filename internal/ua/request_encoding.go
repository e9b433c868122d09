package ua

// Request-side Encode methods, mirroring each DecodeXxxRequest field for
// field. The server itself only decodes requests; these encoders exist so
// client tooling and the package's own round-trip tests can produce the
// same wire bytes a real client would.

func (r GetEndpointsRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	e.WriteString(r.EndpointURL, r.EndpointURL == "")
	writeStringArray(e, r.LocaleIds)
	writeStringArray(e, r.ProfileURIs)
}

func (r FindServersRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	e.WriteString(r.EndpointURL, r.EndpointURL == "")
	writeStringArray(e, r.LocaleIds)
	writeStringArray(e, r.ServerURIs)
}

func (r OpenSecureChannelRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	e.WriteUint32(r.ClientProtocolVersion)
	e.WriteInt32(int32(r.RequestType))
	e.WriteInt32(int32(r.SecurityMode))
	e.WriteByteString(r.ClientNonce)
	e.WriteUint32(r.RequestedLifetimeMillis)
}

func (r CloseSecureChannelRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
}

func (r CreateSessionRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	r.ClientDescription.encode(e)
	e.WriteString(r.ServerURI, r.ServerURI == "")
	e.WriteString(r.EndpointURL, r.EndpointURL == "")
	e.WriteString(r.SessionName, r.SessionName == "")
	e.WriteByteString(r.ClientNonce)
	e.WriteByteString(r.ClientCertificate)
	e.WriteFloat64(r.RequestedSessionTimeout)
	e.WriteUint32(r.MaxResponseMessageSize)
}

// identityTokenTypeIdOf is the inverse of identityTokenTypeIds: the
// DefaultBinary NodeId identifier wrapping each UserIdentityToken kind.
func identityTokenTypeIdOf(tok UserTokenType) uint32 {
	switch tok {
	case UserTokenUserName:
		return 325
	case UserTokenCertificate:
		return 328
	case UserTokenIssuedToken:
		return 938
	default:
		return 319
	}
}

func (r ActivateSessionRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	r.ClientSignature.encode(e)
	e.WriteInt32(-1) // ClientSoftwareCertificates: unused
	writeStringArray(e, r.LocaleIds)

	// The identity token travels as an ExtensionObject whose ByteString
	// body holds the token fields, matching the layout
	// DecodeActivateSessionRequest reads back.
	body := &byteBuffer{}
	be := NewEncoder(body)
	tok := r.UserIdentityToken
	be.WriteString(tok.PolicyId, tok.PolicyId == "")
	switch tok.Token {
	case UserTokenUserName:
		be.WriteString(tok.UserName, tok.UserName == "")
		be.WriteByteString(tok.Password)
		be.WriteString(tok.Algorithm, tok.Algorithm == "")
	case UserTokenCertificate:
		be.WriteByteString(tok.Certificate)
	}
	NewNumericNodeId(0, identityTokenTypeIdOf(tok.Token)).encode(e)
	e.WriteByte(byte(ExtensionEncodingByteString))
	e.WriteInt32(int32(len(body.data)))
	e.write(body.data)

	r.UserTokenSignature.encode(e)
}

func (r CloseSessionRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	e.WriteBoolean(r.DeleteSubscriptions)
}

func (r BrowseRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	r.View.encode(e)
	e.WriteUint32(r.RequestedMaxReferencesPerNode)
	WriteArray(e, r.NodesToBrowse)
}

func (r BrowseNextRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	e.WriteBoolean(r.ReleaseContinuationPoints)
	if r.ContinuationPoints == nil {
		e.WriteInt32(-1)
		return
	}
	e.WriteInt32(int32(len(r.ContinuationPoints)))
	for _, cp := range r.ContinuationPoints {
		e.WriteByteString(cp)
	}
}

func (r TranslateBrowsePathsToNodeIdsRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	WriteArray(e, r.BrowsePaths)
}

func (r RegisterNodesRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	writeNodeIdArray(e, r.NodesToRegister)
}

func (r UnregisterNodesRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	writeNodeIdArray(e, r.NodesToUnregister)
}

func (r ReadRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	e.WriteFloat64(r.MaxAge)
	e.WriteInt32(int32(r.TimestampsToReturn))
	WriteArray(e, r.NodesToRead)
}

func (r WriteRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	WriteArray(e, r.NodesToWrite)
}

func (r CallMethodRequest) encode(e *Encoder) {
	r.ObjectId.encode(e)
	r.MethodId.encode(e)
	WriteArray(e, r.InputArguments)
}

func (r CallRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	WriteArray(e, r.MethodsToCall)
}

func (r CreateSubscriptionRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	e.WriteFloat64(r.RequestedPublishingInterval)
	e.WriteUint32(r.RequestedLifetimeCount)
	e.WriteUint32(r.RequestedMaxKeepAliveCount)
	e.WriteUint32(r.MaxNotificationsPerPublish)
	e.WriteBoolean(r.PublishingEnabled)
	e.WriteByte(r.Priority)
}

func (r ModifySubscriptionRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	e.WriteUint32(r.SubscriptionId)
	e.WriteFloat64(r.RequestedPublishingInterval)
	e.WriteUint32(r.RequestedLifetimeCount)
	e.WriteUint32(r.RequestedMaxKeepAliveCount)
	e.WriteUint32(r.MaxNotificationsPerPublish)
	e.WriteByte(r.Priority)
}

func (r SetPublishingModeRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	e.WriteBoolean(r.PublishingEnabled)
	writeUint32Array(e, r.SubscriptionIds)
}

func (r DeleteSubscriptionsRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	writeUint32Array(e, r.SubscriptionIds)
}

func (r PublishRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	WriteArray(e, r.SubscriptionAcknowledgements)
}

func (r RepublishRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	e.WriteUint32(r.SubscriptionId)
	e.WriteUint32(r.RetransmitSequenceNumber)
}

func (r TransferSubscriptionsRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	writeUint32Array(e, r.SubscriptionIds)
	e.WriteBoolean(r.SendInitialValues)
}

func (r MonitoredItemCreateRequest) encode(e *Encoder) {
	r.ItemToMonitor.encode(e)
	e.WriteInt32(int32(r.MonitoringMode))
	r.RequestedParameters.encode(e)
}

func (r CreateMonitoredItemsRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	e.WriteUint32(r.SubscriptionId)
	e.WriteInt32(int32(r.TimestampsToReturn))
	WriteArray(e, r.ItemsToCreate)
}

func (r MonitoredItemModifyRequest) encode(e *Encoder) {
	e.WriteUint32(r.MonitoredItemId)
	r.RequestedParameters.encode(e)
}

func (r ModifyMonitoredItemsRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	e.WriteUint32(r.SubscriptionId)
	e.WriteInt32(int32(r.TimestampsToReturn))
	WriteArray(e, r.ItemsToModify)
}

func (r SetMonitoringModeRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	e.WriteUint32(r.SubscriptionId)
	e.WriteInt32(int32(r.MonitoringMode))
	writeUint32Array(e, r.MonitoredItemIds)
}

func (r DeleteMonitoredItemsRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	e.WriteUint32(r.SubscriptionId)
	writeUint32Array(e, r.MonitoredItemIds)
}

func (r SetTriggeringRequest) Encode(e *Encoder) {
	r.RequestHeader.encode(e)
	e.WriteUint32(r.SubscriptionId)
	e.WriteUint32(r.TriggeringItemId)
	writeUint32Array(e, r.LinksToAdd)
	writeUint32Array(e, r.LinksToRemove)
}

func writeNodeIdArray(e *Encoder, ids []NodeId) {
	if ids == nil {
		e.WriteInt32(-1)
		return
	}
	e.WriteInt32(int32(len(ids)))
	for _, id := range ids {
		id.encode(e)
	}
}
