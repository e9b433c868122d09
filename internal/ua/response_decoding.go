package ua

// Response-side decode functions, the mirror image of the exported
// response Encode methods, for client tooling and round-trip tests. Each
// starts at the ResponseHeader, after the caller has stripped the service
// envelope with StripServiceEnvelope.

// DecodeResponseHeader reads just the common response prefix, leaving d
// positioned at the first service-specific field.
func DecodeResponseHeader(d *Decoder) (ResponseHeader, error) {
	return decodeResponseHeader(d)
}

func DecodeGetEndpointsResponse(d *Decoder) (GetEndpointsResponse, error) {
	var r GetEndpointsResponse
	var err error
	if r.ResponseHeader, err = decodeResponseHeader(d); err != nil {
		return r, err
	}
	if r.Endpoints, err = ReadArray(d, decodeEndpointDescription); err != nil {
		return r, err
	}
	return r, nil
}

func DecodeCreateSessionResponse(d *Decoder) (CreateSessionResponse, error) {
	var r CreateSessionResponse
	var err error
	if r.ResponseHeader, err = decodeResponseHeader(d); err != nil {
		return r, err
	}
	if r.SessionId, err = decodeNodeId(d); err != nil {
		return r, err
	}
	if r.AuthenticationToken, err = decodeNodeId(d); err != nil {
		return r, err
	}
	if r.RevisedSessionTimeout, err = d.ReadFloat64(); err != nil {
		return r, err
	}
	if r.ServerNonce, err = d.ReadByteString(); err != nil {
		return r, err
	}
	if r.ServerCertificate, err = d.ReadByteString(); err != nil {
		return r, err
	}
	if r.ServerEndpoints, err = ReadArray(d, decodeEndpointDescription); err != nil {
		return r, err
	}
	if r.ServerSignature, err = decodeSignatureData(d); err != nil {
		return r, err
	}
	if r.MaxRequestMessageSize, err = d.ReadUint32(); err != nil {
		return r, err
	}
	return r, nil
}

func DecodeActivateSessionResponse(d *Decoder) (ActivateSessionResponse, error) {
	var r ActivateSessionResponse
	var err error
	if r.ResponseHeader, err = decodeResponseHeader(d); err != nil {
		return r, err
	}
	if r.ServerNonce, err = d.ReadByteString(); err != nil {
		return r, err
	}
	if r.Results, err = readStatusCodeArray(d); err != nil {
		return r, err
	}
	return r, nil
}

func DecodeCloseSessionResponse(d *Decoder) (CloseSessionResponse, error) {
	h, err := decodeResponseHeader(d)
	return CloseSessionResponse{ResponseHeader: h}, err
}

func DecodeBrowseResponse(d *Decoder) (BrowseResponse, error) {
	var r BrowseResponse
	var err error
	if r.ResponseHeader, err = decodeResponseHeader(d); err != nil {
		return r, err
	}
	if r.Results, err = ReadArray(d, decodeBrowseResult); err != nil {
		return r, err
	}
	return r, nil
}

func DecodeBrowseNextResponse(d *Decoder) (BrowseNextResponse, error) {
	var r BrowseNextResponse
	var err error
	if r.ResponseHeader, err = decodeResponseHeader(d); err != nil {
		return r, err
	}
	if r.Results, err = ReadArray(d, decodeBrowseResult); err != nil {
		return r, err
	}
	return r, nil
}

func DecodeReadResponse(d *Decoder) (ReadResponse, error) {
	var r ReadResponse
	var err error
	if r.ResponseHeader, err = decodeResponseHeader(d); err != nil {
		return r, err
	}
	if r.Results, err = ReadArray(d, decodeDataValue); err != nil {
		return r, err
	}
	return r, nil
}

func DecodeWriteResponse(d *Decoder) (WriteResponse, error) {
	var r WriteResponse
	var err error
	if r.ResponseHeader, err = decodeResponseHeader(d); err != nil {
		return r, err
	}
	if r.Results, err = readStatusCodeArray(d); err != nil {
		return r, err
	}
	return r, nil
}

func DecodeCreateSubscriptionResponse(d *Decoder) (CreateSubscriptionResponse, error) {
	var r CreateSubscriptionResponse
	var err error
	if r.ResponseHeader, err = decodeResponseHeader(d); err != nil {
		return r, err
	}
	if r.SubscriptionId, err = d.ReadUint32(); err != nil {
		return r, err
	}
	if r.RevisedPublishingInterval, err = d.ReadFloat64(); err != nil {
		return r, err
	}
	if r.RevisedLifetimeCount, err = d.ReadUint32(); err != nil {
		return r, err
	}
	if r.RevisedMaxKeepAliveCount, err = d.ReadUint32(); err != nil {
		return r, err
	}
	return r, nil
}

func decodeNotificationMessage(d *Decoder) (NotificationMessage, error) {
	var m NotificationMessage
	var err error
	if m.SequenceNumber, err = d.ReadUint32(); err != nil {
		return m, err
	}
	if m.PublishTime, err = d.ReadDateTime(); err != nil {
		return m, err
	}
	if m.NotificationData, err = ReadArray(d, decodeExtensionObject); err != nil {
		return m, err
	}
	return m, nil
}

func DecodePublishResponse(d *Decoder) (PublishResponse, error) {
	var r PublishResponse
	var err error
	if r.ResponseHeader, err = decodeResponseHeader(d); err != nil {
		return r, err
	}
	if r.SubscriptionId, err = d.ReadUint32(); err != nil {
		return r, err
	}
	if r.AvailableSequenceNumbers, err = readUint32Array(d); err != nil {
		return r, err
	}
	if r.MoreNotifications, err = d.ReadBoolean(); err != nil {
		return r, err
	}
	if r.NotificationMessage, err = decodeNotificationMessage(d); err != nil {
		return r, err
	}
	if r.Results, err = readStatusCodeArray(d); err != nil {
		return r, err
	}
	if _, err = d.ArrayLen(); err != nil { // DiagnosticInfos: always null
		return r, err
	}
	return r, nil
}

func DecodeRepublishResponse(d *Decoder) (RepublishResponse, error) {
	var r RepublishResponse
	var err error
	if r.ResponseHeader, err = decodeResponseHeader(d); err != nil {
		return r, err
	}
	if r.NotificationMessage, err = decodeNotificationMessage(d); err != nil {
		return r, err
	}
	return r, nil
}

func decodeMonitoredItemCreateResult(d *Decoder) (MonitoredItemCreateResult, error) {
	var r MonitoredItemCreateResult
	var err error
	if r.StatusCode, err = decodeStatusCode(d); err != nil {
		return r, err
	}
	if r.MonitoredItemId, err = d.ReadUint32(); err != nil {
		return r, err
	}
	if r.RevisedSamplingInterval, err = d.ReadFloat64(); err != nil {
		return r, err
	}
	if r.RevisedQueueSize, err = d.ReadUint32(); err != nil {
		return r, err
	}
	if r.FilterResult, err = decodeExtensionObject(d); err != nil {
		return r, err
	}
	return r, nil
}

func DecodeCreateMonitoredItemsResponse(d *Decoder) (CreateMonitoredItemsResponse, error) {
	var r CreateMonitoredItemsResponse
	var err error
	if r.ResponseHeader, err = decodeResponseHeader(d); err != nil {
		return r, err
	}
	if r.Results, err = ReadArray(d, decodeMonitoredItemCreateResult); err != nil {
		return r, err
	}
	return r, nil
}

// DecodeDataChangeNotification unwraps a NotificationData entry produced
// by DataChangeNotification.ToExtensionObject.
func DecodeDataChangeNotification(o ExtensionObject) (DataChangeNotification, error) {
	if !o.TypeId.Equal(dataChangeNotificationTypeId) {
		return DataChangeNotification{}, BadDecodingError.AsError()
	}
	d := NewDecoder(&byteReader{data: o.Body})
	n, err := d.ArrayLen()
	if err != nil {
		return DataChangeNotification{}, err
	}
	var out DataChangeNotification
	for i := int32(0); i < n; i++ {
		var item MonitoredItemNotification
		if item.ClientHandle, err = d.ReadUint32(); err != nil {
			return out, err
		}
		if item.Value, err = decodeDataValue(d); err != nil {
			return out, err
		}
		out.MonitoredItems = append(out.MonitoredItems, item)
	}
	return out, nil
}

func readStatusCodeArray(d *Decoder) ([]StatusCode, error) {
	n, err := d.ArrayLen()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}
	items := make([]StatusCode, n)
	for i := range items {
		if items[i], err = decodeStatusCode(d); err != nil {
			return nil, err
		}
	}
	return items, nil
}
