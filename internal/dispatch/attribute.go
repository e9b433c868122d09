package dispatch

import "github.com/ironspan/opcuad/internal/ua"

// handleRead implements OPC UA Part 4 Read, applying TimestampsToReturn to
// every DataValue addressspace.ReadAttribute hands back.
func (d *Dispatcher) handleRead(dec *ua.Decoder, channelId uint32) []byte {
	req, err := ua.DecodeReadRequest(dec)
	if err != nil {
		return d.fault("Read", ua.RequestHeader{}, ua.BadDecodingError)
	}
	if _, code := d.resolveSession(req.RequestHeader, channelId); code != ua.Good {
		return d.fault("Read", req.RequestHeader, code)
	}
	if len(req.NodesToRead) == 0 {
		return d.fault("Read", req.RequestHeader, ua.BadNothingToDo)
	}

	results := make([]ua.DataValue, len(req.NodesToRead))
	for i, rv := range req.NodesToRead {
		dv := d.as.ReadAttribute(rv.NodeId, rv.AttributeId)
		results[i] = applyTimestampFilter(dv, req.TimestampsToReturn)
	}
	resp := ua.ReadResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.Good), Results: results}
	return envelope(ua.IdReadResponse, resp)
}

// applyTimestampFilter strips whichever timestamp(s) the caller didn't
// ask for (OPC UA Part 4 Read TimestampsToReturn).
func applyTimestampFilter(dv ua.DataValue, t ua.TimestampsToReturn) ua.DataValue {
	switch t {
	case ua.TimestampsSource:
		dv.HasServerTimestamp = false
		dv.HasServerPico = false
	case ua.TimestampsServer:
		dv.HasSourceTimestamp = false
		dv.HasSourcePico = false
	case ua.TimestampsNeither:
		dv.HasSourceTimestamp = false
		dv.HasSourcePico = false
		dv.HasServerTimestamp = false
		dv.HasServerPico = false
	case ua.TimestampsBoth:
		// keep both.
	}
	return dv
}

// handleWrite implements OPC UA Part 4 Write.
func (d *Dispatcher) handleWrite(dec *ua.Decoder, channelId uint32) []byte {
	req, err := ua.DecodeWriteRequest(dec)
	if err != nil {
		return d.fault("Write", ua.RequestHeader{}, ua.BadDecodingError)
	}
	if _, code := d.resolveSession(req.RequestHeader, channelId); code != ua.Good {
		return d.fault("Write", req.RequestHeader, code)
	}
	if len(req.NodesToWrite) == 0 {
		return d.fault("Write", req.RequestHeader, ua.BadNothingToDo)
	}

	results := make([]ua.StatusCode, len(req.NodesToWrite))
	for i, wv := range req.NodesToWrite {
		results[i] = d.as.WriteAttribute(wv.NodeId, wv.AttributeId, wv.Value)
	}
	resp := ua.WriteResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.Good), Results: results}
	return envelope(ua.IdWriteResponse, resp)
}
