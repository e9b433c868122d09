package dispatch

import "github.com/ironspan/opcuad/internal/ua"

// handleGetEndpoints answers OPC UA Part 4 GetEndpoints. It needs no
// session: a client must learn the endpoint list before it has anywhere
// to open a secure channel against.
func (d *Dispatcher) handleGetEndpoints(dec *ua.Decoder) []byte {
	req, err := ua.DecodeGetEndpointsRequest(dec)
	if err != nil {
		return d.fault("GetEndpoints", ua.RequestHeader{}, ua.BadDecodingError)
	}
	resp := ua.GetEndpointsResponse{
		ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.Good),
		Endpoints:      d.endpoints,
	}
	return envelope(ua.IdGetEndpointsResponse, resp)
}

// handleFindServers answers OPC UA Part 4 FindServers, also usable without a
// session: this server only ever describes itself, never other
// registered servers, so ServerURIs filtering is a no-op.
func (d *Dispatcher) handleFindServers(dec *ua.Decoder) []byte {
	req, err := ua.DecodeFindServersRequest(dec)
	if err != nil {
		return d.fault("FindServers", ua.RequestHeader{}, ua.BadDecodingError)
	}
	resp := ua.FindServersResponse{
		ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.Good),
		Servers:        []ua.ApplicationDescription{d.appDesc},
	}
	return envelope(ua.IdFindServersResponse, resp)
}
