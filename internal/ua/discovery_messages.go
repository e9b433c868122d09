package ua

// FindServersRequest is answerable without a session, like GetEndpoints
// (OPC UA Part 4 service routing table).
type FindServersRequest struct {
	RequestHeader RequestHeader
	EndpointURL   string
	LocaleIds     []string
	ServerURIs    []string
}

func DecodeFindServersRequest(d *Decoder) (FindServersRequest, error) {
	var r FindServersRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.EndpointURL, _, err = d.ReadString(); err != nil {
		return r, err
	}
	if r.LocaleIds, err = readStringArray(d); err != nil {
		return r, err
	}
	if r.ServerURIs, err = readStringArray(d); err != nil {
		return r, err
	}
	return r, nil
}

type FindServersResponse struct {
	ResponseHeader ResponseHeader
	Servers        []ApplicationDescription
}

func (r FindServersResponse) ByteLen() int {
	return r.ResponseHeader.byteLen() + ArrayByteLen(r.Servers)
}
func (r FindServersResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	WriteArray(e, r.Servers)
}
