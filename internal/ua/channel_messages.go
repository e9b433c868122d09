package ua

// SecurityTokenRequestType distinguishes a fresh OpenSecureChannel from a
// renewal of an already-open channel (OPC UA Part 6).
type SecurityTokenRequestType int32

const (
	SecurityTokenIssue SecurityTokenRequestType = iota
	SecurityTokenRenew
)

// ChannelSecurityToken identifies the symmetric key epoch a MSG/CLO chunk
// was secured under, echoed to the client by OpenSecureChannelResponse
// (OPC UA Part 4 SecureChannel token rotation).
type ChannelSecurityToken struct {
	ChannelId       uint32
	TokenId         uint32
	CreatedAt       DateTime
	RevisedLifetime uint32
}

func (t ChannelSecurityToken) byteLen() int { return 4 + 4 + 8 + 4 }

func (t ChannelSecurityToken) encode(e *Encoder) {
	e.WriteUint32(t.ChannelId)
	e.WriteUint32(t.TokenId)
	e.WriteDateTime(t.CreatedAt)
	e.WriteUint32(t.RevisedLifetime)
}

func decodeChannelSecurityToken(d *Decoder) (ChannelSecurityToken, error) {
	var t ChannelSecurityToken
	var err error
	if t.ChannelId, err = d.ReadUint32(); err != nil {
		return t, err
	}
	if t.TokenId, err = d.ReadUint32(); err != nil {
		return t, err
	}
	if t.CreatedAt, err = d.ReadDateTime(); err != nil {
		return t, err
	}
	if t.RevisedLifetime, err = d.ReadUint32(); err != nil {
		return t, err
	}
	return t, nil
}

// OpenSecureChannelRequest is the service body carried inside an OPN
// chunk, after the asymmetric security header has already been verified
// by the chunker (OPC UA Part 6). ClientProtocolVersion must match the one
// offered in Hello, or the request fails with BadProtocolVersionUnsupported
// as a ServiceFault while the channel itself stays open.
type OpenSecureChannelRequest struct {
	RequestHeader           RequestHeader
	ClientProtocolVersion   uint32
	RequestType             SecurityTokenRequestType
	SecurityMode            MessageSecurityMode
	ClientNonce             []byte
	RequestedLifetimeMillis uint32
}

func DecodeOpenSecureChannelRequest(d *Decoder) (OpenSecureChannelRequest, error) {
	var r OpenSecureChannelRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.ClientProtocolVersion, err = d.ReadUint32(); err != nil {
		return r, err
	}
	rt, err := d.ReadInt32()
	if err != nil {
		return r, err
	}
	r.RequestType = SecurityTokenRequestType(rt)
	mode, err := d.ReadInt32()
	if err != nil {
		return r, err
	}
	r.SecurityMode = MessageSecurityMode(mode)
	if r.ClientNonce, err = d.ReadByteString(); err != nil {
		return r, err
	}
	if r.RequestedLifetimeMillis, err = d.ReadUint32(); err != nil {
		return r, err
	}
	return r, nil
}

type OpenSecureChannelResponse struct {
	ResponseHeader        ResponseHeader
	ServerProtocolVersion uint32
	SecurityToken         ChannelSecurityToken
	ServerNonce           []byte
}

func (r OpenSecureChannelResponse) ByteLen() int {
	return r.ResponseHeader.byteLen() + 4 + r.SecurityToken.byteLen() + 4 + len(r.ServerNonce)
}

func (r OpenSecureChannelResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	e.WriteUint32(r.ServerProtocolVersion)
	r.SecurityToken.encode(e)
	e.WriteByteString(r.ServerNonce)
}

type CloseSecureChannelRequest struct {
	RequestHeader RequestHeader
}

func DecodeCloseSecureChannelRequest(d *Decoder) (CloseSecureChannelRequest, error) {
	h, err := decodeRequestHeader(d)
	return CloseSecureChannelRequest{RequestHeader: h}, err
}

type CloseSecureChannelResponse struct {
	ResponseHeader ResponseHeader
}

func (r CloseSecureChannelResponse) Encode(e *Encoder) { r.ResponseHeader.encode(e) }
func (r CloseSecureChannelResponse) ByteLen() int      { return r.ResponseHeader.byteLen() }
