package ua

import "bytes"

// ApplicationType enumerates the OPC UA application kinds (Part 4).
type ApplicationType int32

const (
	ApplicationServer ApplicationType = iota
	ApplicationClient
	ApplicationClientAndServer
	ApplicationDiscoveryServer
)

// ApplicationDescription identifies a server or client instance,
// returned from GetEndpoints and echoed in CreateSession.
type ApplicationDescription struct {
	ApplicationURI      string
	ProductURI          string
	ApplicationName     LocalizedText
	ApplicationType     ApplicationType
	GatewayServerURI    string
	DiscoveryProfileURI string
	DiscoveryURLs       []string
}

func (a ApplicationDescription) byteLen() int {
	n := 4 + len(a.ApplicationURI) + 4 + len(a.ProductURI) + a.ApplicationName.byteLen() + 4
	n += 4 + len(a.GatewayServerURI) + 4 + len(a.DiscoveryProfileURI)
	n += ArrayByteLenFunc(a.DiscoveryURLs, func(s string) int { return 4 + len(s) })
	return n
}

func (a ApplicationDescription) encode(e *Encoder) {
	e.WriteString(a.ApplicationURI, a.ApplicationURI == "")
	e.WriteString(a.ProductURI, a.ProductURI == "")
	a.ApplicationName.encode(e)
	e.WriteInt32(int32(a.ApplicationType))
	e.WriteString(a.GatewayServerURI, a.GatewayServerURI == "")
	e.WriteString(a.DiscoveryProfileURI, a.DiscoveryProfileURI == "")
	writeStringArray(e, a.DiscoveryURLs)
}

func decodeApplicationDescription(d *Decoder) (ApplicationDescription, error) {
	var a ApplicationDescription
	var err error
	if a.ApplicationURI, _, err = d.ReadString(); err != nil {
		return a, err
	}
	if a.ProductURI, _, err = d.ReadString(); err != nil {
		return a, err
	}
	if a.ApplicationName, err = decodeLocalizedText(d); err != nil {
		return a, err
	}
	typ, err := d.ReadInt32()
	if err != nil {
		return a, err
	}
	a.ApplicationType = ApplicationType(typ)
	if a.GatewayServerURI, _, err = d.ReadString(); err != nil {
		return a, err
	}
	if a.DiscoveryProfileURI, _, err = d.ReadString(); err != nil {
		return a, err
	}
	if a.DiscoveryURLs, err = readStringArray(d); err != nil {
		return a, err
	}
	return a, nil
}

// UserTokenType enumerates the wire form of UserTokenPolicy.TokenType.
type UserTokenType int32

const (
	UserTokenAnonymous UserTokenType = iota
	UserTokenUserName
	UserTokenCertificate
	UserTokenIssuedToken
)

// UserTokenPolicy is one entry of an EndpointDescription's accepted
// identity tokens.
type UserTokenPolicy struct {
	PolicyId          string
	TokenType         UserTokenType
	IssuedTokenType   string
	IssuerEndpointURL string
	SecurityPolicyURI string
}

func (p UserTokenPolicy) byteLen() int {
	return 4 + len(p.PolicyId) + 4 + 4 + len(p.IssuedTokenType) + 4 + len(p.IssuerEndpointURL) + 4 + len(p.SecurityPolicyURI)
}

func (p UserTokenPolicy) encode(e *Encoder) {
	e.WriteString(p.PolicyId, p.PolicyId == "")
	e.WriteInt32(int32(p.TokenType))
	e.WriteString(p.IssuedTokenType, p.IssuedTokenType == "")
	e.WriteString(p.IssuerEndpointURL, p.IssuerEndpointURL == "")
	e.WriteString(p.SecurityPolicyURI, p.SecurityPolicyURI == "")
}

func decodeUserTokenPolicy(d *Decoder) (UserTokenPolicy, error) {
	var p UserTokenPolicy
	var err error
	if p.PolicyId, _, err = d.ReadString(); err != nil {
		return p, err
	}
	typ, err := d.ReadInt32()
	if err != nil {
		return p, err
	}
	p.TokenType = UserTokenType(typ)
	if p.IssuedTokenType, _, err = d.ReadString(); err != nil {
		return p, err
	}
	if p.IssuerEndpointURL, _, err = d.ReadString(); err != nil {
		return p, err
	}
	if p.SecurityPolicyURI, _, err = d.ReadString(); err != nil {
		return p, err
	}
	return p, nil
}

// MessageSecurityMode mirrors config.SecurityMode at the wire level.
type MessageSecurityMode int32

const (
	SecurityModeInvalid MessageSecurityMode = iota
	SecurityModeNone
	SecurityModeSign
	SecurityModeSignAndEncrypt
)

// EndpointDescription is one entry of a GetEndpoints response.
type EndpointDescription struct {
	EndpointURL         string
	Server              ApplicationDescription
	ServerCertificate   []byte
	SecurityMode        MessageSecurityMode
	SecurityPolicyURI   string
	UserIdentityTokens  []UserTokenPolicy
	TransportProfileURI string
	SecurityLevel       byte
}

func (e2 EndpointDescription) byteLen() int {
	n := 4 + len(e2.EndpointURL) + e2.Server.byteLen() + 4 + len(e2.ServerCertificate) + 4
	n += 4 + len(e2.SecurityPolicyURI)
	n += ArrayByteLen(e2.UserIdentityTokens)
	n += 4 + len(e2.TransportProfileURI) + 1
	return n
}

func (e2 EndpointDescription) encode(e *Encoder) {
	e.WriteString(e2.EndpointURL, e2.EndpointURL == "")
	e2.Server.encode(e)
	e.WriteByteString(e2.ServerCertificate)
	e.WriteInt32(int32(e2.SecurityMode))
	e.WriteString(e2.SecurityPolicyURI, e2.SecurityPolicyURI == "")
	WriteArray(e, e2.UserIdentityTokens)
	e.WriteString(e2.TransportProfileURI, e2.TransportProfileURI == "")
	e.WriteByte(e2.SecurityLevel)
}

func decodeEndpointDescription(d *Decoder) (EndpointDescription, error) {
	var ep EndpointDescription
	var err error
	if ep.EndpointURL, _, err = d.ReadString(); err != nil {
		return ep, err
	}
	if ep.Server, err = decodeApplicationDescription(d); err != nil {
		return ep, err
	}
	if ep.ServerCertificate, err = d.ReadByteString(); err != nil {
		return ep, err
	}
	mode, err := d.ReadInt32()
	if err != nil {
		return ep, err
	}
	ep.SecurityMode = MessageSecurityMode(mode)
	if ep.SecurityPolicyURI, _, err = d.ReadString(); err != nil {
		return ep, err
	}
	if ep.UserIdentityTokens, err = ReadArray(d, decodeUserTokenPolicy); err != nil {
		return ep, err
	}
	if ep.TransportProfileURI, _, err = d.ReadString(); err != nil {
		return ep, err
	}
	if ep.SecurityLevel, err = d.ReadByte(); err != nil {
		return ep, err
	}
	return ep, nil
}

// GetEndpointsRequest has no session binding: it's answerable before a
// secure channel even reaches Open with a non-None policy.
type GetEndpointsRequest struct {
	RequestHeader RequestHeader
	EndpointURL   string
	LocaleIds     []string
	ProfileURIs   []string
}

func DecodeGetEndpointsRequest(d *Decoder) (GetEndpointsRequest, error) {
	var r GetEndpointsRequest
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
	if r.ProfileURIs, err = readStringArray(d); err != nil {
		return r, err
	}
	return r, nil
}

type GetEndpointsResponse struct {
	ResponseHeader ResponseHeader
	Endpoints      []EndpointDescription
}

func (r GetEndpointsResponse) ByteLen() int {
	return r.ResponseHeader.byteLen() + ArrayByteLen(r.Endpoints)
}

func (r GetEndpointsResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	WriteArray(e, r.Endpoints)
}

// SignatureData carries a client or server's proof of possession of its
// private key during CreateSession/ActivateSession (OPC UA Part 6 security
// headers apply the same Sign primitive here at the session layer).
type SignatureData struct {
	Algorithm string
	Signature []byte
}

func (s SignatureData) byteLen() int { return 4 + len(s.Algorithm) + 4 + len(s.Signature) }
func (s SignatureData) encode(e *Encoder) {
	e.WriteString(s.Algorithm, s.Algorithm == "")
	e.WriteByteString(s.Signature)
}
func decodeSignatureData(d *Decoder) (SignatureData, error) {
	var s SignatureData
	var err error
	if s.Algorithm, _, err = d.ReadString(); err != nil {
		return s, err
	}
	if s.Signature, err = d.ReadByteString(); err != nil {
		return s, err
	}
	return s, nil
}

type CreateSessionRequest struct {
	RequestHeader           RequestHeader
	ClientDescription       ApplicationDescription
	ServerURI               string
	EndpointURL             string
	SessionName             string
	ClientNonce             []byte
	ClientCertificate       []byte
	RequestedSessionTimeout float64
	MaxResponseMessageSize  uint32
}

func DecodeCreateSessionRequest(d *Decoder) (CreateSessionRequest, error) {
	var r CreateSessionRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.ClientDescription, err = decodeApplicationDescription(d); err != nil {
		return r, err
	}
	if r.ServerURI, _, err = d.ReadString(); err != nil {
		return r, err
	}
	if r.EndpointURL, _, err = d.ReadString(); err != nil {
		return r, err
	}
	if r.SessionName, _, err = d.ReadString(); err != nil {
		return r, err
	}
	if r.ClientNonce, err = d.ReadByteString(); err != nil {
		return r, err
	}
	if r.ClientCertificate, err = d.ReadByteString(); err != nil {
		return r, err
	}
	if r.RequestedSessionTimeout, err = d.ReadFloat64(); err != nil {
		return r, err
	}
	if r.MaxResponseMessageSize, err = d.ReadUint32(); err != nil {
		return r, err
	}
	return r, nil
}

type CreateSessionResponse struct {
	ResponseHeader        ResponseHeader
	SessionId             NodeId
	AuthenticationToken   NodeId
	RevisedSessionTimeout float64
	ServerNonce           []byte
	ServerCertificate     []byte
	ServerEndpoints       []EndpointDescription
	ServerSignature       SignatureData
	MaxRequestMessageSize uint32
}

func (r CreateSessionResponse) ByteLen() int {
	n := r.ResponseHeader.byteLen() + r.SessionId.byteLen() + r.AuthenticationToken.byteLen()
	n += 8 + 4 + len(r.ServerNonce) + 4 + len(r.ServerCertificate)
	n += ArrayByteLen(r.ServerEndpoints) + r.ServerSignature.byteLen() + 4
	return n
}

func (r CreateSessionResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	r.SessionId.encode(e)
	r.AuthenticationToken.encode(e)
	e.WriteFloat64(r.RevisedSessionTimeout)
	e.WriteByteString(r.ServerNonce)
	e.WriteByteString(r.ServerCertificate)
	WriteArray(e, r.ServerEndpoints)
	r.ServerSignature.encode(e)
	e.WriteUint32(r.MaxRequestMessageSize)
}

// UserIdentityToken is the identity credential presented in
// ActivateSession: Encoding distinguishes Anonymous/UserName/X509 bodies,
// per the UserTokenType the client selected from GetEndpoints.
type UserIdentityToken struct {
	PolicyId    string
	Token       UserTokenType
	UserName    string
	Password    []byte
	Algorithm   string
	Certificate []byte
}

func (t UserIdentityToken) byteLen() int {
	n := 4 + len(t.PolicyId)
	switch t.Token {
	case UserTokenUserName:
		n += 4 + len(t.UserName) + 4 + len(t.Password) + 4 + len(t.Algorithm)
	case UserTokenCertificate:
		n += 4 + len(t.Certificate)
	}
	return n
}

func (t UserIdentityToken) encode(e *Encoder) {
	e.WriteString(t.PolicyId, t.PolicyId == "")
	switch t.Token {
	case UserTokenUserName:
		e.WriteString(t.UserName, t.UserName == "")
		e.WriteByteString(t.Password)
		e.WriteString(t.Algorithm, t.Algorithm == "")
	case UserTokenCertificate:
		e.WriteByteString(t.Certificate)
	}
}

type ActivateSessionRequest struct {
	RequestHeader      RequestHeader
	ClientSignature    SignatureData
	LocaleIds          []string
	UserIdentityToken  UserIdentityToken
	UserTokenSignature SignatureData
}

func DecodeActivateSessionRequest(d *Decoder, tok UserTokenType) (ActivateSessionRequest, error) {
	var r ActivateSessionRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.ClientSignature, err = decodeSignatureData(d); err != nil {
		return r, err
	}
	// client software/hardware certificates array is not used by this
	// server and is consumed without retention: an array of ByteString.
	n, err := d.ArrayLen()
	if err != nil {
		return r, err
	}
	for i := int32(0); i < n; i++ {
		if _, err := d.ReadByteString(); err != nil {
			return r, err
		}
	}
	if r.LocaleIds, err = readStringArray(d); err != nil {
		return r, err
	}
	// UserIdentityToken arrives wrapped in an ExtensionObject (TypeId, the
	// encoding byte, and — for ByteString encoding — a length prefix the
	// caller's PeekActivateSessionUserTokenType already used to resolve
	// tok); none of that envelope is retained once skipped.
	if _, err := decodeNodeId(d); err != nil {
		return r, err
	}
	enc, err := d.ReadByte()
	if err != nil {
		return r, err
	}
	if ExtensionEncoding(enc) == ExtensionEncodingByteString {
		if _, err := d.readLengthPrefix(); err != nil {
			return r, err
		}
	}
	policyId, _, err := d.ReadString()
	if err != nil {
		return r, err
	}
	r.UserIdentityToken.PolicyId = policyId
	r.UserIdentityToken.Token = tok
	switch tok {
	case UserTokenUserName:
		if r.UserIdentityToken.UserName, _, err = d.ReadString(); err != nil {
			return r, err
		}
		if r.UserIdentityToken.Password, err = d.ReadByteString(); err != nil {
			return r, err
		}
		if r.UserIdentityToken.Algorithm, _, err = d.ReadString(); err != nil {
			return r, err
		}
	case UserTokenCertificate:
		if r.UserIdentityToken.Certificate, err = d.ReadByteString(); err != nil {
			return r, err
		}
	}
	if r.UserTokenSignature, err = decodeSignatureData(d); err != nil {
		return r, err
	}
	return r, nil
}

// identityTokenTypeIds maps the standard OPC UA numeric NodeId identifiers
// for each UserIdentityToken subtype's DefaultBinary encoding (Part 6) to
// the UserTokenType DecodeActivateSessionRequest needs up front, since its
// PolicyId/UserName/Password/Certificate fields are laid out differently
// per token kind.
var identityTokenTypeIds = map[uint32]UserTokenType{
	319: UserTokenAnonymous,
	325: UserTokenUserName,
	328: UserTokenCertificate,
	938: UserTokenIssuedToken,
}

// PeekActivateSessionUserTokenType scans an undecoded ActivateSessionRequest
// body far enough to read the ExtensionObject TypeId wrapping its
// UserIdentityToken, without disturbing the real decode pass the dispatcher
// makes afterwards on a fresh Decoder over the same bytes.
func PeekActivateSessionUserTokenType(body []byte) (UserTokenType, error) {
	d := NewDecoder(bytes.NewReader(body))
	if _, err := decodeRequestHeader(d); err != nil {
		return 0, err
	}
	if _, err := decodeSignatureData(d); err != nil {
		return 0, err
	}
	n, err := d.ArrayLen()
	if err != nil {
		return 0, err
	}
	for i := int32(0); i < n; i++ {
		if _, err := d.ReadByteString(); err != nil {
			return 0, err
		}
	}
	if _, err := readStringArray(d); err != nil {
		return 0, err
	}
	typeId, err := decodeNodeId(d)
	if err != nil {
		return 0, err
	}
	if _, err := d.ReadByte(); err != nil {
		return 0, err
	}
	tok, ok := identityTokenTypeIds[typeId.Numeric]
	if !ok {
		return 0, BadIdentityTokenInvalid.AsError()
	}
	return tok, nil
}

type ActivateSessionResponse struct {
	ResponseHeader  ResponseHeader
	ServerNonce     []byte
	Results         []StatusCode
	DiagnosticInfos []DiagnosticInfo
}

func (r ActivateSessionResponse) ByteLen() int {
	n := r.ResponseHeader.byteLen() + 4 + len(r.ServerNonce) + 4 + 4*len(r.Results) + 4
	for _, d := range r.DiagnosticInfos {
		_ = d
	}
	n += 1 * len(r.DiagnosticInfos) // conservative: diagnostics rarely populated
	return n
}

func (r ActivateSessionResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	e.WriteByteString(r.ServerNonce)
	if r.Results == nil {
		e.WriteInt32(-1)
	} else {
		e.WriteInt32(int32(len(r.Results)))
		for _, s := range r.Results {
			s.encode(e)
		}
	}
	encodeDiagnosticInfoArray(e, r.DiagnosticInfos)
}

type CloseSessionRequest struct {
	RequestHeader       RequestHeader
	DeleteSubscriptions bool
}

func DecodeCloseSessionRequest(d *Decoder) (CloseSessionRequest, error) {
	var r CloseSessionRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.DeleteSubscriptions, err = d.ReadBoolean(); err != nil {
		return r, err
	}
	return r, nil
}

type CloseSessionResponse struct {
	ResponseHeader ResponseHeader
}

func (r CloseSessionResponse) Encode(e *Encoder) { r.ResponseHeader.encode(e) }

func writeStringArray(e *Encoder, items []string) {
	if items == nil {
		e.WriteInt32(-1)
		return
	}
	e.WriteInt32(int32(len(items)))
	for _, s := range items {
		e.WriteString(s, false)
	}
}

func readStringArray(d *Decoder) ([]string, error) {
	n, err := d.ArrayLen()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}
	items := make([]string, n)
	for i := range items {
		s, isNull, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		if !isNull {
			items[i] = s
		}
	}
	return items, nil
}

func encodeDiagnosticInfoArray(e *Encoder, items []DiagnosticInfo) {
	if items == nil {
		e.WriteInt32(-1)
		return
	}
	e.WriteInt32(int32(len(items)))
	for _, it := range items {
		it.encode(e)
	}
}
