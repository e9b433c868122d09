package dispatch

import (
	"bytes"

	"go.uber.org/zap"

	"github.com/ironspan/opcuad/internal/session"
	"github.com/ironspan/opcuad/internal/ua"
)

// serverNonceLength is the fixed size of CreateSession/ActivateSession
// nonces, whatever the channel's policy. The secure channel sizes its own
// nonce per policy instead (internal/uasc/securechannel.go's
// NewServerNonce); both serve the same "prove freshness" role.
const serverNonceLength = 32

// handleCreateSession implements OPC UA Part 4 CreateSession: allocates a
// not-yet-activated Session bound to channelId and returns this server's
// identity plus endpoint list.
func (d *Dispatcher) handleCreateSession(dec *ua.Decoder, channelId uint32) []byte {
	req, err := ua.DecodeCreateSessionRequest(dec)
	if err != nil {
		return d.fault("CreateSession", ua.RequestHeader{}, ua.BadDecodingError)
	}

	s, code := d.sessions.CreateSession(req, channelId)
	if code != ua.Good {
		return d.fault("CreateSession", req.RequestHeader, code)
	}
	d.syncGauges()

	nonce, err := session.NewServerNonce(serverNonceLength)
	if err != nil {
		return d.fault("CreateSession", req.RequestHeader, ua.BadInternalError)
	}

	resp := ua.CreateSessionResponse{
		ResponseHeader:        ua.NewResponseHeader(req.RequestHeader, ua.Good),
		SessionId:             s.SessionId,
		AuthenticationToken:   s.AuthenticationToken,
		RevisedSessionTimeout: s.TimeoutMS,
		ServerNonce:           nonce,
		ServerCertificate:     d.serverCertificate,
		ServerEndpoints:       d.endpoints,
	}
	return envelope(ua.IdCreateSessionResponse, resp)
}

// handleActivateSession implements OPC UA Part 4 ActivateSession. The
// UserIdentityToken's wire shape depends on which UserTokenType the
// client chose, so the type must be peeked off the undecoded body before
// a real decode can proceed, the same two-pass split
// PeekActivateSessionUserTokenType exists for.
func (d *Dispatcher) handleActivateSession(rest []byte, channelId uint32) []byte {
	tokenType, err := ua.PeekActivateSessionUserTokenType(rest)
	if err != nil {
		return d.fault("ActivateSession", ua.RequestHeader{}, ua.BadIdentityTokenInvalid)
	}
	req, err := ua.DecodeActivateSessionRequest(ua.NewDecoder(bytes.NewReader(rest)), tokenType)
	if err != nil {
		return d.fault("ActivateSession", ua.RequestHeader{}, ua.BadDecodingError)
	}

	code := d.sessions.ActivateSession(req.RequestHeader.AuthenticationToken, req, channelId)
	if code != ua.Good {
		return d.fault("ActivateSession", req.RequestHeader, code)
	}

	nonce, err := session.NewServerNonce(serverNonceLength)
	if err != nil {
		return d.fault("ActivateSession", req.RequestHeader, ua.BadInternalError)
	}

	resp := ua.ActivateSessionResponse{
		ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.Good),
		ServerNonce:    nonce,
	}
	return envelope(ua.IdActivateSessionResponse, resp)
}

// handleCloseSession implements OPC UA Part 4 CloseSession, tearing down
// every subscription the session owns when DeleteSubscriptions is set
// (OPC UA Part 4 invariant).
func (d *Dispatcher) handleCloseSession(dec *ua.Decoder) []byte {
	req, err := ua.DecodeCloseSessionRequest(dec)
	if err != nil {
		return d.fault("CloseSession", ua.RequestHeader{}, ua.BadDecodingError)
	}

	s, ok := d.sessions.Lookup(req.RequestHeader.AuthenticationToken)
	if !ok {
		return d.fault("CloseSession", req.RequestHeader, ua.BadSessionIdInvalid)
	}

	subIds, code := d.sessions.CloseSession(req.RequestHeader.AuthenticationToken, req.DeleteSubscriptions)
	if code != ua.Good {
		return d.fault("CloseSession", req.RequestHeader, code)
	}
	if len(subIds) > 0 {
		results := d.subs.DeleteSubscriptions(subIds, s)
		for i, r := range results {
			if r != ua.Good {
				d.logger.Warn("subscription cleanup on session close failed",
					zap.Uint32("subscription_id", subIds[i]), zap.String("result", r.String()))
			}
		}
	}

	d.syncGauges()
	resp := ua.CloseSessionResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.Good)}
	return envelope(ua.IdCloseSessionResponse, resp)
}
