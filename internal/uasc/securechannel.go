package uasc

import (
	"bytes"
	"crypto/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ironspan/opcuad/internal/secpolicy"
	"github.com/ironspan/opcuad/internal/ua"
)

// globalChannelId/globalTokenId are the process-lifetime monotonic
// counters OPC UA Part 6 requires: channel and token ids are strictly
// increasing across the server's whole lifetime, never reset per
// session or per channel.
var (
	globalChannelId uint32
	globalTokenId   uint32
)

func nextChannelId() uint32 { return atomic.AddUint32(&globalChannelId, 1) }
func nextTokenId() uint32   { return atomic.AddUint32(&globalTokenId, 1) }

// State is the secure channel lifecycle (OPC UA Part 6).
type State int

const (
	StateClosed State = iota
	StateHelloReceived
	StateOpening
	StateOpen
	StateRenewing
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateHelloReceived:
		return "HelloReceived"
	case StateOpening:
		return "Opening"
	case StateOpen:
		return "Open"
	case StateRenewing:
		return "Renewing"
	case StateClosing:
		return "Closing"
	default:
		return "Unknown"
	}
}

// tokenEpoch is one issued or renewed ChannelSecurityToken plus the
// derived symmetric keys it secures messages under. The previous
// epoch is kept for a short grace window so messages the client signed
// under the expiring token still verify right after a renewal.
type tokenEpoch struct {
	token     ua.ChannelSecurityToken
	keys      secpolicy.DerivedKeySet
	expiresAt time.Time
}

// RenewGraceWindow is how long a superseded token is still honoured
// after a successful Renew: token expiry is soft across a rotation.
const RenewGraceWindow = 15 * time.Second

// SecureChannel is one client connection's channel state: security
// policy/mode, the current and (briefly) previous token epochs, and
// the nonces exchanged at Issue/Renew (OPC UA Part 6 SecureChannel).
type SecureChannel struct {
	mu sync.Mutex

	ChannelId uint32
	Policy    secpolicy.Policy
	Mode      ua.MessageSecurityMode

	state State

	current  *tokenEpoch
	previous *tokenEpoch

	lastClientNonce []byte
	remoteCert      []byte

	protocolVersion uint32
	logger          *zap.Logger
}

func NewSecureChannel(logger *zap.Logger) *SecureChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecureChannel{state: StateClosed, logger: logger}
}

// NewServerNonce returns cryptographically random bytes the size of the
// policy's symmetric signing+encrypting+IV material, used as this
// server's half of the key-derivation seed pair.
func NewServerNonce(p secpolicy.Policy) ([]byte, error) {
	if p.IsNone() {
		return nil, nil
	}
	n := make([]byte, p.SigningKeyLength+p.SymmetricKeyLength+p.SymmetricBlockSize)
	if _, err := rand.Read(n); err != nil {
		return nil, err
	}
	return n, nil
}

// HandleHello transitions Closed → HelloReceived, recording the
// protocol version the client offered so a later OpenSecureChannel can
// be checked against it (OPC UA Part 6).
func (c *SecureChannel) HandleHello(protocolVersion uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.protocolVersion = protocolVersion
	c.state = StateHelloReceived
}

// Open implements OpenSecureChannel(Issue) from Closed/HelloReceived
// (OPC UA Part 6): allocates a channel id and token, derives keys if the
// mode isn't None, and transitions to Open.
func (c *SecureChannel) Open(clientProtocolVersion uint32, policy secpolicy.Policy, mode ua.MessageSecurityMode, clientNonce, remoteCert []byte, requestedLifetime time.Duration) (ua.ChannelSecurityToken, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if clientProtocolVersion != c.protocolVersion {
		return ua.ChannelSecurityToken{}, nil, ua.BadProtocolVersionUnsupported.AsError()
	}
	if mode != ua.SecurityModeNone && mode != ua.SecurityModeSign && mode != ua.SecurityModeSignAndEncrypt {
		return ua.ChannelSecurityToken{}, nil, ua.BadSecurityModeRejected.AsError()
	}

	c.ChannelId = nextChannelId()
	c.Policy = policy
	c.Mode = mode
	c.remoteCert = remoteCert
	c.lastClientNonce = clientNonce

	serverNonce, err := NewServerNonce(policy)
	if err != nil {
		return ua.ChannelSecurityToken{}, nil, err
	}

	epoch, err := c.issueEpoch(clientNonce, serverNonce, requestedLifetime)
	if err != nil {
		return ua.ChannelSecurityToken{}, nil, err
	}
	c.current = epoch
	c.previous = nil
	c.state = StateOpen

	c.logger.Info("secure channel opened",
		zap.Uint32("channel_id", c.ChannelId),
		zap.Uint32("token_id", epoch.token.TokenId),
		zap.String("policy", string(policy.URI)),
	)
	return epoch.token, serverNonce, nil
}

// Renew implements OpenSecureChannel(Renew) from Open (OPC UA Part 6): a
// fresh client nonce is required (else BadNonceInvalid), and so is a
// prior Issue (else BadUnexpectedError, a request-level fault the
// channel survives).
func (c *SecureChannel) Renew(clientNonce []byte, requestedLifetime time.Duration) (ua.ChannelSecurityToken, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.state != StateOpen {
		return ua.ChannelSecurityToken{}, nil, ua.BadUnexpectedError.AsError()
	}
	if bytes.Equal(clientNonce, c.lastClientNonce) {
		return ua.ChannelSecurityToken{}, nil, ua.BadNonceInvalid.AsError()
	}

	c.state = StateRenewing
	serverNonce, err := NewServerNonce(c.Policy)
	if err != nil {
		c.state = StateOpen
		return ua.ChannelSecurityToken{}, nil, err
	}

	epoch, err := c.issueEpoch(clientNonce, serverNonce, requestedLifetime)
	if err != nil {
		c.state = StateOpen
		return ua.ChannelSecurityToken{}, nil, err
	}

	c.previous = c.current
	c.previous.expiresAt = time.Now().Add(RenewGraceWindow)
	c.current = epoch
	c.lastClientNonce = clientNonce
	c.state = StateOpen

	c.logger.Info("secure channel renewed",
		zap.Uint32("channel_id", c.ChannelId),
		zap.Uint32("token_id", epoch.token.TokenId),
	)
	return epoch.token, serverNonce, nil
}

func (c *SecureChannel) issueEpoch(clientNonce, serverNonce []byte, requestedLifetime time.Duration) (*tokenEpoch, error) {
	lifetime := requestedLifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	tok := ua.ChannelSecurityToken{
		ChannelId:       c.ChannelId,
		TokenId:         nextTokenId(),
		CreatedAt:       ua.Now(),
		RevisedLifetime: uint32(lifetime.Milliseconds()),
	}
	keys := secpolicy.Derive(c.Policy, clientNonce, serverNonce)
	return &tokenEpoch{token: tok, keys: keys, expiresAt: time.Now().Add(lifetime)}, nil
}

// KeysForToken resolves the symmetric keys for a token id found on an
// inbound MSG/CLO chunk, honouring the previous epoch during its grace
// window, so in-flight messages survive a token rotation.
func (c *SecureChannel) KeysForToken(tokenId uint32) (secpolicy.DerivedKeySet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.token.TokenId == tokenId {
		return c.current.keys, true
	}
	if c.previous != nil && c.previous.token.TokenId == tokenId && time.Now().Before(c.previous.expiresAt) {
		return c.previous.keys, true
	}
	return secpolicy.DerivedKeySet{}, false
}

// CurrentToken returns the active token, used to stamp outbound chunks.
func (c *SecureChannel) CurrentToken() (ua.ChannelSecurityToken, secpolicy.DerivedKeySet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ua.ChannelSecurityToken{}, secpolicy.DerivedKeySet{}, false
	}
	return c.current.token, c.current.keys, true
}

func (c *SecureChannel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close implements CloseSecureChannel: the caller is responsible for
// tearing down bound sessions; this just finalizes channel state
// (OPC UA Part 6).
func (c *SecureChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateClosed
	c.current = nil
	c.previous = nil
	c.logger.Info("secure channel closed", zap.Uint32("channel_id", c.ChannelId))
}

// Fail closes the channel in response to a verification/decryption
// failure or any other channel-fatal condition. Closing the channel
// terminates all bound sessions; session teardown is the caller's
// responsibility, reacting to this channel's id going away.
func (c *SecureChannel) Fail(reason ua.StatusCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Warn("secure channel failed",
		zap.Uint32("channel_id", c.ChannelId),
		zap.String("reason", reason.String()),
	)
	c.state = StateClosed
	c.current = nil
	c.previous = nil
}
