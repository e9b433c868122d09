package session

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ironspan/opcuad/internal/config"
	"github.com/ironspan/opcuad/internal/ua"
)

// Manager is the session table: a single lock guarding the map itself,
// with each Session's own mutex guarding its mutable fields.
// The map is keyed by AuthenticationToken since every authenticated
// request names the session that way.
type Manager struct {
	mu      sync.RWMutex
	byToken map[interface{}]*Session
	cfg     *config.Config
	logger  *zap.Logger
}

// NewManager builds a session table bounded by cfg.MaxSessionCount and
// timing out idle sessions per cfg.DefaultSessionTimeoutMS.
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		byToken: make(map[interface{}]*Session),
		cfg:     cfg,
		logger:  logger,
	}
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byToken)
}

// CreateSession implements OPC UA Part 4 CreateSession: allocates a new,
// not-yet-activated Session bound to no user identity, enforcing
// MaxSessionCount.
func (m *Manager) CreateSession(req ua.CreateSessionRequest, channelId uint32) (*Session, ua.StatusCode) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg != nil && m.cfg.MaxSessionCount > 0 && len(m.byToken) >= m.cfg.MaxSessionCount {
		return nil, ua.BadTooManySessions
	}

	timeout := req.RequestedSessionTimeout
	if timeout <= 0 && m.cfg != nil {
		timeout = float64(m.cfg.DefaultSessionTimeoutMS)
	}

	s := newSession(timeout)
	s.Name = req.SessionName
	s.ChannelId = channelId
	m.byToken[s.AuthenticationToken.Key()] = s
	m.logger.Info("session created", zap.String("session_id", s.SessionId.String()))
	return s, ua.Good
}

// Lookup resolves a session by its AuthenticationToken, the id every
// subsequent service call (other than CreateSession) carries in its
// RequestHeader (OPC UA Part 4).
func (m *Manager) Lookup(token ua.NodeId) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byToken[token.Key()]
	return s, ok
}

// ActivateSession implements OPC UA Part 4 ActivateSession: validates the
// user identity token against cfg.UserTokens, activates the session, and
// rebinds it to channelId so a session can transfer across secure
// channels by re-activating.
func (m *Manager) ActivateSession(token ua.NodeId, req ua.ActivateSessionRequest, channelId uint32) ua.StatusCode {
	s, ok := m.Lookup(token)
	if !ok {
		return ua.BadSessionIdInvalid
	}

	identity, code := m.validateIdentity(req.UserIdentityToken)
	if code != ua.Good {
		return code
	}

	s.mu.Lock()
	s.Activated = true
	s.Identity = identity
	s.ChannelId = channelId
	s.LastActivity = time.Now()
	s.mu.Unlock()

	m.logger.Info("session activated",
		zap.String("session_id", s.SessionId.String()),
		zap.Uint32("channel_id", channelId))
	return ua.Good
}

// validateIdentity checks an UserIdentityToken against the configured
// UserTokenConfig list. Anonymous is always
// accepted unless explicitly absent from config; UserName is checked
// against the configured credential list; X509 is accepted if any
// TokenX509 policy is configured (signature verification over the
// server nonce happens at the secure-channel layer, per OPC UA Part 4).
func (m *Manager) validateIdentity(tok ua.UserIdentityToken) (UserIdentity, ua.StatusCode) {
	var policies []config.UserTokenConfig
	if m.cfg != nil {
		policies = m.cfg.UserTokens
	}

	switch tok.Token {
	case ua.UserTokenAnonymous:
		for _, p := range policies {
			if p.Policy == config.TokenAnonymous {
				return UserIdentity{Kind: ua.UserTokenAnonymous}, ua.Good
			}
		}
		if len(policies) == 0 {
			return UserIdentity{Kind: ua.UserTokenAnonymous}, ua.Good
		}
		return UserIdentity{}, ua.BadIdentityTokenRejected

	case ua.UserTokenUserName:
		for _, p := range policies {
			if p.Policy != config.TokenUserName {
				continue
			}
			for _, cred := range p.Users {
				if cred.Username == tok.UserName && cred.Password == string(tok.Password) {
					return UserIdentity{Kind: ua.UserTokenUserName, UserName: tok.UserName}, ua.Good
				}
			}
		}
		return UserIdentity{}, ua.BadUserAccessDenied

	case ua.UserTokenCertificate:
		for _, p := range policies {
			if p.Policy == config.TokenX509 {
				return UserIdentity{Kind: ua.UserTokenCertificate}, ua.Good
			}
		}
		return UserIdentity{}, ua.BadIdentityTokenRejected

	default:
		return UserIdentity{}, ua.BadIdentityTokenInvalid
	}
}

// CloseSession implements OPC UA Part 4 CloseSession, returning the ids of
// subscriptions the caller must also tear down when deleteSubscriptions
// is true (OPC UA Part 4 invariant: closing a session deletes its
// subscriptions).
func (m *Manager) CloseSession(token ua.NodeId, deleteSubscriptions bool) ([]uint32, ua.StatusCode) {
	m.mu.Lock()
	s, ok := m.byToken[token.Key()]
	if !ok {
		m.mu.Unlock()
		return nil, ua.BadSessionIdInvalid
	}
	delete(m.byToken, token.Key())
	m.mu.Unlock()

	var subs []uint32
	if deleteSubscriptions {
		subs = s.SubscriptionSnapshot()
	}
	m.logger.Info("session closed", zap.String("session_id", s.SessionId.String()))
	return subs, ua.Good
}

// CloseSessionsForChannel tears down every session currently bound to
// channelId, returning them so the caller (internal/server, reacting to
// CloseSecureChannel or a channel failure) can also delete their owned
// subscriptions. Per OPC UA Part 4: closing or failing a secure channel
// destroys every session bound to it.
func (m *Manager) CloseSessionsForChannel(channelId uint32) []*Session {
	m.mu.Lock()
	var closed []*Session
	for key, s := range m.byToken {
		s.mu.Lock()
		bound := s.ChannelId == channelId
		s.mu.Unlock()
		if bound {
			delete(m.byToken, key)
			closed = append(closed, s)
		}
	}
	m.mu.Unlock()

	for _, s := range closed {
		m.logger.Info("session closed with channel",
			zap.Uint32("channel_id", channelId),
			zap.String("session_id", s.SessionId.String()))
	}
	return closed
}

// ReapExpired closes every session whose timeout has elapsed since its
// last activity, returning the closed sessions so the caller can tear
// down their subscriptions: a session with no activity for longer than
// its revised timeout is closed as if CloseSession(true) had been
// called.
func (m *Manager) ReapExpired() []*Session {
	now := time.Now()
	var expired []*Session

	m.mu.Lock()
	for key, s := range m.byToken {
		if s.idleFor(now) > time.Duration(s.TimeoutMS)*time.Millisecond {
			delete(m.byToken, key)
			expired = append(expired, s)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		m.logger.Warn("session timed out", zap.String("session_id", s.SessionId.String()))
	}
	return expired
}

// RunReaper starts a background goroutine polling ReapExpired every
// interval until stop is closed, returning the sessions it expires over a
// channel the server wires into subscription cleanup.
func (m *Manager) RunReaper(interval time.Duration, stop <-chan struct{}) <-chan *Session {
	out := make(chan *Session, 16)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer close(out)
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				for _, s := range m.ReapExpired() {
					out <- s
				}
			}
		}
	}()
	return out
}

// NewServerNonce returns a fresh server nonce for CreateSession/
// ActivateSession responses, matching the secure channel's own nonce
// generation in internal/uasc/securechannel.go.
func NewServerNonce(n int) ([]byte, error) {
	nonce := make([]byte, n)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("session: generating server nonce: %w", err)
	}
	return nonce, nil
}
