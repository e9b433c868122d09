package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironspan/opcuad/internal/config"
	"github.com/ironspan/opcuad/internal/ua"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.MaxSessionCount = 2
	cfg.UserTokens = []config.UserTokenConfig{
		{ID: "anonymous", Policy: config.TokenAnonymous},
		{ID: "basic", Policy: config.TokenUserName, Users: []config.UserCredential{
			{Username: "alice", Password: "wonderland"},
		}},
	}
	return cfg
}

func TestCreateSessionEnforcesMaxSessionCount(t *testing.T) {
	m := NewManager(testConfig(), nil)

	_, code := m.CreateSession(ua.CreateSessionRequest{SessionName: "a"}, 1)
	require.Equal(t, ua.Good, code)
	_, code = m.CreateSession(ua.CreateSessionRequest{SessionName: "b"}, 1)
	require.Equal(t, ua.Good, code)

	_, code = m.CreateSession(ua.CreateSessionRequest{SessionName: "c"}, 1)
	assert.Equal(t, ua.BadTooManySessions, code)
}

func TestActivateSessionAnonymousSucceeds(t *testing.T) {
	m := NewManager(testConfig(), nil)
	s, code := m.CreateSession(ua.CreateSessionRequest{SessionName: "s"}, 1)
	require.Equal(t, ua.Good, code)

	code = m.ActivateSession(s.AuthenticationToken, ua.ActivateSessionRequest{
		UserIdentityToken: ua.UserIdentityToken{Token: ua.UserTokenAnonymous},
	}, 1)
	assert.Equal(t, ua.Good, code)
	assert.True(t, s.Activated)
}

func TestActivateSessionUserNameWrongPasswordRejected(t *testing.T) {
	m := NewManager(testConfig(), nil)
	s, _ := m.CreateSession(ua.CreateSessionRequest{SessionName: "s"}, 1)

	code := m.ActivateSession(s.AuthenticationToken, ua.ActivateSessionRequest{
		UserIdentityToken: ua.UserIdentityToken{Token: ua.UserTokenUserName, UserName: "alice", Password: []byte("wrong")},
	}, 1)
	assert.Equal(t, ua.BadUserAccessDenied, code)
	assert.False(t, s.Activated)
}

func TestActivateSessionUserNameCorrectPasswordSucceeds(t *testing.T) {
	m := NewManager(testConfig(), nil)
	s, _ := m.CreateSession(ua.CreateSessionRequest{SessionName: "s"}, 1)

	code := m.ActivateSession(s.AuthenticationToken, ua.ActivateSessionRequest{
		UserIdentityToken: ua.UserIdentityToken{Token: ua.UserTokenUserName, UserName: "alice", Password: []byte("wonderland")},
	}, 1)
	assert.Equal(t, ua.Good, code)
}

func TestActivateSessionUnknownTokenReturnsBadSessionIdInvalid(t *testing.T) {
	m := NewManager(testConfig(), nil)
	code := m.ActivateSession(ua.NewGuidNodeId(0, ua.NewGuid()), ua.ActivateSessionRequest{}, 1)
	assert.Equal(t, ua.BadSessionIdInvalid, code)
}

func TestActivateSessionTransfersChannel(t *testing.T) {
	m := NewManager(testConfig(), nil)
	s, _ := m.CreateSession(ua.CreateSessionRequest{SessionName: "s"}, 1)
	m.ActivateSession(s.AuthenticationToken, ua.ActivateSessionRequest{
		UserIdentityToken: ua.UserIdentityToken{Token: ua.UserTokenAnonymous},
	}, 1)

	code := m.ActivateSession(s.AuthenticationToken, ua.ActivateSessionRequest{
		UserIdentityToken: ua.UserIdentityToken{Token: ua.UserTokenAnonymous},
	}, 2)
	assert.Equal(t, ua.Good, code)
	assert.Equal(t, uint32(2), s.ChannelId)
}

func TestCloseSessionRemovesFromTable(t *testing.T) {
	m := NewManager(testConfig(), nil)
	s, _ := m.CreateSession(ua.CreateSessionRequest{SessionName: "s"}, 1)
	require.Equal(t, 1, m.Count())

	_, code := m.CloseSession(s.AuthenticationToken, false)
	assert.Equal(t, ua.Good, code)
	assert.Equal(t, 0, m.Count())

	_, ok := m.Lookup(s.AuthenticationToken)
	assert.False(t, ok)
}

func TestCloseSessionReturnsSubscriptionsWhenRequested(t *testing.T) {
	m := NewManager(testConfig(), nil)
	s, _ := m.CreateSession(ua.CreateSessionRequest{SessionName: "s"}, 1)
	s.AddSubscription(7)

	subs, code := m.CloseSession(s.AuthenticationToken, true)
	require.Equal(t, ua.Good, code)
	assert.Equal(t, []uint32{7}, subs)
}

func TestCloseSessionsForChannelOnlyClosesBoundSessions(t *testing.T) {
	m := NewManager(testConfig(), nil)
	onChannel1, _ := m.CreateSession(ua.CreateSessionRequest{SessionName: "a"}, 1)
	onChannel2, _ := m.CreateSession(ua.CreateSessionRequest{SessionName: "b"}, 2)
	require.Equal(t, 2, m.Count())

	closed := m.CloseSessionsForChannel(1)
	require.Len(t, closed, 1)
	assert.Equal(t, onChannel1.SessionId, closed[0].SessionId)

	_, ok := m.Lookup(onChannel1.AuthenticationToken)
	assert.False(t, ok)
	_, ok = m.Lookup(onChannel2.AuthenticationToken)
	assert.True(t, ok)
}

func TestReapExpiredClosesIdleSessions(t *testing.T) {
	m := NewManager(testConfig(), nil)
	s, _ := m.CreateSession(ua.CreateSessionRequest{SessionName: "s", RequestedSessionTimeout: 1}, 1)
	s.LastActivity = s.LastActivity.Add(-time.Hour)

	expired := m.ReapExpired()
	require.Len(t, expired, 1)
	assert.Equal(t, s.SessionId, expired[0].SessionId)
	assert.Equal(t, 0, m.Count())
}
