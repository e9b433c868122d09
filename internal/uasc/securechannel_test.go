package uasc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironspan/opcuad/internal/secpolicy"
	"github.com/ironspan/opcuad/internal/ua"
)

func assertStatusCode(t *testing.T, err error, want ua.StatusCode) {
	t.Helper()
	require.Error(t, err)
	svcErr, ok := err.(*ua.ServiceError)
	require.True(t, ok, "expected *ua.ServiceError, got %T", err)
	assert.Equal(t, want, svcErr.Code)
}

func openedChannel(t *testing.T) *SecureChannel {
	t.Helper()
	c := NewSecureChannel(nil)
	c.HandleHello(0)
	p, _ := secpolicy.Lookup(secpolicy.None)
	_, _, err := c.Open(0, p, ua.SecurityModeNone, []byte("client-nonce-1"), nil, time.Hour)
	require.NoError(t, err)
	return c
}

// Sequential OpenSecureChannel(Issue) calls must return strictly
// increasing channel_id and token_id."
func TestOpenAssignsStrictlyIncreasingIds(t *testing.T) {
	p, _ := secpolicy.Lookup(secpolicy.None)

	c1 := NewSecureChannel(nil)
	c1.HandleHello(0)
	tok1, _, err := c1.Open(0, p, ua.SecurityModeNone, []byte("n1"), nil, 0)
	require.NoError(t, err)

	c2 := NewSecureChannel(nil)
	c2.HandleHello(0)
	tok2, _, err := c2.Open(0, p, ua.SecurityModeNone, []byte("n2"), nil, 0)
	require.NoError(t, err)

	assert.Greater(t, c2.ChannelId, c1.ChannelId)
	assert.Greater(t, tok2.TokenId, tok1.TokenId)
}

func TestOpenRejectsMismatchedProtocolVersion(t *testing.T) {
	c := NewSecureChannel(nil)
	c.HandleHello(0)
	p, _ := secpolicy.Lookup(secpolicy.None)
	_, _, err := c.Open(1, p, ua.SecurityModeNone, []byte("n"), nil, 0)
	assertStatusCode(t, err, ua.BadProtocolVersionUnsupported)
}

func TestOpenRejectsInvalidSecurityMode(t *testing.T) {
	c := NewSecureChannel(nil)
	c.HandleHello(0)
	p, _ := secpolicy.Lookup(secpolicy.None)
	_, _, err := c.Open(0, p, ua.MessageSecurityMode(99), []byte("n"), nil, 0)
	assertStatusCode(t, err, ua.BadSecurityModeRejected)
}

// Renew with client_nonce == previous_client_nonce must return
// BadNonceInvalid."
func TestRenewRejectsReusedNonce(t *testing.T) {
	c := openedChannel(t)
	_, _, err := c.Renew([]byte("client-nonce-1"), time.Hour)
	assertStatusCode(t, err, ua.BadNonceInvalid)
	assert.Equal(t, StateOpen, c.State())
}

// Renew without a prior Issue is rejected with BadUnexpectedError, a
// request-level fault the channel itself survives.
func TestRenewWithoutPriorIssueFails(t *testing.T) {
	c := NewSecureChannel(nil)
	c.HandleHello(0)
	_, _, err := c.Renew([]byte("n"), time.Hour)
	assertStatusCode(t, err, ua.BadUnexpectedError)
}

func TestRenewWithFreshNonceRotatesTokenKeepingChannelId(t *testing.T) {
	c := openedChannel(t)
	channelId := c.ChannelId
	firstToken, _, _ := c.CurrentToken()

	newToken, _, err := c.Renew([]byte("client-nonce-2"), time.Hour)
	require.NoError(t, err)

	assert.Equal(t, channelId, c.ChannelId)
	assert.Equal(t, channelId, newToken.ChannelId)
	assert.Greater(t, newToken.TokenId, firstToken.TokenId)
	assert.Equal(t, StateOpen, c.State())
}

// The superseded token stays honoured during its grace window: token
// expiry is soft across a Renew.
func TestKeysForTokenHonoursPreviousTokenDuringGraceWindow(t *testing.T) {
	c := openedChannel(t)
	oldToken, _, _ := c.CurrentToken()

	_, _, err := c.Renew([]byte("client-nonce-2"), time.Hour)
	require.NoError(t, err)

	_, ok := c.KeysForToken(oldToken.TokenId)
	assert.True(t, ok)

	newToken, _, _ := c.CurrentToken()
	_, ok = c.KeysForToken(newToken.TokenId)
	assert.True(t, ok)

	_, ok = c.KeysForToken(oldToken.TokenId + newToken.TokenId + 1000)
	assert.False(t, ok)
}

func TestCloseClearsState(t *testing.T) {
	c := openedChannel(t)
	c.Close()
	assert.Equal(t, StateClosed, c.State())
	_, _, ok := c.CurrentToken()
	assert.False(t, ok)
}
