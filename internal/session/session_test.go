package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironspan/opcuad/internal/ua"
)

func TestNewContinuationPointRoundTrips(t *testing.T) {
	s := newSession(1000)
	cp, err := s.NewContinuationPoint(1, 10, 0, nil)
	require.NoError(t, err)
	assert.Len(t, cp.Id, 6)

	got, ok := s.ContinuationPointByID(cp.Id)
	require.True(t, ok)
	assert.Equal(t, cp, got)
}

func TestReleaseContinuationPointRemovesIt(t *testing.T) {
	s := newSession(1000)
	cp, err := s.NewContinuationPoint(1, 10, 0, nil)
	require.NoError(t, err)

	s.ReleaseContinuationPoint(cp.Id)
	_, ok := s.ContinuationPointByID(cp.Id)
	assert.False(t, ok)
}

func TestPruneContinuationPointsDropsStale(t *testing.T) {
	s := newSession(1000)
	cp, err := s.NewContinuationPoint(1, 10, 0, nil)
	require.NoError(t, err)
	cp.CreatedAt = time.Now().Add(-time.Hour)

	s.PruneContinuationPoints(time.Minute)
	_, ok := s.ContinuationPointByID(cp.Id)
	assert.False(t, ok)
}

func TestParkedPublishFIFOOrder(t *testing.T) {
	s := newSession(1000)
	s.ParkPublish(1, nil)
	s.ParkPublish(2, nil)
	s.ParkPublish(3, nil)

	assert.Equal(t, 3, s.ParkedPublishCount())
	first, ok := s.PopParkedPublish()
	require.True(t, ok)
	second, ok := s.PopParkedPublish()
	require.True(t, ok)
	assert.Equal(t, uint32(1), first.RequestHandle)
	assert.Equal(t, uint32(2), second.RequestHandle)
	assert.Equal(t, 1, s.ParkedPublishCount())
}

func TestPopParkedPublishEmptyReturnsFalse(t *testing.T) {
	s := newSession(1000)
	_, ok := s.PopParkedPublish()
	assert.False(t, ok)
}

func TestSubscriptionTracking(t *testing.T) {
	s := newSession(1000)
	s.AddSubscription(42)
	s.AddSubscription(43)
	assert.ElementsMatch(t, []uint32{42, 43}, s.SubscriptionSnapshot())

	s.RemoveSubscription(42)
	assert.Equal(t, []uint32{43}, s.SubscriptionSnapshot())
}

func TestSessionIdentifiersAreGuidNodeIds(t *testing.T) {
	s := newSession(1000)
	assert.Equal(t, ua.IdentifierGuid, s.SessionId.Kind)
	assert.Equal(t, ua.IdentifierGuid, s.AuthenticationToken.Kind)
	assert.False(t, s.SessionId.Equal(s.AuthenticationToken))
}
