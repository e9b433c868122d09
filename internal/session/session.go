// Package session implements the Session Manager (OPC UA Part 4):
// CreateSession/ActivateSession/CloseSession lifecycle, user identity
// validation, browse continuation points, and the per-session parked
// Publish FIFO that the subscription engine drains.
package session

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/ironspan/opcuad/internal/ua"
)

// UserIdentity is the validated outcome of ActivateSession: who the
// session is acting as, stripped of the raw credential bytes once
// checked (OPC UA Part 4's "user identity" field).
type UserIdentity struct {
	Kind     ua.UserTokenType
	UserName string
}

// ContinuationPoint is a paged Browse/BrowseNext cursor, owned
// per-session; ids are random so one session cannot guess another's.
type ContinuationPoint struct {
	Id                   []byte
	AddressSpaceVersion  uint64
	MaxReferencesPerNode uint32
	StartingIndex        int
	CachedReferences     []ua.ReferenceDescription
	CreatedAt            time.Time
}

// ParkedPublish is one outstanding Publish request waiting for
// notifications, per OPC UA Part 4's Publish-pairing description: "the
// server ... parks the request against the session. A parked Publish may
// be consumed by any subscription of the session."
type ParkedPublish struct {
	RequestHandle uint32
	AckResults    []ua.StatusCode
	Result        chan PublishOutcome
}

// PublishOutcome is what a subscription hands back to the goroutine
// blocked on a parked Publish.
type PublishOutcome struct {
	Response ua.PublishResponse
	Err      error
}

// Deliver hands the built PublishResponse (or error) back to the
// goroutine blocked reading p.Result, stamping in this parked request's
// own handle and its Publish-time acknowledgement results
// (OPC UA Part 4 Publish pairing).
func (p *ParkedPublish) Deliver(resp ua.PublishResponse, err error) {
	resp.ResponseHeader = ua.NewResponseHeader(ua.RequestHeader{RequestHandle: p.RequestHandle}, ua.Good)
	resp.Results = p.AckResults
	p.Result <- PublishOutcome{Response: resp, Err: err}
}

// Session is one CreateSession'd client (OPC UA Part 4). The session
// table's lock covers lookup and creation; this per-session mutex guards
// the mutable fields below.
type Session struct {
	mu sync.Mutex

	SessionId           ua.NodeId
	AuthenticationToken ua.NodeId
	Name                string

	Activated bool
	Identity  UserIdentity
	ChannelId uint32

	TimeoutMS    float64
	LastActivity time.Time

	SubscriptionIds map[uint32]struct{}

	continuationPoints map[string]*ContinuationPoint
	parkedPublishes    []*ParkedPublish
}

func newSession(timeoutMS float64) *Session {
	return &Session{
		SessionId:           ua.NewGuidNodeId(0, ua.NewGuid()),
		AuthenticationToken: ua.NewGuidNodeId(0, ua.NewGuid()),
		TimeoutMS:           timeoutMS,
		LastActivity:        time.Now(),
		SubscriptionIds:     make(map[uint32]struct{}),
		continuationPoints:  make(map[string]*ContinuationPoint),
	}
}

// Touch records activity against the session's timeout clock.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActivity = time.Now()
}

func (s *Session) idleFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.LastActivity)
}

// AddSubscription/RemoveSubscription track which subscription ids belong
// to this session so CloseSession can delete them all: deleting a
// session deletes its subscriptions.
func (s *Session) AddSubscription(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SubscriptionIds[id] = struct{}{}
}

func (s *Session) RemoveSubscription(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.SubscriptionIds, id)
}

// SubscriptionSnapshot returns a copy of the owned subscription ids.
func (s *Session) SubscriptionSnapshot() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint32, 0, len(s.SubscriptionIds))
	for id := range s.SubscriptionIds {
		ids = append(ids, id)
	}
	return ids
}

// NewContinuationPoint allocates a fresh 6-byte random, unguessable id
// (OPC UA Part 4) and stores the cursor under it.
func (s *Session) NewContinuationPoint(addressSpaceVersion uint64, maxRefs uint32, startingIndex int, cached []ua.ReferenceDescription) (*ContinuationPoint, error) {
	id := make([]byte, 6)
	if _, err := rand.Read(id); err != nil {
		return nil, err
	}
	cp := &ContinuationPoint{
		Id:                   id,
		AddressSpaceVersion:  addressSpaceVersion,
		MaxReferencesPerNode: maxRefs,
		StartingIndex:        startingIndex,
		CachedReferences:     cached,
		CreatedAt:            time.Now(),
	}
	s.mu.Lock()
	s.continuationPoints[string(id)] = cp
	s.mu.Unlock()
	return cp, nil
}

// ContinuationPointByID resolves a previously issued id, or ok=false if it
// was never issued, already released, or pruned by TTL.
func (s *Session) ContinuationPointByID(id []byte) (*ContinuationPoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.continuationPoints[string(id)]
	return cp, ok
}

// ReleaseContinuationPoint discards a continuation point, per
// BrowseNext(release=true) (OPC UA Part 4).
func (s *Session) ReleaseContinuationPoint(id []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.continuationPoints, string(id))
}

// PruneContinuationPoints drops continuation points older than ttl, per
// OPC UA Part 4's "pruned on each call to BrowseNext by TTL".
func (s *Session) PruneContinuationPoints(ttl time.Duration) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, cp := range s.continuationPoints {
		if now.Sub(cp.CreatedAt) > ttl {
			delete(s.continuationPoints, k)
		}
	}
}

// ParkPublish queues an outstanding Publish request, returning a channel
// the caller blocks on for its eventual PublishResponse. ackResults
// carries the per-SubscriptionAcknowledgement outcome computed at
// Publish-receipt time (OPC UA Part 4), echoed back in PublishResponse.Results
// once a subscription services this parked request.
func (s *Session) ParkPublish(requestHandle uint32, ackResults []ua.StatusCode) *ParkedPublish {
	p := &ParkedPublish{RequestHandle: requestHandle, AckResults: ackResults, Result: make(chan PublishOutcome, 1)}
	s.mu.Lock()
	s.parkedPublishes = append(s.parkedPublishes, p)
	s.mu.Unlock()
	return p
}

// PopParkedPublish removes and returns the oldest parked Publish, or
// ok=false if none are queued; the parked requests form a FIFO.
func (s *Session) PopParkedPublish() (*ParkedPublish, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.parkedPublishes) == 0 {
		return nil, false
	}
	p := s.parkedPublishes[0]
	s.parkedPublishes = s.parkedPublishes[1:]
	return p, true
}

// ParkedPublishCount reports how many Publish requests are currently
// parked, used by the subscription engine to decide Normal vs Late.
func (s *Session) ParkedPublishCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.parkedPublishes)
}
