package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ironspan/opcuad/internal/addressspace"
	"github.com/ironspan/opcuad/internal/config"
	"github.com/ironspan/opcuad/internal/session"
	"github.com/ironspan/opcuad/internal/ua"
)

func testSessionWithSpace(t *testing.T) (*session.Session, *addressspace.AddressSpace) {
	t.Helper()
	sm := session.NewManager(config.Default(), zap.NewNop())
	s, code := sm.CreateSession(ua.CreateSessionRequest{}, 1)
	require.Equal(t, ua.Good, code)
	return s, addressspace.New(zap.NewNop())
}

func testSubscription(t *testing.T, sink *session.Session, as *addressspace.AddressSpace, lifetime, maxKeepAlive uint32) *Subscription {
	t.Helper()
	req := ua.CreateSubscriptionRequest{
		RequestedPublishingInterval: 20,
		RequestedLifetimeCount:      lifetime,
		RequestedMaxKeepAliveCount:  maxKeepAlive,
		PublishingEnabled:           true,
	}
	return newSubscription(1, req, as, sink, zap.NewNop())
}

func addTestVariable(t *testing.T, as *addressspace.AddressSpace, name string, value interface{}) *addressspace.Node {
	t.Helper()
	n := &addressspace.Node{
		NodeId:      ua.NewStringNodeId(1, name),
		BrowseName:  ua.NewQualifiedName(1, name),
		DisplayName: ua.NewLocalizedText("en", name),
		Value:       ua.NewDataValue(ua.NewVariant(value)),
		AccessLevel: 0x03,
	}
	require.NoError(t, as.AddVariable(n, addressspace.ObjectsFolder, addressspace.OrganizesRefType))
	return n
}

func addReportingItem(t *testing.T, sub *Subscription, node *addressspace.Node, clientHandle uint32) {
	t.Helper()
	res := sub.AddMonitoredItem(10, ua.MonitoredItemCreateRequest{
		ItemToMonitor:  ua.ReadValueId{NodeId: node.NodeId, AttributeId: ua.AttributeValue},
		MonitoringMode: ua.MonitoringReporting,
		RequestedParameters: ua.MonitoringParameters{
			ClientHandle:     clientHandle,
			SamplingInterval: -1, // sample on every tick
			QueueSize:        4,
			DiscardOldest:    true,
		},
	}, 1)
	require.Equal(t, ua.Good, res.StatusCode)
}

func mustOutcome(t *testing.T, p *session.ParkedPublish) ua.PublishResponse {
	t.Helper()
	select {
	case outcome := <-p.Result:
		require.NoError(t, outcome.Err)
		return outcome.Response
	default:
		t.Fatal("parked Publish was not serviced")
		return ua.PublishResponse{}
	}
}

func TestTickDeliversDataChangeToParkedPublish(t *testing.T) {
	sess, as := testSessionWithSpace(t)
	sub := testSubscription(t, sess, as, 100, 3)
	node := addTestVariable(t, as, "Speed", int32(10))
	addReportingItem(t, sub, node, 77)

	parked := sess.ParkPublish(1, nil)
	require.False(t, sub.tick())

	resp := mustOutcome(t, parked)
	assert.Equal(t, uint32(1), resp.SubscriptionId)
	assert.Equal(t, uint32(1), resp.NotificationMessage.SequenceNumber)
	require.NotEmpty(t, resp.NotificationMessage.NotificationData)
	dcn, err := ua.DecodeDataChangeNotification(resp.NotificationMessage.NotificationData[0])
	require.NoError(t, err)
	require.Len(t, dcn.MonitoredItems, 1)
	assert.Equal(t, uint32(77), dcn.MonitoredItems[0].ClientHandle)

	// Unchanged value: the next tick reports nothing and leaves any
	// parked Publish alone.
	parked2 := sess.ParkPublish(2, nil)
	require.False(t, sub.tick())
	select {
	case <-parked2.Result:
		t.Fatal("tick with no changes must not consume the parked Publish")
	default:
	}

	// A mutation makes the following tick publish again, with the next
	// sequence number.
	require.Equal(t, ua.Good, as.WriteAttribute(node.NodeId, ua.AttributeValue,
		ua.NewDataValue(ua.NewVariant(int32(11)))))
	require.False(t, sub.tick())
	resp = mustOutcome(t, parked2)
	assert.Equal(t, uint32(2), resp.NotificationMessage.SequenceNumber)
}

func TestKeepAliveAfterMaxEmptyIntervals(t *testing.T) {
	sess, as := testSessionWithSpace(t)
	sub := testSubscription(t, sess, as, 100, 3)

	parked := sess.ParkPublish(1, nil)
	require.False(t, sub.tick())
	require.False(t, sub.tick())
	select {
	case <-parked.Result:
		t.Fatal("keep-alive fired before max_keep_alive_count empty intervals")
	default:
	}

	require.False(t, sub.tick())
	resp := mustOutcome(t, parked)
	assert.Empty(t, resp.NotificationMessage.NotificationData)
	assert.Equal(t, uint32(1), resp.NotificationMessage.SequenceNumber)
	assert.Equal(t, StateKeepAlive, sub.state)
}

func TestLateWhenNotificationsQueuedWithoutParkedPublish(t *testing.T) {
	sess, as := testSessionWithSpace(t)
	sub := testSubscription(t, sess, as, 100, 3)
	node := addTestVariable(t, as, "Level", float64(1))
	addReportingItem(t, sub, node, 5)

	require.False(t, sub.tick())
	assert.Equal(t, StateLate, sub.state)

	// Once a Publish arrives, the queued notification drains on the next
	// tick and the subscription recovers to Normal.
	parked := sess.ParkPublish(1, nil)
	require.False(t, sub.tick())
	resp := mustOutcome(t, parked)
	require.NotEmpty(t, resp.NotificationMessage.NotificationData)
	assert.Equal(t, StateNormal, sub.state)
}

func TestLifetimeExhaustionClosesSubscription(t *testing.T) {
	sess, as := testSessionWithSpace(t)
	sub := testSubscription(t, sess, as, 2, 1)
	var timedOut uint32
	sub.onTimeout = func(id uint32) { timedOut = id }

	require.False(t, sub.tick())
	assert.True(t, sub.tick())
	assert.Equal(t, StateClosed, sub.state)
	assert.Equal(t, uint32(1), timedOut)
}

func TestAcknowledgeEvictsFromRetransmissionQueue(t *testing.T) {
	sess, as := testSessionWithSpace(t)
	sub := testSubscription(t, sess, as, 100, 1)

	parked := sess.ParkPublish(1, nil)
	require.False(t, sub.tick()) // keep-alive, caches sequence 1
	resp := mustOutcome(t, parked)
	seq := resp.NotificationMessage.SequenceNumber

	msg, code := sub.Republish(seq)
	require.Equal(t, ua.Good, code)
	assert.Equal(t, seq, msg.SequenceNumber)

	assert.Equal(t, ua.Good, sub.Acknowledge(seq))
	assert.Equal(t, ua.BadSequenceNumberUnknown, sub.Acknowledge(seq))

	_, code = sub.Republish(seq)
	assert.Equal(t, ua.BadMessageNotAvailable, code)
}

func TestMaxNotificationsPerPublishRequeuesExcess(t *testing.T) {
	sess, as := testSessionWithSpace(t)
	sub := testSubscription(t, sess, as, 100, 3)
	sub.MaxNotificationsPerPublish = 2

	for i, name := range []string{"A", "B", "C"} {
		node := addTestVariable(t, as, name, int32(i))
		res := sub.AddMonitoredItem(uint32(20+i), ua.MonitoredItemCreateRequest{
			ItemToMonitor:  ua.ReadValueId{NodeId: node.NodeId, AttributeId: ua.AttributeValue},
			MonitoringMode: ua.MonitoringReporting,
			RequestedParameters: ua.MonitoringParameters{
				ClientHandle:     uint32(100 + i),
				SamplingInterval: -1,
				QueueSize:        4,
				DiscardOldest:    true,
			},
		}, 1)
		require.Equal(t, ua.Good, res.StatusCode)
	}

	// Three first samples report at once; the first Publish carries only
	// the cap's worth and flags that more are waiting.
	parked := sess.ParkPublish(1, nil)
	require.False(t, sub.tick())
	first := mustOutcome(t, parked)
	require.True(t, first.MoreNotifications)
	dcn, err := ua.DecodeDataChangeNotification(first.NotificationMessage.NotificationData[0])
	require.NoError(t, err)
	require.Len(t, dcn.MonitoredItems, 2)

	// The untaken notification was requeued, not dropped: the next
	// Publish carries it.
	parked2 := sess.ParkPublish(2, nil)
	require.False(t, sub.tick())
	second := mustOutcome(t, parked2)
	require.False(t, second.MoreNotifications)
	dcn2, err := ua.DecodeDataChangeNotification(second.NotificationMessage.NotificationData[0])
	require.NoError(t, err)
	require.Len(t, dcn2.MonitoredItems, 1)

	seen := map[uint32]bool{}
	for _, n := range dcn.MonitoredItems {
		seen[n.ClientHandle] = true
	}
	for _, n := range dcn2.MonitoredItems {
		seen[n.ClientHandle] = true
	}
	assert.Equal(t, map[uint32]bool{100: true, 101: true, 102: true}, seen)
}

func TestSequenceNumberWrapsToOne(t *testing.T) {
	sess, as := testSessionWithSpace(t)
	sub := testSubscription(t, sess, as, 100, 3)
	sub.lastSequenceNumber = 0xFFFFFFFF
	assert.Equal(t, uint32(1), sub.nextSequenceNumber())
	assert.Equal(t, uint32(2), sub.nextSequenceNumber())
}

func TestPublishingDisabledSuppressesDelivery(t *testing.T) {
	sess, as := testSessionWithSpace(t)
	sub := testSubscription(t, sess, as, 100, 3)
	node := addTestVariable(t, as, "Flow", float64(2))
	addReportingItem(t, sub, node, 9)
	sub.SetPublishingEnabled(false)

	parked := sess.ParkPublish(1, nil)
	require.False(t, sub.tick())
	select {
	case <-parked.Result:
		t.Fatal("disabled subscription must not deliver")
	default:
	}
}

func TestManagerPublishAcknowledgesAndParks(t *testing.T) {
	cfg := config.Default()
	cfg.MinPublishingIntervalMS = 20
	logger := zap.NewNop()
	m := NewManager(cfg, logger)
	sm := session.NewManager(cfg, logger)
	owner, code := sm.CreateSession(ua.CreateSessionRequest{}, 1)
	require.Equal(t, ua.Good, code)
	as := addressspace.New(logger)

	// Publishing stays disabled so the ticker cannot consume the parked
	// request before the assertions below observe it.
	resp, code := m.CreateSubscription(ua.CreateSubscriptionRequest{
		RequestedPublishingInterval: 20,
		RequestedLifetimeCount:      600,
		RequestedMaxKeepAliveCount:  3,
	}, owner, as)
	require.Equal(t, ua.Good, code)
	defer m.DeleteSubscriptions([]uint32{resp.SubscriptionId}, owner)

	ackResults, parked := m.Publish(ua.PublishRequest{
		SubscriptionAcknowledgements: []ua.SubscriptionAcknowledgement{
			{SubscriptionId: resp.SubscriptionId + 1000, SequenceNumber: 1},
		},
	}, owner)
	require.Len(t, ackResults, 1)
	assert.Equal(t, ua.BadSubscriptionIdInvalid, ackResults[0])
	assert.NotNil(t, parked)
	assert.Equal(t, 1, owner.ParkedPublishCount())
}

func TestManagerDeleteStopsAndForgets(t *testing.T) {
	cfg := config.Default()
	logger := zap.NewNop()
	m := NewManager(cfg, logger)
	sm := session.NewManager(cfg, logger)
	owner, _ := sm.CreateSession(ua.CreateSessionRequest{}, 1)
	as := addressspace.New(logger)

	resp, code := m.CreateSubscription(ua.CreateSubscriptionRequest{
		RequestedPublishingInterval: 50,
		RequestedLifetimeCount:      600,
		RequestedMaxKeepAliveCount:  3,
		PublishingEnabled:           true,
	}, owner, as)
	require.Equal(t, ua.Good, code)
	require.Equal(t, 1, m.Count())

	results := m.DeleteSubscriptions([]uint32{resp.SubscriptionId, resp.SubscriptionId + 1}, owner)
	assert.Equal(t, []ua.StatusCode{ua.Good, ua.BadSubscriptionIdInvalid}, results)
	assert.Equal(t, 0, m.Count())
	assert.Empty(t, owner.SubscriptionSnapshot())
}

func TestTransferRebindsSinkAndReportsAvailableSequences(t *testing.T) {
	cfg := config.Default()
	logger := zap.NewNop()
	m := NewManager(cfg, logger)
	sm := session.NewManager(cfg, logger)
	oldOwner, _ := sm.CreateSession(ua.CreateSessionRequest{}, 1)
	newOwner, _ := sm.CreateSession(ua.CreateSessionRequest{}, 2)
	as := addressspace.New(logger)

	resp, code := m.CreateSubscription(ua.CreateSubscriptionRequest{
		RequestedPublishingInterval: 50,
		RequestedLifetimeCount:      600,
		RequestedMaxKeepAliveCount:  3,
		PublishingEnabled:           true,
	}, oldOwner, as)
	require.Equal(t, ua.Good, code)
	defer m.DeleteSubscriptions([]uint32{resp.SubscriptionId}, newOwner)

	results := m.TransferSubscriptions([]uint32{resp.SubscriptionId, 9999}, newOwner, false)
	require.Len(t, results, 2)
	assert.Equal(t, ua.Good, results[0].StatusCode)
	assert.Equal(t, ua.BadSubscriptionIdInvalid, results[1].StatusCode)
	assert.Contains(t, newOwner.SubscriptionSnapshot(), resp.SubscriptionId)
}
