package subscription

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ironspan/opcuad/internal/addressspace"
	"github.com/ironspan/opcuad/internal/config"
	"github.com/ironspan/opcuad/internal/session"
	"github.com/ironspan/opcuad/internal/ua"
)

// Manager owns every live Subscription, keyed by id, across all
// sessions: a map of running publishing loops plus an atomic id counter.
type Manager struct {
	mu   sync.RWMutex
	subs map[uint32]*Subscription

	nextId uint32

	cfg    *config.Config
	logger *zap.Logger
}

func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{subs: make(map[uint32]*Subscription), cfg: cfg, logger: logger}
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

func (m *Manager) minSamplingIntervalMS() float64 {
	if m.cfg != nil && m.cfg.MinSamplingIntervalMS > 0 {
		return float64(m.cfg.MinSamplingIntervalMS)
	}
	return 50
}

func (m *Manager) minPublishingIntervalMS() float64 {
	if m.cfg != nil && m.cfg.MinPublishingIntervalMS > 0 {
		return float64(m.cfg.MinPublishingIntervalMS)
	}
	return 50
}

// CreateSubscription implements OPC UA Part 4 CreateSubscription: revise
// the requested timing against server minimums, allocate an id, bind the
// subscription to owner's parked-Publish FIFO and to as for sampling, and
// start its publishing timer goroutine.
func (m *Manager) CreateSubscription(req ua.CreateSubscriptionRequest, owner *session.Session, as *addressspace.AddressSpace) (ua.CreateSubscriptionResponse, ua.StatusCode) {
	if m.cfg != nil && m.cfg.MaxSubscriptionsPerSession > 0 && len(owner.SubscriptionSnapshot()) >= m.cfg.MaxSubscriptionsPerSession {
		return ua.CreateSubscriptionResponse{}, ua.BadTooManySubscriptions
	}

	revised := req
	if revised.RequestedPublishingInterval < m.minPublishingIntervalMS() {
		revised.RequestedPublishingInterval = m.minPublishingIntervalMS()
	}
	if revised.RequestedMaxKeepAliveCount == 0 {
		revised.RequestedMaxKeepAliveCount = 3
	}
	if revised.RequestedLifetimeCount < revised.RequestedMaxKeepAliveCount*3 {
		revised.RequestedLifetimeCount = revised.RequestedMaxKeepAliveCount * 3
	}

	id := atomic.AddUint32(&m.nextId, 1)
	sub := newSubscription(id, revised, as, owner, m.logger)
	sub.onTimeout = m.terminate

	m.mu.Lock()
	m.subs[id] = sub
	m.mu.Unlock()

	owner.AddSubscription(id)
	go sub.Run()

	m.logger.Info("subscription created", zap.Uint32("subscription_id", id))

	return ua.CreateSubscriptionResponse{
		SubscriptionId:            id,
		RevisedPublishingInterval: revised.RequestedPublishingInterval,
		RevisedLifetimeCount:      revised.RequestedLifetimeCount,
		RevisedMaxKeepAliveCount:  revised.RequestedMaxKeepAliveCount,
	}, ua.Good
}

func (m *Manager) Lookup(id uint32) (*Subscription, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subs[id]
	return s, ok
}

func (m *Manager) ModifySubscription(req ua.ModifySubscriptionRequest) (ua.ModifySubscriptionResponse, ua.StatusCode) {
	sub, ok := m.Lookup(req.SubscriptionId)
	if !ok {
		return ua.ModifySubscriptionResponse{}, ua.BadSubscriptionIdInvalid
	}
	if req.RequestedPublishingInterval < m.minPublishingIntervalMS() {
		req.RequestedPublishingInterval = m.minPublishingIntervalMS()
	}
	sub.Modify(req)
	return ua.ModifySubscriptionResponse{
		RevisedPublishingInterval: req.RequestedPublishingInterval,
		RevisedLifetimeCount:      req.RequestedLifetimeCount,
		RevisedMaxKeepAliveCount:  req.RequestedMaxKeepAliveCount,
	}, ua.Good
}

func (m *Manager) SetPublishingMode(enabled bool, ids []uint32) []ua.StatusCode {
	results := make([]ua.StatusCode, len(ids))
	for i, id := range ids {
		sub, ok := m.Lookup(id)
		if !ok {
			results[i] = ua.BadSubscriptionIdInvalid
			continue
		}
		sub.SetPublishingEnabled(enabled)
		results[i] = ua.Good
	}
	return results
}

// DeleteSubscriptions implements OPC UA Part 4 DeleteSubscriptions, stopping
// each subscription's timer goroutine and removing it from both this
// manager and owner's subscription set.
func (m *Manager) DeleteSubscriptions(ids []uint32, owner *session.Session) []ua.StatusCode {
	results := make([]ua.StatusCode, len(ids))
	for i, id := range ids {
		m.mu.Lock()
		sub, ok := m.subs[id]
		if ok {
			delete(m.subs, id)
		}
		m.mu.Unlock()
		if !ok {
			results[i] = ua.BadSubscriptionIdInvalid
			continue
		}
		sub.Stop()
		if owner != nil {
			owner.RemoveSubscription(id)
		}
		results[i] = ua.Good
	}
	return results
}

// terminate is the onTimeout callback a Subscription fires against
// itself (OPC UA Part 4 step 6: "terminate the subscription with
// BadTimeout"); the manager forgets it, while the id stays in its owning
// session's set. That session's later CloseSession, channel teardown or
// reaper expiry (session.Manager.ReapExpired) passes the id to
// DeleteSubscriptions, which reports BadSubscriptionIdInvalid for it — a
// timed-out but not yet session-deleted subscription simply stops
// publishing.
func (m *Manager) terminate(id uint32) {
	m.mu.Lock()
	delete(m.subs, id)
	m.mu.Unlock()
	m.logger.Warn("subscription timed out", zap.Uint32("subscription_id", id))
}

// CreateMonitoredItems implements OPC UA Part 4 CreateMonitoredItems.
func (m *Manager) CreateMonitoredItems(req ua.CreateMonitoredItemsRequest) (ua.CreateMonitoredItemsResponse, ua.StatusCode) {
	sub, ok := m.Lookup(req.SubscriptionId)
	if !ok {
		return ua.CreateMonitoredItemsResponse{}, ua.BadSubscriptionIdInvalid
	}
	results := make([]ua.MonitoredItemCreateResult, len(req.ItemsToCreate))
	for i, item := range req.ItemsToCreate {
		id := atomic.AddUint32(&m.nextId, 1) + itemIdOffset
		results[i] = sub.AddMonitoredItem(id, item, m.minSamplingIntervalMS())
	}
	return ua.CreateMonitoredItemsResponse{Results: results}, ua.Good
}

// itemIdOffset keeps monitored-item ids from colliding with subscription
// ids in diagnostics logging even though both share the same counter;
// purely cosmetic, the two id spaces are never compared to each other.
const itemIdOffset = 1 << 24

func (m *Manager) ModifyMonitoredItems(req ua.ModifyMonitoredItemsRequest) (ua.ModifyMonitoredItemsResponse, ua.StatusCode) {
	sub, ok := m.Lookup(req.SubscriptionId)
	if !ok {
		return ua.ModifyMonitoredItemsResponse{}, ua.BadSubscriptionIdInvalid
	}
	results := make([]ua.MonitoredItemModifyResult, len(req.ItemsToModify))
	for i, item := range req.ItemsToModify {
		results[i] = sub.ModifyMonitoredItem(item.MonitoredItemId, item.RequestedParameters)
	}
	return ua.ModifyMonitoredItemsResponse{Results: results}, ua.Good
}

func (m *Manager) DeleteMonitoredItems(req ua.DeleteMonitoredItemsRequest) (ua.DeleteMonitoredItemsResponse, ua.StatusCode) {
	sub, ok := m.Lookup(req.SubscriptionId)
	if !ok {
		return ua.DeleteMonitoredItemsResponse{}, ua.BadSubscriptionIdInvalid
	}
	return ua.DeleteMonitoredItemsResponse{Results: sub.DeleteMonitoredItems(req.MonitoredItemIds)}, ua.Good
}

func (m *Manager) SetMonitoringMode(req ua.SetMonitoringModeRequest) (ua.SetMonitoringModeResponse, ua.StatusCode) {
	sub, ok := m.Lookup(req.SubscriptionId)
	if !ok {
		return ua.SetMonitoringModeResponse{}, ua.BadSubscriptionIdInvalid
	}
	return ua.SetMonitoringModeResponse{Results: sub.SetMonitoringMode(req.MonitoringMode, req.MonitoredItemIds)}, ua.Good
}

// Publish implements OPC UA Part 4 Publish pairing: remove acknowledged
// sequence numbers from every named subscription, then park the request
// against owner so any of its subscriptions' next tick may consume it.
// Callers block on the returned ParkedPublish.Result for the eventual
// PublishResponse.
func (m *Manager) Publish(req ua.PublishRequest, owner *session.Session) ([]ua.StatusCode, *session.ParkedPublish) {
	ackResults := make([]ua.StatusCode, len(req.SubscriptionAcknowledgements))
	for i, ack := range req.SubscriptionAcknowledgements {
		sub, ok := m.Lookup(ack.SubscriptionId)
		if !ok {
			ackResults[i] = ua.BadSubscriptionIdInvalid
			continue
		}
		ackResults[i] = sub.Acknowledge(ack.SequenceNumber)
	}
	parked := owner.ParkPublish(req.RequestHeader.RequestHandle, ackResults)
	return ackResults, parked
}

// TransferSubscriptions implements OPC UA Part 4 TransferSubscriptions:
// rebind each named subscription's Publish sink to newOwner so a client
// that reconnected under a fresh session can keep receiving it.
// sendInitialValues is accepted but not acted on: this server's
// MonitoredItems report only on change, so there is no cached "current
// value" to resend outside of a normal sampling tick.
func (m *Manager) TransferSubscriptions(ids []uint32, newOwner *session.Session, sendInitialValues bool) []ua.TransferResult {
	results := make([]ua.TransferResult, len(ids))
	for i, id := range ids {
		sub, ok := m.Lookup(id)
		if !ok {
			results[i] = ua.TransferResult{StatusCode: ua.BadSubscriptionIdInvalid}
			continue
		}
		sub.Transfer(newOwner)
		newOwner.AddSubscription(id)
		results[i] = ua.TransferResult{StatusCode: ua.Good, AvailableSequenceNumbers: sub.AvailableSequenceNumbers()}
	}
	return results
}

// Republish implements OPC UA Part 4 Republish.
func (m *Manager) Republish(req ua.RepublishRequest) (ua.RepublishResponse, ua.StatusCode) {
	sub, ok := m.Lookup(req.SubscriptionId)
	if !ok {
		return ua.RepublishResponse{}, ua.BadSubscriptionIdInvalid
	}
	msg, code := sub.Republish(req.RetransmitSequenceNumber)
	if code != ua.Good {
		return ua.RepublishResponse{}, code
	}
	return ua.RepublishResponse{NotificationMessage: msg}, ua.Good
}
