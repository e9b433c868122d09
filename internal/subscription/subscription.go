package subscription

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ironspan/opcuad/internal/addressspace"
	"github.com/ironspan/opcuad/internal/session"
	"github.com/ironspan/opcuad/internal/ua"
)

// State is the subscription's own state machine (OPC UA Part 4):
// Creating -> Normal <-> Late <-> KeepAlive -> Closed.
type State int

const (
	StateCreating State = iota
	StateNormal
	StateLate
	StateKeepAlive
	StateClosed
)

// Subscription is one CreateSubscription'd object (OPC UA Part 4).
type Subscription struct {
	mu sync.Mutex

	Id                         uint32
	SessionKey                 interface{}
	PublishingIntervalMS       float64
	LifetimeCount              uint32
	MaxKeepAliveCount          uint32
	MaxNotificationsPerPublish uint32
	Priority                   byte
	PublishingEnabled          bool

	state State

	items map[uint32]*MonitoredItem

	lastSequenceNumber uint32
	retransmission     map[uint32]ua.NotificationMessage

	keepAliveCounter uint32
	lifetimeCounter  uint32

	as     *addressspace.AddressSpace
	sink   *session.Session
	logger *zap.Logger

	stop chan struct{}
	done chan struct{}

	onTimeout func(id uint32)
}

func newSubscription(id uint32, req ua.CreateSubscriptionRequest, as *addressspace.AddressSpace, sink *session.Session, logger *zap.Logger) *Subscription {
	return &Subscription{
		Id:                         id,
		PublishingIntervalMS:       req.RequestedPublishingInterval,
		LifetimeCount:              req.RequestedLifetimeCount,
		MaxKeepAliveCount:          req.RequestedMaxKeepAliveCount,
		MaxNotificationsPerPublish: req.MaxNotificationsPerPublish,
		Priority:                   req.Priority,
		PublishingEnabled:          req.PublishingEnabled,
		state:                      StateCreating,
		items:                      make(map[uint32]*MonitoredItem),
		retransmission:             make(map[uint32]ua.NotificationMessage),
		as:                         as,
		sink:                       sink,
		logger:                     logger,
		stop:                       make(chan struct{}),
		done:                       make(chan struct{}),
	}
}

// Run starts the publishing timer loop; the timer and the session's
// Publish handler contend on the subscription lock. Exits when Stop is
// called or the subscription times out.
func (s *Subscription) Run() {
	defer close(s.done)
	interval := time.Duration(s.PublishingIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if s.tick() {
				return
			}
		}
	}
}

// Stop halts the publishing loop and blocks until it has exited.
func (s *Subscription) Stop() {
	close(s.stop)
	<-s.done
}

// SetPublishingEnabled implements OPC UA Part 4's SetPublishingMode.
func (s *Subscription) SetPublishingEnabled(enabled bool) {
	s.mu.Lock()
	s.PublishingEnabled = enabled
	s.mu.Unlock()
}

// Modify implements OPC UA Part 4's ModifySubscription.
func (s *Subscription) Modify(req ua.ModifySubscriptionRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PublishingIntervalMS = req.RequestedPublishingInterval
	s.LifetimeCount = req.RequestedLifetimeCount
	s.MaxKeepAliveCount = req.RequestedMaxKeepAliveCount
	s.MaxNotificationsPerPublish = req.MaxNotificationsPerPublish
	s.Priority = req.Priority
}

// AddMonitoredItem creates one monitored item, requiring the target node
// to exist at creation time (OPC UA Part 4 invariant).
func (s *Subscription) AddMonitoredItem(id uint32, req ua.MonitoredItemCreateRequest, minSamplingMS float64) ua.MonitoredItemCreateResult {
	if _, ok := s.as.FindNode(req.ItemToMonitor.NodeId); !ok {
		return ua.MonitoredItemCreateResult{StatusCode: ua.BadNodeIdUnknown}
	}

	mi, _, revisedQueue := newMonitoredItem(id, req)
	if mi.SamplingIntervalMS > 0 && mi.SamplingIntervalMS < minSamplingMS {
		mi.SamplingIntervalMS = minSamplingMS
	}

	s.mu.Lock()
	s.items[id] = mi
	s.mu.Unlock()

	return ua.MonitoredItemCreateResult{
		StatusCode:              ua.Good,
		MonitoredItemId:         id,
		RevisedSamplingInterval: mi.SamplingIntervalMS,
		RevisedQueueSize:        revisedQueue,
	}
}

func (s *Subscription) ModifyMonitoredItem(id uint32, p ua.MonitoringParameters) ua.MonitoredItemModifyResult {
	s.mu.Lock()
	mi, ok := s.items[id]
	s.mu.Unlock()
	if !ok {
		return ua.MonitoredItemModifyResult{StatusCode: ua.BadMonitoredItemIdInvalid}
	}
	mi.modify(p)
	return ua.MonitoredItemModifyResult{StatusCode: ua.Good, RevisedSamplingInterval: mi.SamplingIntervalMS, RevisedQueueSize: mi.QueueSize}
}

func (s *Subscription) DeleteMonitoredItems(ids []uint32) []ua.StatusCode {
	results := make([]ua.StatusCode, len(ids))
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range ids {
		if _, ok := s.items[id]; !ok {
			results[i] = ua.BadMonitoredItemIdInvalid
			continue
		}
		delete(s.items, id)
		results[i] = ua.Good
	}
	return results
}

func (s *Subscription) SetMonitoringMode(mode ua.MonitoringMode, ids []uint32) []ua.StatusCode {
	results := make([]ua.StatusCode, len(ids))
	s.mu.Lock()
	items := make([]*MonitoredItem, len(ids))
	for i, id := range ids {
		if mi, ok := s.items[id]; ok {
			items[i] = mi
		} else {
			results[i] = ua.BadMonitoredItemIdInvalid
		}
	}
	s.mu.Unlock()
	for i, mi := range items {
		if mi != nil {
			mi.setMode(mode)
			results[i] = ua.Good
		}
	}
	return results
}

func (s *Subscription) nextSequenceNumber() uint32 {
	s.lastSequenceNumber++
	if s.lastSequenceNumber == 0 {
		s.lastSequenceNumber = 1
	}
	return s.lastSequenceNumber
}

// Acknowledge evicts a sequence number from the retransmission queue
// (OPC UA Part 4 Publish pairing).
func (s *Subscription) Acknowledge(seq uint32) ua.StatusCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.retransmission[seq]; !ok {
		return ua.BadSequenceNumberUnknown
	}
	delete(s.retransmission, seq)
	return ua.Good
}

// Transfer reassigns this subscription's Publish sink to newSink, the
// core of TransferSubscriptions (OPC UA Part 4): a client that reconnects
// with a new session can resume receiving this subscription's
// notifications without recreating it. The id is removed from the old
// owning session's SubscriptionIds, so that session's later CloseSession,
// channel teardown or timeout no longer deletes this subscription.
// Manager.DeleteSubscriptions does not check ownership: an explicit
// DeleteSubscriptions naming this id still deletes it.
func (s *Subscription) Transfer(newSink *session.Session) {
	s.mu.Lock()
	old := s.sink
	s.sink = newSink
	s.mu.Unlock()
	if old != nil && old != newSink {
		old.RemoveSubscription(s.Id)
	}
}

// AvailableSequenceNumbers reports the retransmission queue's current
// keys, the set TransferSubscriptions echoes back per OPC UA Part 4 so the
// new session knows what it can Republish.
func (s *Subscription) AvailableSequenceNumbers() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint32, 0, len(s.retransmission))
	for seq := range s.retransmission {
		out = append(out, seq)
	}
	return out
}

// Republish returns a cached NotificationMessage (OPC UA Part 4).
func (s *Subscription) Republish(seq uint32) (ua.NotificationMessage, ua.StatusCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.retransmission[seq]
	if !ok {
		return ua.NotificationMessage{}, ua.BadMessageNotAvailable
	}
	return msg, ua.Good
}

// tick executes one publishing-interval iteration, per OPC UA Part 4's six
// numbered steps. Returns true if the subscription has timed out and its
// loop should exit.
func (s *Subscription) tick() bool {
	now := time.Now()

	s.mu.Lock()
	enabled := s.PublishingEnabled
	var itemList []*MonitoredItem
	for _, mi := range s.items {
		itemList = append(itemList, mi)
	}
	s.mu.Unlock()

	queued := false
	for _, mi := range itemList {
		if mi.snapshotMode() == ModeDisabled {
			continue
		}
		if !mi.dueToSample(now) {
			if mi.hasQueued() {
				queued = true
			}
			continue
		}
		if enabled {
			mi.sample(s.as, now)
		} else {
			// Sampling continues even when publishing is disabled so the
			// first re-enabled tick doesn't falsely report a "change";
			// reporting into the notification queue does not.
			mi.mu.Lock()
			mi.lastSampleTime = now
			mi.mu.Unlock()
		}
		if mi.hasQueued() {
			queued = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !enabled {
		return false
	}

	if queued {
		// Items keep their queues until a Publish is available to carry
		// them, so nothing reported during a Late stretch is lost.
		if s.sink.ParkedPublishCount() > 0 {
			s.serviceLocked(itemList, false)
			s.state = StateNormal
			s.keepAliveCounter = 0
			s.lifetimeCounter = 0
			return false
		}
		s.state = StateLate
		s.lifetimeCounter++
	} else {
		s.keepAliveCounter++
		if s.keepAliveCounter >= s.MaxKeepAliveCount {
			if s.sink.ParkedPublishCount() > 0 {
				s.serviceLocked(nil, true)
				s.state = StateKeepAlive
				s.keepAliveCounter = 0
				s.lifetimeCounter = 0
				return false
			}
			s.lifetimeCounter++
		}
	}

	if s.LifetimeCount > 0 && s.lifetimeCounter >= s.LifetimeCount {
		s.state = StateClosed
		if s.onTimeout != nil {
			s.onTimeout(s.Id)
		}
		return true
	}
	return false
}

// serviceLocked consumes one parked Publish and delivers a
// PublishResponse draining up to MaxNotificationsPerPublish
// notifications from items (or nothing, for a keep-alive). Anything past
// the cap stays queued on its originating item for the next Publish,
// with MoreNotifications set; the cap only bounds what one response
// carries, it never discards. Caller holds s.mu.
func (s *Subscription) serviceLocked(items []*MonitoredItem, keepAlive bool) {
	parked, ok := s.sink.PopParkedPublish()
	if !ok {
		return
	}

	seq := s.nextSequenceNumber()
	msg := ua.NotificationMessage{SequenceNumber: seq, PublishTime: ua.Now()}
	more := false
	if !keepAlive {
		limit := int(s.MaxNotificationsPerPublish)
		var notifications []ua.MonitoredItemNotification
		for _, mi := range items {
			take := -1
			if limit > 0 {
				take = limit - len(notifications)
				if take <= 0 {
					if mi.hasQueued() {
						more = true
					}
					continue
				}
			}
			batch, left := mi.drainUpTo(take)
			notifications = append(notifications, batch...)
			if left {
				more = true
			}
		}
		dcn := ua.DataChangeNotification{MonitoredItems: notifications}
		msg.NotificationData = []ua.ExtensionObject{dcn.ToExtensionObject()}
	}

	s.retransmission[seq] = msg

	available := make([]uint32, 0, len(s.retransmission))
	for k := range s.retransmission {
		available = append(available, k)
	}

	resp := ua.PublishResponse{
		SubscriptionId:           s.Id,
		AvailableSequenceNumbers: available,
		MoreNotifications:        more,
		NotificationMessage:      msg,
	}
	// parked.Deliver stamps resp.Results from the acknowledgement outcomes
	// recorded when this Publish was parked (OPC UA Part 4).
	parked.Deliver(resp, nil)
}
