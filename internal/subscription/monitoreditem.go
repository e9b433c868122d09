// Package subscription implements the Subscription Engine of OPC UA
// Part 4: monitored-item sampling, the DataChangeFilter trigger/deadband
// rules, per-subscription notification queueing, the publishing timer
// state machine, Publish/Republish pairing against a session's parked-
// request FIFO, and sequence-number bookkeeping. Each subscription runs
// its own ticker goroutine; monitored items queue into bounded buffers
// with the Part 4 overflow-bit rules on overrun.
package subscription

import (
	"reflect"
	"sync"
	"time"

	"github.com/ironspan/opcuad/internal/addressspace"
	"github.com/ironspan/opcuad/internal/ua"
)

// MonitoredItem is one server-side sampler bound to a single
// node-attribute (OPC UA Part 4).
type MonitoredItem struct {
	mu sync.Mutex

	Id           uint32
	ClientHandle uint32

	NodeId       ua.NodeId
	AttributeId  ua.AttributeId
	IndexRange   string
	DataEncoding ua.QualifiedName

	Mode MonitoringMode

	SamplingIntervalMS float64
	QueueSize          uint32
	DiscardOldest      bool

	HasFilter bool
	Filter    ua.DataChangeFilter

	hasLastValue   bool
	lastValue      ua.DataValue
	lastSampleTime time.Time
	queue          []ua.MonitoredItemNotification
}

// MonitoringMode mirrors ua.MonitoringMode; kept as a distinct type so
// the engine package can attach its own zero value semantics without
// importing ua.MonitoringMode's wire-only documentation into callers.
type MonitoringMode = ua.MonitoringMode

const (
	ModeDisabled  = ua.MonitoringDisabled
	ModeSampling  = ua.MonitoringSampling
	ModeReporting = ua.MonitoringReporting
)

func newMonitoredItem(id uint32, req ua.MonitoredItemCreateRequest) (*MonitoredItem, float64, uint32) {
	mi := &MonitoredItem{
		Id:                 id,
		ClientHandle:       req.RequestedParameters.ClientHandle,
		NodeId:             req.ItemToMonitor.NodeId,
		AttributeId:        req.ItemToMonitor.AttributeId,
		IndexRange:         req.ItemToMonitor.IndexRange,
		DataEncoding:       req.ItemToMonitor.DataEncoding,
		Mode:               req.MonitoringMode,
		SamplingIntervalMS: req.RequestedParameters.SamplingInterval,
		QueueSize:          req.RequestedParameters.QueueSize,
		DiscardOldest:      req.RequestedParameters.DiscardOldest,
	}
	if mi.QueueSize == 0 {
		mi.QueueSize = 1
	}
	if ua.IsDataChangeFilter(req.RequestedParameters.Filter) {
		if f, err := ua.DecodeDataChangeFilter(req.RequestedParameters.Filter); err == nil {
			mi.HasFilter = true
			mi.Filter = f
		}
	}
	return mi, mi.SamplingIntervalMS, mi.QueueSize
}

func (mi *MonitoredItem) modify(p ua.MonitoringParameters) {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	mi.ClientHandle = p.ClientHandle
	mi.SamplingIntervalMS = p.SamplingInterval
	mi.QueueSize = p.QueueSize
	if mi.QueueSize == 0 {
		mi.QueueSize = 1
	}
	mi.DiscardOldest = p.DiscardOldest
	mi.HasFilter = ua.IsDataChangeFilter(p.Filter)
	if mi.HasFilter {
		if f, err := ua.DecodeDataChangeFilter(p.Filter); err == nil {
			mi.Filter = f
		}
	}
}

func (mi *MonitoredItem) setMode(mode MonitoringMode) {
	mi.mu.Lock()
	mi.Mode = mode
	mi.mu.Unlock()
}

// dueToSample reports whether this item should be re-read on this
// publishing tick, per OPC UA Part 4's sampling-interval rules: zero means
// "every publishing interval", negative means "every tick call" (test
// mode), positive enforces its own interval independent of the
// subscription's publishing cadence.
func (mi *MonitoredItem) dueToSample(now time.Time) bool {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	if mi.Mode == ModeDisabled {
		return false
	}
	if mi.SamplingIntervalMS <= 0 {
		return true
	}
	return now.Sub(mi.lastSampleTime) >= time.Duration(mi.SamplingIntervalMS)*time.Millisecond
}

// sample re-reads the node attribute and, if the result passes the
// configured filter against the last sample, queues a notification
// (Reporting mode) or silently updates last_value (Sampling mode), per
// OPC UA Part 4. Returns true if a notification was queued.
func (mi *MonitoredItem) sample(as *addressspace.AddressSpace, now time.Time) bool {
	dv := as.ReadAttribute(mi.NodeId, mi.AttributeId)

	mi.mu.Lock()
	defer mi.mu.Unlock()
	mi.lastSampleTime = now

	report := !mi.hasLastValue || mi.changed(mi.lastValue, dv)
	mi.lastValue = dv
	mi.hasLastValue = true

	if mi.Mode != ModeReporting || !report {
		return false
	}

	mi.enqueueLocked(ua.MonitoredItemNotification{ClientHandle: mi.ClientHandle, Value: dv})
	return true
}

// changed implements the DataChangeFilter trigger/deadband rules of
// OPC UA Part 4.
func (mi *MonitoredItem) changed(old, next ua.DataValue) bool {
	trigger := ua.TriggerStatusValue
	deadband := ua.DeadbandNone
	var deadbandValue float64
	if mi.HasFilter {
		trigger = mi.Filter.Trigger
		deadband = mi.Filter.DeadbandType
		deadbandValue = mi.Filter.DeadbandValue
	}

	if old.Status != next.Status {
		return true
	}
	if trigger == ua.TriggerStatus {
		return false
	}

	valueChanged := !reflect.DeepEqual(old.Value, next.Value)
	if valueChanged && deadband != ua.DeadbandNone {
		if oldF, ok := asFloat(old.Value.Value); ok {
			if newF, ok2 := asFloat(next.Value.Value); ok2 {
				diff := newF - oldF
				if diff < 0 {
					diff = -diff
				}
				if deadband == ua.DeadbandAbsolute && diff <= deadbandValue {
					valueChanged = false
				}
				// Percent deadband needs the variable's EU range, which
				// this server's address space does not model; treat it
				// as Absolute against deadbandValue directly rather than
				// silently ignoring the filter.
				if deadband == ua.DeadbandPercent && diff <= deadbandValue {
					valueChanged = false
				}
			}
		}
	}
	if valueChanged {
		return true
	}
	if trigger == ua.TriggerStatusValue {
		return false
	}
	return old.SourceTimestamp != next.SourceTimestamp
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	default:
		return 0, false
	}
}

// enqueueLocked appends to the notification queue, applying the
// overflow rule: if DiscardOldest, drop the head and set the overflow
// bit on the new entry; else drop the new entry and set the overflow bit
// on the most recent queued entry. Caller holds mi.mu.
func (mi *MonitoredItem) enqueueLocked(n ua.MonitoredItemNotification) {
	if uint32(len(mi.queue)) < mi.QueueSize {
		mi.queue = append(mi.queue, n)
		return
	}
	if mi.DiscardOldest {
		mi.queue = mi.queue[1:]
		n.Value.Status = n.Value.Status.WithOverflow()
		n.Value.HasStatus = true
		mi.queue = append(mi.queue, n)
		return
	}
	last := &mi.queue[len(mi.queue)-1]
	last.Value.Status = last.Value.Status.WithOverflow()
	last.Value.HasStatus = true
}

// drainUpTo removes and returns up to n queued notifications in queue
// order (all of them when n < 0), reporting whether any remain queued
// afterwards.
func (mi *MonitoredItem) drainUpTo(n int) ([]ua.MonitoredItemNotification, bool) {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	if len(mi.queue) == 0 {
		return nil, false
	}
	if n < 0 || n >= len(mi.queue) {
		out := mi.queue
		mi.queue = nil
		return out, false
	}
	out := mi.queue[:n:n]
	mi.queue = append([]ua.MonitoredItemNotification(nil), mi.queue[n:]...)
	return out, true
}

func (mi *MonitoredItem) hasQueued() bool {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return len(mi.queue) > 0
}

func (mi *MonitoredItem) snapshotMode() MonitoringMode {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return mi.Mode
}
