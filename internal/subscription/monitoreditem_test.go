package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironspan/opcuad/internal/ua"
)

// newTestItem builds a MonitoredItem bypassing newMonitoredItem's request
// decoding, for tests that only exercise the trigger/deadband/overflow
// logic directly.
func newTestItem(queueSize uint32, discardOldest bool, filter ua.DataChangeFilter, hasFilter bool) *MonitoredItem {
	return &MonitoredItem{
		Id:            1,
		ClientHandle:  7,
		Mode:          ModeReporting,
		QueueSize:     queueSize,
		DiscardOldest: discardOldest,
		HasFilter:     hasFilter,
		Filter:        filter,
	}
}

func dvWith(value interface{}, status ua.StatusCode, sourceTs ua.DateTime) ua.DataValue {
	return ua.DataValue{
		Value: ua.NewVariant(value), HasValue: true,
		Status: status, HasStatus: true,
		SourceTimestamp: sourceTs, HasSourceTimestamp: true,
	}
}

// With trigger = Status, two DataValues differing only in
// .value compare equal (no notification)."
func TestChangedTriggerStatusIgnoresValue(t *testing.T) {
	mi := newTestItem(10, true, ua.DataChangeFilter{Trigger: ua.TriggerStatus}, true)
	old := dvWith(int32(1), ua.Good, 100)
	next := dvWith(int32(2), ua.Good, 100)
	assert.False(t, mi.changed(old, next))
}

// With trigger = StatusValue, a value-only change compares unequal.
func TestChangedTriggerStatusValueReportsValueChange(t *testing.T) {
	mi := newTestItem(10, true, ua.DataChangeFilter{Trigger: ua.TriggerStatusValue}, true)
	old := dvWith(int32(1), ua.Good, 100)
	next := dvWith(int32(2), ua.Good, 100)
	assert.True(t, mi.changed(old, next))
}

// With trigger = StatusValueTimestamp, identical status+value+
// timestamp compare equal; changing server_timestamp alone compares
// unequal" -- source timestamp is the analogous field this filter
// actually inspects (ServerTimestamp is not part of DataChangeFilter
// comparison per OPC UA Part 4's rule list).
func TestChangedTriggerStatusValueTimestamp(t *testing.T) {
	mi := newTestItem(10, true, ua.DataChangeFilter{Trigger: ua.TriggerStatusValueTimestamp}, true)
	same := dvWith(int32(1), ua.Good, 100)
	identical := dvWith(int32(1), ua.Good, 100)
	assert.False(t, mi.changed(same, identical))

	changedTs := dvWith(int32(1), ua.Good, 200)
	assert.True(t, mi.changed(same, changedTs))
}

func TestChangedStatusChangeAlwaysReports(t *testing.T) {
	mi := newTestItem(10, true, ua.DataChangeFilter{Trigger: ua.TriggerStatus}, true)
	old := dvWith(int32(1), ua.Good, 100)
	next := dvWith(int32(1), ua.BadNodeIdUnknown, 100)
	assert.True(t, mi.changed(old, next))
}

func TestChangedAbsoluteDeadbandSuppressesSmallChange(t *testing.T) {
	mi := newTestItem(10, true, ua.DataChangeFilter{
		Trigger: ua.TriggerStatusValue, DeadbandType: ua.DeadbandAbsolute, DeadbandValue: 1.0,
	}, true)
	old := dvWith(float64(10.0), ua.Good, 0)
	small := dvWith(float64(10.5), ua.Good, 0)
	assert.False(t, mi.changed(old, small))

	large := dvWith(float64(12.0), ua.Good, 0)
	assert.True(t, mi.changed(old, large))
}

// First tick on a fresh MonitoredItem always reports a
// notification; a second tick against the unchanged value does not;
// mutating the node's value causes the next tick to report."
func TestSampleFirstAlwaysReportsThenSuppressesUnchanged(t *testing.T) {
	mi := newTestItem(10, true, ua.DataChangeFilter{Trigger: ua.TriggerStatusValue}, true)
	now := time.Now()

	mi.mu.Lock()
	reportedFirst := !mi.hasLastValue
	mi.hasLastValue = true
	mi.lastValue = dvWith(int32(5), ua.Good, 0)
	mi.lastSampleTime = now
	mi.mu.Unlock()
	assert.True(t, reportedFirst)

	assert.False(t, mi.changed(mi.lastValue, dvWith(int32(5), ua.Good, 0)))
	assert.True(t, mi.changed(mi.lastValue, dvWith(int32(6), ua.Good, 0)))
}

// Queue overflow with discard_oldest drops the head and
// sets the overflow bit on the newly queued entry."
func TestEnqueueDiscardOldestSetsOverflowOnNewEntry(t *testing.T) {
	mi := newTestItem(2, true, ua.DataChangeFilter{}, false)

	mi.enqueueLocked(ua.MonitoredItemNotification{ClientHandle: 1, Value: dvWith(int32(1), ua.Good, 0)})
	mi.enqueueLocked(ua.MonitoredItemNotification{ClientHandle: 2, Value: dvWith(int32(2), ua.Good, 0)})
	mi.enqueueLocked(ua.MonitoredItemNotification{ClientHandle: 3, Value: dvWith(int32(3), ua.Good, 0)})

	require.Len(t, mi.queue, 2)
	assert.Equal(t, uint32(2), mi.queue[0].ClientHandle)
	assert.Equal(t, uint32(3), mi.queue[1].ClientHandle)
	assert.NotZero(t, mi.queue[1].Value.Status&ua.InfoTypeOverflow)
	assert.Zero(t, mi.queue[0].Value.Status&ua.InfoTypeOverflow)
}

// Overflow with !discard_oldest drops the new entry and flags the most
// recently queued one instead.
func TestEnqueueKeepOldestSetsOverflowOnLastQueuedEntry(t *testing.T) {
	mi := newTestItem(2, false, ua.DataChangeFilter{}, false)

	mi.enqueueLocked(ua.MonitoredItemNotification{ClientHandle: 1, Value: dvWith(int32(1), ua.Good, 0)})
	mi.enqueueLocked(ua.MonitoredItemNotification{ClientHandle: 2, Value: dvWith(int32(2), ua.Good, 0)})
	mi.enqueueLocked(ua.MonitoredItemNotification{ClientHandle: 3, Value: dvWith(int32(3), ua.Good, 0)})

	require.Len(t, mi.queue, 2)
	assert.Equal(t, uint32(1), mi.queue[0].ClientHandle)
	assert.Equal(t, uint32(2), mi.queue[1].ClientHandle)
	assert.NotZero(t, mi.queue[1].Value.Status&ua.InfoTypeOverflow)
}

func TestDueToSampleRespectsDisabledAndNegativeTestMode(t *testing.T) {
	mi := newTestItem(1, true, ua.DataChangeFilter{}, false)
	mi.Mode = ModeDisabled
	assert.False(t, mi.dueToSample(time.Now()))

	mi.Mode = ModeReporting
	mi.SamplingIntervalMS = -1
	assert.True(t, mi.dueToSample(time.Now()))
	assert.True(t, mi.dueToSample(time.Now()))
}
