package ua

import "time"

// epoch is the OPC UA epoch, 1601-01-01T00:00:00Z, per OPC UA Part 6.
var epoch = time.Date(1601, time.January, 1, 0, 0, 0, 0, time.UTC)

// DateTime is int64 100-nanosecond ticks since epoch. Zero means null;
// a value equal to int64's max represents "never expires".
type DateTime int64

const NullDateTime DateTime = 0

// Now returns the current wall-clock time as a DateTime.
func Now() DateTime { return FromTime(time.Now()) }

func FromTime(t time.Time) DateTime {
	return DateTime((t.Unix()-epoch.Unix())*10_000_000 + int64(t.Nanosecond())/100)
}

func (d DateTime) Time() time.Time {
	ticks := int64(d)
	return time.Unix(epoch.Unix()+ticks/10_000_000, (ticks%10_000_000)*100).UTC()
}

func (d DateTime) IsNull() bool { return d == NullDateTime }
