package inter

import (
	"time"
)

// Timestamp is a protocol time in unix seconds. Reward schedules, settlement
// checkpoints and report times are all expressed in whole seconds, the same
// granularity the reward contracts observed on chain.
type Timestamp uint64

const (
	// Day is the length of one emission accounting day in seconds.
	Day Timestamp = 24 * 60 * 60
	// Year is the length of one halving epoch in seconds (365 days, no leap handling).
	Year Timestamp = 365 * Day
)

// FromTime converts a wall-clock time into a Timestamp, truncating sub-second
// precision. Times before the unix epoch map to zero.
func FromTime(t time.Time) Timestamp {
	sec := t.Unix()
	if sec < 0 {
		return 0
	}
	return Timestamp(sec)
}

// Time converts the Timestamp back into a UTC time.Time.
func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t), 0).UTC()
}

// Add returns t shifted by d, truncated to whole seconds.
func (t Timestamp) Add(d time.Duration) Timestamp {
	return t + Timestamp(d/time.Second)
}

// Days returns the number of whole days in t when t is used as a duration.
func (t Timestamp) Days() uint64 {
	return uint64(t / Day)
}
