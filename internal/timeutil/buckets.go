package timeutil

import "time"

const secondsPerDay = 86400

// StartOfDayUTC floors a Unix timestamp to 00:00:00 UTC of its calendar day.
// The result is independent of the process timezone.
func StartOfDayUTC(ts int64) int64 {
	t := time.Unix(ts, 0).UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.Unix()
}

// EndOfDayUTC returns 23:59:59 UTC of the timestamp's calendar day.
func EndOfDayUTC(ts int64) int64 {
	return StartOfDayUTC(ts) + secondsPerDay - 1
}

// DailyBuckets enumerates every UTC day boundary from creation's day through
// now's day, ascending. Creation is clamped to the Unix epoch and now to the
// supplied wall clock, so tokens with a bogus or future first-seen time
// degrade to a single bucket for today.
func DailyBuckets(creation, now int64) []int64 {
	min := creation
	if min < 0 {
		min = 0
	}
	max := now
	if wall := time.Now().Unix(); max > wall {
		max = wall
	}

	if min >= max {
		return []int64{StartOfDayUTC(max)}
	}

	var buckets []int64
	day := StartOfDayUTC(min)
	end := StartOfDayUTC(max)
	for day <= end {
		buckets = append(buckets, day)
		day += secondsPerDay
	}
	return buckets
}
