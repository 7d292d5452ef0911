package timeutil

import (
	"testing"
	"time"
)

func TestStartOfDayUTC(t *testing.T) {
	// 2024-03-15T17:45:12Z
	ts := time.Date(2024, 3, 15, 17, 45, 12, 0, time.UTC).Unix()
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC).Unix()
	if got := StartOfDayUTC(ts); got != want {
		t.Fatalf("StartOfDayUTC: got %d, want %d", got, want)
	}

	// Already at midnight stays put.
	if got := StartOfDayUTC(want); got != want {
		t.Fatalf("midnight not idempotent: got %d, want %d", got, want)
	}
}

func TestStartOfDayUTC_IgnoresLocalZone(t *testing.T) {
	// A timestamp late in the UTC day must floor to the same UTC day even
	// for processes running east of Greenwich.
	ts := time.Date(2024, 3, 15, 23, 30, 0, 0, time.UTC).Unix()
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC).Unix()
	if got := StartOfDayUTC(ts); got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
}

func TestEndOfDayUTC(t *testing.T) {
	ts := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC).Unix()
	want := time.Date(2024, 3, 15, 23, 59, 59, 0, time.UTC).Unix()
	if got := EndOfDayUTC(ts); got != want {
		t.Fatalf("EndOfDayUTC: got %d, want %d", got, want)
	}
	if EndOfDayUTC(ts)-StartOfDayUTC(ts) != 86399 {
		t.Fatal("end-start should span exactly 86399 seconds")
	}
}

func TestDailyBuckets(t *testing.T) {
	creation := time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC).Unix()
	now := time.Date(2024, 3, 19, 9, 15, 0, 0, time.UTC).Unix()

	buckets := DailyBuckets(creation, now)
	if len(buckets) != 10 {
		t.Fatalf("expected 10 buckets, got %d", len(buckets))
	}
	if buckets[0] != StartOfDayUTC(creation) {
		t.Fatalf("first bucket %d != start of creation day %d", buckets[0], StartOfDayUTC(creation))
	}
	if buckets[len(buckets)-1] != StartOfDayUTC(now) {
		t.Fatalf("last bucket %d != start of now day %d", buckets[len(buckets)-1], StartOfDayUTC(now))
	}

	seen := make(map[int64]bool)
	for i, b := range buckets {
		if seen[b] {
			t.Fatalf("duplicate bucket %d", b)
		}
		seen[b] = true
		if i > 0 && buckets[i]-buckets[i-1] != 86400 {
			t.Fatalf("gap between buckets %d and %d", buckets[i-1], buckets[i])
		}
	}
}

func TestDailyBuckets_SingleDay(t *testing.T) {
	creation := time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC).Unix()
	now := time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC).Unix()

	buckets := DailyBuckets(creation, now)
	if len(buckets) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(buckets))
	}
	if buckets[0] != StartOfDayUTC(now) {
		t.Fatalf("got %d, want %d", buckets[0], StartOfDayUTC(now))
	}
}

func TestDailyBuckets_CreationAfterNow(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC).Unix()
	creation := now + 30*86400

	buckets := DailyBuckets(creation, now)
	if len(buckets) != 1 {
		t.Fatalf("degenerate case should yield 1 bucket, got %d", len(buckets))
	}
	if buckets[0] != StartOfDayUTC(now) {
		t.Fatalf("got %d, want %d", buckets[0], StartOfDayUTC(now))
	}
}

func TestDailyBuckets_PreEpochCreation(t *testing.T) {
	creation := int64(-5 * 86400)
	now := time.Date(1970, 1, 4, 6, 0, 0, 0, time.UTC).Unix()

	buckets := DailyBuckets(creation, now)
	if buckets[0] != 0 {
		t.Fatalf("first bucket should clamp to epoch, got %d", buckets[0])
	}
	if len(buckets) != 4 {
		t.Fatalf("expected 4 buckets (Jan 1-4), got %d", len(buckets))
	}
}

func TestDailyBuckets_Restartable(t *testing.T) {
	creation := time.Date(2023, 6, 1, 3, 0, 0, 0, time.UTC).Unix()
	now := time.Date(2023, 6, 30, 21, 0, 0, 0, time.UTC).Unix()

	a := DailyBuckets(creation, now)
	b := DailyBuckets(creation, now)
	if len(a) != len(b) {
		t.Fatalf("length mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("bucket %d differs: %d vs %d", i, a[i], b[i])
		}
	}
}
