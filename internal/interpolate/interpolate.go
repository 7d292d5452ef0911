// Package interpolate estimates a price between two known daily price
// points. Estimates are advisory: callers get a confidence score alongside
// but never a fabricated value outside the known range.
package interpolate

import (
	"math"
	"sort"
)

// DefaultMaxGapDays is the bracket span at which confidence bottoms out.
const DefaultMaxGapDays = 30

// Point is one known (timestamp, price) observation.
type Point struct {
	Timestamp int64
	Price     float64
}

// Linear interpolates a price at query between two known points, weighting
// by elapsed-time ratio so the nearer point dominates. Outside the bracket
// it returns the nearest known price rather than extrapolating. Equal
// timestamps return the before price.
func Linear(query, beforeTS int64, beforePrice float64, afterTS int64, afterPrice float64) float64 {
	if beforeTS == afterTS {
		return beforePrice
	}
	if query <= beforeTS {
		return beforePrice
	}
	if query >= afterTS {
		return afterPrice
	}

	total := float64(afterTS - beforeTS)
	beforeWeight := float64(afterTS-query) / total
	afterWeight := float64(query-beforeTS) / total

	return beforePrice*beforeWeight + afterPrice*afterWeight
}

// MultiPoint interpolates against an arbitrary set of observations. It
// tolerates unsorted input, returns the sole point's price when only one
// exists, and clamps to the first/last point outside the covered range.
// ok is false only for an empty set.
func MultiPoint(query int64, points []Point) (price float64, ok bool) {
	if len(points) == 0 {
		return 0, false
	}
	if len(points) == 1 {
		return points[0].Price, true
	}

	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	var before, after *Point
	for i := range sorted {
		p := &sorted[i]
		if p.Timestamp <= query {
			before = p
		} else {
			after = p
			break
		}
	}

	if before == nil {
		return sorted[0].Price, true
	}
	if after == nil {
		return sorted[len(sorted)-1].Price, true
	}
	if before.Timestamp == query {
		return before.Price, true
	}

	return Linear(query, before.Timestamp, before.Price, after.Timestamp, after.Price), true
}

// Confidence scores an interpolation in (0, 1]. The score drops as the
// bracket span approaches maxGapDays and as the query drifts from the
// bracket midpoint. Advisory only.
func Confidence(query, beforeTS, afterTS int64, maxGapDays float64) float64 {
	if maxGapDays <= 0 {
		maxGapDays = DefaultMaxGapDays
	}
	if afterTS <= beforeTS {
		return 1
	}

	gap := float64(afterTS - beforeTS)
	gapDays := gap / 86400
	gapScore := math.Max(0, 1-gapDays/maxGapDays)

	middle := float64(beforeTS) + gap/2
	distFromMiddle := math.Abs(float64(query) - middle)
	middleScore := math.Max(0, 1-distFromMiddle/gap)

	return (gapScore + middleScore) / 2
}
