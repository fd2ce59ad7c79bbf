package models

import (
	"math"
	"time"
)

var (
	minUnixNanoTime = time.Unix(0, math.MinInt64)
	maxUnixNanoTime = time.Unix(0, math.MaxInt64)
)

// ClampUnixNano is t.UnixNano() saturated to the int64 range.
// Times before 1678 or after 2262 map to the nearest representable instant.
func ClampUnixNano(t time.Time) int64 {
	switch {
	case t.Before(minUnixNanoTime):
		return math.MinInt64
	case t.After(maxUnixNanoTime):
		return math.MaxInt64
	}
	return t.UnixNano()
}
