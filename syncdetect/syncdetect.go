// Package syncdetect computes missing candle-timestamp ranges between
// a locally-persisted history and the exchange's latest candle, so the
// trader can patch gaps before resuming ticks (spec §4.3).
package syncdetect

import "golang.org/x/exp/slices"

// MissingRange generates the half-open, interval-aligned millisecond
// grid strictly between start and end (both endpoints excluded). If
// the resulting list has zero or one element, no patch is needed — the
// caller should treat that as "nothing to fetch". Otherwise the caller
// requests history over [min(result), max(result)].
func MissingRange(start, end, interval int64) []int64 {
	if interval <= 0 || end <= start {
		return nil
	}

	first := start - (start % interval) + interval
	if first <= start {
		first += interval
	}

	var out []int64
	for ts := first; ts < end; ts += interval {
		out = append(out, ts)
	}
	return out
}

// NeedsPatch reports whether the missing range is non-trivial, i.e.
// the trader must request a history patch over [min, max].
func NeedsPatch(missing []int64) (needed bool, lo, hi int64) {
	if len(missing) < 2 {
		return false, 0, 0
	}
	return true, slices.Min(missing), slices.Max(missing)
}
