// Package ranges implements a sorted, coalesced set of byte ranges, used for
// the NeedRanges set a receiver computes during sample-granule delta probing
// (spec §3, §4.5). Grounded on rclone's lib/ranges Range/Ranges pattern.
package ranges

import "sort"

// Range is a byte range [Pos, Pos+Size).
type Range struct {
	Pos  int64
	Size int64
}

// End returns the exclusive end of the range.
func (r Range) End() int64 { return r.Pos + r.Size }

// IsEmpty reports whether the range covers no bytes.
func (r Range) IsEmpty() bool { return r.Size <= 0 }

// Intersection returns the overlap between r and b, or the zero Range if
// they don't overlap.
func (r Range) Intersection(b Range) Range {
	start := max64(r.Pos, b.Pos)
	end := min64(r.End(), b.End())
	if end <= start {
		return Range{}
	}
	return Range{Pos: start, Size: end - start}
}

// adjacentOrOverlapping reports whether a and b touch or overlap, so they
// can be merged into one contiguous range.
func adjacentOrOverlapping(a, b Range) bool {
	return a.Pos <= b.End() && b.Pos <= a.End()
}

// merge folds new into dst if they are adjacent or overlapping, returning
// whether a merge happened.
func merge(new *Range, dst *Range) bool {
	if !adjacentOrOverlapping(*new, *dst) {
		return false
	}
	start := min64(new.Pos, dst.Pos)
	end := max64(new.End(), dst.End())
	dst.Pos = start
	dst.Size = end - start
	return true
}

// Ranges is a sorted, non-overlapping, non-adjacent set of Range values.
type Ranges []Range

// Add inserts r into the set, coalescing with any overlapping or adjacent
// existing ranges. Implemented as insert-then-sweep rather than a single
// merge pass, since a new range can bridge two or more existing ranges at
// once (e.g. filling the gap between two disjoint ranges).
func (rs *Ranges) Add(r Range) {
	if r.IsEmpty() {
		return
	}
	all := append(*rs, r)
	sort.Slice(all, func(i, j int) bool { return all[i].Pos < all[j].Pos })
	*rs = coalesce(all)
}

// coalesce sweeps a sorted slice merging any remaining overlaps/adjacencies
// left over from a multi-range Add.
func coalesce(in Ranges) Ranges {
	if len(in) == 0 {
		return in
	}
	out := Ranges{in[0]}
	for _, r := range in[1:] {
		last := &out[len(out)-1]
		if !merge(&r, last) {
			out = append(out, r)
		}
	}
	return out
}

// TotalSize sums the size of every range in the set.
func (rs Ranges) TotalSize() int64 {
	var total int64
	for _, r := range rs {
		total += r.Size
	}
	return total
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
