package ranges

import "testing"

func TestRangeEnd(t *testing.T) {
	if got, want := (Range{Pos: 1, Size: 2}).End(), int64(3); got != want {
		t.Errorf("End() = %d, want %d", got, want)
	}
}

func TestRangeIsEmpty(t *testing.T) {
	if (Range{Pos: 1, Size: 2}).IsEmpty() {
		t.Error("want non-empty")
	}
	if !(Range{Pos: 1, Size: 0}).IsEmpty() {
		t.Error("want empty")
	}
}

func TestRangeIntersection(t *testing.T) {
	cases := []struct{ a, b, want Range }{
		{Range{1, 1}, Range{3, 1}, Range{}},
		{Range{1, 1}, Range{1, 1}, Range{1, 1}},
		{Range{1, 9}, Range{3, 2}, Range{3, 2}},
		{Range{1, 5}, Range{3, 5}, Range{3, 3}},
	}
	for _, c := range cases {
		if got := c.a.Intersection(c.b); got != c.want {
			t.Errorf("Intersection(%v,%v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestRangesCoalesceAdjacent(t *testing.T) {
	var rs Ranges
	// Two 8 MiB granules flipped back-to-back coalesce into one 16 MiB range,
	// matching scenario E2 from spec §8.
	const granule = 8 << 20
	rs.Add(Range{Pos: 100 << 20, Size: granule})
	rs.Add(Range{Pos: 108 << 20, Size: granule})
	if len(rs) != 1 {
		t.Fatalf("want 1 coalesced range, got %d: %v", len(rs), rs)
	}
	want := Range{Pos: 100 << 20, Size: 2 * granule}
	if rs[0] != want {
		t.Errorf("got %v, want %v", rs[0], want)
	}
}

func TestRangesKeepsDisjointSeparate(t *testing.T) {
	var rs Ranges
	rs.Add(Range{Pos: 0, Size: 10})
	rs.Add(Range{Pos: 100, Size: 10})
	if len(rs) != 2 {
		t.Fatalf("want 2 ranges, got %d: %v", len(rs), rs)
	}
}

func TestRangesBridgesGap(t *testing.T) {
	var rs Ranges
	rs.Add(Range{Pos: 0, Size: 2})
	rs.Add(Range{Pos: 8, Size: 2})
	rs.Add(Range{Pos: 1, Size: 8}) // bridges the two
	if len(rs) != 1 {
		t.Fatalf("want 1 coalesced range, got %d: %v", len(rs), rs)
	}
	if rs[0] != (Range{Pos: 0, Size: 10}) {
		t.Errorf("got %v", rs[0])
	}
}

func checkOrdered(t *testing.T, rs Ranges) {
	t.Helper()
	for i := 0; i+1 < len(rs); i++ {
		if rs[i].Pos >= rs[i+1].Pos {
			t.Fatalf("ranges out of order: %v", rs)
		}
		if rs[i].End() > rs[i+1].Pos {
			t.Fatalf("ranges overlap: %v", rs)
		}
	}
}

func TestRangesInvariantHolds(t *testing.T) {
	var rs Ranges
	for _, r := range []Range{{0, 5}, {20, 5}, {4, 17}, {30, 1}} {
		rs.Add(r)
		checkOrdered(t, rs)
	}
}
