package recon

import (
	"fmt"
	"sort"
)

// Earliest is the sentinel lower bound meaning "from the beginning of the
// thread". Real creation timestamps are always greater than it.
const Earliest int64 = 0

// Contig is a claimed, contiguous range of comment creation timestamps.
// LastCreated stays zero until the first archival page for the range has
// landed; LoadedAllComments flips once the range has been fetched to its
// natural end or merged through to the next contig.
type Contig struct {
	FirstCreated      int64
	LastCreated       int64
	LoadedAllComments bool
}

func (c *Contig) hasLast() bool {
	return c.LastCreated > Earliest
}

func (c *Contig) contains(ts int64) bool {
	return ts >= c.FirstCreated && c.hasLast() && ts <= c.LastCreated
}

// ContigTracker keeps the sorted, pairwise non-overlapping list of contigs
// for one thread, plus a cursor over the contig currently being filled.
// Gaps between contigs are allowed.
type ContigTracker struct {
	contigs []*Contig
	current int
}

func NewContigTracker() *ContigTracker {
	return &ContigTracker{current: -1}
}

// Insert adds a new contig starting at firstCreated in sorted position and
// returns its index. Two contigs may not share a starting timestamp; on a
// duplicate the existing contig's index is returned with the error.
func (t *ContigTracker) Insert(firstCreated int64) (int, error) {
	idx := sort.Search(len(t.contigs), func(i int) bool {
		return t.contigs[i].FirstCreated >= firstCreated
	})
	if idx < len(t.contigs) && t.contigs[idx].FirstCreated == firstCreated {
		return idx, fmt.Errorf("contig starting at %d already exists", firstCreated)
	}

	t.contigs = append(t.contigs, nil)
	copy(t.contigs[idx+1:], t.contigs[idx:])
	t.contigs[idx] = &Contig{FirstCreated: firstCreated}

	if t.current >= idx {
		t.current++
	}
	return idx, nil
}

// FindContaining returns the index of the contig whose downloaded bounds
// contain ts. Timestamps at or below Earliest, and timestamps falling in a
// gap, are not contained.
func (t *ContigTracker) FindContaining(ts int64) (int, bool) {
	if ts <= Earliest {
		return 0, false
	}
	for i, c := range t.contigs {
		if c.contains(ts) {
			return i, true
		}
	}
	return 0, false
}

// MergeForward removes contig idx and extends the next contig's
// FirstCreated down to absorb its range. It reports whether the two ranges
// actually overlapped; a false return means the caller asked to merge
// disjoint ranges, which the tracker still honors best-effort.
func (t *ContigTracker) MergeForward(idx int) bool {
	if idx < 0 || idx+1 >= len(t.contigs) {
		return false
	}

	cur, next := t.contigs[idx], t.contigs[idx+1]
	overlapped := cur.hasLast() && cur.LastCreated >= next.FirstCreated

	next.FirstCreated = cur.FirstCreated
	t.contigs = append(t.contigs[:idx], t.contigs[idx+1:]...)
	if t.current > idx {
		t.current--
	}
	return overlapped
}

// Remove drops the contig at idx. When the cursor pointed at it, the cursor
// moves to the previous contig so a later retry starts from consistent
// state.
func (t *ContigTracker) Remove(idx int) {
	if idx < 0 || idx >= len(t.contigs) {
		return
	}
	t.contigs = append(t.contigs[:idx], t.contigs[idx+1:]...)
	switch {
	case t.current == idx:
		t.current = idx - 1
	case t.current > idx:
		t.current--
	}
}

// SetCurrent points the cursor at the contig at idx. Out-of-range indices
// leave the cursor where it was.
func (t *ContigTracker) SetCurrent(idx int) {
	if idx < 0 || idx >= len(t.contigs) {
		return
	}
	t.current = idx
}

// Current returns the contig under the cursor, or nil when the cursor is
// unset.
func (t *ContigTracker) Current() *Contig {
	if t.current < 0 || t.current >= len(t.contigs) {
		return nil
	}
	return t.contigs[t.current]
}

func (t *ContigTracker) CurrentIndex() int {
	if t.current < 0 || t.current >= len(t.contigs) {
		return -1
	}
	return t.current
}

// Next returns the contig immediately after the current one, or nil.
func (t *ContigTracker) Next() *Contig {
	if t.current < 0 || t.current+1 >= len(t.contigs) {
		return nil
	}
	return t.contigs[t.current+1]
}

// IndexOf returns the position of the given contig, or -1 when it is no
// longer tracked (for example after being absorbed by MergeForward).
func (t *ContigTracker) IndexOf(c *Contig) int {
	for i, tc := range t.contigs {
		if tc == c {
			return i
		}
	}
	return -1
}

// FetchBounds derives the after/before window for the current contig's next
// archival page. Both bounds are widened by one second so an item sitting
// exactly on a boundary survives the source's exclusive range query; the
// store dedups anything re-fetched. A negative after and a zero before mean
// unbounded.
func (t *ContigTracker) FetchBounds() (after, before int64) {
	c := t.Current()
	if c == nil {
		return -1, 0
	}

	if c.hasLast() {
		after = c.LastCreated - 1
	} else {
		after = c.FirstCreated - 1
	}

	if next := t.Next(); next != nil {
		before = next.FirstCreated + 1
	} else {
		before = 0
	}
	return after, before
}

func (t *ContigTracker) Len() int {
	return len(t.contigs)
}

// At returns the contig at idx, or nil when idx is out of range.
func (t *ContigTracker) At(idx int) *Contig {
	if idx < 0 || idx >= len(t.contigs) {
		return nil
	}
	return t.contigs[idx]
}

// Snapshot returns a copy of the contig list for callers outside the
// engine.
func (t *ContigTracker) Snapshot() []Contig {
	out := make([]Contig, len(t.contigs))
	for i, c := range t.contigs {
		out[i] = *c
	}
	return out
}
