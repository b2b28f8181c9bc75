package recon

import (
	"fmt"
	"math"
)

// ChunkedBatcher queues comment ids and hands them back in fixed-size
// batches so live-source lookups can be amortized. Ids join at the tail;
// batches leave from the head in FIFO order.
type ChunkedBatcher struct {
	chunkSize int
	minFull   int
	batches   [][]string
}

// NewChunkedBatcher builds a batcher that cuts batches of chunkSize ids.
// A head batch counts as dispatchable once it holds at least
// threshold*chunkSize ids, which lets a lookup start slightly before the
// batch is full.
func NewChunkedBatcher(chunkSize int, threshold float64) (*ChunkedBatcher, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be a positive integer, got %d", chunkSize)
	}
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("dispatch threshold must be in (0, 1], got %g", threshold)
	}

	minFull := int(math.Ceil(threshold * float64(chunkSize)))
	if minFull < 1 {
		minFull = 1
	}

	return &ChunkedBatcher{
		chunkSize: chunkSize,
		minFull:   minFull,
		batches:   [][]string{nil},
	}, nil
}

// Push appends an id to the logical tail, opening a new batch when the
// current tail is full.
func (b *ChunkedBatcher) Push(id string) {
	tail := len(b.batches) - 1
	if len(b.batches[tail]) >= b.chunkSize {
		b.batches = append(b.batches, nil)
		tail++
	}
	b.batches[tail] = append(b.batches[tail], id)
}

// HasFullChunk reports whether the head batch has reached the dispatch
// threshold.
func (b *ChunkedBatcher) HasFullChunk() bool {
	return len(b.batches[0]) >= b.minFull
}

// ShiftChunk removes and returns the head batch. The returned batch may be
// shorter than the chunk size, or empty; it never exceeds the chunk size.
// The batcher always retains at least one (possibly empty) batch.
func (b *ChunkedBatcher) ShiftChunk() []string {
	head := b.batches[0]
	b.batches = b.batches[1:]
	if len(b.batches) == 0 {
		b.batches = [][]string{nil}
	}
	return head
}

// Pending returns the total number of ids queued across all batches.
func (b *ChunkedBatcher) Pending() int {
	n := 0
	for _, batch := range b.batches {
		n += len(batch)
	}
	return n
}
