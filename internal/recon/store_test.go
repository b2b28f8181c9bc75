package recon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentStore_PutAndGet(t *testing.T) {
	s := NewCommentStore()
	c := newComment("c1", "", 100, "hello")

	s.put(c, false, false)

	got, ok := s.Get("c1")
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.True(t, s.Has("c1"))
	assert.Equal(t, 1, s.Len())

	_, ok = s.Get("c2")
	assert.False(t, ok)
}

func TestCommentStore_ClaimHoldsIDWithoutRecord(t *testing.T) {
	s := NewCommentStore()

	s.claim("p1")
	assert.True(t, s.Has("p1"))
	assert.True(t, s.Claimed("p1"))
	assert.Equal(t, 0, s.Len())
	_, ok := s.Get("p1")
	assert.False(t, ok)

	// put releases the claim and installs the record.
	s.put(newComment("p1", "", 50, "parent"), false, false)
	assert.False(t, s.Claimed("p1"))
	assert.Equal(t, 1, s.Len())
}

func TestCommentStore_ClaimSkipsKnownIDs(t *testing.T) {
	s := NewCommentStore()
	s.put(newComment("c1", "", 100, "hello"), false, false)

	s.claim("c1")
	assert.False(t, s.Claimed("c1"))
}

func TestCommentStore_CountersTrackFlags(t *testing.T) {
	s := NewCommentStore()
	c1 := newComment("c1", "", 100, "one")
	c2 := newComment("c2", "", 105, "two")
	c3 := newComment("c3", "", 110, "three")

	s.put(c1, true, false)
	s.put(c2, false, true)
	s.put(c3, false, false)
	assert.Equal(t, 1, s.Removed())
	assert.Equal(t, 1, s.Deleted())

	// Flipping flags in place adjusts by the difference only.
	s.setFlags(c3, true, false)
	assert.Equal(t, 2, s.Removed())
	s.setFlags(c3, true, false)
	assert.Equal(t, 2, s.Removed())
	s.setFlags(c3, false, false)
	assert.Equal(t, 1, s.Removed())

	// Replacing a removed record with a clean one releases its count.
	s.put(newComment("c1", "", 100, "restored"), false, false)
	assert.Equal(t, 0, s.Removed())
	assert.Equal(t, 1, s.Deleted())
}

func TestCommentStore_ReplacementKeepsOrder(t *testing.T) {
	s := NewCommentStore()
	s.put(newComment("c1", "", 100, "one"), false, false)
	s.put(newComment("c2", "", 105, "two"), false, false)

	replacement := newComment("c1", "", 100, "one again")
	s.put(replacement, false, false)

	ordered := s.Ordered()
	require.Len(t, ordered, 2)
	assert.Same(t, replacement, ordered[0])
	assert.Equal(t, "c2", ordered[1].ID)
}
