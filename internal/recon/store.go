package recon

import "github.com/restitch/pkg/models"

// CommentStore holds exactly one canonical record per comment id, remembers
// insertion order, and keeps running removed/deleted counters current as
// records are amended in place.
type CommentStore struct {
	comments map[string]*models.Comment
	order    []string
	claimed  map[string]struct{}
	removed  int
	deleted  int
}

func NewCommentStore() *CommentStore {
	return &CommentStore{
		comments: make(map[string]*models.Comment),
		claimed:  make(map[string]struct{}),
	}
}

// Has reports whether the id is present, either as a canonical record or as
// a claimed placeholder awaiting its live lookup.
func (s *CommentStore) Has(id string) bool {
	if _, ok := s.comments[id]; ok {
		return true
	}
	_, ok := s.claimed[id]
	return ok
}

// Claimed reports whether the id is held only by a placeholder.
func (s *CommentStore) Claimed(id string) bool {
	_, ok := s.claimed[id]
	return ok
}

// Get returns the canonical record for id. Claimed placeholders do not
// count.
func (s *CommentStore) Get(id string) (*models.Comment, bool) {
	c, ok := s.comments[id]
	return c, ok
}

// Len counts canonical records only.
func (s *CommentStore) Len() int {
	return len(s.comments)
}

// Ordered returns the canonical records in insertion order.
func (s *CommentStore) Ordered() []*models.Comment {
	out := make([]*models.Comment, 0, len(s.order))
	for _, id := range s.order {
		if c, ok := s.comments[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

func (s *CommentStore) Removed() int { return s.removed }
func (s *CommentStore) Deleted() int { return s.deleted }

// claim marks an id as enqueued for live verification without installing a
// record, so the same id is never enqueued twice.
func (s *CommentStore) claim(id string) {
	if s.Has(id) {
		return
	}
	s.claimed[id] = struct{}{}
}

// put installs c as the canonical record for its id, releasing any claim
// and replacing any previous record in place (the insertion-order slot is
// kept). The removed/deleted flags are applied through the counters.
func (s *CommentStore) put(c *models.Comment, removed, deleted bool) {
	delete(s.claimed, c.ID)
	if old, ok := s.comments[c.ID]; ok {
		if old.Removed {
			s.removed--
		}
		if old.Deleted {
			s.deleted--
		}
	} else {
		s.order = append(s.order, c.ID)
	}
	c.Removed = false
	c.Deleted = false
	s.comments[c.ID] = c
	s.setFlags(c, removed, deleted)
}

// setFlags amends a canonical record's removed/deleted flags, adjusting the
// counters by the difference.
func (s *CommentStore) setFlags(c *models.Comment, removed, deleted bool) {
	if c.Removed != removed {
		if removed {
			s.removed++
		} else {
			s.removed--
		}
		c.Removed = removed
	}
	if c.Deleted != deleted {
		if deleted {
			s.deleted++
		} else {
			s.deleted--
		}
		c.Deleted = deleted
	}
}
