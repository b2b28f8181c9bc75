package recon

import "github.com/restitch/pkg/models"

// BodyClassifier decides whether a body is the platform's moderator-removal
// or author-deletion placeholder. The engine never inspects bodies itself.
type BodyClassifier func(body string) (removed, deleted bool)

// DefaultBodyClassifier matches the literal placeholder bodies the platform
// substitutes for removed and deleted comments.
func DefaultBodyClassifier(body string) (removed, deleted bool) {
	switch body {
	case "[removed]":
		return true, false
	case "[deleted]":
		return false, true
	}
	return false, false
}

// mergeLive reconciles one live-source comment into the store. Live truth
// wins for ephemeral fields (score, removed/deleted state); archival truth
// wins for historical content whenever both records exist.
func (e *Engine) mergeLive(live *models.Comment) {
	removed, deleted := e.classify(live.Body)

	existing, ok := e.store.Get(live.ID)
	if !ok {
		// No archival record (or only a placeholder claim): the live copy
		// becomes canonical as-is.
		e.store.put(live, removed, deleted)
		return
	}

	existing.Score = live.Score

	switch {
	case removed || deleted:
		// The live body is blanked; the archival body is the best
		// surviving copy of what was said.
		e.store.setFlags(existing, removed, deleted)
	case existing.Removed || existing.Deleted:
		// Content is intact again after being flagged: restored. The live
		// record supersedes the archival one wholesale.
		e.store.put(live, false, false)
	case existing.Body != live.Body:
		existing.EditedBody = live.Body
		existing.Edited = live.Edited
	}
}

// installFallback makes a live-source comment canonical when the archive
// never produced a record for it. Existing canonical records are left
// alone.
func (e *Engine) installFallback(c *models.Comment) {
	if _, ok := e.store.Get(c.ID); ok {
		return
	}
	removed, deleted := e.classify(c.Body)
	e.store.put(c, removed, deleted)
}
