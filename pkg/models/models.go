package models

// Comment is the canonical reconciled record for a single comment.
// Exactly one Comment per id exists in a load's store; later merges
// amend the same record rather than duplicate it.
type Comment struct {
	ID         string `json:"id"`
	ParentID   string `json:"parent_id"` // parent comment id, or the thread id for top-level replies
	ThreadID   string `json:"thread_id"`
	Author     string `json:"author"`
	Body       string `json:"body"`
	CreatedUTC int64  `json:"created_utc"` // epoch seconds; dedup key within a thread
	Score      int    `json:"score"`
	Removed    bool   `json:"removed"`
	Deleted    bool   `json:"deleted"`

	// EditedBody holds the current live body when it differs from the
	// archived original kept in Body. Edited is the platform-reported
	// edit timestamp, 0 when the platform reports none.
	EditedBody string `json:"edited_body,omitempty"`
	Edited     int64  `json:"edited,omitempty"`
}

// TopLevel reports whether the comment replies directly to the thread.
func (c *Comment) TopLevel() bool {
	return c.ParentID == "" || c.ParentID == c.ThreadID
}

// Post represents the submission a thread of comments hangs off.
type Post struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Body        string `json:"body,omitempty"`
	URL         string `json:"url,omitempty"`
	CreatedUTC  int64  `json:"created_utc"`
	Score       int    `json:"score"`
	NumComments int    `json:"num_comments"`

	// Placeholder is set when neither source could supply the post and a
	// stub was constructed so the thread view can still render.
	Placeholder bool `json:"placeholder,omitempty"`
}

// PlaceholderPost builds the stub used when both sources miss the post.
func PlaceholderPost(threadID string) *Post {
	return &Post{
		ID:          threadID,
		Title:       "[unavailable]",
		Placeholder: true,
	}
}
