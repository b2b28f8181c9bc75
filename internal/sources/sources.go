package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/restitch/pkg/models"
)

// LiveSource is the authoritative platform API. It reflects current state,
// which means bodies of removed or deleted comments arrive blanked.
type LiveSource interface {
	GetPost(ctx context.Context, threadID string) (*models.Post, error)
	// GetComments looks up comments by short id in one batched call and
	// silently omits ids the platform no longer resolves.
	GetComments(ctx context.Context, ids []string) ([]*models.Comment, error)
	// GetAncestorChain returns up to depth ancestors of commentID,
	// ordered furthest ancestor first.
	GetAncestorChain(ctx context.Context, threadID, commentID string, depth int) ([]*models.Comment, error)
	Name() string
}

// ArchiveSource is a timestamp-indexed search index over past comments.
// It preserves original bodies but is paginated and may lag the platform.
type ArchiveSource interface {
	// GetPost returns ErrNotFound when the index never captured the post.
	GetPost(ctx context.Context, threadID string) (*models.Post, error)
	// GetCommentsPage returns at most maxItems comments of the thread with
	// createdUtc strictly inside (after, before), sorted ascending. A
	// negative after or non-positive before leaves that side unbounded.
	GetCommentsPage(ctx context.Context, threadID string, maxItems int, after, before int64) ([]*models.Comment, error)
	Name() string
}

// ErrNotFound marks an archival lookup that returned nothing. Callers route
// to a live-only fallback instead of failing the load.
var ErrNotFound = errors.New("not found in source")

// StatusError is a non-2xx response from either upstream. 403 and 404 are
// preserved so callers can route access-restricted and missing threads
// differently.
type StatusError struct {
	Status int
	URL    string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.Status, e.Body)
}

// TransientError wraps transport failures and 5xx responses. The
// reconciliation core never retries these; the caller decides whether to
// restart the whole load.
type TransientError struct {
	Source string
	Err    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s fetch failed: %v", e.Source, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether a caller-level restart could plausibly succeed.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsForbidden reports an HTTP 403 from an upstream.
func IsForbidden(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == 403
}

// IsNotFound reports a missing thread or comment: an HTTP 404 from the live
// source or an empty archival lookup.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Status == 404
}

// WrapStatus classifies a non-2xx response: 5xx become transient, everything
// else keeps its status for routing.
func WrapStatus(source string, status int, url, body string) error {
	se := &StatusError{Status: status, URL: url, Body: body}
	if status >= 500 {
		return &TransientError{Source: source, Err: se}
	}
	return se
}
