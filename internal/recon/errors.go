package recon

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when a load stops because Cancel was called or a
// previous failure already tore the session down.
var ErrCancelled = errors.New("load cancelled")

// LinkMismatchError reports a fetched comment whose thread id does not
// match the thread being reconciled. It always aborts the load.
type LinkMismatchError struct {
	CommentID string
	Want      string
	Got       string
}

func (e *LinkMismatchError) Error() string {
	return fmt.Sprintf("comment %s belongs to thread %s, expected %s", e.CommentID, e.Got, e.Want)
}
