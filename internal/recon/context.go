package recon

import (
	"context"
	"fmt"
)

// WidenContext pulls the ancestor chain of commentID from the live source,
// up to depth hops, and makes every ancestor visible in the store. An
// ancestor whose timestamp lands in a gap between contigs opens a new
// contig there and fills it; one that lands inside an already-downloaded
// range means the archive missed it, so the live copy is installed
// directly. The chain arrives furthest ancestor first, and the cursor that
// was active before the expansion is restored afterwards.
func (e *Engine) WidenContext(ctx context.Context, commentID string, depth int) error {
	e.begin(e.singleComment)
	_ = e.sink.EmitLoadStart(ctx, e.session, e.threadID)

	chain, err := e.live.GetAncestorChain(ctx, e.threadID, commentID, depth)
	if err != nil {
		err = fmt.Errorf("ancestor chain fetch: %w", err)
		_ = e.sink.EmitLoadFailed(ctx, e.session, err.Error())
		return err
	}

	prev := e.tracker.Current()
	for i, anc := range chain {
		last := i == len(chain)-1

		if anc.ThreadID != e.threadID {
			err := &LinkMismatchError{CommentID: anc.ID, Want: e.threadID, Got: anc.ThreadID}
			_ = e.sink.EmitLoadFailed(ctx, e.session, err.Error())
			return err
		}

		if _, ok := e.store.Get(anc.ID); ok {
			// Already reconciled. The nearest ancestor still runs a
			// zero-size fill so results from batches in flight are joined
			// before the expansion reports done.
			if last {
				if err := e.fill(ctx, 0, false, nil); err != nil {
					_ = e.sink.EmitLoadFailed(ctx, e.session, err.Error())
					return err
				}
			}
			continue
		}

		if _, ok := e.tracker.FindContaining(anc.CreatedUTC); ok {
			// A downloaded range should have contained it; the archive is
			// incomplete there.
			e.installFallback(anc)
			continue
		}

		idx, ierr := e.tracker.Insert(anc.CreatedUTC)
		if ierr != nil {
			// Another contig is anchored at this exact second.
			e.installFallback(anc)
			continue
		}
		e.tracker.SetCurrent(idx)
		if err := e.fill(ctx, e.cfg.ChunkSize, false, anc); err != nil {
			_ = e.sink.EmitLoadFailed(ctx, e.session, err.Error())
			return err
		}
	}

	if prev != nil {
		if i := e.tracker.IndexOf(prev); i >= 0 {
			e.tracker.SetCurrent(i)
		}
	}

	_ = e.sink.EmitContextWidened(ctx, e.session, commentID, len(chain))
	_ = e.sink.EmitLoadEnd(ctx, e.session, e.Stats())
	return nil
}
