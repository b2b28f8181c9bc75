// Package recon merges a thread's live comments with an archival search
// index into one canonical record per comment. The live source is
// authoritative for current state but blanks removed and deleted bodies;
// the archive preserves original bodies but is paginated by timestamp and
// may lag. The engine downloads the timeline in contiguous ranges, batches
// newly discovered ids into live lookups, and reconciles both records.
package recon

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/restitch/internal/sources"
	"github.com/restitch/pkg/models"
)

// Tuning defaults. The dispatch threshold and the shortfall margin are
// latency-hiding heuristics carried over from long-running deployments;
// both are plain configuration, not derived values.
const (
	DefaultChunkSize         = 100
	DefaultPageSize          = 100
	DefaultDispatchThreshold = 0.9
	DefaultShortfallChunks   = 1
)

// Config tunes the engine's paging and batching behavior.
type Config struct {
	// ChunkSize is the maximum number of ids per live-source batch lookup.
	ChunkSize int
	// PageSize is the number of items requested per archival page. A page
	// returning fewer items marks the active contig exhausted.
	PageSize int
	// DispatchThreshold is the fill ratio at which a batch becomes
	// dispatchable before it is full.
	DispatchThreshold float64
	// ShortfallChunks is how many chunks short of the target a persistent
	// fill may stay before it stops fetching further pages.
	ShortfallChunks int
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.DispatchThreshold <= 0 || c.DispatchThreshold > 1 {
		c.DispatchThreshold = DefaultDispatchThreshold
	}
	if c.ShortfallChunks <= 0 {
		c.ShortfallChunks = DefaultShortfallChunks
	}
	return c
}

// Options carries the collaborators for one engine instance.
type Options struct {
	ThreadID string
	Live     sources.LiveSource
	Archive  sources.ArchiveSource
	Config   Config
	// Classify defaults to DefaultBodyClassifier.
	Classify BodyClassifier
	// Sink defaults to NopSink.
	Sink EventSink
	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger
}

// Engine drives the reconciliation of one thread. All methods except
// Cancel must be called from a single goroutine; Cancel is safe to call
// from anywhere.
type Engine struct {
	threadID string
	live     sources.LiveSource
	archive  sources.ArchiveSource
	cfg      Config

	store   *CommentStore
	tracker *ContigTracker
	batcher *ChunkedBatcher

	classify BodyClassifier
	sink     EventSink
	log      zerolog.Logger

	session       string
	singleComment bool
	cancelled     atomic.Bool

	// Live batch fetches in flight, tagged by a monotonic sequence number
	// so a barrier can wait for "everything dispatched since mark" only.
	seq         uint64
	outstanding map[uint64]struct{}
	results     chan liveResult
}

type liveResult struct {
	seq      uint64
	comments []*models.Comment
	err      error
}

// New builds an engine for one thread.
func New(opts Options) (*Engine, error) {
	if opts.ThreadID == "" {
		return nil, fmt.Errorf("thread id is required")
	}
	if opts.Live == nil || opts.Archive == nil {
		return nil, fmt.Errorf("both a live and an archival source are required")
	}

	cfg := opts.Config.withDefaults()
	batcher, err := NewChunkedBatcher(cfg.ChunkSize, cfg.DispatchThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to create batcher: %w", err)
	}

	classify := opts.Classify
	if classify == nil {
		classify = DefaultBodyClassifier
	}
	sink := opts.Sink
	if sink == nil {
		sink = NopSink{}
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	return &Engine{
		threadID:    opts.ThreadID,
		live:        opts.Live,
		archive:     opts.Archive,
		cfg:         cfg,
		store:       NewCommentStore(),
		tracker:     NewContigTracker(),
		batcher:     batcher,
		classify:    classify,
		sink:        sink,
		log:         log,
		outstanding: make(map[uint64]struct{}),
		results:     make(chan liveResult),
	}, nil
}

// Store exposes the canonical records for the rendering layer.
func (e *Engine) Store() *CommentStore { return e.store }

// Contigs returns a copy of the tracked timeline ranges.
func (e *Engine) Contigs() []Contig { return e.tracker.Snapshot() }

// Stats summarizes the store plus the active contig's completion state.
func (e *Engine) Stats() Stats {
	loadedAll := false
	if c := e.tracker.Current(); c != nil {
		loadedAll = c.LoadedAllComments
	}
	return Stats{
		Comments:  e.store.Len(),
		Removed:   e.store.Removed(),
		Deleted:   e.store.Deleted(),
		LoadedAll: loadedAll,
	}
}

// Cancel stops the in-flight load at its next checkpoint. Requests already
// issued are allowed to resolve; their results are discarded.
func (e *Engine) Cancel() {
	e.cancelled.Store(true)
}

// Load reconciles the thread from its beginning until roughly target new
// comments have been fetched or the timeline is exhausted.
func (e *Engine) Load(ctx context.Context, target int) error {
	e.begin(false)
	_ = e.sink.EmitLoadStart(ctx, e.session, e.threadID)

	if e.tracker.Len() == 0 || e.tracker.At(0).FirstCreated != Earliest {
		idx, err := e.tracker.Insert(Earliest)
		if err != nil {
			return err
		}
		e.tracker.SetCurrent(idx)
	} else {
		e.tracker.SetCurrent(0)
	}

	if err := e.fill(ctx, target, true, nil); err != nil {
		_ = e.sink.EmitLoadFailed(ctx, e.session, err.Error())
		return err
	}
	_ = e.sink.EmitLoadEnd(ctx, e.session, e.Stats())
	return nil
}

// LoadAt reconciles the thread starting from a single permalinked comment.
// The comment is fetched live first so its timestamp can anchor a contig,
// and it doubles as the fallback hint in case the archive never indexed
// it. Parent back-filling is disabled in this mode.
func (e *Engine) LoadAt(ctx context.Context, commentID string, target int) error {
	e.begin(true)
	_ = e.sink.EmitLoadStart(ctx, e.session, e.threadID)

	batch, err := e.live.GetComments(ctx, []string{commentID})
	if err != nil {
		err = fmt.Errorf("live comment lookup: %w", err)
		_ = e.sink.EmitLoadFailed(ctx, e.session, err.Error())
		return err
	}
	if len(batch) == 0 {
		err = fmt.Errorf("comment %s: %w", commentID, sources.ErrNotFound)
		_ = e.sink.EmitLoadFailed(ctx, e.session, err.Error())
		return err
	}
	hint := batch[0]
	if hint.ThreadID != e.threadID {
		err := &LinkMismatchError{CommentID: hint.ID, Want: e.threadID, Got: hint.ThreadID}
		_ = e.sink.EmitLoadFailed(ctx, e.session, err.Error())
		return err
	}

	if idx, ok := e.tracker.FindContaining(hint.CreatedUTC); ok {
		// The range is already downloaded; a zero-size fill joins any
		// leftover work and installs the hint if the archive missed it.
		e.tracker.SetCurrent(idx)
		err = e.fill(ctx, 0, false, hint)
	} else {
		idx, ierr := e.tracker.Insert(hint.CreatedUTC)
		e.tracker.SetCurrent(idx)
		if ierr != nil {
			// A contig already starts exactly here; keep filling it.
			e.log.Debug().Str("comment_id", commentID).Msg("contig already anchored at comment timestamp")
		}
		err = e.fill(ctx, target, true, hint)
	}
	if err != nil {
		_ = e.sink.EmitLoadFailed(ctx, e.session, err.Error())
		return err
	}
	_ = e.sink.EmitLoadEnd(ctx, e.session, e.Stats())
	return nil
}

// LoadMore continues filling the timeline where the cursor stopped,
// advancing past contigs that are already complete.
func (e *Engine) LoadMore(ctx context.Context, target int) error {
	if e.tracker.Len() == 0 {
		return e.Load(ctx, target)
	}

	e.begin(e.singleComment)
	_ = e.sink.EmitLoadStart(ctx, e.session, e.threadID)

	idx := e.tracker.CurrentIndex()
	if idx < 0 {
		idx = 0
	}
	for idx < e.tracker.Len() && e.tracker.At(idx).LoadedAllComments {
		idx++
	}
	if idx >= e.tracker.Len() {
		// Nothing left to fill.
		_ = e.sink.EmitLoadEnd(ctx, e.session, e.Stats())
		return nil
	}
	e.tracker.SetCurrent(idx)

	if err := e.fill(ctx, target, true, nil); err != nil {
		_ = e.sink.EmitLoadFailed(ctx, e.session, err.Error())
		return err
	}
	_ = e.sink.EmitLoadEnd(ctx, e.session, e.Stats())
	return nil
}

// begin starts a new load session. The cancellation flag is session-scoped,
// so a cancelled engine becomes usable again on the next call.
func (e *Engine) begin(singleComment bool) {
	e.session = uuid.NewString()
	e.singleComment = singleComment
	e.cancelled.Store(false)
}

// fill drives archival pages for the current contig until target new
// comments arrived or the contig closed, verifying every new id against
// the live source in batches. The loop body is one page; a persistent fill
// keeps looping while the shortfall against target exceeds the configured
// margin. hint, when given, is installed as a live fallback if the archive
// turns out not to know it.
func (e *Engine) fill(ctx context.Context, targetCount int, persistent bool, hint *models.Comment) error {
	invocationMark := e.seq
	target := targetCount

	for {
		if err := e.interrupted(ctx); err != nil {
			return e.abort(ctx, err)
		}
		cur := e.tracker.Current()
		if cur == nil {
			return fmt.Errorf("fill requires an active contig")
		}

		after, before := e.tracker.FetchBounds()
		page, err := e.archive.GetCommentsPage(ctx, e.threadID, e.cfg.PageSize, after, before)
		if err != nil {
			return e.abort(ctx, fmt.Errorf("archival page fetch: %w", err))
		}

		iterMark := e.seq
		exhausted := len(page) < e.cfg.PageSize
		lastBefore := cur.LastCreated

		newItems := 0
		for _, c := range page {
			if c.ThreadID != e.threadID {
				return e.abort(ctx, &LinkMismatchError{CommentID: c.ID, Want: e.threadID, Got: c.ThreadID})
			}
			if e.store.Has(c.ID) {
				continue
			}
			removed, deleted := e.classify(c.Body)
			e.store.put(c, removed, deleted)
			newItems++
			e.batcher.Push(c.ID)

			// A parent that is itself a comment and not yet known gets
			// verified too, claimed first so it is enqueued exactly once.
			if !e.singleComment && !c.TopLevel() && !e.store.Has(c.ParentID) {
				e.store.claim(c.ParentID)
				e.batcher.Push(c.ParentID)
			}

			for e.batcher.HasFullChunk() {
				e.dispatchLive(ctx, e.batcher.ShiftChunk())
			}
		}
		_ = e.sink.EmitPageFetched(ctx, e.session, len(page), newItems)

		if len(page) > 0 {
			cur.LastCreated = page[len(page)-1].CreatedUTC
		}

		// A full page of already-seen items at one second would repeat
		// forever, since the after bound re-includes that second. Step
		// past it.
		if !exhausted && newItems == 0 && cur.LastCreated == lastBefore {
			cur.LastCreated++
			e.log.Warn().
				Str("thread_id", e.threadID).
				Int64("last_created", lastBefore).
				Msg("archival paging stalled on a single second")
		}

		if exhausted {
			if next := e.tracker.Next(); next != nil {
				// The archive ran dry before the next contig's start: the
				// two ranges meet and become one.
				nextFirst := next.FirstCreated
				if !e.tracker.MergeForward(e.tracker.CurrentIndex()) {
					e.log.Warn().
						Str("thread_id", e.threadID).
						Int64("first_created", cur.FirstCreated).
						Int64("next_first_created", nextFirst).
						Msg("merging non-overlapping contigs")
					_ = e.sink.EmitMergeConflict(ctx, e.session, cur.FirstCreated, nextFirst)
				}
			} else {
				cur.LoadedAllComments = true
			}
		}

		// Wait for the batches dispatched while processing this page, so
		// the hint check below sees their results.
		if err := e.awaitSince(ctx, iterMark); err != nil {
			return e.abort(ctx, err)
		}

		if hint != nil {
			if _, ok := e.store.Get(hint.ID); !ok && e.hintWithin(hint.CreatedUTC) {
				e.installFallback(hint)
				hint = nil
			}
		}

		if persistent && !exhausted && newItems < target-e.cfg.ShortfallChunks*e.cfg.ChunkSize {
			target -= newItems
			continue
		}
		break
	}

	// Flush ids still below the dispatch threshold, then drain everything
	// this invocation issued.
	if err := e.interrupted(ctx); err != nil {
		return e.abort(ctx, err)
	}
	for {
		chunk := e.batcher.ShiftChunk()
		if len(chunk) == 0 {
			break
		}
		e.dispatchLive(ctx, chunk)
	}
	if err := e.awaitSince(ctx, invocationMark); err != nil {
		return e.abort(ctx, err)
	}
	return nil
}

// hintWithin reports whether ts falls inside the active contig's bounds,
// treating an unknown upper bound as open.
func (e *Engine) hintWithin(ts int64) bool {
	c := e.tracker.Current()
	if c == nil {
		return false
	}
	return ts >= c.FirstCreated && (!c.hasLast() || ts <= c.LastCreated)
}

// dispatchLive starts a live batch lookup without waiting for it. The
// result is merged by whichever barrier receives it.
func (e *Engine) dispatchLive(ctx context.Context, ids []string) {
	if len(ids) == 0 || e.interrupted(ctx) != nil {
		return
	}
	e.seq++
	seq := e.seq
	e.outstanding[seq] = struct{}{}
	go func() {
		comments, err := e.live.GetComments(ctx, ids)
		e.results <- liveResult{seq: seq, comments: comments, err: err}
	}()
}

// awaitSince blocks until no request dispatched after mark is outstanding,
// merging results as they arrive. Results from before mark may arrive here
// too and are merged the same way. After the first failure remaining
// results are discarded.
func (e *Engine) awaitSince(ctx context.Context, mark uint64) error {
	var firstErr error
	for e.pendingSince(mark) {
		res := <-e.results
		delete(e.outstanding, res.seq)

		if firstErr == nil && e.cancelled.Load() {
			firstErr = ErrCancelled
		}
		if firstErr != nil {
			continue
		}
		if res.err != nil {
			firstErr = fmt.Errorf("live batch fetch: %w", res.err)
			continue
		}
		if err := e.mergeBatch(ctx, res.comments); err != nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *Engine) pendingSince(mark uint64) bool {
	for seq := range e.outstanding {
		if seq > mark {
			return true
		}
	}
	return false
}

// mergeBatch folds one live batch into the store. Ids the live source
// omitted simply stay as the archive left them.
func (e *Engine) mergeBatch(ctx context.Context, comments []*models.Comment) error {
	for _, live := range comments {
		if live.ThreadID != e.threadID {
			return &LinkMismatchError{CommentID: live.ID, Want: e.threadID, Got: live.ThreadID}
		}
		e.mergeLive(live)
	}
	_ = e.sink.EmitBatchMerged(ctx, e.session, len(comments))
	return nil
}

// abort tears the session down after a failure: remaining in-flight
// results are received and discarded, and a contig that never received a
// page is removed so the list stays consistent for a retry.
func (e *Engine) abort(ctx context.Context, err error) error {
	e.cancelled.Store(true)
	e.drain()

	if idx := e.tracker.CurrentIndex(); idx >= 0 {
		if cur := e.tracker.Current(); cur != nil && !cur.hasLast() && !cur.LoadedAllComments {
			e.tracker.Remove(idx)
		}
	}

	e.log.Error().Err(err).Str("thread_id", e.threadID).Msg("load aborted")
	return err
}

func (e *Engine) drain() {
	for len(e.outstanding) > 0 {
		res := <-e.results
		delete(e.outstanding, res.seq)
	}
}

// interrupted reports the reason no further state-mutating work should
// run, either caller cancellation or the session flag.
func (e *Engine) interrupted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.cancelled.Load() {
		return ErrCancelled
	}
	return nil
}
