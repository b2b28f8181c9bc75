package recon

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/restitch/internal/sources"
	"github.com/restitch/pkg/models"
)

const testThread = "thr1"

func newComment(id, parent string, ts int64, body string) *models.Comment {
	return &models.Comment{
		ID:         id,
		ParentID:   parent,
		ThreadID:   testThread,
		Author:     "author_" + id,
		Body:       body,
		CreatedUTC: ts,
		Score:      1,
	}
}

func clone(c *models.Comment) *models.Comment {
	cp := *c
	return &cp
}

// fakeLive is a scripted live source: it serves comments by id from a
// fixed map and records every batch lookup. Safe for the engine's
// concurrent batch fetches.
type fakeLive struct {
	mu            sync.Mutex
	comments      map[string]*models.Comment
	batches       [][]string
	chain         []*models.Comment
	chainErr      error
	failNext      error
	beforeRespond func()
}

func newFakeLive(comments ...*models.Comment) *fakeLive {
	m := make(map[string]*models.Comment, len(comments))
	for _, c := range comments {
		m[c.ID] = c
	}
	return &fakeLive{comments: m}
}

func (f *fakeLive) Name() string { return "fake-live" }

func (f *fakeLive) GetPost(ctx context.Context, threadID string) (*models.Post, error) {
	return &models.Post{ID: threadID, Title: "thread"}, nil
}

func (f *fakeLive) GetComments(ctx context.Context, ids []string) ([]*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.batches = append(f.batches, append([]string(nil), ids...))
	if f.beforeRespond != nil {
		f.beforeRespond()
	}
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}

	out := make([]*models.Comment, 0, len(ids))
	for _, id := range ids {
		if c, ok := f.comments[id]; ok {
			out = append(out, clone(c))
		}
	}
	return out, nil
}

func (f *fakeLive) GetAncestorChain(ctx context.Context, threadID, commentID string, depth int) ([]*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.chainErr != nil {
		return nil, f.chainErr
	}
	out := make([]*models.Comment, 0, len(f.chain))
	for _, c := range f.chain {
		out = append(out, clone(c))
	}
	return out, nil
}

func (f *fakeLive) snapshotBatches() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.batches...)
}

type pageCall struct {
	after  int64
	before int64
	max    int
}

// fakeArchive holds the full ascending timeline and serves pages with the
// real range contract: strictly after/strictly before, unbounded on a
// negative after or non-positive before.
type fakeArchive struct {
	mu       sync.Mutex
	all      []*models.Comment
	calls    []pageCall
	failNext error
}

func newFakeArchive(comments ...*models.Comment) *fakeArchive {
	return &fakeArchive{all: comments}
}

func (f *fakeArchive) Name() string { return "fake-archive" }

func (f *fakeArchive) GetPost(ctx context.Context, threadID string) (*models.Post, error) {
	return nil, sources.ErrNotFound
}

func (f *fakeArchive) GetCommentsPage(ctx context.Context, threadID string, maxItems int, after, before int64) ([]*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, pageCall{after: after, before: before, max: maxItems})
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}

	out := make([]*models.Comment, 0, maxItems)
	for _, c := range f.all {
		if after >= 0 && c.CreatedUTC <= after {
			continue
		}
		if before > 0 && c.CreatedUTC >= before {
			continue
		}
		out = append(out, clone(c))
		if len(out) == maxItems {
			break
		}
	}
	return out, nil
}

func (f *fakeArchive) snapshotCalls() []pageCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pageCall(nil), f.calls...)
}

// recordSink captures emitted events as compact strings for assertions.
type recordSink struct {
	mu     sync.Mutex
	events []string
}

func (r *recordSink) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *recordSink) EmitLoadStart(ctx context.Context, sessionID, threadID string) error {
	r.add("start")
	return nil
}

func (r *recordSink) EmitPageFetched(ctx context.Context, sessionID string, items, newItems int) error {
	r.add("page")
	return nil
}

func (r *recordSink) EmitBatchMerged(ctx context.Context, sessionID string, size int) error {
	r.add("batch")
	return nil
}

func (r *recordSink) EmitMergeConflict(ctx context.Context, sessionID string, firstCreated, nextFirstCreated int64) error {
	r.add("conflict")
	return nil
}

func (r *recordSink) EmitContextWidened(ctx context.Context, sessionID, commentID string, ancestors int) error {
	r.add("widened")
	return nil
}

func (r *recordSink) EmitLoadEnd(ctx context.Context, sessionID string, stats Stats) error {
	r.add("end")
	return nil
}

func (r *recordSink) EmitLoadFailed(ctx context.Context, sessionID string, reason string) error {
	r.add("failed")
	return nil
}

func (r *recordSink) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recordSink) has(kind string) bool {
	for _, e := range r.snapshot() {
		if strings.HasPrefix(e, kind) {
			return true
		}
	}
	return false
}

func newTestEngine(t *testing.T, live *fakeLive, archive *fakeArchive, cfg Config) *Engine {
	t.Helper()
	eng, err := New(Options{
		ThreadID: testThread,
		Live:     live,
		Archive:  archive,
		Config:   cfg,
	})
	require.NoError(t, err)
	return eng
}
