package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restitch/internal/recon"
)

// Collectors are package level, so tests assert deltas instead of absolutes.

func TestSink_SatisfiesEventSink(t *testing.T) {
	var _ recon.EventSink = NewSink()
}

func TestSink_CountsLoadLifecycle(t *testing.T) {
	ctx := context.Background()
	sink := NewSink()

	startedBefore := testutil.ToFloat64(loadsStarted)
	okBefore := testutil.ToFloat64(loadsFinished.WithLabelValues("ok"))
	failedBefore := testutil.ToFloat64(loadsFinished.WithLabelValues("failed"))

	require.NoError(t, sink.EmitLoadStart(ctx, "s1", "thr1"))
	require.NoError(t, sink.EmitLoadEnd(ctx, "s1", recon.Stats{Comments: 5, Removed: 2, Deleted: 1}))

	require.NoError(t, sink.EmitLoadStart(ctx, "s2", "thr1"))
	require.NoError(t, sink.EmitLoadFailed(ctx, "s2", "archival page fetch: boom"))

	assert.Equal(t, startedBefore+2, testutil.ToFloat64(loadsStarted))
	assert.Equal(t, okBefore+1, testutil.ToFloat64(loadsFinished.WithLabelValues("ok")))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(loadsFinished.WithLabelValues("failed")))

	assert.Equal(t, float64(5), testutil.ToFloat64(loadedComments.WithLabelValues("total")))
	assert.Equal(t, float64(2), testutil.ToFloat64(loadedComments.WithLabelValues("removed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(loadedComments.WithLabelValues("deleted")))
}

func TestSink_CountsProgressEvents(t *testing.T) {
	ctx := context.Background()
	sink := NewSink()

	pagesBefore := testutil.ToFloat64(pagesFetched)
	discoveredBefore := testutil.ToFloat64(commentsDiscovered)
	batchesBefore := testutil.ToFloat64(batchesMerged)
	conflictsBefore := testutil.ToFloat64(mergeConflicts)
	widensBefore := testutil.ToFloat64(contextWidens)

	require.NoError(t, sink.EmitPageFetched(ctx, "s1", 100, 97))
	require.NoError(t, sink.EmitPageFetched(ctx, "s1", 40, 40))
	require.NoError(t, sink.EmitBatchMerged(ctx, "s1", 100))
	require.NoError(t, sink.EmitMergeConflict(ctx, "s1", 0, 500))
	require.NoError(t, sink.EmitContextWidened(ctx, "s1", "c9", 3))

	assert.Equal(t, pagesBefore+2, testutil.ToFloat64(pagesFetched))
	assert.Equal(t, discoveredBefore+137, testutil.ToFloat64(commentsDiscovered))
	assert.Equal(t, batchesBefore+1, testutil.ToFloat64(batchesMerged))
	assert.Equal(t, conflictsBefore+1, testutil.ToFloat64(mergeConflicts))
	assert.Equal(t, widensBefore+1, testutil.ToFloat64(contextWidens))
}

func TestSink_ReleasesSessionStartsOnFinish(t *testing.T) {
	ctx := context.Background()
	sink := NewSink()

	require.NoError(t, sink.EmitLoadStart(ctx, "s1", "thr1"))
	require.NoError(t, sink.EmitLoadStart(ctx, "s2", "thr2"))
	require.NoError(t, sink.EmitLoadEnd(ctx, "s1", recon.Stats{}))
	require.NoError(t, sink.EmitLoadFailed(ctx, "s2", "cancelled"))

	// A finish without a matching start is tolerated.
	require.NoError(t, sink.EmitLoadEnd(ctx, "unknown", recon.Stats{}))

	assert.Empty(t, sink.starts)
	assert.NotZero(t, testutil.CollectAndCount(loadDuration))
}
