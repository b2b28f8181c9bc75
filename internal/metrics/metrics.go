// Package metrics exposes reconciliation progress as Prometheus series.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/restitch/internal/recon"
)

var (
	loadsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restitch_loads_started_total",
		Help: "Total reconciliation loads started",
	})

	loadsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restitch_loads_finished_total",
		Help: "Total reconciliation loads finished by status",
	}, []string{"status"})

	loadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "restitch_load_duration_seconds",
		Help:    "Reconciliation load duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~200s
	})

	pagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restitch_archival_pages_fetched_total",
		Help: "Total archival pages fetched",
	})

	commentsDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restitch_comments_discovered_total",
		Help: "Total new comments discovered on archival pages",
	})

	batchesMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restitch_live_batches_merged_total",
		Help: "Total live-source batches merged",
	})

	batchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "restitch_live_batch_size",
		Help:    "Comments returned per live-source batch",
		Buckets: []float64{1, 5, 10, 25, 50, 100},
	})

	mergeConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restitch_merge_conflicts_total",
		Help: "Total contig merges without a real range overlap",
	})

	contextWidens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "restitch_context_widens_total",
		Help: "Total ancestor context expansions",
	})

	loadedComments = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "restitch_loaded_comments",
		Help: "Comment tallies of the most recently finished load",
	}, []string{"state"})
)

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Sink implements recon.EventSink by updating the package collectors. One
// sink may serve engines for many threads; load durations are keyed by
// session id.
type Sink struct {
	mu     sync.Mutex
	starts map[string]time.Time
}

func NewSink() *Sink {
	return &Sink{starts: make(map[string]time.Time)}
}

func (s *Sink) EmitLoadStart(ctx context.Context, sessionID, threadID string) error {
	s.mu.Lock()
	s.starts[sessionID] = time.Now()
	s.mu.Unlock()

	loadsStarted.Inc()
	return nil
}

func (s *Sink) EmitPageFetched(ctx context.Context, sessionID string, items, newItems int) error {
	pagesFetched.Inc()
	commentsDiscovered.Add(float64(newItems))
	return nil
}

func (s *Sink) EmitBatchMerged(ctx context.Context, sessionID string, size int) error {
	batchesMerged.Inc()
	batchSize.Observe(float64(size))
	return nil
}

func (s *Sink) EmitMergeConflict(ctx context.Context, sessionID string, firstCreated, nextFirstCreated int64) error {
	mergeConflicts.Inc()
	return nil
}

func (s *Sink) EmitContextWidened(ctx context.Context, sessionID, commentID string, ancestors int) error {
	contextWidens.Inc()
	return nil
}

func (s *Sink) EmitLoadEnd(ctx context.Context, sessionID string, stats recon.Stats) error {
	s.observeDuration(sessionID)
	loadsFinished.WithLabelValues("ok").Inc()

	loadedComments.WithLabelValues("total").Set(float64(stats.Comments))
	loadedComments.WithLabelValues("removed").Set(float64(stats.Removed))
	loadedComments.WithLabelValues("deleted").Set(float64(stats.Deleted))
	return nil
}

func (s *Sink) EmitLoadFailed(ctx context.Context, sessionID string, reason string) error {
	s.observeDuration(sessionID)
	loadsFinished.WithLabelValues("failed").Inc()
	return nil
}

func (s *Sink) observeDuration(sessionID string) {
	s.mu.Lock()
	start, ok := s.starts[sessionID]
	delete(s.starts, sessionID)
	s.mu.Unlock()

	if ok {
		loadDuration.Observe(time.Since(start).Seconds())
	}
}
