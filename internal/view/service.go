// Package view assembles reconciled thread views for the CLI and the HTTP
// API: it builds the configured sources, routes the post lookup around
// removed or restricted submissions, and drives the reconciliation engine.
package view

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/restitch/internal/config"
	"github.com/restitch/internal/recon"
	"github.com/restitch/internal/sources"
	"github.com/restitch/pkg/models"
)

// Service reconciles threads against one live and one archival source.
type Service struct {
	live    sources.LiveSource
	archive sources.ArchiveSource
	recon   recon.Config
	sink    recon.EventSink
	log     zerolog.Logger
}

// Options carries the collaborators for a view service.
type Options struct {
	Live    sources.LiveSource
	Archive sources.ArchiveSource
	Recon   recon.Config
	// Sink defaults to NopSink.
	Sink recon.EventSink
	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger
}

// NewService builds a service from explicit collaborators.
func NewService(opts Options) (*Service, error) {
	if opts.Live == nil || opts.Archive == nil {
		return nil, fmt.Errorf("both a live and an archival source are required")
	}
	sink := opts.Sink
	if sink == nil {
		sink = recon.NopSink{}
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Service{
		live:    opts.Live,
		archive: opts.Archive,
		recon:   opts.Recon,
		sink:    sink,
		log:     log,
	}, nil
}

// FromConfig builds a service with the sources named in the configuration.
func FromConfig(cfg *config.Config, sink recon.EventSink, logger *zerolog.Logger) (*Service, error) {
	live, err := NewLiveSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create live source: %w", err)
	}
	archive, err := NewArchiveSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive source: %w", err)
	}
	return NewService(Options{
		Live:    live,
		Archive: archive,
		Recon:   reconConfig(cfg),
		Sink:    sink,
		Logger:  logger,
	})
}

// LoadRequest describes one reconciliation pass over a thread.
type LoadRequest struct {
	ThreadID string
	// CommentID anchors the load at a permalinked comment instead of the
	// thread start. Parent back-filling is off in this mode.
	CommentID string
	// Target is the approximate number of new comments to fetch; zero
	// means one chunk.
	Target int
	// All keeps loading until every tracked range is complete.
	All bool
	// Context is the ancestor depth to widen after a permalink load.
	Context int
}

// ThreadView is the assembled result of a load: the post, every reconciled
// comment in arrival order, and the tallies for the summary line.
type ThreadView struct {
	Post     *models.Post      `json:"post"`
	Comments []*models.Comment `json:"comments"`
	Stats    recon.Stats       `json:"stats"`
}

// LoadThread reconciles a thread and returns its assembled view. Transient
// upstream failures propagate so the caller can decide whether to restart.
func (s *Service) LoadThread(ctx context.Context, req LoadRequest) (*ThreadView, error) {
	if req.ThreadID == "" {
		return nil, fmt.Errorf("thread id is required")
	}

	post, err := s.fetchPost(ctx, req.ThreadID)
	if err != nil {
		return nil, err
	}

	eng, err := recon.New(recon.Options{
		ThreadID: req.ThreadID,
		Live:     s.live,
		Archive:  s.archive,
		Config:   s.recon,
		Sink:     s.sink,
		Logger:   &s.log,
	})
	if err != nil {
		return nil, err
	}

	target := req.Target
	if target <= 0 {
		target = recon.DefaultChunkSize
	}

	if req.CommentID != "" {
		err = eng.LoadAt(ctx, req.CommentID, target)
	} else {
		err = eng.Load(ctx, target)
	}
	if err != nil {
		return nil, err
	}

	if req.All {
		if err := s.loadRemaining(ctx, eng, target); err != nil {
			return nil, err
		}
	}

	if req.CommentID != "" && req.Context > 0 {
		if err := eng.WidenContext(ctx, req.CommentID, req.Context); err != nil {
			return nil, err
		}
	}

	return &ThreadView{
		Post:     post,
		Comments: eng.Store().Ordered(),
		Stats:    eng.Stats(),
	}, nil
}

// loadRemaining keeps calling LoadMore until every tracked range reports
// complete. A pass that changes neither the store nor the ranges means the
// timeline cannot advance any further, so the loop stops there.
func (s *Service) loadRemaining(ctx context.Context, eng *recon.Engine, target int) error {
	for {
		contigs := eng.Contigs()
		done := true
		for _, c := range contigs {
			if !c.LoadedAllComments {
				done = false
				break
			}
		}
		if done {
			return nil
		}

		before := eng.Store().Len()
		if err := eng.LoadMore(ctx, target); err != nil {
			return err
		}
		if eng.Store().Len() == before && slices.Equal(eng.Contigs(), contigs) {
			s.log.Warn().Msg("full-coverage load stopped making progress")
			return nil
		}
	}
}

// fetchPost routes the post lookup: the live copy is authoritative, the
// archival copy covers restricted or vanished submissions, and a flagged
// placeholder keeps the view renderable when both miss.
func (s *Service) fetchPost(ctx context.Context, threadID string) (*models.Post, error) {
	post, err := s.live.GetPost(ctx, threadID)
	if err == nil {
		return post, nil
	}
	if !sources.IsForbidden(err) && !sources.IsNotFound(err) {
		return nil, fmt.Errorf("live post fetch: %w", err)
	}
	s.log.Debug().Err(err).Str("thread_id", threadID).Msg("live post unavailable, trying archive")

	post, archiveErr := s.archive.GetPost(ctx, threadID)
	if archiveErr == nil {
		return post, nil
	}
	if sources.IsNotFound(archiveErr) {
		return models.PlaceholderPost(threadID), nil
	}
	return nil, fmt.Errorf("archival post fetch: %w", archiveErr)
}
