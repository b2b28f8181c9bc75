package logging

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/restitch/internal/recon"
)

// Sink emits reconciliation events as structured log lines. It satisfies
// recon.EventSink and never returns an error; a load must not fail because
// a log line could not be written.
type Sink struct {
	log zerolog.Logger
}

// NewSink builds a sink on the given logger.
func NewSink(log zerolog.Logger) *Sink {
	return &Sink{log: log.With().Str("cmp", "recon").Logger()}
}

func (s *Sink) EmitLoadStart(ctx context.Context, sessionID, threadID string) error {
	s.log.Info().
		Str("session_id", sessionID).
		Str("thread_id", threadID).
		Msg("load started")
	return nil
}

func (s *Sink) EmitPageFetched(ctx context.Context, sessionID string, items, newItems int) error {
	s.log.Debug().
		Str("session_id", sessionID).
		Int("items", items).
		Int("new_items", newItems).
		Msg("archival page fetched")
	return nil
}

func (s *Sink) EmitBatchMerged(ctx context.Context, sessionID string, size int) error {
	s.log.Debug().
		Str("session_id", sessionID).
		Int("size", size).
		Msg("live batch merged")
	return nil
}

func (s *Sink) EmitMergeConflict(ctx context.Context, sessionID string, firstCreated, nextFirstCreated int64) error {
	s.log.Warn().
		Str("session_id", sessionID).
		Int64("first_created", firstCreated).
		Int64("next_first_created", nextFirstCreated).
		Msg("merged non-overlapping contigs")
	return nil
}

func (s *Sink) EmitContextWidened(ctx context.Context, sessionID, commentID string, ancestors int) error {
	s.log.Info().
		Str("session_id", sessionID).
		Str("comment_id", commentID).
		Int("ancestors", ancestors).
		Msg("context widened")
	return nil
}

func (s *Sink) EmitLoadEnd(ctx context.Context, sessionID string, stats recon.Stats) error {
	s.log.Info().
		Str("session_id", sessionID).
		Int("comments", stats.Comments).
		Int("removed", stats.Removed).
		Int("deleted", stats.Deleted).
		Bool("loaded_all", stats.LoadedAll).
		Msg("load finished")
	return nil
}

func (s *Sink) EmitLoadFailed(ctx context.Context, sessionID string, reason string) error {
	s.log.Error().
		Str("session_id", sessionID).
		Str("reason", reason).
		Msg("load failed")
	return nil
}
