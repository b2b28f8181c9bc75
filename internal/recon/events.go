package recon

import "context"

// Stats is the running summary handed to observers and to the rendering
// layer.
type Stats struct {
	Comments  int  `json:"comments"`
	Removed   int  `json:"removed"`
	Deleted   int  `json:"deleted"`
	LoadedAll bool `json:"loaded_all"`
}

// EventSink receives structured load events from the engine. Sinks must not
// block for long; emit errors never interrupt a load.
type EventSink interface {
	EmitLoadStart(ctx context.Context, sessionID, threadID string) error
	EmitPageFetched(ctx context.Context, sessionID string, items, newItems int) error
	EmitBatchMerged(ctx context.Context, sessionID string, size int) error
	EmitMergeConflict(ctx context.Context, sessionID string, firstCreated, nextFirstCreated int64) error
	EmitContextWidened(ctx context.Context, sessionID, commentID string, ancestors int) error
	EmitLoadEnd(ctx context.Context, sessionID string, stats Stats) error
	EmitLoadFailed(ctx context.Context, sessionID string, reason string) error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) EmitLoadStart(context.Context, string, string) error           { return nil }
func (NopSink) EmitPageFetched(context.Context, string, int, int) error       { return nil }
func (NopSink) EmitBatchMerged(context.Context, string, int) error            { return nil }
func (NopSink) EmitMergeConflict(context.Context, string, int64, int64) error { return nil }
func (NopSink) EmitContextWidened(context.Context, string, string, int) error { return nil }
func (NopSink) EmitLoadEnd(context.Context, string, Stats) error              { return nil }
func (NopSink) EmitLoadFailed(context.Context, string, string) error          { return nil }

// MultiSink fans every event out to each member sink and returns the first
// emit error, after all members have been offered the event.
type MultiSink []EventSink

func (m MultiSink) EmitLoadStart(ctx context.Context, sessionID, threadID string) error {
	var first error
	for _, s := range m {
		if err := s.EmitLoadStart(ctx, sessionID, threadID); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiSink) EmitPageFetched(ctx context.Context, sessionID string, items, newItems int) error {
	var first error
	for _, s := range m {
		if err := s.EmitPageFetched(ctx, sessionID, items, newItems); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiSink) EmitBatchMerged(ctx context.Context, sessionID string, size int) error {
	var first error
	for _, s := range m {
		if err := s.EmitBatchMerged(ctx, sessionID, size); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiSink) EmitMergeConflict(ctx context.Context, sessionID string, firstCreated, nextFirstCreated int64) error {
	var first error
	for _, s := range m {
		if err := s.EmitMergeConflict(ctx, sessionID, firstCreated, nextFirstCreated); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiSink) EmitContextWidened(ctx context.Context, sessionID, commentID string, ancestors int) error {
	var first error
	for _, s := range m {
		if err := s.EmitContextWidened(ctx, sessionID, commentID, ancestors); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiSink) EmitLoadEnd(ctx context.Context, sessionID string, stats Stats) error {
	var first error
	for _, s := range m {
		if err := s.EmitLoadEnd(ctx, sessionID, stats); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiSink) EmitLoadFailed(ctx context.Context, sessionID string, reason string) error {
	var first error
	for _, s := range m {
		if err := s.EmitLoadFailed(ctx, sessionID, reason); err != nil && first == nil {
			first = err
		}
	}
	return first
}
