package simplemedia

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
// Useful for production when you don't need event handling or for testing
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) AssetReclaimed(ctx context.Context, event AssetReclaimedEvent) error {
	return nil
}

func (n *NoopEventSink) ThumbnailGenerated(ctx context.Context, videoID int64, result ThumbnailResult) error {
	return nil
}

func (n *NoopEventSink) RecordsDeleted(ctx context.Context, kind RecordKind, ids []int64) error {
	return nil
}

func (n *NoopEventSink) StatusChanged(ctx context.Context, ids []int64, status VideoStatus, updated int64) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other action
// Useful for development and debugging
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) AssetReclaimed(ctx context.Context, event AssetReclaimedEvent) error {
	l.logger.InfoContext(ctx, "asset reclaimed",
		"kind", event.Kind, "record_id", event.RecordID, "field", event.Field, "key", event.Key)
	return nil
}

func (l *LoggingEventSink) ThumbnailGenerated(ctx context.Context, videoID int64, result ThumbnailResult) error {
	if result.Degraded() {
		l.logger.WarnContext(ctx, "thumbnail degraded", "video_id", videoID, "reason", result.Reason)
		return nil
	}
	l.logger.InfoContext(ctx, "thumbnail attached", "video_id", videoID, "key", result.Key)
	return nil
}

func (l *LoggingEventSink) RecordsDeleted(ctx context.Context, kind RecordKind, ids []int64) error {
	l.logger.InfoContext(ctx, "records deleted", "kind", kind, "ids", ids)
	return nil
}

func (l *LoggingEventSink) StatusChanged(ctx context.Context, ids []int64, status VideoStatus, updated int64) error {
	l.logger.InfoContext(ctx, "video status changed", "status", status, "requested", len(ids), "updated", updated)
	return nil
}

// MultiEventSink fans every event out to each sink in order and returns the
// first error after all sinks have run.
type MultiEventSink []EventSink

func (m MultiEventSink) AssetReclaimed(ctx context.Context, event AssetReclaimedEvent) error {
	var first error
	for _, s := range m {
		if err := s.AssetReclaimed(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiEventSink) ThumbnailGenerated(ctx context.Context, videoID int64, result ThumbnailResult) error {
	var first error
	for _, s := range m {
		if err := s.ThumbnailGenerated(ctx, videoID, result); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiEventSink) RecordsDeleted(ctx context.Context, kind RecordKind, ids []int64) error {
	var first error
	for _, s := range m {
		if err := s.RecordsDeleted(ctx, kind, ids); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiEventSink) StatusChanged(ctx context.Context, ids []int64, status VideoStatus, updated int64) error {
	var first error
	for _, s := range m {
		if err := s.StatusChanged(ctx, ids, status, updated); err != nil && first == nil {
			first = err
		}
	}
	return first
}
