package simplemedia

import (
	"context"
	"errors"
	"fmt"
)

// BulkChangeStatus writes status to every listed video that exists. It runs
// no hooks, reclaims nothing and leaves PublishedAt untouched. Missing IDs
// are skipped and the number of updated videos is returned.
func (s *service) BulkChangeStatus(ctx context.Context, ids []int64, status VideoStatus) (int64, error) {
	if !status.IsValid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	updated, err := s.repository.SetVideoStatus(ctx, ids, status)
	if err != nil {
		return 0, fmt.Errorf("failed to change status of %d videos: %w", len(ids), err)
	}

	if err := s.eventSink.StatusChanged(context.WithoutCancel(ctx), ids, status, updated); err != nil {
		s.logger.WarnContext(ctx, "failed to publish status event", "status", status, "error", err)
	}
	return updated, nil
}

// BulkDelete destroys every listed video that exists: its assets are
// reclaimed, then its row is removed. Missing IDs are skipped. Reclamation
// failures are logged and do not stop the removal. A video whose removal
// fails is logged and the batch continues; those failures are joined into the
// returned error alongside the count of videos actually deleted.
func (s *service) BulkDelete(ctx context.Context, ids []int64) (int64, error) {
	var (
		deleted    []int64
		removeErrs []error
	)
	for _, id := range uniqueIDs(ids) {
		video, err := s.repository.GetVideo(ctx, id)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				continue
			}
			s.logger.ErrorContext(ctx, "bulk delete: failed to load video", "video_id", id, "error", err)
			removeErrs = append(removeErrs, err)
			continue
		}

		if err := s.deleteVideo(ctx, video); err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				continue
			}
			s.logger.ErrorContext(ctx, "bulk delete: failed to remove video", "video_id", id, "error", err)
			s.hooks.executeOnError(ctx, "bulk_delete", err)
			removeErrs = append(removeErrs, err)
			continue
		}
		deleted = append(deleted, id)
	}

	s.publishDeleted(ctx, RecordKindVideo, deleted)
	return int64(len(deleted)), errors.Join(removeErrs...)
}

// uniqueIDs drops duplicates and keeps first-seen order.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
