package store

import (
	"context"

	"github.com/roach88/vidindex/internal/ir"
)

// Autocommit reads. Each returns found=false with a nil error when the row
// does not exist.

// GetChannel loads a channel by key.
func (s *Store) GetChannel(ctx context.Context, id string) (ir.Channel, bool, error) {
	return getChannel(ctx, s.db, id)
}

// GetVideo loads a video by key.
func (s *Store) GetVideo(ctx context.Context, id string) (ir.Video, bool, error) {
	return getVideo(ctx, s.db, id)
}

// GetTip loads a tip by key.
func (s *Store) GetTip(ctx context.Context, id string) (ir.Tip, bool, error) {
	return getTip(ctx, s.db, id)
}

// GetLike loads a like by key.
func (s *Store) GetLike(ctx context.Context, id string) (ir.Like, bool, error) {
	return getLike(ctx, s.db, id)
}

// GetComment loads a comment by key.
func (s *Store) GetComment(ctx context.Context, id string) (ir.Comment, bool, error) {
	return getComment(ctx, s.db, id)
}

// GetReport loads a report by key.
func (s *Store) GetReport(ctx context.Context, id string) (ir.Report, bool, error) {
	return getReport(ctx, s.db, id)
}
