package engine

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/roach88/vidindex/internal/ir"
)

type handlerFunc func(e *Engine, ctx context.Context, es Entities, ev ir.Event) error

// handlers holds one handler per event kind. Each handler is idempotent
// under the position guard in Apply, and append-only children only move a
// counter when the row is new.
var handlers = map[ir.Kind]handlerFunc{
	ir.KindVideoAdded:       (*Engine).onVideoAdded,
	ir.KindVideoInfoUpdated: (*Engine).onVideoInfoUpdated,
	ir.KindVideoTipped:      (*Engine).onVideoTipped,
	ir.KindVideoLikeToggled: (*Engine).onVideoLikeToggled,
	ir.KindVideoCommented:   (*Engine).onVideoCommented,
	ir.KindVideoReported:    (*Engine).onVideoReported,
	ir.KindVideoRemoved:     (*Engine).onVideoRemoved,
	ir.KindVideoFlagToggled: (*Engine).onVideoFlagToggled,
}

func (e *Engine) dispatch(ctx context.Context, es Entities, ev ir.Event) error {
	h, ok := handlers[ev.Kind]
	if !ok {
		return &ir.SchemaError{Field: "kind", Value: string(ev.Kind), Reason: "no handler for event kind"}
	}
	return h(e, ctx, es, ev)
}

// loadVideo returns the target video, or ok == false after recording a
// stale reference.
func (e *Engine) loadVideo(ctx context.Context, es Entities, ev ir.Event, videoID uint64) (ir.Video, bool, error) {
	id := ir.VideoKey(videoID)
	v, ok, err := es.GetVideo(ctx, id)
	if err != nil {
		return ir.Video{}, false, fmt.Errorf("load video %s: %w", id, err)
	}
	if !ok {
		e.logger.Warn("stale reference: video not found",
			"video", id,
			"kind", ev.Kind,
			"position", ev.Position.String(),
		)
		e.metrics.observeStale(ev.Kind)
	}
	return v, ok, nil
}

func ensureChannel(ctx context.Context, es Entities, addr common.Address, ts int64) (string, error) {
	id := ir.ChannelKey(addr)
	if _, err := es.EnsureChannel(ctx, id, ts); err != nil {
		return "", fmt.Errorf("ensure channel %s: %w", id, err)
	}
	return id, nil
}

func (e *Engine) onVideoAdded(ctx context.Context, es Entities, ev ir.Event) error {
	p := ev.Payload.(ir.VideoAdded)

	owner, err := ensureChannel(ctx, es, p.Owner, ev.Timestamp)
	if err != nil {
		return err
	}

	var eoa string
	if p.EOA != (common.Address{}) {
		eoa = ir.ChannelKey(p.EOA)
	}

	v := ir.Video{
		ID:           ir.VideoKey(p.ID),
		Title:        p.Title,
		Description:  p.Description,
		Category:     p.Category,
		Location:     p.Location,
		ThumbnailRef: p.ThumbnailHash,
		ContentRef:   p.VideoHash,
		Channel:      owner,
		EOA:          eoa,
		TipAmount:    new(uint256.Int),
		CreatedAt:    ev.Timestamp,
		UpdatedAt:    ev.Timestamp,
	}
	_, exists, err := es.GetVideo(ctx, v.ID)
	if err != nil {
		return fmt.Errorf("load video %s: %w", v.ID, err)
	}
	if exists {
		e.logger.Info("video already exists, ignoring",
			"video", v.ID,
			"position", ev.Position.String(),
		)
		return nil
	}

	// Tips and reports delivered before the video was added are counted now.
	tips, reports, err := es.RecordedChildren(ctx, v.ID)
	if err != nil {
		return fmt.Errorf("children of video %s: %w", v.ID, err)
	}
	if !tips.IsZero() || reports > 0 {
		e.logger.Info("counting children recorded before video",
			"video", v.ID,
			"tip_amount", tips.Dec(),
			"reports", reports,
		)
		v.TipAmount = tips
		v.ReportCount = reports
	}

	if _, err := es.InsertVideo(ctx, v); err != nil {
		return fmt.Errorf("insert video %s: %w", v.ID, err)
	}
	return nil
}

func (e *Engine) onVideoInfoUpdated(ctx context.Context, es Entities, ev ir.Event) error {
	p := ev.Payload.(ir.VideoInfoUpdated)

	v, ok, err := e.loadVideo(ctx, es, ev, p.ID)
	if err != nil || !ok {
		return err
	}

	v.Title = p.Title
	v.Description = p.Description
	v.Category = p.Category
	v.Location = p.Location
	v.ThumbnailRef = p.ThumbnailHash
	v.UpdatedAt = ev.Timestamp
	return es.PutVideo(ctx, v)
}

func (e *Engine) onVideoTipped(ctx context.Context, es Entities, ev ir.Event) error {
	p := ev.Payload.(ir.VideoTipped)

	from, err := ensureChannel(ctx, es, p.From, ev.Timestamp)
	if err != nil {
		return err
	}
	v, ok, err := e.loadVideo(ctx, es, ev, p.VideoID)
	if err != nil {
		return err
	}

	// The tip is recorded even without its video; only the total waits.
	tip := ir.Tip{
		ID:        ir.TipKey(p.VideoID, p.TipID),
		Video:     ir.VideoKey(p.VideoID),
		Amount:    new(uint256.Int).Set(p.Amount),
		From:      from,
		TxRef:     ev.TxHash.Hex(),
		CreatedAt: ev.Timestamp,
	}
	inserted, err := es.InsertTip(ctx, tip)
	if err != nil {
		return fmt.Errorf("insert tip %s: %w", tip.ID, err)
	}
	if !inserted {
		e.logger.Debug("tip already recorded", "tip", tip.ID)
		return nil
	}
	if !ok {
		return nil
	}

	total, overflow := new(uint256.Int).AddOverflow(v.TipAmount, p.Amount)
	if overflow {
		return &ir.SchemaError{
			Field:  "amount",
			Value:  p.Amount.Dec(),
			Reason: fmt.Sprintf("tip total of video %s overflows 256 bits", v.ID),
		}
	}
	v.TipAmount = total
	return es.PutVideo(ctx, v)
}

// onVideoLikeToggled flips the (video, viewer) pair between liked and not
// liked. The current state is always read from the store.
func (e *Engine) onVideoLikeToggled(ctx context.Context, es Entities, ev ir.Event) error {
	p := ev.Payload.(ir.VideoLikeToggled)

	user, err := ensureChannel(ctx, es, p.User, ev.Timestamp)
	if err != nil {
		return err
	}
	v, ok, err := e.loadVideo(ctx, es, ev, p.VideoID)
	if err != nil || !ok {
		return err
	}

	key := ir.LikeKey(p.VideoID, p.User)
	_, liked, err := es.GetLike(ctx, key)
	if err != nil {
		return fmt.Errorf("load like %s: %w", key, err)
	}

	if liked {
		if _, err := es.DeleteLike(ctx, key); err != nil {
			return fmt.Errorf("delete like %s: %w", key, err)
		}
		if v.LikeCount == 0 {
			e.logger.Warn("like count would go negative, a prior like was missed",
				"video", v.ID,
				"like", key,
				"position", ev.Position.String(),
			)
		} else {
			v.LikeCount--
		}
	} else {
		if _, err := es.InsertLike(ctx, ir.Like{
			ID:        key,
			Video:     v.ID,
			LikedBy:   user,
			CreatedAt: ev.Timestamp,
		}); err != nil {
			return fmt.Errorf("insert like %s: %w", key, err)
		}
		v.LikeCount++
	}
	return es.PutVideo(ctx, v)
}

func (e *Engine) onVideoCommented(ctx context.Context, es Entities, ev ir.Event) error {
	p := ev.Payload.(ir.VideoCommented)

	author, err := ensureChannel(ctx, es, p.Author, ev.Timestamp)
	if err != nil {
		return err
	}
	v, ok, err := e.loadVideo(ctx, es, ev, p.VideoID)
	if err != nil || !ok {
		return err
	}

	c := ir.Comment{
		ID:        ir.CommentKey(p.VideoID, p.CommentID),
		Video:     v.ID,
		Author:    author,
		Content:   p.Content,
		CreatedAt: ev.Timestamp,
	}
	inserted, err := es.InsertComment(ctx, c)
	if err != nil {
		return fmt.Errorf("insert comment %s: %w", c.ID, err)
	}
	if !inserted {
		return nil
	}
	v.CommentCount++
	return es.PutVideo(ctx, v)
}

func (e *Engine) onVideoReported(ctx context.Context, es Entities, ev ir.Event) error {
	p := ev.Payload.(ir.VideoReported)

	reason, err := ir.ReasonFromCode(p.Reason)
	if err != nil {
		return err
	}
	reporter, err := ensureChannel(ctx, es, p.Reporter, ev.Timestamp)
	if err != nil {
		return err
	}
	v, ok, err := e.loadVideo(ctx, es, ev, p.VideoID)
	if err != nil {
		return err
	}

	r := ir.Report{
		ID:          ir.ReportKey(p.VideoID, p.ReportID),
		Video:       ir.VideoKey(p.VideoID),
		Reason:      reason,
		Description: p.Description,
		Reporter:    reporter,
		CreatedAt:   ev.Timestamp,
	}
	inserted, err := es.InsertReport(ctx, r)
	if err != nil {
		return fmt.Errorf("insert report %s: %w", r.ID, err)
	}
	if !inserted || !ok {
		return nil
	}
	v.ReportCount++
	v.UpdatedAt = ev.Timestamp
	return es.PutVideo(ctx, v)
}

// onVideoRemoved sets the removed flag. The flag never goes back to false.
func (e *Engine) onVideoRemoved(ctx context.Context, es Entities, ev ir.Event) error {
	p := ev.Payload.(ir.VideoRemoved)

	v, ok, err := e.loadVideo(ctx, es, ev, p.VideoID)
	if err != nil || !ok {
		return err
	}
	if v.Removed {
		e.logger.Debug("video already removed", "video", v.ID)
		return nil
	}
	v.Removed = true
	v.UpdatedAt = ev.Timestamp
	return es.PutVideo(ctx, v)
}

// onVideoFlagToggled copies the flag from the event; it is last write wins,
// not a toggle of the stored value.
func (e *Engine) onVideoFlagToggled(ctx context.Context, es Entities, ev ir.Event) error {
	p := ev.Payload.(ir.VideoFlagToggled)

	v, ok, err := e.loadVideo(ctx, es, ev, p.VideoID)
	if err != nil || !ok {
		return err
	}
	v.Flagged = p.IsFlagged
	v.UpdatedAt = ev.Timestamp
	return es.PutVideo(ctx, v)
}
