package engine

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vidindex/internal/ir"
	"github.com/roach88/vidindex/internal/store"
	"github.com/roach88/vidindex/internal/testutil"
)

var (
	owner   = testutil.Addr(1)
	viewer  = testutil.Addr(2)
	critic  = testutil.Addr(3)
	ownerID = ir.ChannelKey(owner)
)

func TestVideoAdded_CreatesChannelAndVideo(t *testing.T) {
	e, s := newTestEngine(t)
	l := testutil.NewLedger()
	ctx := context.Background()

	added := l.VideoAdded(1, owner, "Sunset")
	mustApply(t, e, added)

	ch, ok, err := s.GetChannel(ctx, ownerID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ownerID, ch.Owner)
	assert.Equal(t, added.Timestamp, ch.CreatedAt)

	v := getVideo(t, s, "1")
	assert.Equal(t, "Sunset", v.Title)
	assert.Equal(t, "bafythumb1", v.ThumbnailRef)
	assert.Equal(t, "bafyvideo1", v.ContentRef)
	assert.Equal(t, ownerID, v.Channel)
	assert.Equal(t, "", v.EOA)
	assert.Equal(t, "0", v.TipAmount.Dec())
	assert.Zero(t, v.LikeCount)
	assert.Zero(t, v.CommentCount)
	assert.Zero(t, v.ReportCount)
	assert.False(t, v.Flagged)
	assert.False(t, v.Removed)
	assert.Equal(t, added.Timestamp, v.CreatedAt)
	assert.Equal(t, added.Timestamp, v.UpdatedAt)
}

func TestVideoAdded_RecordsEOA(t *testing.T) {
	e, s := newTestEngine(t)
	l := testutil.NewLedger()

	added := l.VideoAdded(1, owner, "Sunset")
	p := added.Payload.(ir.VideoAdded)
	p.EOA = testutil.Addr(9)
	added.Payload = p
	mustApply(t, e, added)

	assert.Equal(t, ir.ChannelKey(testutil.Addr(9)), getVideo(t, s, "1").EOA)
}

func TestVideoAdded_ExistingIDIsNoOp(t *testing.T) {
	e, s := newTestEngine(t)
	l := testutil.NewLedger()

	mustApply(t, e, l.VideoAdded(1, owner, "Original"))
	mustApply(t, e, l.VideoAdded(1, viewer, "Impostor"))

	v := getVideo(t, s, "1")
	assert.Equal(t, "Original", v.Title)
	assert.Equal(t, ownerID, v.Channel)
}

func TestVideoInfoUpdated(t *testing.T) {
	e, s := newTestEngine(t)
	l := testutil.NewLedger()

	added := l.VideoAdded(1, owner, "Sunset")
	updated := l.InfoUpdated(1, "Sunrise")
	mustApply(t, e, added, updated)

	v := getVideo(t, s, "1")
	assert.Equal(t, "Sunrise", v.Title)
	assert.Equal(t, "Music", v.Category)
	assert.Equal(t, "Porto", v.Location)
	assert.Equal(t, "bafythumb1-v2", v.ThumbnailRef)
	assert.Equal(t, "bafyvideo1", v.ContentRef, "content is not editable")
	assert.Equal(t, added.Timestamp, v.CreatedAt)
	assert.Equal(t, updated.Timestamp, v.UpdatedAt)
}

func TestVideoTipped_AddsToTotalAndRecordsTip(t *testing.T) {
	e, s := newTestEngine(t)
	l := testutil.NewLedger()
	ctx := context.Background()

	mustApply(t, e, l.VideoAdded(1, owner, "Sunset"))
	assert.Equal(t, "0", getVideo(t, s, "1").TipAmount.Dec())

	tipped := l.Tipped(1, 1, "500", viewer)
	mustApply(t, e, tipped)

	assert.Equal(t, "500", getVideo(t, s, "1").TipAmount.Dec())

	tip, ok, err := s.GetTip(ctx, "1-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", tip.Video)
	assert.Equal(t, "500", tip.Amount.Dec())
	assert.Equal(t, ir.ChannelKey(viewer), tip.From)
	assert.Equal(t, tipped.TxHash.Hex(), tip.TxRef)
	assert.Equal(t, tipped.Timestamp, tip.CreatedAt)

	_, ok, err = s.GetChannel(ctx, ir.ChannelKey(viewer))
	require.NoError(t, err)
	assert.True(t, ok, "tipper channel is created lazily")
}

func TestVideoTipped_LargeAmounts(t *testing.T) {
	e, s := newTestEngine(t)
	l := testutil.NewLedger()

	mustApply(t, e,
		l.VideoAdded(1, owner, "Sunset"),
		l.Tipped(1, 1, "18446744073709551616", viewer),
		l.Tipped(2, 1, "18446744073709551616", critic),
	)

	assert.Equal(t, "36893488147419103232", getVideo(t, s, "1").TipAmount.Dec())
}

func TestVideoTipped_OverflowIsSchemaViolation(t *testing.T) {
	e, s := newTestEngine(t)
	l := testutil.NewLedger()
	ctx := context.Background()

	maxTip := "115792089237316195423570985008687907853269984665640564039457584007913129639935"
	mustApply(t, e, l.VideoAdded(1, owner, "Sunset"), l.Tipped(1, 1, maxTip, viewer))

	_, err := e.Apply(ctx, l.Tipped(2, 1, "1", viewer))
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))

	assert.Equal(t, maxTip, getVideo(t, s, "1").TipAmount.Dec())
	_, ok, err := s.GetTip(ctx, "1-2")
	require.NoError(t, err)
	assert.False(t, ok, "the overflowing tip is rolled back")
}

func TestVideoTipped_RemovedVideoStillRecordsTip(t *testing.T) {
	e, s := newTestEngine(t)
	l := testutil.NewLedger()

	mustApply(t, e,
		l.VideoAdded(1, owner, "Sunset"),
		l.Removed(1),
		l.Tipped(1, 1, "7", viewer),
	)

	v := getVideo(t, s, "1")
	assert.True(t, v.Removed)
	assert.Equal(t, "7", v.TipAmount.Dec())

	_, ok, err := s.GetTip(context.Background(), "1-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStaleReferences(t *testing.T) {
	e, s := newTestEngine(t)
	l := testutil.NewLedger()
	ctx := context.Background()

	events := []ir.Event{
		l.InfoUpdated(9, "ghost"),
		l.Tipped(1, 9, "500", viewer),
		l.LikeToggled(9, viewer),
		l.Commented(1, 9, viewer, "hello?"),
		l.Reported(1, 9, 5, critic),
		l.Removed(9),
		l.Flagged(9, true),
	}
	mustApply(t, e, events...)

	_, ok, err := s.GetVideo(ctx, "9")
	require.NoError(t, err)
	assert.False(t, ok)

	tip, ok, err := s.GetTip(ctx, "9-1")
	require.NoError(t, err)
	require.True(t, ok, "tips are recorded without their video")
	assert.Equal(t, "9", tip.Video)
	assert.Equal(t, "500", tip.Amount.Dec())

	report, ok, err := s.GetReport(ctx, "9-1")
	require.NoError(t, err)
	require.True(t, ok, "reports are recorded without their video")
	assert.Equal(t, ir.ReasonChildAbuse, report.Reason)

	_, ok, err = s.GetComment(ctx, "9-1")
	require.NoError(t, err)
	assert.False(t, ok, "comments need their video")

	_, ok, err = s.GetLike(ctx, "9-"+ir.ChannelKey(viewer))
	require.NoError(t, err)
	assert.False(t, ok, "likes need their video")

	for _, actor := range []common.Address{viewer, critic} {
		_, ok, err = s.GetChannel(ctx, ir.ChannelKey(actor))
		require.NoError(t, err)
		assert.True(t, ok, "acting channel is still created")
	}

	cp, ok, err := s.Checkpoint(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, events[len(events)-1].Position, cp.Position, "stale events still advance the checkpoint")

	violations, err := s.Audit(ctx)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestVideoAdded_CountsEarlierTipsAndReports(t *testing.T) {
	e, s := newTestEngine(t)
	l := testutil.NewLedger()

	mustApply(t, e,
		l.Tipped(1, 9, "500", viewer),
		l.Tipped(2, 9, "25", critic),
		l.Reported(1, 9, 5, critic),
		l.VideoAdded(9, owner, "Late"),
		l.Tipped(3, 9, "5", viewer),
		l.Reported(2, 9, 0, viewer),
	)

	v := getVideo(t, s, "9")
	assert.Equal(t, "530", v.TipAmount.Dec())
	assert.Equal(t, int64(2), v.ReportCount)
	assertReplayMatches(t, s)
}

func TestVideoLikeToggled_Symmetry(t *testing.T) {
	e, s := newTestEngine(t)
	l := testutil.NewLedger()
	ctx := context.Background()
	likeID := "1-" + ir.ChannelKey(viewer)

	mustApply(t, e, l.VideoAdded(1, owner, "Sunset"))

	like := l.LikeToggled(1, viewer)
	mustApply(t, e, like)

	assert.Equal(t, int64(1), getVideo(t, s, "1").LikeCount)
	got, ok, err := s.GetLike(ctx, likeID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.ChannelKey(viewer), got.LikedBy)
	assert.Equal(t, like.Timestamp, got.CreatedAt)

	// The same viewer toggling again, at a later position, unlikes.
	mustApply(t, e, l.LikeToggled(1, viewer))

	assert.Equal(t, int64(0), getVideo(t, s, "1").LikeCount)
	_, ok, err = s.GetLike(ctx, likeID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVideoLikeToggled_CountsDistinctViewers(t *testing.T) {
	e, s := newTestEngine(t)
	l := testutil.NewLedger()

	mustApply(t, e,
		l.VideoAdded(1, owner, "Sunset"),
		l.LikeToggled(1, viewer),
		l.LikeToggled(1, critic),
		l.LikeToggled(1, owner),
		l.LikeToggled(1, critic),
	)

	assert.Equal(t, int64(2), getVideo(t, s, "1").LikeCount)

	violations, err := s.Audit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestVideoLikeToggled_FloorsAtZero(t *testing.T) {
	e, s := newTestEngine(t)
	l := testutil.NewLedger()
	ctx := context.Background()

	mustApply(t, e, l.VideoAdded(1, owner, "Sunset"), l.LikeToggled(1, viewer))

	// Simulate a counter that missed the like.
	err := s.Update(ctx, func(tx *store.Tx) error {
		v, _, err := tx.GetVideo(ctx, "1")
		if err != nil {
			return err
		}
		v.LikeCount = 0
		return tx.PutVideo(ctx, v)
	})
	require.NoError(t, err)

	mustApply(t, e, l.LikeToggled(1, viewer))

	assert.Equal(t, int64(0), getVideo(t, s, "1").LikeCount)
	_, ok, err := s.GetLike(ctx, "1-"+ir.ChannelKey(viewer))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVideoCommented(t *testing.T) {
	e, s := newTestEngine(t)
	l := testutil.NewLedger()

	commented := l.Commented(1, 1, critic, "great shot")
	mustApply(t, e, l.VideoAdded(1, owner, "Sunset"), commented, l.Commented(2, 1, viewer, "+1"))

	assert.Equal(t, int64(2), getVideo(t, s, "1").CommentCount)

	c, ok, err := s.GetComment(context.Background(), "1-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.ChannelKey(critic), c.Author)
	assert.Equal(t, "great shot", c.Content)
	assert.Equal(t, commented.Timestamp, c.CreatedAt)
}

func TestVideoReported_MapsReason(t *testing.T) {
	e, s := newTestEngine(t)
	l := testutil.NewLedger()

	reported := l.Reported(1, 1, 5, critic)
	mustApply(t, e, l.VideoAdded(1, owner, "Sunset"), reported)

	v := getVideo(t, s, "1")
	assert.Equal(t, int64(1), v.ReportCount)
	assert.Equal(t, reported.Timestamp, v.UpdatedAt)

	r, ok, err := s.GetReport(context.Background(), "1-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.ReasonChildAbuse, r.Reason)
	assert.Equal(t, "CHILD_ABUSE", r.Reason.String())
	assert.Equal(t, ir.ChannelKey(critic), r.Reporter)
}

func TestVideoReported_OutOfRangeReasonMutatesNothing(t *testing.T) {
	e, s := newTestEngine(t)
	l := testutil.NewLedger()
	ctx := context.Background()

	added := l.VideoAdded(1, owner, "Sunset")
	mustApply(t, e, added)
	before := digest(t, s)

	bad := l.Reported(1, 1, 99, critic)
	applied, err := e.Apply(ctx, bad)
	require.Error(t, err)
	assert.False(t, applied)
	assert.True(t, IsSchemaError(err))
	assert.True(t, IsFatal(err))

	var ie *IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, bad.Position, ie.Position)
	assert.Equal(t, ir.KindVideoReported, ie.Kind)
	assert.Equal(t, "reason", ie.Details["field"])

	assert.Equal(t, before, digest(t, s))
	_, ok, err := s.GetChannel(ctx, ir.ChannelKey(critic))
	require.NoError(t, err)
	assert.False(t, ok, "reporter channel is not created either")

	cp, _, err := s.Checkpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, added.Position, cp.Position)
}

func TestVideoRemoved_IsMonotonic(t *testing.T) {
	e, s := newTestEngine(t)
	l := testutil.NewLedger()

	first := l.Removed(1)
	mustApply(t, e, l.VideoAdded(1, owner, "Sunset"), first, l.Removed(1))

	v := getVideo(t, s, "1")
	assert.True(t, v.Removed)
	assert.Equal(t, first.Timestamp, v.UpdatedAt)

	// Later events never bring it back.
	mustApply(t, e, l.InfoUpdated(1, "Back?"), l.Flagged(1, false))
	assert.True(t, getVideo(t, s, "1").Removed)
}

func TestVideoFlagToggled_LastWriteWins(t *testing.T) {
	e, s := newTestEngine(t)
	l := testutil.NewLedger()

	mustApply(t, e, l.VideoAdded(1, owner, "Sunset"), l.Flagged(1, true), l.Flagged(1, true))
	assert.True(t, getVideo(t, s, "1").Flagged, "flag is set, not toggled")

	last := l.Flagged(1, false)
	mustApply(t, e, last)

	v := getVideo(t, s, "1")
	assert.False(t, v.Flagged)
	assert.Equal(t, last.Timestamp, v.UpdatedAt)
}

func TestCountersAreNonDecreasing(t *testing.T) {
	e, s := newTestEngine(t)
	l := testutil.NewLedger()

	mustApply(t, e, l.VideoAdded(1, owner, "Sunset"))

	var tips, comments, reports int64
	events := []ir.Event{
		l.Tipped(1, 1, "3", viewer),
		l.Commented(1, 1, viewer, "a"),
		l.Reported(1, 1, 0, viewer),
		l.LikeToggled(1, viewer),
		l.Removed(1),
		l.Tipped(2, 1, "4", critic),
		l.Reported(2, 1, 8, critic),
		l.Commented(2, 1, critic, "b"),
	}
	for _, ev := range events {
		mustApply(t, e, ev)
		v := getVideo(t, s, "1")
		assert.GreaterOrEqual(t, v.TipAmount.Uint64(), uint64(tips))
		assert.GreaterOrEqual(t, v.CommentCount, comments)
		assert.GreaterOrEqual(t, v.ReportCount, reports)
		tips, comments, reports = int64(v.TipAmount.Uint64()), v.CommentCount, v.ReportCount
	}

	assert.Equal(t, int64(7), tips)
	assert.Equal(t, int64(2), comments)
	assert.Equal(t, int64(2), reports)

	violations, err := s.Audit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, violations)
}
