package testutil

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/roach88/vidindex/internal/ir"
)

// GenesisTime is the timestamp of the first event a Ledger produces.
const GenesisTime int64 = 1_700_000_000

// BlockTime is the timestamp step between consecutive events.
const BlockTime int64 = 12

// Ledger produces events the way the upstream producer would: each event in
// its own block, positions strictly increasing, timestamps derived from the
// block number. Two Ledgers fed the same calls produce identical events.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Ledger struct {
	mu    sync.Mutex
	block uint64
}

// NewLedger creates a ledger whose first event lands in block 1.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Addr returns a deterministic, non-zero address for test actor n.
func Addr(n uint64) common.Address {
	return common.HexToAddress(fmt.Sprintf("0x%040x", n+0xa0))
}

// Amount builds a 256-bit amount from a decimal string and panics on bad
// input.
func Amount(dec string) *uint256.Int {
	return uint256.MustFromDecimal(dec)
}

func (l *Ledger) event(p ir.Payload) ir.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.block++
	return ir.Event{
		Kind:      p.Kind(),
		Position:  ir.Position{Block: l.block},
		Timestamp: GenesisTime + int64(l.block-1)*BlockTime,
		TxHash:    common.HexToHash(fmt.Sprintf("0x%064x", l.block)),
		Payload:   p,
	}
}

// Block returns the block of the last produced event.
func (l *Ledger) Block() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.block
}

// VideoAdded publishes video id owned by owner.
func (l *Ledger) VideoAdded(id uint64, owner common.Address, title string) ir.Event {
	return l.event(ir.VideoAdded{
		ID:            id,
		Title:         title,
		Description:   title + " description",
		Category:      "Education",
		Location:      "Lisbon",
		ThumbnailHash: fmt.Sprintf("bafythumb%d", id),
		VideoHash:     fmt.Sprintf("bafyvideo%d", id),
		Owner:         owner,
	})
}

// InfoUpdated renames video id.
func (l *Ledger) InfoUpdated(id uint64, title string) ir.Event {
	return l.event(ir.VideoInfoUpdated{
		ID:            id,
		Title:         title,
		Description:   title + " description",
		Category:      "Music",
		Location:      "Porto",
		ThumbnailHash: fmt.Sprintf("bafythumb%d-v2", id),
	})
}

// Tipped records tip tipSeq of amount (decimal) on videoID.
func (l *Ledger) Tipped(tipSeq, videoID uint64, amount string, from common.Address) ir.Event {
	return l.event(ir.VideoTipped{TipID: tipSeq, VideoID: videoID, Amount: Amount(amount), From: from})
}

// LikeToggled flips user's like on videoID.
func (l *Ledger) LikeToggled(videoID uint64, user common.Address) ir.Event {
	return l.event(ir.VideoLikeToggled{VideoID: videoID, User: user})
}

// Commented appends comment commentSeq on videoID.
func (l *Ledger) Commented(commentSeq, videoID uint64, author common.Address, content string) ir.Event {
	return l.event(ir.VideoCommented{CommentID: commentSeq, VideoID: videoID, Author: author, Content: content})
}

// Reported files report reportSeq on videoID with a raw reason code.
func (l *Ledger) Reported(reportSeq, videoID, reason uint64, reporter common.Address) ir.Event {
	return l.event(ir.VideoReported{
		ReportID:    reportSeq,
		VideoID:     videoID,
		Reason:      reason,
		Description: "reported in test",
		Reporter:    reporter,
	})
}

// Removed takes videoID down.
func (l *Ledger) Removed(videoID uint64) ir.Event {
	return l.event(ir.VideoRemoved{VideoID: videoID})
}

// Flagged sets the moderation flag of videoID.
func (l *Ledger) Flagged(videoID uint64, flagged bool) ir.Event {
	return l.event(ir.VideoFlagToggled{VideoID: videoID, IsFlagged: flagged})
}
