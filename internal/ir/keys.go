package ir

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// KeySeparator joins a parent id with a locally scoped id.
const KeySeparator = "-"

// Key derivation is pure: the same event fields always produce the same key,
// independent of processing order or wall-clock time.

// ChannelKey is the lower-cased 0x-prefixed hex form of an address.
func ChannelKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// VideoKey is the decimal form of the ledger-assigned video id.
func VideoKey(videoID uint64) string {
	return strconv.FormatUint(videoID, 10)
}

// TipKey identifies tip tipSeq of a video.
func TipKey(videoID, tipSeq uint64) string {
	return childKey(videoID, strconv.FormatUint(tipSeq, 10))
}

// CommentKey identifies comment commentSeq of a video.
func CommentKey(videoID, commentSeq uint64) string {
	return childKey(videoID, strconv.FormatUint(commentSeq, 10))
}

// ReportKey identifies report reportSeq of a video.
func ReportKey(videoID, reportSeq uint64) string {
	return childKey(videoID, strconv.FormatUint(reportSeq, 10))
}

// LikeKey identifies the like slot of one viewer on one video. There is at
// most one live Like per key.
func LikeKey(videoID uint64, user common.Address) string {
	return childKey(videoID, ChannelKey(user))
}

func childKey(videoID uint64, local string) string {
	return VideoKey(videoID) + KeySeparator + local
}
