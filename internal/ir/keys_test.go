package ir

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	user := common.HexToAddress("0xBbBB000000000000000000000000000000000001")

	assert.Equal(t, "0xbbbb000000000000000000000000000000000001", ChannelKey(user))
	assert.Equal(t, "42", VideoKey(42))
	assert.Equal(t, "1-1", TipKey(1, 1))
	assert.Equal(t, "1-7", CommentKey(1, 7))
	assert.Equal(t, "3-2", ReportKey(3, 2))
	assert.Equal(t, "1-0xbbbb000000000000000000000000000000000001", LikeKey(1, user))
}

func TestKeysRepeatable(t *testing.T) {
	user := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	for range 5 {
		assert.Equal(t, LikeKey(9, user), LikeKey(9, user))
		assert.Equal(t, TipKey(9, 3), TipKey(9, 3))
	}
}

func TestKeysDoNotCollideAcrossParents(t *testing.T) {
	// Video 1 tip 12 and video 11 tip 2 must not share a key.
	assert.NotEqual(t, TipKey(1, 12), TipKey(11, 2))
	assert.NotEqual(t, CommentKey(12, 1), CommentKey(1, 21))
}
