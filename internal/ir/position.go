package ir

import (
	"cmp"
	"fmt"
)

// Position is the producer-assigned place of an event in the ledger: block,
// then transaction index within the block, then log index within the
// transaction. Positions are totally ordered and unique per event.
type Position struct {
	Block    uint64 `json:"block" yaml:"block"`
	TxIndex  uint32 `json:"tx" yaml:"tx"`
	LogIndex uint32 `json:"log" yaml:"log"`
}

// Compare returns -1, 0 or +1 depending on whether p sorts before, equal to
// or after other.
func (p Position) Compare(other Position) int {
	if c := cmp.Compare(p.Block, other.Block); c != 0 {
		return c
	}
	if c := cmp.Compare(p.TxIndex, other.TxIndex); c != 0 {
		return c
	}
	return cmp.Compare(p.LogIndex, other.LogIndex)
}

// Before reports whether p sorts strictly before other.
func (p Position) Before(other Position) bool {
	return p.Compare(other) < 0
}

// IsZero reports whether p is the zero position.
func (p Position) IsZero() bool {
	return p == Position{}
}

// String renders the position as block:tx:log.
func (p Position) String() string {
	return fmt.Sprintf("%d:%d:%d", p.Block, p.TxIndex, p.LogIndex)
}

func (p Position) toIR() IRObject {
	return IRObject{
		"block": IRInt(int64(p.Block)),
		"tx":    IRInt(int64(p.TxIndex)),
		"log":   IRInt(int64(p.LogIndex)),
	}
}
