package enumerator

import (
	"github.com/portalnetwork/bridge/types"
)

// NewTest enumerates one unit per entry of a fixed content record list,
// ascending by entry index. Used by test mode, where the pairs are read
// straight from a file and the provider/codec stages are bypassed.
func NewTest(entries int, checkpoint *types.Checkpoint) (Enumerator, error) {
	if entries == 0 {
		return &rangeEnumerator{kind: types.UnitTestEntry, done: true}, nil
	}
	return newRange(types.UnitTestEntry, 0, uint64(entries-1), checkpoint)
}
