package types

import "fmt"

// WorkUnitKind tags the granularity of a unit of ingestion work.
type WorkUnitKind uint8

const (
	// UnitEpoch is one archive epoch (a fixed-size chunk of consecutive
	// blocks) for history backfill.
	UnitEpoch WorkUnitKind = iota + 1
	// UnitSlot is one beacon chain slot for head-following.
	UnitSlot
	// UnitBlock is one execution block number for state-diff backfill.
	UnitBlock
	// UnitSnapshot is one full-state snapshot height.
	UnitSnapshot
	// UnitTestEntry is one pre-encoded key/value pair index in test mode.
	UnitTestEntry
)

func (k WorkUnitKind) String() string {
	switch k {
	case UnitEpoch:
		return "epoch"
	case UnitSlot:
		return "slot"
	case UnitBlock:
		return "block"
	case UnitSnapshot:
		return "snapshot"
	case UnitTestEntry:
		return "test-entry"
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// WorkUnit is the minimal enumerable piece of ingestion work: an epoch index,
// a slot, a block number or a snapshot height. WorkUnits are comparable and
// ordered by Number within a run; the enumerator defines the traversal order.
type WorkUnit struct {
	Kind   WorkUnitKind
	Number uint64
}

func (u WorkUnit) String() string {
	return fmt.Sprintf("%s/%d", u.Kind, u.Number)
}

// Before reports whether u precedes other in the natural (ascending) order.
// Only meaningful between units of the same kind.
func (u WorkUnit) Before(other WorkUnit) bool {
	return u.Number < other.Number
}
