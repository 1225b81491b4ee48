package codec

import (
	"fmt"

	"github.com/portalnetwork/bridge/types"
)

// Period returns the sync-committee period covering the given slot.
func Period(slot uint64) uint64 { return slot / PeriodSlots }

// IsPeriodBoundary reports whether the slot is the first of its
// sync-committee period.
func IsPeriodBoundary(slot uint64) bool { return slot%PeriodSlots == 0 }

// BeaconPairs derives the content pairs for one signed beacon block: the
// block itself, plus the light-client update when the slot opens a new
// sync-committee period.
func BeaconPairs(rec *types.BeaconBlockRecord) ([]Pair, error) {
	if len(rec.Block) == 0 {
		return nil, fmt.Errorf("%w: slot %d has no block body", ErrMalformedRecord, rec.Slot)
	}
	if rec.Root == (types.Hash{}) {
		return nil, fmt.Errorf("%w: slot %d has zero block root", ErrMalformedRecord, rec.Slot)
	}

	var blockValue []byte
	blockValue = appendSection(blockValue, rec.Root[:])
	blockValue = appendSection(blockValue, rec.Block)

	pairs := []Pair{{
		Key:   types.BeaconBlockKey(rec.Slot),
		Value: blockValue,
	}}

	if IsPeriodBoundary(rec.Slot) {
		if len(rec.Update) == 0 {
			return nil, fmt.Errorf("%w: slot %d opens period %d but carries no light-client update",
				ErrMalformedRecord, rec.Slot, Period(rec.Slot))
		}
		pairs = append(pairs, Pair{
			Key:   types.LightClientUpdateKey(Period(rec.Slot)),
			Value: types.ContentValue(rec.Update),
		})
	}

	return pairs, nil
}

// DecodeBeaconBlockValue splits a beacon block value into the block root and
// the encoded block.
func DecodeBeaconBlockValue(value types.ContentValue) (root types.Hash, block []byte, err error) {
	sections, err := readSections(value, 2)
	if err != nil {
		return types.Hash{}, nil, fmt.Errorf("decode beacon value: %w", err)
	}
	if len(sections[0]) != len(root) {
		return types.Hash{}, nil, fmt.Errorf("decode beacon value: root is %d bytes", len(sections[0]))
	}
	copy(root[:], sections[0])
	return root, sections[1], nil
}
