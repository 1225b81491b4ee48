package types

import (
	"encoding/json"
	"fmt"
)

// Checkpoint records run progress so a restarted bridge does not regossip
// already-delivered data. Ascending-order modes track the last fully
// gossiped unit; randomized epoch mode additionally tracks the remaining
// shuffled epoch order, since a scalar position cannot resume a permutation.
//
// A nil *Checkpoint means "start from the mode-specified beginning".
type Checkpoint struct {
	// LastUnit is the highest unit, in enumeration order, whose derived
	// content has fully resolved.
	LastUnit *WorkUnit `json:"last_unit,omitempty"`

	// Remaining is the not-yet-processed tail of the shuffled epoch
	// sequence. Only set by randomized e2hs mode; a present-but-empty tail
	// means the shuffled run completed, which is distinct from the nil
	// tail of ascending modes.
	Remaining []uint64 `json:"remaining"`
}

// Marshal encodes the checkpoint for the checkpoint store.
func (c *Checkpoint) Marshal() ([]byte, error) {
	bz, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal checkpoint: %w", err)
	}
	return bz, nil
}

// UnmarshalCheckpoint decodes a stored checkpoint. Empty input yields nil,
// meaning no checkpoint.
func UnmarshalCheckpoint(bz []byte) (*Checkpoint, error) {
	if len(bz) == 0 {
		return nil, nil
	}
	c := new(Checkpoint)
	if err := json.Unmarshal(bz, c); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return c, nil
}
