package enumerator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/portalnetwork/bridge/types"
)

// ErrDone terminates a finite enumeration. Follow-mode enumerators never
// return it.
var ErrDone = errors.New("enumeration done")

// Enumerator produces the sequence of work units for one run, in the mode's
// traversal order. Next blocks only in follow mode (on the poll interval)
// and honors context cancellation.
//
// Checkpoint builds the state to persist once the given unit has fully
// resolved; the orchestrator guarantees units commit contiguously in
// enumeration order, so position alone determines what remains.
type Enumerator interface {
	Next(ctx context.Context) (types.WorkUnit, error)
	Checkpoint(last types.WorkUnit) *types.Checkpoint
}

// rangeEnumerator emits every number in [next, hi] ascending with a fixed
// unit kind. Backs both single-range state mode and the degenerate snapshot
// enumeration.
type rangeEnumerator struct {
	kind types.WorkUnitKind
	next uint64
	hi   uint64
	done bool
}

// NewSingle enumerates one block unit per number in the inclusive [lo, hi]
// range, strictly ascending: later state diffs are only meaningful on top of
// earlier ones. A checkpoint inside the range resumes just past it.
func NewSingle(lo, hi uint64, checkpoint *types.Checkpoint) (Enumerator, error) {
	return newRange(types.UnitBlock, lo, hi, checkpoint)
}

// NewSnapshot enumerates exactly one snapshot unit at the target height,
// or nothing if the checkpoint already covers it.
func NewSnapshot(height uint64, checkpoint *types.Checkpoint) (Enumerator, error) {
	return newRange(types.UnitSnapshot, height, height, checkpoint)
}

func newRange(kind types.WorkUnitKind, lo, hi uint64, checkpoint *types.Checkpoint) (Enumerator, error) {
	if hi < lo {
		return nil, fmt.Errorf("range end %d is below range start %d", hi, lo)
	}
	e := &rangeEnumerator{kind: kind, next: lo, hi: hi}
	if checkpoint != nil && checkpoint.LastUnit != nil {
		last := *checkpoint.LastUnit
		if last.Kind != kind {
			return nil, fmt.Errorf("checkpoint unit %s does not match mode unit kind %s", last, kind)
		}
		if last.Number >= hi {
			e.done = true
		} else if last.Number >= lo {
			e.next = last.Number + 1
		}
	}
	return e, nil
}

func (e *rangeEnumerator) Next(ctx context.Context) (types.WorkUnit, error) {
	if err := ctx.Err(); err != nil {
		return types.WorkUnit{}, err
	}
	if e.done || e.next > e.hi {
		return types.WorkUnit{}, ErrDone
	}
	unit := types.WorkUnit{Kind: e.kind, Number: e.next}
	if e.next == e.hi {
		e.done = true
	} else {
		e.next++
	}
	return unit, nil
}

func (e *rangeEnumerator) Checkpoint(last types.WorkUnit) *types.Checkpoint {
	u := last
	return &types.Checkpoint{LastUnit: &u}
}

// epochEnumerator walks a fixed order of epoch indices, ascending or
// shuffled. The order is decided at construction; position alone determines
// the remaining permutation persisted for resume.
type epochEnumerator struct {
	order []uint64
	pos   int
	// index of each epoch within order, for Checkpoint
	posOf map[uint64]int
}

// NewE2HS partitions the inclusive block range [lo, hi] into fixed-size
// epochs and enumerates them ascending, or in a uniformly random permutation
// when randomize is set. Randomization applies at epoch granularity; the
// archive is epoch-chunked. The same seed reproduces the same order.
//
// A checkpoint carrying a remaining permutation resumes exactly that tail;
// a scalar checkpoint resumes the ascending order past the last unit.
func NewE2HS(lo, hi, epochSize uint64, randomize bool, seed int64, checkpoint *types.Checkpoint) (Enumerator, error) {
	if hi < lo {
		return nil, fmt.Errorf("range end %d is below range start %d", hi, lo)
	}
	if epochSize == 0 {
		return nil, errors.New("epoch size must be positive")
	}

	var order []uint64
	switch {
	case checkpoint != nil && checkpoint.Remaining != nil:
		// resume the persisted permutation tail; empty means the shuffled
		// run already completed
		order = append(order, checkpoint.Remaining...)

	default:
		for epoch := lo / epochSize; epoch <= hi/epochSize; epoch++ {
			order = append(order, epoch)
		}
		if checkpoint != nil && checkpoint.LastUnit != nil {
			last := checkpoint.LastUnit.Number
			for len(order) > 0 && order[0] <= last {
				order = order[1:]
			}
		}
		if randomize {
			rng := rand.New(rand.NewSource(seed))
			rng.Shuffle(len(order), func(i, j int) {
				order[i], order[j] = order[j], order[i]
			})
		}
	}

	posOf := make(map[uint64]int, len(order))
	for i, epoch := range order {
		posOf[epoch] = i
	}
	return &epochEnumerator{order: order, posOf: posOf}, nil
}

func (e *epochEnumerator) Next(ctx context.Context) (types.WorkUnit, error) {
	if err := ctx.Err(); err != nil {
		return types.WorkUnit{}, err
	}
	if e.pos >= len(e.order) {
		return types.WorkUnit{}, ErrDone
	}
	unit := types.WorkUnit{Kind: types.UnitEpoch, Number: e.order[e.pos]}
	e.pos++
	return unit, nil
}

func (e *epochEnumerator) Checkpoint(last types.WorkUnit) *types.Checkpoint {
	u := last
	c := &types.Checkpoint{LastUnit: &u, Remaining: []uint64{}}
	if i, ok := e.posOf[last.Number]; ok {
		c.Remaining = append(c.Remaining, e.order[i+1:]...)
	}
	return c
}
