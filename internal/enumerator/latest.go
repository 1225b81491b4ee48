package enumerator

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/portalnetwork/bridge/libs/log"
	"github.com/portalnetwork/bridge/types"
)

// HeadSource reports the highest slot the provider has seen.
type HeadSource interface {
	HeadSlot(ctx context.Context) (uint64, error)
}

// latestEnumerator follows the chain head: every poll emits one unit per new
// slot since the last emitted one, ascending, never re-emitting a slot. The
// sequence is infinite; Next suspends on the poll interval between
// emissions and returns only on new slots or context cancellation.
//
// A failed head poll is not terminal: Next re-suspends with backoff and
// polls again, reporting the error only after failureBudget consecutive
// failures.
type latestEnumerator struct {
	logger   log.Logger
	head     HeadSource
	interval time.Duration

	// nextSlot is the first slot not yet emitted. Zero means the start is
	// still undecided (first poll picks head − lookback).
	nextSlot uint64
	started  bool
	// polled is set after the first successful head poll, which clamps a
	// checkpoint start up to head − lookback
	polled   bool
	lookback uint64
	// highest head seen; slots in (nextSlot, headSeen] are emitted without
	// polling again
	headSeen uint64

	failureBudget int
	pollFailures  int
	retryWait     backoff.BackOff
}

// NewLatest follows the beacon head, starting from the later of (checkpoint
// + 1, current head − lookback); the head side is resolved lazily at the
// first poll. failureBudget bounds consecutive failed head polls before
// Next gives up.
func NewLatest(logger log.Logger, head HeadSource, interval time.Duration, lookback uint64, failureBudget int, checkpoint *types.Checkpoint) Enumerator {
	if failureBudget < 1 {
		failureBudget = 1
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = interval
	bo.MaxInterval = 8 * interval
	bo.MaxElapsedTime = 0
	e := &latestEnumerator{
		logger:        logger,
		head:          head,
		interval:      interval,
		lookback:      lookback,
		failureBudget: failureBudget,
		retryWait:     bo,
	}
	if checkpoint != nil && checkpoint.LastUnit != nil && checkpoint.LastUnit.Kind == types.UnitSlot {
		e.nextSlot = checkpoint.LastUnit.Number + 1
		e.started = true
	}
	return e
}

func (e *latestEnumerator) Next(ctx context.Context) (types.WorkUnit, error) {
	for {
		if e.started && e.nextSlot <= e.headSeen {
			unit := types.WorkUnit{Kind: types.UnitSlot, Number: e.nextSlot}
			e.nextSlot++
			return unit, nil
		}

		head, err := e.head.HeadSlot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return types.WorkUnit{}, ctx.Err()
			}
			e.pollFailures++
			if e.pollFailures >= e.failureBudget {
				return types.WorkUnit{}, fmt.Errorf("head poll: %w", err)
			}
			e.logger.Error("head poll failed", "failures", e.pollFailures, "err", err)
			if err := e.suspend(ctx, e.retryWait.NextBackOff()); err != nil {
				return types.WorkUnit{}, err
			}
			continue
		}
		e.pollFailures = 0
		e.retryWait.Reset()
		if head > e.headSeen {
			e.headSeen = head
		}

		// resume from the later of (checkpoint + 1, head − lookback)
		start := uint64(0)
		if head > e.lookback {
			start = head - e.lookback
		}
		if !e.started || (!e.polled && start > e.nextSlot) {
			e.nextSlot = start
			e.started = true
		}
		e.polled = true

		if e.nextSlot <= e.headSeen {
			continue
		}

		// caught up; suspend until the next slot should exist
		if err := e.suspend(ctx, e.interval); err != nil {
			return types.WorkUnit{}, err
		}
	}
}

func (e *latestEnumerator) suspend(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *latestEnumerator) Checkpoint(last types.WorkUnit) *types.Checkpoint {
	u := last
	return &types.Checkpoint{LastUnit: &u}
}
