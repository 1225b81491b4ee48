package enumerator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portalnetwork/bridge/libs/log"
	"github.com/portalnetwork/bridge/types"
)

type fakeHead struct {
	mtx  sync.Mutex
	slot uint64
}

func (f *fakeHead) HeadSlot(ctx context.Context) (uint64, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.slot, nil
}

func (f *fakeHead) advance(n uint64) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.slot += n
}

func TestLatestEmitsNewSlots(t *testing.T) {
	head := &fakeHead{slot: 100}
	e := NewLatest(log.NewTestingLogger(t), head, time.Millisecond, 2, 3, nil)

	ctx := context.Background()

	// first poll starts at head − lookback
	unit, err := e.Next(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 98, unit.Number)
	assert.Equal(t, types.UnitSlot, unit.Kind)

	for want := uint64(99); want <= 100; want++ {
		unit, err = e.Next(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, want, unit.Number)
	}

	// caught up; a new head appears during the poll suspension
	head.advance(2)
	unit, err = e.Next(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 101, unit.Number)
	unit, err = e.Next(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 102, unit.Number)
}

func TestLatestNeverReemits(t *testing.T) {
	head := &fakeHead{slot: 10}
	e := NewLatest(log.NewTestingLogger(t), head, time.Millisecond, 100, 3, nil)

	seen := make(map[uint64]bool)
	ctx := context.Background()
	for i := 0; i < 11; i++ {
		unit, err := e.Next(ctx)
		require.NoError(t, err)
		require.False(t, seen[unit.Number], "slot %d re-emitted", unit.Number)
		seen[unit.Number] = true
	}
}

func TestLatestResumeFromCheckpoint(t *testing.T) {
	head := &fakeHead{slot: 105}
	last := types.WorkUnit{Kind: types.UnitSlot, Number: 101}
	e := NewLatest(log.NewTestingLogger(t), head, time.Millisecond, 1000, 3, &types.Checkpoint{LastUnit: &last})

	unit, err := e.Next(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 102, unit.Number)
}

func TestLatestResumeClampedToLookback(t *testing.T) {
	// checkpoint far behind the head: resume from head − lookback instead
	head := &fakeHead{slot: 10000}
	last := types.WorkUnit{Kind: types.UnitSlot, Number: 5}
	e := NewLatest(log.NewTestingLogger(t), head, time.Millisecond, 32, 3, &types.Checkpoint{LastUnit: &last})

	unit, err := e.Next(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 10000-32, unit.Number)
}

// flakyHead fails its first few polls, then reports a fixed slot.
type flakyHead struct {
	mtx   sync.Mutex
	slot  uint64
	fails int
	calls int
}

func (f *flakyHead) HeadSlot(ctx context.Context) (uint64, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.calls++
	if f.fails > 0 {
		f.fails--
		return 0, errors.New("connection refused")
	}
	return f.slot, nil
}

func (f *flakyHead) pollCount() int {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.calls
}

func TestLatestToleratesTransientPollFailure(t *testing.T) {
	head := &flakyHead{slot: 50, fails: 1}
	e := NewLatest(log.NewTestingLogger(t), head, time.Millisecond, 0, 3, nil)

	unit, err := e.Next(context.Background())
	require.NoError(t, err, "one failed poll must not end the follow")
	assert.EqualValues(t, 50, unit.Number)
	assert.Equal(t, 2, head.pollCount())
}

func TestLatestPersistentPollFailureAborts(t *testing.T) {
	head := &flakyHead{slot: 50, fails: 1000}
	e := NewLatest(log.NewTestingLogger(t), head, time.Millisecond, 0, 3, nil)

	_, err := e.Next(context.Background())
	require.ErrorContains(t, err, "head poll")
	assert.Equal(t, 3, head.pollCount())
}

func TestLatestCancellation(t *testing.T) {
	head := &fakeHead{slot: 5}
	e := NewLatest(log.NewTestingLogger(t), head, time.Hour, 0, 3, nil)

	ctx, cancel := context.WithCancel(context.Background())

	// consume up to the head
	for i := 0; i < 1; i++ {
		_, err := e.Next(ctx)
		require.NoError(t, err)
	}

	// next call suspends on the poll interval; cancellation must unblock it
	done := make(chan error, 1)
	go func() {
		_, err := e.Next(ctx)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Next did not observe cancellation")
	}
}
