package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portalnetwork/bridge/internal/provider"
	"github.com/portalnetwork/bridge/types"
)

// flakyProvider fails a scripted number of times per unit before serving.
type flakyProvider struct {
	mtx      sync.Mutex
	failures map[uint64]int
	failWith error
	records  map[uint64][]types.Record
	calls    int
}

func newFlakyProvider() *flakyProvider {
	return &flakyProvider{
		failures: make(map[uint64]int),
		failWith: provider.ErrUnavailable,
		records:  make(map[uint64][]types.Record),
	}
}

func (p *flakyProvider) Fetch(ctx context.Context, unit types.WorkUnit) ([]types.Record, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.calls++
	if p.failures[unit.Number] > 0 {
		p.failures[unit.Number]--
		return nil, p.failWith
	}
	return p.records[unit.Number], nil
}

func (p *flakyProvider) callCount() int {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.calls
}

func diffRecord(number uint64) types.Record {
	var h types.Hash
	h[0] = byte(number)
	return &types.StateDiffRecord{
		BlockNumber: number,
		Accounts: []types.AccountDiff{
			{AddressHash: h, Before: []byte("a"), After: []byte("b")},
		},
	}
}

func sourceOptions() SourceOptions {
	return SourceOptions{
		RetryAttempts:  3,
		AttemptTimeout: time.Second,
		RetryWaitMin:   time.Millisecond,
	}
}

func TestProviderSourceDerivesPairs(t *testing.T) {
	p := newFlakyProvider()
	p.records[7] = []types.Record{diffRecord(7)}

	source, err := NewProviderSource(p, sourceOptions())
	require.NoError(t, err)

	items, err := source.Pairs(context.Background(), types.WorkUnit{Kind: types.UnitBlock, Number: 7})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NoError(t, types.ValidateContentKey(items[0].Key))
}

func TestProviderSourceRetriesUnavailable(t *testing.T) {
	p := newFlakyProvider()
	p.failures[7] = 2
	p.records[7] = []types.Record{diffRecord(7)}

	source, err := NewProviderSource(p, sourceOptions())
	require.NoError(t, err)

	items, err := source.Pairs(context.Background(), types.WorkUnit{Kind: types.UnitBlock, Number: 7})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, p.callCount())
}

func TestProviderSourceGivesUpAfterBudget(t *testing.T) {
	p := newFlakyProvider()
	p.failures[7] = 100

	source, err := NewProviderSource(p, sourceOptions())
	require.NoError(t, err)

	_, err = source.Pairs(context.Background(), types.WorkUnit{Kind: types.UnitBlock, Number: 7})
	require.ErrorIs(t, err, provider.ErrUnavailable)
	assert.Equal(t, 3, p.callCount())
}

func TestProviderSourceCorruptIsPermanent(t *testing.T) {
	p := newFlakyProvider()
	p.failures[7] = 100
	p.failWith = provider.ErrCorrupt

	source, err := NewProviderSource(p, sourceOptions())
	require.NoError(t, err)

	_, err = source.Pairs(context.Background(), types.WorkUnit{Kind: types.UnitBlock, Number: 7})
	require.ErrorIs(t, err, provider.ErrCorrupt)
	assert.Equal(t, 1, p.callCount(), "corrupt data is not retried")
}

func TestProviderSourceSkipsNotFound(t *testing.T) {
	p := newFlakyProvider()
	p.failures[7] = 100
	p.failWith = provider.ErrNotFound

	opts := sourceOptions()
	opts.SkipNotFound = true
	source, err := NewProviderSource(p, opts)
	require.NoError(t, err)

	_, err = source.Pairs(context.Background(), types.WorkUnit{Kind: types.UnitSlot, Number: 7})
	require.ErrorIs(t, err, errUnitSkipped)
	assert.Equal(t, 1, p.callCount(), "empty slots are not retried")

	// without the flag, NotFound is retried like Unavailable
	p2 := newFlakyProvider()
	p2.failures[7] = 100
	p2.failWith = provider.ErrNotFound
	source, err = NewProviderSource(p2, sourceOptions())
	require.NoError(t, err)
	_, err = source.Pairs(context.Background(), types.WorkUnit{Kind: types.UnitBlock, Number: 7})
	require.ErrorIs(t, err, provider.ErrNotFound)
	assert.Equal(t, 3, p2.callCount())
}
