package codec

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portalnetwork/bridge/types"
)

func hashOf(b byte) types.Hash {
	var h types.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func TestHistoryPairs(t *testing.T) {
	rec := &types.BlockRecord{
		Number:   15537393,
		Hash:     hashOf(0xaa),
		Header:   []byte("header-rlp"),
		Body:     []byte("body-rlp"),
		Receipts: []byte("receipts-rlp"),
		Proof:    []byte("accumulator-proof"),
	}

	pairs, err := HistoryPairs(rec)
	require.NoError(t, err)
	require.Len(t, pairs, 1)

	require.NoError(t, types.ValidateContentKey(pairs[0].Key))
	assert.True(t, pairs[0].Key.Equal(types.HistoryBlockKey(rec.Hash)))

	header, proof, body, receipts, err := DecodeHistoryValue(pairs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, rec.Header, header)
	assert.Equal(t, rec.Proof, proof)
	assert.Equal(t, rec.Body, body)
	assert.Equal(t, rec.Receipts, receipts)
}

func TestHistoryPairsMalformed(t *testing.T) {
	testCases := map[string]*types.BlockRecord{
		"no header":  {Number: 1, Hash: hashOf(1), Body: []byte("b")},
		"no body":    {Number: 1, Hash: hashOf(1), Header: []byte("h")},
		"zero hash":  {Number: 1, Header: []byte("h"), Body: []byte("b")},
	}
	for name, rec := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := HistoryPairs(rec)
			require.ErrorIs(t, err, ErrMalformedRecord)
		})
	}
}

func TestBeaconPairs(t *testing.T) {
	rec := &types.BeaconBlockRecord{
		Slot:  100,
		Root:  hashOf(0xbb),
		Block: []byte("signed-beacon-block"),
	}

	pairs, err := BeaconPairs(rec)
	require.NoError(t, err)
	require.Len(t, pairs, 1)

	root, block, err := DecodeBeaconBlockValue(pairs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, rec.Root, root)
	assert.Equal(t, rec.Block, block)
}

func TestBeaconPairsPeriodBoundary(t *testing.T) {
	boundary := uint64(3 * PeriodSlots)

	// boundary slot without an update is malformed
	_, err := BeaconPairs(&types.BeaconBlockRecord{
		Slot:  boundary,
		Root:  hashOf(1),
		Block: []byte("block"),
	})
	require.ErrorIs(t, err, ErrMalformedRecord)

	pairs, err := BeaconPairs(&types.BeaconBlockRecord{
		Slot:   boundary,
		Root:   hashOf(1),
		Block:  []byte("block"),
		Update: []byte("light-client-update"),
	})
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.True(t, pairs[1].Key.Equal(types.LightClientUpdateKey(3)))
	assert.Equal(t, types.ContentValue("light-client-update"), pairs[1].Value)

	// non-boundary slots ignore the update field
	pairs, err = BeaconPairs(&types.BeaconBlockRecord{
		Slot:   boundary + 1,
		Root:   hashOf(1),
		Block:  []byte("block"),
		Update: []byte("stale"),
	})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
}

func TestStateDiffPairsLastWriteWins(t *testing.T) {
	rec := &types.StateDiffRecord{
		BlockNumber: 50,
		Accounts: []types.AccountDiff{
			{AddressHash: hashOf(1), Before: []byte("a0"), After: []byte("a1")},
			{AddressHash: hashOf(2), Before: []byte("b0"), After: []byte("b1")},
			{AddressHash: hashOf(1), Before: []byte("a1"), After: []byte("a2")},
		},
	}

	pairs, err := StateDiffPairs(rec)
	require.NoError(t, err)
	require.Len(t, pairs, 2, "touches of the same account must collapse")

	before, after, err := DecodeAccountDiffValue(pairs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, []byte("a0"), before, "earliest before-value wins")
	assert.Equal(t, []byte("a2"), after, "latest after-value wins")

	assert.True(t, pairs[0].Key.Equal(types.AccountDiffKey(50, hashOf(1))))
	assert.True(t, pairs[1].Key.Equal(types.AccountDiffKey(50, hashOf(2))))
}

func TestStateDiffPairsMalformed(t *testing.T) {
	_, err := StateDiffPairs(&types.StateDiffRecord{BlockNumber: 1})
	require.ErrorIs(t, err, ErrMalformedRecord)

	_, err = StateDiffPairs(&types.StateDiffRecord{
		BlockNumber: 1,
		Accounts:    []types.AccountDiff{{After: []byte("x")}},
	})
	require.ErrorIs(t, err, ErrMalformedRecord)
}

func TestSnapshotRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	data := make([]byte, 3*MaxChunkSize+12345)
	_, err := rng.Read(data)
	require.NoError(t, err)

	rec := &types.StateSnapshotRecord{Height: 1000000, Data: data}
	pairs, err := SnapshotPairs(rec)
	require.NoError(t, err)
	require.Len(t, pairs, 4)

	for i, pair := range pairs {
		require.NoError(t, types.ValidateContentKey(pair.Key))
		assert.True(t, pair.Key.Equal(types.SnapshotChunkKey(1000000, uint32(i))))
	}

	// reassembly is order independent
	values := []types.ContentValue{
		pairs[2].Value, pairs[0].Value, pairs[3].Value, pairs[1].Value,
	}
	out, err := ReassembleSnapshot(1000000, values)
	require.NoError(t, err)
	require.True(t, bytes.Equal(data, out), "reassembled snapshot differs from original")
}

func TestSnapshotSingleChunk(t *testing.T) {
	rec := &types.StateSnapshotRecord{Height: 7, Data: []byte("tiny snapshot")}
	pairs, err := SnapshotPairs(rec)
	require.NoError(t, err)
	require.Len(t, pairs, 1)

	out, err := ReassembleSnapshot(7, []types.ContentValue{pairs[0].Value})
	require.NoError(t, err)
	assert.Equal(t, rec.Data, out)
}

func TestReassembleSnapshotErrors(t *testing.T) {
	data := make([]byte, 2*MaxChunkSize)
	pairs, err := SnapshotPairs(&types.StateSnapshotRecord{Height: 9, Data: data})
	require.NoError(t, err)
	require.Len(t, pairs, 2)

	// missing chunk
	_, err = ReassembleSnapshot(9, []types.ContentValue{pairs[0].Value})
	require.Error(t, err)

	// duplicated chunk
	_, err = ReassembleSnapshot(9, []types.ContentValue{pairs[0].Value, pairs[0].Value})
	require.Error(t, err)

	// wrong height
	_, err = ReassembleSnapshot(10, []types.ContentValue{pairs[0].Value, pairs[1].Value})
	require.Error(t, err)

	// corrupted payload
	corrupted := append(types.ContentValue(nil), pairs[1].Value...)
	corrupted[len(corrupted)-1] ^= 0xff
	_, err = ReassembleSnapshot(9, []types.ContentValue{pairs[0].Value, corrupted})
	require.Error(t, err)
}

func TestSnapshotEmpty(t *testing.T) {
	_, err := SnapshotPairs(&types.StateSnapshotRecord{Height: 1})
	require.ErrorIs(t, err, ErrMalformedRecord)
}

func TestDeriveDispatch(t *testing.T) {
	pairs, err := Derive(&types.BlockRecord{
		Number: 1, Hash: hashOf(1), Header: []byte("h"), Body: []byte("b"),
	})
	require.NoError(t, err)
	require.Len(t, pairs, 1)

	_, err = Derive(nil)
	require.ErrorIs(t, err, ErrMalformedRecord)
}
