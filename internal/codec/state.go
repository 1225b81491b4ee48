package codec

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/snappy"

	"github.com/portalnetwork/bridge/types"
)

// StateDiffPairs derives one pair per account modified at the record's
// block. Accounts touched multiple times within the block collapse to a
// single final-state pair: the earliest before-value and the latest
// after-value win.
func StateDiffPairs(rec *types.StateDiffRecord) ([]Pair, error) {
	if len(rec.Accounts) == 0 {
		return nil, fmt.Errorf("%w: state diff for block %d has no accounts", ErrMalformedRecord, rec.BlockNumber)
	}

	type finalDiff struct {
		before []byte
		after  []byte
	}
	final := make(map[types.Hash]*finalDiff, len(rec.Accounts))
	order := make([]types.Hash, 0, len(rec.Accounts))

	for i, acct := range rec.Accounts {
		if acct.AddressHash == (types.Hash{}) {
			return nil, fmt.Errorf("%w: state diff for block %d: account %d has zero address hash",
				ErrMalformedRecord, rec.BlockNumber, i)
		}
		if d, ok := final[acct.AddressHash]; ok {
			d.after = acct.After
			continue
		}
		final[acct.AddressHash] = &finalDiff{before: acct.Before, after: acct.After}
		order = append(order, acct.AddressHash)
	}

	pairs := make([]Pair, 0, len(order))
	for _, addr := range order {
		d := final[addr]
		var value []byte
		value = appendSection(value, d.before)
		value = appendSection(value, d.after)
		pairs = append(pairs, Pair{
			Key:   types.AccountDiffKey(rec.BlockNumber, addr),
			Value: value,
		})
	}
	return pairs, nil
}

// DecodeAccountDiffValue splits an account diff value into its before and
// after trie values.
func DecodeAccountDiffValue(value types.ContentValue) (before, after []byte, err error) {
	sections, err := readSections(value, 2)
	if err != nil {
		return nil, nil, fmt.Errorf("decode account diff value: %w", err)
	}
	return sections[0], sections[1], nil
}

// Snapshot chunk values carry a fixed binary header followed by the
// snappy-compressed plaintext chunk:
//
//	height   uint64 BE
//	count    uint32 BE  total chunks at this height
//	index    uint32 BE
//	digest   uint64 BE  xxhash64 of the plaintext chunk
const snapshotChunkHeaderSize = 8 + 4 + 4 + 8

// SnapshotPairs chunks the full state snapshot into content pairs of at most
// MaxChunkSize plaintext bytes each. Reassembling every emitted chunk for a
// height reproduces the exact snapshot bytes.
func SnapshotPairs(rec *types.StateSnapshotRecord) ([]Pair, error) {
	if len(rec.Data) == 0 {
		return nil, fmt.Errorf("%w: snapshot at height %d is empty", ErrMalformedRecord, rec.Height)
	}

	count := (len(rec.Data) + MaxChunkSize - 1) / MaxChunkSize
	pairs := make([]Pair, 0, count)
	for i := 0; i < count; i++ {
		lo := i * MaxChunkSize
		hi := lo + MaxChunkSize
		if hi > len(rec.Data) {
			hi = len(rec.Data)
		}
		chunk := rec.Data[lo:hi]

		compressed := snappy.Encode(nil, chunk)
		value := make([]byte, snapshotChunkHeaderSize, snapshotChunkHeaderSize+len(compressed))
		binary.BigEndian.PutUint64(value[0:8], rec.Height)
		binary.BigEndian.PutUint32(value[8:12], uint32(count))
		binary.BigEndian.PutUint32(value[12:16], uint32(i))
		binary.BigEndian.PutUint64(value[16:24], xxhash.Sum64(chunk))
		value = append(value, compressed...)
		pairs = append(pairs, Pair{
			Key:   types.SnapshotChunkKey(rec.Height, uint32(i)),
			Value: value,
		})
	}
	return pairs, nil
}

// snapshotChunk is one decoded chunk during reassembly.
type snapshotChunk struct {
	index uint32
	data  []byte
}

// ReassembleSnapshot reconstructs the snapshot bytes for a height from its
// chunk values, in any order. It fails if chunks are missing, duplicated,
// belong to another height, or fail their digest check.
func ReassembleSnapshot(height uint64, values []types.ContentValue) ([]byte, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("no chunks for height %d", height)
	}

	chunks := make([]snapshotChunk, 0, len(values))
	var count uint32
	for _, value := range values {
		if len(value) < snapshotChunkHeaderSize {
			return nil, fmt.Errorf("chunk value truncated: %d bytes", len(value))
		}
		h := binary.BigEndian.Uint64(value[0:8])
		if h != height {
			return nil, fmt.Errorf("chunk belongs to height %d, want %d", h, height)
		}
		c := binary.BigEndian.Uint32(value[8:12])
		if count == 0 {
			count = c
		} else if c != count {
			return nil, fmt.Errorf("inconsistent chunk count: %d vs %d", c, count)
		}
		index := binary.BigEndian.Uint32(value[12:16])
		digest := binary.BigEndian.Uint64(value[16:24])

		data, err := snappy.Decode(nil, value[snapshotChunkHeaderSize:])
		if err != nil {
			return nil, fmt.Errorf("decompress chunk %d: %w", index, err)
		}
		if xxhash.Sum64(data) != digest {
			return nil, fmt.Errorf("chunk %d failed digest check", index)
		}
		chunks = append(chunks, snapshotChunk{index: index, data: data})
	}

	if uint32(len(chunks)) != count {
		return nil, fmt.Errorf("have %d chunks, want %d", len(chunks), count)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].index < chunks[j].index })

	var out []byte
	for i, chunk := range chunks {
		if chunk.index != uint32(i) {
			return nil, fmt.Errorf("missing or duplicated chunk %d", i)
		}
		out = append(out, chunk.data...)
	}
	return out, nil
}
