package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Subnetwork identifies one of the independent overlay partitions the bridge
// can feed. Content keys are scoped to exactly one subnetwork.
type Subnetwork string

const (
	SubnetworkHistory Subnetwork = "history"
	SubnetworkBeacon  Subnetwork = "beacon"
	SubnetworkState   Subnetwork = "state"
)

func (s Subnetwork) IsValid() bool {
	switch s {
	case SubnetworkHistory, SubnetworkBeacon, SubnetworkState:
		return true
	}
	return false
}

// Content key selectors. The first byte of every key names the content type;
// the remainder is the fixed-width selector payload.
const (
	SelectorHistoryBlock       byte = 0x00
	SelectorBeaconBlock        byte = 0x10
	SelectorLightClientUpdate  byte = 0x11
	SelectorStateAccountDiff   byte = 0x20
	SelectorStateSnapshotChunk byte = 0x30
)

// Hash is a 32-byte digest, used for block hashes, beacon block roots and
// account trie paths.
type Hash [32]byte

func (h Hash) Bytes() []byte  { return h[:] }
func (h Hash) String() string { return fmt.Sprintf("%X", h[:]) }

// ContentKey is the overlay network's addressing unit. Keys are immutable
// once constructed; equality is byte equality.
type ContentKey []byte

// ContentValue is the overlay-encoded payload paired with exactly one
// ContentKey. Values are treated as opaque bytes by everything downstream of
// the codec; large values are passed by reference (slice) and never copied
// wholesale through the pipeline.
type ContentValue []byte

func (k ContentKey) Equal(other ContentKey) bool { return bytes.Equal(k, other) }

func (k ContentKey) String() string {
	if len(k) == 0 {
		return "<empty>"
	}
	return fmt.Sprintf("%02x:%X", k[0], []byte(k[1:]))
}

// HistoryBlockKey addresses the header+body+receipts bundle of one execution
// block, selected by block hash.
func HistoryBlockKey(blockHash Hash) ContentKey {
	key := make([]byte, 1+32)
	key[0] = SelectorHistoryBlock
	copy(key[1:], blockHash[:])
	return key
}

// BeaconBlockKey addresses a signed beacon block, selected by slot.
func BeaconBlockKey(slot uint64) ContentKey {
	key := make([]byte, 1+8)
	key[0] = SelectorBeaconBlock
	binary.BigEndian.PutUint64(key[1:], slot)
	return key
}

// LightClientUpdateKey addresses the light-client update for one
// sync-committee period.
func LightClientUpdateKey(period uint64) ContentKey {
	key := make([]byte, 1+8)
	key[0] = SelectorLightClientUpdate
	binary.BigEndian.PutUint64(key[1:], period)
	return key
}

// AccountDiffKey addresses the final state of one account modified at the
// given block.
func AccountDiffKey(blockNumber uint64, addressHash Hash) ContentKey {
	key := make([]byte, 1+8+32)
	key[0] = SelectorStateAccountDiff
	binary.BigEndian.PutUint64(key[1:9], blockNumber)
	copy(key[9:], addressHash[:])
	return key
}

// SnapshotChunkKey addresses one chunk of the chunked full-state snapshot
// taken at the given height.
func SnapshotChunkKey(height uint64, chunk uint32) ContentKey {
	key := make([]byte, 1+8+4)
	key[0] = SelectorStateSnapshotChunk
	binary.BigEndian.PutUint64(key[1:9], height)
	binary.BigEndian.PutUint32(key[9:], chunk)
	return key
}

// ValidateContentKey checks the selector grammar: a known selector byte
// followed by a payload of exactly the selector's fixed width.
func ValidateContentKey(key ContentKey) error {
	if len(key) == 0 {
		return fmt.Errorf("content key is empty")
	}
	var want int
	switch key[0] {
	case SelectorHistoryBlock:
		want = 32
	case SelectorBeaconBlock, SelectorLightClientUpdate:
		want = 8
	case SelectorStateAccountDiff:
		want = 40
	case SelectorStateSnapshotChunk:
		want = 12
	default:
		return fmt.Errorf("unknown content key selector %#02x", key[0])
	}
	if got := len(key) - 1; got != want {
		return fmt.Errorf("content key selector %#02x: payload is %d bytes, want %d",
			key[0], got, want)
	}
	return nil
}

// KeySubnetwork maps a well-formed content key to the subnetwork it belongs
// to.
func KeySubnetwork(key ContentKey) (Subnetwork, error) {
	if err := ValidateContentKey(key); err != nil {
		return "", err
	}
	switch key[0] {
	case SelectorHistoryBlock:
		return SubnetworkHistory, nil
	case SelectorBeaconBlock, SelectorLightClientUpdate:
		return SubnetworkBeacon, nil
	default:
		return SubnetworkState, nil
	}
}
