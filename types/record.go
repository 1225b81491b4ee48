package types

// RecordKind tags the decoded provider record variants. The variant set is
// closed; consumers dispatch by switching on the concrete type.
type RecordKind uint8

const (
	RecordBlock RecordKind = iota + 1
	RecordBeaconBlock
	RecordStateDiff
	RecordStateSnapshot
)

// Record is a decoded unit of provider data, owned by the provider until it
// is handed to the codec. After the codec derives content pairs the record
// is dropped; nothing downstream retains it.
type Record interface {
	RecordKind() RecordKind
}

// BlockRecord is one execution block with its receipts, as needed to build
// the history subnetwork's header+body+receipts bundle.
type BlockRecord struct {
	Number   uint64
	Hash     Hash
	Header   []byte
	Body     []byte
	Receipts []byte

	// Proof is the canonicality proof for the header (accumulator or
	// historical-roots style, already encoded). May be empty for heads
	// that have no proof yet.
	Proof []byte
}

func (*BlockRecord) RecordKind() RecordKind { return RecordBlock }

// BeaconBlockRecord is one signed beacon block. Update carries the encoded
// light-client update when the slot crosses a sync-committee period
// boundary, and is empty otherwise.
type BeaconBlockRecord struct {
	Slot   uint64
	Root   Hash
	Block  []byte
	Update []byte
}

func (*BeaconBlockRecord) RecordKind() RecordKind { return RecordBeaconBlock }

// AccountDiff is the state change of a single account within one block:
// the trie path touched and the value before and after execution.
type AccountDiff struct {
	AddressHash Hash
	Before      []byte
	After       []byte
}

// StateDiffRecord is the ordered list of account changes produced by
// executing one block.
type StateDiffRecord struct {
	BlockNumber uint64
	Accounts    []AccountDiff
}

func (*StateDiffRecord) RecordKind() RecordKind { return RecordStateDiff }

// StateSnapshotRecord is the full state at one height as a single opaque
// byte stream; the codec chunks it for gossip.
type StateSnapshotRecord struct {
	Height uint64
	Data   []byte
}

func (*StateSnapshotRecord) RecordKind() RecordKind { return RecordStateSnapshot }
