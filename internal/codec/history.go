package codec

import (
	"fmt"

	"github.com/portalnetwork/bridge/types"
)

// HistoryPairs derives the single header+body+receipts bundle pair for one
// execution block. The value is a header-with-proof envelope (header, then
// its canonicality proof) followed by the body and receipts sections.
func HistoryPairs(rec *types.BlockRecord) ([]Pair, error) {
	if len(rec.Header) == 0 {
		return nil, fmt.Errorf("%w: block %d has no header", ErrMalformedRecord, rec.Number)
	}
	if len(rec.Body) == 0 {
		return nil, fmt.Errorf("%w: block %d has no body", ErrMalformedRecord, rec.Number)
	}
	if rec.Hash == (types.Hash{}) {
		return nil, fmt.Errorf("%w: block %d has zero hash", ErrMalformedRecord, rec.Number)
	}

	var value []byte
	value = appendSection(value, rec.Header)
	value = appendSection(value, rec.Proof)
	value = appendSection(value, rec.Body)
	value = appendSection(value, rec.Receipts)

	return []Pair{{
		Key:   types.HistoryBlockKey(rec.Hash),
		Value: value,
	}}, nil
}

// DecodeHistoryValue splits a history bundle value back into its header,
// proof, body and receipts sections.
func DecodeHistoryValue(value types.ContentValue) (header, proof, body, receipts []byte, err error) {
	sections, err := readSections(value, 4)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("decode history value: %w", err)
	}
	return sections[0], sections[1], sections[2], sections[3], nil
}
