package provider

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/snappy"

	"github.com/portalnetwork/bridge/types"
)

// ArchiveEntry is one block's worth of archived history data: the
// snappy-compressed record bytes plus the digest recorded by the archive
// writer. The digest covers the compressed bytes as stored.
type ArchiveEntry struct {
	BlockNumber uint64
	Digest      uint64
	Data        []byte
}

// EpochReader reads the raw entries of one archive epoch. Implementations
// hide where the bytes live (local file, object store); integrity checking
// is the archive provider's job.
type EpochReader interface {
	ReadEpoch(ctx context.Context, index uint64) ([]ArchiveEntry, error)
}

// ArchiveProvider decodes epoch work units from an epoch-chunked archive,
// verifying each entry against its embedded digest before decoding. Safe for
// concurrent use: it holds no mutable fetch state.
type ArchiveProvider struct {
	reader EpochReader
}

func NewArchiveProvider(reader EpochReader) *ArchiveProvider {
	return &ArchiveProvider{reader: reader}
}

func (p *ArchiveProvider) Fetch(ctx context.Context, unit types.WorkUnit) ([]types.Record, error) {
	if unit.Kind != types.UnitEpoch {
		return nil, fetchErr(ErrNotFound, unit, "archive provider serves epoch units only")
	}

	entries, err := p.reader.ReadEpoch(ctx, unit.Number)
	if err != nil {
		return nil, err
	}

	records := make([]types.Record, 0, len(entries))
	for _, entry := range entries {
		if got := xxhash.Sum64(entry.Data); got != entry.Digest {
			return nil, fetchErr(ErrCorrupt, unit,
				"block %d digest mismatch: have %016x, want %016x",
				entry.BlockNumber, got, entry.Digest)
		}
		rec, err := decodeArchiveEntry(entry)
		if err != nil {
			return nil, fetchErr(ErrCorrupt, unit, "block %d: %v", entry.BlockNumber, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Archive entry payload, after snappy decompression:
//
//	hash      32 bytes
//	header    uvarint length + bytes
//	proof     uvarint length + bytes
//	body      uvarint length + bytes
//	receipts  uvarint length + bytes
func decodeArchiveEntry(entry ArchiveEntry) (*types.BlockRecord, error) {
	plain, err := snappy.Decode(nil, entry.Data)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if len(plain) < 32 {
		return nil, fmt.Errorf("entry truncated: %d bytes", len(plain))
	}

	rec := &types.BlockRecord{Number: entry.BlockNumber}
	copy(rec.Hash[:], plain[:32])
	rest := plain[32:]

	for _, dst := range []*[]byte{&rec.Header, &rec.Proof, &rec.Body, &rec.Receipts} {
		n, width := binary.Uvarint(rest)
		if width <= 0 {
			return nil, fmt.Errorf("bad section length prefix")
		}
		rest = rest[width:]
		if uint64(len(rest)) < n {
			return nil, fmt.Errorf("section truncated: have %d bytes, want %d", len(rest), n)
		}
		*dst = rest[:n]
		rest = rest[n:]
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%d trailing bytes", len(rest))
	}
	return rec, nil
}

// EncodeArchiveEntry builds the stored form of one block record, digest
// included. The inverse of decodeArchiveEntry; used by the epoch file writer
// and by tests.
func EncodeArchiveEntry(rec *types.BlockRecord) ArchiveEntry {
	var plain []byte
	plain = append(plain, rec.Hash[:]...)
	for _, section := range [][]byte{rec.Header, rec.Proof, rec.Body, rec.Receipts} {
		plain = binary.AppendUvarint(plain, uint64(len(section)))
		plain = append(plain, section...)
	}
	data := snappy.Encode(nil, plain)
	return ArchiveEntry{
		BlockNumber: rec.Number,
		Digest:      xxhash.Sum64(data),
		Data:        data,
	}
}

// Epoch files are named epoch-<index>.e2hs and framed as:
//
//	magic     "E2HS"
//	version   1 byte
//	entries   repeated: blockNumber uint64 BE, digest uint64 BE,
//	          length uint32 BE, data
var epochFileMagic = []byte("E2HS")

const epochFileVersion = 1

// FileEpochReader reads epoch files from a local directory.
type FileEpochReader struct {
	dir string
}

func NewFileEpochReader(dir string) *FileEpochReader {
	return &FileEpochReader{dir: dir}
}

func (r *FileEpochReader) path(index uint64) string {
	return filepath.Join(r.dir, fmt.Sprintf("epoch-%05d.e2hs", index))
}

func (r *FileEpochReader) ReadEpoch(ctx context.Context, index uint64) ([]ArchiveEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unit := types.WorkUnit{Kind: types.UnitEpoch, Number: index}

	bz, err := os.ReadFile(r.path(index))
	if os.IsNotExist(err) {
		return nil, fetchErr(ErrNotFound, unit, "no epoch file %s", r.path(index))
	}
	if err != nil {
		return nil, fetchErr(ErrUnavailable, unit, "read epoch file: %v", err)
	}

	entries, err := decodeEpochFile(bz)
	if err != nil {
		return nil, fetchErr(ErrCorrupt, unit, "%v", err)
	}
	return entries, nil
}

func decodeEpochFile(bz []byte) ([]ArchiveEntry, error) {
	if len(bz) < len(epochFileMagic)+1 {
		return nil, fmt.Errorf("epoch file truncated: %d bytes", len(bz))
	}
	if string(bz[:4]) != string(epochFileMagic) {
		return nil, fmt.Errorf("bad magic %q", bz[:4])
	}
	if bz[4] != epochFileVersion {
		return nil, fmt.Errorf("unsupported epoch file version %d", bz[4])
	}
	bz = bz[5:]

	var entries []ArchiveEntry
	for len(bz) > 0 {
		if len(bz) < 20 {
			return nil, io.ErrUnexpectedEOF
		}
		entry := ArchiveEntry{
			BlockNumber: binary.BigEndian.Uint64(bz[0:8]),
			Digest:      binary.BigEndian.Uint64(bz[8:16]),
		}
		n := binary.BigEndian.Uint32(bz[16:20])
		bz = bz[20:]
		if uint32(len(bz)) < n {
			return nil, io.ErrUnexpectedEOF
		}
		entry.Data = bz[:n]
		entries = append(entries, entry)
		bz = bz[n:]
	}
	return entries, nil
}

// WriteEpochFile writes an epoch file in the reader's format. Exposed for
// archive tooling and tests.
func WriteEpochFile(path string, entries []ArchiveEntry) error {
	var bz []byte
	bz = append(bz, epochFileMagic...)
	bz = append(bz, epochFileVersion)
	for _, entry := range entries {
		var hdr [20]byte
		binary.BigEndian.PutUint64(hdr[0:8], entry.BlockNumber)
		binary.BigEndian.PutUint64(hdr[8:16], entry.Digest)
		binary.BigEndian.PutUint32(hdr[16:20], uint32(len(entry.Data)))
		bz = append(bz, hdr[:]...)
		bz = append(bz, entry.Data...)
	}
	return os.WriteFile(path, bz, 0o644)
}
