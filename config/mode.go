package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/portalnetwork/bridge/types"
)

// ModeKind names one of the bridge's operating modes.
type ModeKind string

const (
	// ModeE2HS backfills the history subnetwork from epoch-chunked archive
	// files over an inclusive block range, optionally in a random epoch
	// order.
	ModeE2HS ModeKind = "e2hs"
	// ModeLatest follows the beacon chain head, gossiping every new slot.
	ModeLatest ModeKind = "latest"
	// ModeSingle backfills per-block state diffs over an inclusive block
	// range, strictly ascending.
	ModeSingle ModeKind = "single"
	// ModeSnapshot gossips the chunked full-state snapshot at one height.
	ModeSnapshot ModeKind = "snapshot"
	// ModeTest gossips pre-encoded key/value pairs read from a file,
	// bypassing provider and codec.
	ModeTest ModeKind = "test"
)

// Mode is the parsed mode selector. Exactly the fields relevant to Kind are
// set; the rest are zero.
type Mode struct {
	Kind ModeKind

	// Lo, Hi bound the inclusive block range for e2hs and single modes.
	Lo uint64
	Hi uint64

	// Randomize shuffles the epoch traversal order (e2hs only).
	Randomize bool

	// Height is the snapshot height (snapshot only).
	Height uint64

	// File is the content record list path (test only).
	File string
}

// Subnetwork returns the overlay partition this mode feeds.
func (m Mode) Subnetwork() types.Subnetwork {
	switch m.Kind {
	case ModeE2HS, ModeTest:
		return types.SubnetworkHistory
	case ModeLatest:
		return types.SubnetworkBeacon
	default:
		return types.SubnetworkState
	}
}

func (m Mode) String() string {
	switch m.Kind {
	case ModeE2HS:
		s := fmt.Sprintf("e2hs:%d-%d", m.Lo, m.Hi)
		if m.Randomize {
			s += ":random"
		}
		return s
	case ModeLatest:
		return "latest"
	case ModeSingle:
		return fmt.Sprintf("single:r%d-%d", m.Lo, m.Hi)
	case ModeSnapshot:
		return fmt.Sprintf("snapshot:%d", m.Height)
	case ModeTest:
		return "test:" + m.File
	}
	return string(m.Kind)
}

// ParseMode parses a mode selector string. Supported forms:
//
//	e2hs:<lo>-<hi>[:random]
//	latest
//	single:r<lo>-<hi>
//	snapshot:<height>
//	test:<file>
//
// Range bounds are validated here, before any I/O: hi < lo is a
// configuration error.
func ParseMode(s string) (Mode, error) {
	if s == "latest" {
		return Mode{Kind: ModeLatest}, nil
	}

	kind, rest, found := strings.Cut(s, ":")
	if !found {
		return Mode{}, fmt.Errorf("unknown mode %q", s)
	}

	switch ModeKind(kind) {
	case ModeE2HS:
		randomize := false
		if arg, ok := strings.CutSuffix(rest, ":random"); ok {
			randomize = true
			rest = arg
		}
		lo, hi, err := parseRange(rest)
		if err != nil {
			return Mode{}, fmt.Errorf("mode e2hs: %w", err)
		}
		return Mode{Kind: ModeE2HS, Lo: lo, Hi: hi, Randomize: randomize}, nil

	case ModeSingle:
		arg, ok := strings.CutPrefix(rest, "r")
		if !ok {
			return Mode{}, fmt.Errorf("mode single: range must be of the form r<lo>-<hi>, got %q", rest)
		}
		lo, hi, err := parseRange(arg)
		if err != nil {
			return Mode{}, fmt.Errorf("mode single: %w", err)
		}
		return Mode{Kind: ModeSingle, Lo: lo, Hi: hi}, nil

	case ModeSnapshot:
		height, err := strconv.ParseUint(rest, 10, 64)
		if err != nil {
			return Mode{}, fmt.Errorf("mode snapshot: bad height %q: %w", rest, err)
		}
		return Mode{Kind: ModeSnapshot, Height: height}, nil

	case ModeTest:
		if rest == "" {
			return Mode{}, fmt.Errorf("mode test: missing file path")
		}
		return Mode{Kind: ModeTest, File: rest}, nil
	}

	return Mode{}, fmt.Errorf("unknown mode %q", s)
}

func parseRange(s string) (lo, hi uint64, err error) {
	loStr, hiStr, found := strings.Cut(s, "-")
	if !found {
		return 0, 0, fmt.Errorf("range must be of the form <lo>-<hi>, got %q", s)
	}
	if lo, err = strconv.ParseUint(loStr, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("bad range start %q: %w", loStr, err)
	}
	if hi, err = strconv.ParseUint(hiStr, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("bad range end %q: %w", hiStr, err)
	}
	if hi < lo {
		return 0, 0, fmt.Errorf("range end %d is below range start %d", hi, lo)
	}
	return lo, hi, nil
}
