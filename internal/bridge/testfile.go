package bridge

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/portalnetwork/bridge/internal/gossip"
	"github.com/portalnetwork/bridge/types"
)

// testEntry is one line of a test-mode content file: a pre-encoded pair
// gossiped as-is, bypassing providers and the codec.
type testEntry struct {
	ContentKey   string `json:"content_key"`
	ContentValue string `json:"content_value"`
}

// testSource serves pre-encoded pairs by entry index.
type testSource struct {
	items []gossip.Item
}

// LoadTestFile reads a test-mode content file: one JSON object per line
// with hex-encoded content_key and content_value fields. Blank lines are
// skipped. Every key must be well formed.
func LoadTestFile(path string) (PairSource, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open test content file: %w", err)
	}
	defer f.Close()

	var items []gossip.Item
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024), 16<<20)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var entry testEntry
		if err := json.Unmarshal([]byte(text), &entry); err != nil {
			return nil, 0, fmt.Errorf("test content file line %d: %w", line, err)
		}
		key, err := decodeHexField(entry.ContentKey)
		if err != nil {
			return nil, 0, fmt.Errorf("test content file line %d: content_key: %w", line, err)
		}
		value, err := decodeHexField(entry.ContentValue)
		if err != nil {
			return nil, 0, fmt.Errorf("test content file line %d: content_value: %w", line, err)
		}
		if err := types.ValidateContentKey(key); err != nil {
			return nil, 0, fmt.Errorf("test content file line %d: %w", line, err)
		}
		items = append(items, gossip.Item{Key: key, Value: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read test content file: %w", err)
	}
	if len(items) == 0 {
		return nil, 0, fmt.Errorf("test content file %s has no entries", path)
	}
	return &testSource{items: items}, len(items), nil
}

func decodeHexField(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return nil, fmt.Errorf("empty hex field")
	}
	return hex.DecodeString(s)
}

func (s *testSource) Pairs(ctx context.Context, unit types.WorkUnit) ([]gossip.Item, error) {
	if unit.Kind != types.UnitTestEntry {
		return nil, fmt.Errorf("test source cannot serve %s", unit)
	}
	if unit.Number >= uint64(len(s.items)) {
		return nil, fmt.Errorf("test source has no entry %d", unit.Number)
	}
	return []gossip.Item{s.items[unit.Number]}, nil
}
