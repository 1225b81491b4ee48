package bridge

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portalnetwork/bridge/types"
)

func writeTestFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "content.json")
	data := ""
	for _, line := range lines {
		data += line + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func contentLine(key types.ContentKey, value []byte) string {
	return fmt.Sprintf(`{"content_key":"0x%s","content_value":"0x%s"}`,
		hex.EncodeToString(key), hex.EncodeToString(value))
}

func TestLoadTestFile(t *testing.T) {
	var h1, h2 types.Hash
	h1[0], h2[0] = 1, 2

	path := writeTestFile(t,
		contentLine(types.HistoryBlockKey(h1), []byte("first")),
		"",
		contentLine(types.HistoryBlockKey(h2), []byte("second")),
	)

	source, entries, err := LoadTestFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, entries)

	items, err := source.Pairs(context.Background(), types.WorkUnit{Kind: types.UnitTestEntry, Number: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].Key.Equal(types.HistoryBlockKey(h2)))
	assert.Equal(t, types.ContentValue("second"), items[0].Value)

	_, err = source.Pairs(context.Background(), types.WorkUnit{Kind: types.UnitTestEntry, Number: 2})
	require.Error(t, err)
	_, err = source.Pairs(context.Background(), types.WorkUnit{Kind: types.UnitBlock, Number: 0})
	require.Error(t, err)
}

func TestLoadTestFileRejectsBadInput(t *testing.T) {
	var h types.Hash

	cases := map[string]string{
		"bad json":      `{`,
		"bad hex":       `{"content_key":"0xzz","content_value":"0x00"}`,
		"empty value":   fmt.Sprintf(`{"content_key":"0x%s","content_value":""}`, hex.EncodeToString(types.HistoryBlockKey(h))),
		"malformed key": `{"content_key":"0x00ff","content_value":"0x00"}`,
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := LoadTestFile(writeTestFile(t, line))
			require.Error(t, err)
		})
	}
}

func TestLoadTestFileEmpty(t *testing.T) {
	_, _, err := LoadTestFile(writeTestFile(t))
	require.Error(t, err)

	_, _, err = LoadTestFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
