package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portalnetwork/bridge/types"
)

type stubRequest struct {
	ID     uint64        `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

func executionStub(t *testing.T, diffs map[uint64][]accountDiffJSON) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req stubRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		write := func(result interface{}) {
			bz, err := json.Marshal(result)
			require.NoError(t, err)
			resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": json.RawMessage(bz)}
			require.NoError(t, json.NewEncoder(w).Encode(resp))
		}

		number, err := parseHexQuantity(req.Params[0].(string))
		require.NoError(t, err)

		switch req.Method {
		case "eth_getBlockByNumber":
			if _, ok := diffs[number]; !ok {
				fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":null}`, req.ID)
				return
			}
			write(map[string]string{
				"hash": fmt.Sprintf("0x%064x", number+1),
			})
		case "statediff_getDiff":
			write(map[string]interface{}{
				"blockNumber": fmt.Sprintf("0x%x", number),
				"accounts":    diffs[number],
			})
		case "statediff_getSnapshot":
			write(map[string]string{
				"height": fmt.Sprintf("0x%x", number),
				"data":   "0xdeadbeef",
			})
		default:
			t.Fatalf("unexpected method %s", req.Method)
		}
	}))
}

func parseHexQuantity(s string) (uint64, error) {
	var n uint64
	_, err := fmt.Sscanf(strings.TrimPrefix(s, "0x"), "%x", &n)
	return n, err
}

func TestExecutionProviderStateDiff(t *testing.T) {
	diffs := map[uint64][]accountDiffJSON{
		50: {
			{AddressHash: fmt.Sprintf("0x%064x", 7), Before: "0x01", After: "0x02"},
		},
	}
	srv := executionStub(t, diffs)
	defer srv.Close()

	p, err := NewExecutionProvider(srv.URL, 5*time.Second)
	require.NoError(t, err)

	records, err := p.Fetch(context.Background(), types.WorkUnit{Kind: types.UnitBlock, Number: 50})
	require.NoError(t, err)
	require.Len(t, records, 1)

	diff, ok := records[0].(*types.StateDiffRecord)
	require.True(t, ok)
	assert.EqualValues(t, 50, diff.BlockNumber)
	require.Len(t, diff.Accounts, 1)
	assert.Equal(t, []byte{0x01}, diff.Accounts[0].Before)
	assert.Equal(t, []byte{0x02}, diff.Accounts[0].After)
}

func TestExecutionProviderNotFound(t *testing.T) {
	srv := executionStub(t, nil)
	defer srv.Close()

	p, err := NewExecutionProvider(srv.URL, 5*time.Second)
	require.NoError(t, err)

	_, err = p.Fetch(context.Background(), types.WorkUnit{Kind: types.UnitBlock, Number: 99})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExecutionProviderSnapshot(t *testing.T) {
	srv := executionStub(t, map[uint64][]accountDiffJSON{1000000: {}})
	defer srv.Close()

	p, err := NewExecutionProvider(srv.URL, 5*time.Second)
	require.NoError(t, err)

	records, err := p.Fetch(context.Background(), types.WorkUnit{Kind: types.UnitSnapshot, Number: 1000000})
	require.NoError(t, err)
	require.Len(t, records, 1)

	snapshot, ok := records[0].(*types.StateSnapshotRecord)
	require.True(t, ok)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, snapshot.Data)
}

func TestExecutionProviderUnavailable(t *testing.T) {
	p, err := NewExecutionProvider("http://127.0.0.1:1", 500*time.Millisecond)
	require.NoError(t, err)

	_, err = p.Fetch(context.Background(), types.WorkUnit{Kind: types.UnitBlock, Number: 1})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestConsensusProviderHeadAndBlocks(t *testing.T) {
	head := uint64(16384)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/eth/v1/beacon/headers/head":
			fmt.Fprintf(w, `{"data":{"header":{"message":{"slot":"%d"}}}}`, head)
		case strings.HasPrefix(r.URL.Path, "/eth/v2/beacon/blocks/"):
			var slot uint64
			_, err := fmt.Sscanf(r.URL.Path, "/eth/v2/beacon/blocks/%d", &slot)
			require.NoError(t, err)
			if slot > head {
				http.NotFound(w, r)
				return
			}
			block := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("block-%d", slot)))
			fmt.Fprintf(w, `{"data":{"root":"0x%064x","block":"%s"}}`, slot+1, block)
		case strings.HasPrefix(r.URL.Path, "/eth/v1/beacon/light_client/updates"):
			update := base64.StdEncoding.EncodeToString([]byte("update"))
			fmt.Fprintf(w, `{"data":[{"update":"%s"}]}`, update)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	p := NewConsensusProvider(srv.URL, 8192, 5*time.Second)

	slot, err := p.HeadSlot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, head, slot)

	// ordinary slot
	records, err := p.Fetch(context.Background(), types.WorkUnit{Kind: types.UnitSlot, Number: 100})
	require.NoError(t, err)
	require.Len(t, records, 1)
	beacon := records[0].(*types.BeaconBlockRecord)
	assert.Equal(t, []byte("block-100"), beacon.Block)
	assert.Empty(t, beacon.Update)

	// period boundary slot carries the light-client update
	records, err = p.Fetch(context.Background(), types.WorkUnit{Kind: types.UnitSlot, Number: 16384})
	require.NoError(t, err)
	beacon = records[0].(*types.BeaconBlockRecord)
	assert.Equal(t, []byte("update"), beacon.Update)

	// slot beyond the head is "no new data yet"
	_, err = p.Fetch(context.Background(), types.WorkUnit{Kind: types.UnitSlot, Number: head + 1})
	require.ErrorIs(t, err, ErrNotFound)
}
