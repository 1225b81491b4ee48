// Package rpcclient is the shared HTTP plumbing under the bridge's JSON-RPC
// and REST collaborators: provider transports and overlay client handles.
// Transport-level retries (connection resets, 5xx) are delegated to
// retryablehttp; callers classify the typed errors returned here into their
// own taxonomies.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrNullResult reports a well-formed JSON-RPC response whose result is
// null, eth-style shorthand for "unknown block / not produced yet".
var ErrNullResult = errors.New("null result")

// RPCError is a JSON-RPC error object returned by the remote side. It is a
// protocol-level response, not a transport failure.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// StatusError is a non-200 HTTP response on a REST call.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d", e.Status)
}

// Caller issues JSON-RPC calls and REST GETs against one endpoint. Safe for
// concurrent use.
type Caller struct {
	Endpoint string

	client *retryablehttp.Client
	nextID uint64
}

func New(endpoint string, attemptTimeout time.Duration) *Caller {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 250 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = attemptTimeout
	client.Logger = nil
	return &Caller{Endpoint: endpoint, client: client}
}

type request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Call issues one JSON-RPC request and unmarshals the result. Error cases:
// *RPCError for remote error objects, ErrNullResult for null results,
// anything else is transport-class.
func (c *Caller) Call(ctx context.Context, method string, result interface{}, params ...interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		ID:      atomic.AddUint64(&c.nextID, 1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %w", method, &StatusError{Status: resp.StatusCode})
	}

	bz, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", method, err)
	}

	var rpcResp response
	if err := json.Unmarshal(bz, &rpcResp); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%s: %w", method, rpcResp.Error)
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return fmt.Errorf("%s: %w", method, ErrNullResult)
	}
	return json.Unmarshal(rpcResp.Result, result)
}

// Get issues a REST GET against Endpoint+path. Non-200 statuses surface as
// *StatusError so callers can branch on 404.
func (c *Caller) Get(ctx context.Context, path string, result interface{}) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+path, nil)
	if err != nil {
		return fmt.Errorf("build GET %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %w", path, &StatusError{Status: resp.StatusCode})
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("GET %s: decode response: %w", path, err)
	}
	return nil
}
