package gossip

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/portalnetwork/bridge/internal/rpcclient"
	"github.com/portalnetwork/bridge/types"
)

// RejectionError reports that an overlay client refused content as invalid.
// Rejections are content-level problems and are never retried.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("content rejected: %s", e.Reason)
}

// IsRejection reports whether err carries a protocol-level rejection.
func IsRejection(err error) bool {
	var rej *RejectionError
	return errors.As(err, &rej)
}

// Client is one overlay node handle the bridge gossips through. A nil error
// means the content was delivered; a RejectionError means the overlay
// refused it; anything else is a transport failure, retried per policy.
type Client interface {
	GossipContent(ctx context.Context, key types.ContentKey, value types.ContentValue) error
	String() string
}

// Offerer is implemented by client handles that support advertising a key
// and letting the overlay pull the value, used for large content.
type Offerer interface {
	OfferContent(ctx context.Context, key types.ContentKey, value types.ContentValue) error
}

// clientList is a rolling list of overlay client handles. Work is fanned out
// across all handles for throughput; selection is round-robin.
type clientList struct {
	mtx     sync.Mutex
	clients []Client
	next    int
}

func newClientList(clients []Client) *clientList {
	return &clientList{clients: clients}
}

func (l *clientList) Len() int {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return len(l.clients)
}

// Pick returns the next client in round-robin order.
func (l *clientList) Pick() Client {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	c := l.clients[l.next%len(l.clients)]
	l.next++
	return c
}

func (l *clientList) All() []Client {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	out := make([]Client, len(l.clients))
	copy(out, l.clients)
	return out
}

// JSONRPCClient gossips content through a portal client's JSON-RPC
// endpoint. A JSON-RPC error response is a protocol-level rejection;
// transport and HTTP failures surface as plain errors for retry.
type JSONRPCClient struct {
	rpc        *rpcclient.Caller
	subnetwork types.Subnetwork
}

func NewJSONRPCClient(endpoint string, subnetwork types.Subnetwork, attemptTimeout time.Duration) *JSONRPCClient {
	return &JSONRPCClient{
		rpc:        rpcclient.New(endpoint, attemptTimeout),
		subnetwork: subnetwork,
	}
}

func (c *JSONRPCClient) String() string { return c.rpc.Endpoint }

func (c *JSONRPCClient) GossipContent(ctx context.Context, key types.ContentKey, value types.ContentValue) error {
	return c.call(ctx, fmt.Sprintf("portal_%sGossip", c.subnetwork), key, value)
}

// OfferContent advertises the key so interested peers pull the value.
func (c *JSONRPCClient) OfferContent(ctx context.Context, key types.ContentKey, value types.ContentValue) error {
	return c.call(ctx, fmt.Sprintf("portal_%sOffer", c.subnetwork), key, value)
}

func (c *JSONRPCClient) call(ctx context.Context, method string, key types.ContentKey, value types.ContentValue) error {
	var peers int
	err := c.rpc.Call(ctx, method, &peers,
		"0x"+hex.EncodeToString(key), "0x"+hex.EncodeToString(value))
	if err != nil {
		var rpcErr *rpcclient.RPCError
		if errors.As(err, &rpcErr) {
			return &RejectionError{Reason: rpcErr.Message}
		}
		return err
	}
	return nil
}

var _ Offerer = (*JSONRPCClient)(nil)
