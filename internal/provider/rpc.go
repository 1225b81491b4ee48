package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/portalnetwork/bridge/internal/rpcclient"
)

// rpcClient wraps the shared caller, classifying its errors into the
// provider taxonomy: remote error objects and transport failures are
// Unavailable, null results and 404s are NotFound.
type rpcClient struct {
	caller *rpcclient.Caller
}

func newRPCClient(endpoint string, attemptTimeout time.Duration) *rpcClient {
	return &rpcClient{caller: rpcclient.New(endpoint, attemptTimeout)}
}

func (c *rpcClient) call(ctx context.Context, method string, result interface{}, params ...interface{}) error {
	err := c.caller.Call(ctx, method, result, params...)
	return classify(err)
}

func (c *rpcClient) get(ctx context.Context, path string, result interface{}) error {
	err := c.caller.Get(ctx, path, result)
	return classify(err)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, rpcclient.ErrNullResult) {
		return fmt.Errorf("%v: %w", err, ErrNotFound)
	}
	var status *rpcclient.StatusError
	if errors.As(err, &status) && status.Status == http.StatusNotFound {
		return fmt.Errorf("%v: %w", err, ErrNotFound)
	}
	return fmt.Errorf("%v: %w", err, ErrUnavailable)
}
