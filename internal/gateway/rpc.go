package gateway

import (
	"context"
	"fmt"
	"net/http"
)

// CallRows invokes a set-returning procedure and decodes its rows into dst.
func (c *Client) CallRows(ctx context.Context, name string, params map[string]any, dst any) error {
	return c.call(ctx, name, params, dst)
}

// CallScalar invokes a procedure returning a single value. PostgREST sends
// scalars as bare JSON, so decoding is the same as for rows.
func (c *Client) CallScalar(ctx context.Context, name string, params map[string]any, dst any) error {
	return c.call(ctx, name, params, dst)
}

func (c *Client) call(ctx context.Context, name string, params map[string]any, dst any) error {
	if params == nil {
		params = map[string]any{}
	}
	err := c.doJSON(ctx, request{
		method: http.MethodPost,
		path:   "/rest/v1/rpc/" + name,
		body:   params,
	}, dst)
	if err != nil {
		return fmt.Errorf("calling %s: %w", name, err)
	}
	return nil
}
