package remote

import (
	"context"

	"github.com/utafrali/storefront-sync/internal/dispatch"
)

// Action wraps a request factory into a dispatch command that decodes the
// answer into Resp.
func Action[Req, Resp any](c Client, resource, name string, build func(Req) Request) dispatch.Command[Req, Resp] {
	return dispatch.Command[Req, Resp]{
		Name:     name,
		Resource: resource,
		Do: func(ctx context.Context, req Req) (Resp, error) {
			var out Resp
			err := c.Do(ctx, build(req), &out)
			return out, err
		},
	}
}
