package session

import (
	"context"

	"github.com/vibast-solutions/ms-go-payment-confirmations/app/entity"
	"golang.org/x/sync/singleflight"
)

type identityClient interface {
	Me(ctx context.Context, token string) (*entity.User, error)
}

// Refresher re-reads the current user from the identity endpoint. Concurrent
// refreshes for the same token share a single request.
type Refresher struct {
	client identityClient
	group  singleflight.Group
}

func NewRefresher(client identityClient) *Refresher {
	return &Refresher{client: client}
}

func (r *Refresher) Refresh(ctx context.Context, token string) (*entity.User, error) {
	ch := r.group.DoChan(token, func() (interface{}, error) {
		return r.client.Me(ctx, token)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*entity.User), nil
	}
}
