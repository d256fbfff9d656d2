package queuesvc

import (
	"context"

	"github.com/trezcool/masomo-notifications/core/notification"
)

// Sync executes deliveries inline, ignoring RunAt, and reports their errors to the caller.
// Used by the admin CLI and tests.
type Sync struct {
	handler Handler
}

var _ notification.Queue = (*Sync)(nil)

func NewSync(handler Handler) *Sync {
	return &Sync{handler: handler}
}

func (q *Sync) Enqueue(ctx context.Context, d notification.Delivery) error {
	return q.handler.Deliver(ctx, d)
}
