package gate

import (
	"context"

	"github.com/relforge/tagship/service/messaging"
)

// Service defines the gate service interface.
type Service interface {
	Request(ctx context.Context, r *Request) error
	ListPending(ctx context.Context) ([]*Request, error)
	Decide(ctx context.Context, id string, approved bool, reason string) (*Decision, error)
	Queue() messaging.Queue[Event]
}
