package domain

import "context"

// OrderGateway submits orders to the upstream venue.
type OrderGateway interface {
	PostOrder(ctx context.Context, payload OrderPayload) (SubmitResult, error)
	CancelOrder(ctx context.Context, orderID string) error
}
