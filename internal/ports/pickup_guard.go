package ports

import "context"

// Port: limits failed pickup attempts per key (location and contact).
type PickupGuard interface {
	// Report whether another attempt is allowed for key.
	Allow(ctx context.Context, key string) (bool, error)
	RecordFailure(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}
