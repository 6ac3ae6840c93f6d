package policy

import "context"

// InvalidationAction signals why a cached decision-time policy set is stale.
type InvalidationAction string

const (
	// ActionUpdate is sent for adds and content updates.
	ActionUpdate InvalidationAction = "UPDATE"
	// ActionEnable is sent when a policy is activated.
	ActionEnable InvalidationAction = "ENABLE"
	// ActionDisable is sent when a policy is deactivated.
	ActionDisable InvalidationAction = "DISABLE"
	// ActionOrder is sent when a policy's evaluation order changes.
	ActionOrder InvalidationAction = "ORDER"
	// ActionDelete is sent when a policy is removed.
	ActionDelete InvalidationAction = "DELETE"
)

// Invalidation is one stale-cache notification. EventID is unique per
// dispatch so downstream consumers can deduplicate redeliveries.
type Invalidation struct {
	EventID  string
	PolicyID string
	Action   InvalidationAction
}

// CacheInvalidator receives invalidation notifications after every durable
// mutation of the decision-side store. Dispatch is synchronous from the
// coordination core's perspective; the receiver's own processing may be
// asynchronous. The receiver must not fail the mutation.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, inv Invalidation)
}

// CacheInvalidatorFunc adapts a function to the CacheInvalidator interface.
type CacheInvalidatorFunc func(ctx context.Context, inv Invalidation)

// Invalidate calls f.
func (f CacheInvalidatorFunc) Invalidate(ctx context.Context, inv Invalidation) { f(ctx, inv) }
