package leasestore

import (
	"context"
	"errors"
)

// ErrNotFound names the "lease not found" condition. No Store method returns
// it: Renew and Release report an unknown lease_id (never existed, or
// already released/reclaimed) as renewed=false / released=false.
var ErrNotFound = errors.New("leasestore: lease not found")

// Store is the single contract every binding (memory/postgres/redis)
// satisfies. All methods are safe for concurrent use.
type Store interface {
	// Acquire grants a lease on resource_id to holder_id if no live lease
	// exists for it, or if the existing lease has expired. A live lease
	// held by a different holder_id is refused (granted=false, nil error).
	// Re-acquiring with the same holder_id as the current live holder is
	// idempotent and refreshes the expiry.
	Acquire(ctx context.Context, req AcquireRequest) (AcquireResponse, error)

	// Renew extends a live lease by ttl, provided lease_id matches the
	// current live lease for its resource. Renewing an expired or unknown
	// lease_id returns renewed=false, nil error — the caller (renewal
	// engine) treats this as a transport-class failure per spec.md §4.4.
	Renew(ctx context.Context, req RenewRequest) (RenewResponse, error)

	// Release discards a lease immediately, regardless of expiry. It is
	// idempotent: releasing an already-released or unknown lease_id
	// returns released=false, nil error, never ErrNotFound.
	Release(ctx context.Context, req ReleaseRequest) (ReleaseResponse, error)

	// List returns all live leases of the given kind. An empty/zero Kind
	// lists every kind.
	List(ctx context.Context, kind Kind) ([]Record, error)

	// HealthCheck verifies the backing store is reachable and able to
	// serve requests (e.g. a trivial round trip), independent of any
	// particular lease.
	HealthCheck(ctx context.Context) error
}
