package nib

import "errors"

// Sentinel errors surfaced by the mutation and query API. The NIB
// never logs or blocks on its own; callers decide what to do.
var (
	// ErrPoolExhausted is returned when a fixed-size pool has no free
	// slot and, for the neighbor cache, no garbage-collectible victim
	// either.
	ErrPoolExhausted = errors.New("nib: pool exhausted")

	// ErrNoRoute is returned by GetRoute when neither an off-link
	// entry nor the default router list can supply a next hop.
	ErrNoRoute = errors.New("nib: no route to destination")

	// ErrInvalidArgument is returned when a documented precondition is
	// violated: a nil address, an out-of-range prefix length, a
	// disallowed initial NUD state, and similar caller contract
	// violations.
	ErrInvalidArgument = errors.New("nib: invalid argument")

	// ErrNotFound is returned by Get-style lookups that find nothing.
	ErrNotFound = errors.New("nib: not found")

	// ErrHostUnreachable is the reason packets queued against a
	// neighbor-cache entry are released when that entry is removed or
	// evicted.
	ErrHostUnreachable = errors.New("nib: host unreachable")
)
