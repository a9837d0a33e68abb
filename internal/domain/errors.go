package domain

import "errors"

// Error kinds shared across the client, node and server layers. Each
// one maps to a distinct failure mode of a ring operation; callers
// classify with errors.Is after any amount of fmt.Errorf("%w") wrapping.
var (
	// ErrUnreachable marks a peer that timed out or refused the
	// connection. The lookup engine recovers from it internally by
	// failing over within the successor list; it is fatal only when
	// every candidate is down.
	ErrUnreachable = errors.New("peer unreachable")

	// ErrUnavailable is returned by every externally-facing operation
	// while the node is in the crashed state.
	ErrUnavailable = errors.New("node unavailable")

	// ErrInvalidRequest marks malformed arguments: a missing join
	// target, an unparsable identifier, an empty key.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrRingInconsistent is returned when a lookup exceeds the hard
	// hop bound, which can only happen while the ring topology is
	// broken badly enough that stabilization has not caught up yet.
	ErrRingInconsistent = errors.New("ring inconsistent: lookup exceeded hop bound")
)
