package bootstrap

import (
	"context"

	"ChordDHT/internal/domain"
)

// Bootstrap abstracts how a node discovers an existing ring to join,
// and optionally announces itself for others to discover.
type Bootstrap interface {
	// Discover returns a list of known peer addresses.
	Discover(ctx context.Context) ([]string, error)
	// Register announces the current node (only where the backend
	// supports it, e.g. Route53).
	Register(ctx context.Context, node *domain.Node) error
	// Deregister withdraws the current node's announcement.
	Deregister(ctx context.Context, node *domain.Node) error
}
