package node

import "ChordDHT/internal/logger"

type Option func(*Node)

// WithLogger sets the logger used by the node.
func WithLogger(l logger.Logger) Option {
	return func(n *Node) {
		if l != nil {
			n.lgr = l
		}
	}
}

// WithHopBound overrides the hard bound on lookup hops. Values <= 0
// keep the default of twice the identifier bit-length.
func WithHopBound(bound int) Option {
	return func(n *Node) {
		if bound > 0 {
			n.hopBound = bound
		}
	}
}
