package routingtable

import "ChordDHT/internal/logger"

type Option func(*RoutingTable)

// WithLogger sets the logger used by the routing table.
func WithLogger(l logger.Logger) Option {
	return func(rt *RoutingTable) {
		if l != nil {
			rt.logger = l
		}
	}
}
