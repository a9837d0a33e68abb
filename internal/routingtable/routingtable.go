package routingtable

import (
	"fmt"
	"sync"

	"ChordDHT/internal/domain"
	"ChordDHT/internal/logger"
)

// routingEntry represents a single entry in the routing table.
//
// Each entry holds a reference to a domain.Node and provides
// thread-safe access through a read/write mutex. The type is
// defined as a struct to allow future extensions (e.g., storing
// metadata, timestamps, or health information about the node).
type routingEntry struct {
	// node is the domain-level node stored in this entry.
	// It can be read and updated concurrently using mu.
	node *domain.Node

	// mu synchronizes access to node, ensuring safe
	// concurrent reads and writes.
	mu sync.RWMutex
}

func (e *routingEntry) get() *domain.Node {
	e.mu.RLock()
	n := e.node
	e.mu.RUnlock()
	return n
}

func (e *routingEntry) set(n *domain.Node) {
	e.mu.Lock()
	e.node = n
	e.mu.Unlock()
}

// RoutingTable holds the ring state of a Chord node: the successor
// list, the predecessor, and the finger table. It is owned by a single
// node (self) and maintained through the stabilization protocol.
//
// The immediate successor is not a separate field: it is, by
// definition, successorList[0]. Keeping a single source of truth means
// concurrent readers can never observe a state where the successor and
// the head of the successor list disagree.
//
// Fields:
//   - logger: used for structured logging of routing operations.
//   - space: identifier space configuration (bit-length, list size).
//   - self: the local node that owns this routing table.
//   - successorList: the next succListSize successors, providing
//     redundancy and fault tolerance against node failures.
//   - predecessor: the immediate predecessor of this node on the ring.
//   - fingerTable: space.Bits entries, finger[i] caching the successor
//     of self.ID + 2^i. Staleness slows routing but cannot misroute.
type RoutingTable struct {
	logger        logger.Logger
	space         domain.Space
	self          *domain.Node
	successorList []*routingEntry
	succListSize  int
	predecessor   *routingEntry
	fingerTable   []*routingEntry
}

// New creates and initializes a new RoutingTable for the given node.
//
// The routing table is initialized with empty successor entries, an
// empty predecessor entry, and a finger table of space.Bits entries.
// By default, logging is disabled (NopLogger) unless overridden with
// options.
//
// Arguments:
//   - self: the local node owning this routing table.
//   - space: the identifier space configuration.
//   - succListSize: the size of the successor list (r in the protocol).
//   - opts: functional options to customize the routing table (logger).
//
// Returns:
//   - *RoutingTable: a pointer to the newly created routing table, with
//     all entries initialized but containing nil nodes until
//     stabilization fills them.
func New(self *domain.Node, space domain.Space, succListSize int, opts ...Option) *RoutingTable {
	rt := &RoutingTable{
		self:          self,
		space:         space,
		successorList: make([]*routingEntry, succListSize),
		succListSize:  succListSize,
		predecessor:   &routingEntry{},
		fingerTable:   make([]*routingEntry, space.Bits),
		logger:        &logger.NopLogger{},
	}
	for i := range rt.successorList {
		rt.successorList[i] = &routingEntry{}
	}
	for i := range rt.fingerTable {
		rt.fingerTable[i] = &routingEntry{}
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.logger.Debug("routing table initialized")
	return rt
}

// InitSingleNode configures the routing table to represent a
// single-node ring: every successor entry beyond the first is cleared,
// the first successor points to self, every finger points to self, and
// the predecessor is unset.
func (rt *RoutingTable) InitSingleNode() {
	rt.successorList[0].set(rt.self)
	for i := 1; i < len(rt.successorList); i++ {
		rt.successorList[i].set(nil)
	}
	for _, entry := range rt.fingerTable {
		entry.set(rt.self)
	}
	rt.predecessor.set(nil)
	rt.logger.Debug("routing table reset to single-node ring")
}

// Space returns the identifier space configuration of the ring.
func (rt *RoutingTable) Space() domain.Space {
	return rt.space
}

// Self returns the local node owning this routing table.
func (rt *RoutingTable) Self() *domain.Node {
	return rt.self
}

// SuccListSize returns the configured size of the successor list.
func (rt *RoutingTable) SuccListSize() int {
	return rt.succListSize
}

// GetSuccessor returns the i-th successor from the successor list.
//
// If the index is out of range or the entry does not contain a node,
// the method returns nil. Access is synchronized using a read lock
// to ensure thread-safe concurrent access.
func (rt *RoutingTable) GetSuccessor(i int) *domain.Node {
	if i < 0 || i >= len(rt.successorList) {
		rt.logger.Warn(
			"GetSuccessor: index out of range",
			logger.F("requested", i),
			logger.F("valid_range", fmt.Sprintf("[0..%d]", len(rt.successorList)-1)),
		)
		return nil
	}
	return rt.successorList[i].get()
}

// FirstSuccessor returns the immediate successor, i.e. the head of the
// successor list. It returns nil only before the table is bootstrapped.
func (rt *RoutingTable) FirstSuccessor() *domain.Node {
	return rt.GetSuccessor(0)
}

// SetSuccessor updates the i-th successor entry with the specified node.
//
// If the index is out of range, the method logs a warning and does
// nothing. The update is synchronized with a write lock.
func (rt *RoutingTable) SetSuccessor(i int, node *domain.Node) {
	if i < 0 || i >= len(rt.successorList) {
		rt.logger.Warn(
			"SetSuccessor: index out of range",
			logger.F("requested", i),
			logger.F("valid_range", fmt.Sprintf("[0..%d]", len(rt.successorList)-1)),
		)
		return
	}
	rt.successorList[i].set(node)
	rt.logger.Debug("SetSuccessor: updated successor", logger.F("index", i), logger.FNode("successor", node))
}

// SuccessorList returns a slice of all non-nil successors currently
// known in the routing table. Callers receive a copy and may modify it
// without affecting the internal state.
func (rt *RoutingTable) SuccessorList() []*domain.Node {
	out := make([]*domain.Node, 0, len(rt.successorList))
	for _, entry := range rt.successorList {
		if node := entry.get(); node != nil {
			out = append(out, node)
		}
	}
	return out
}

// SetSuccessorList replaces the entire successor list with the given
// slice, which must have exactly the configured size. Entries may be
// nil to clear a position. On length mismatch the method logs a
// warning and does nothing.
func (rt *RoutingTable) SetSuccessorList(nodes []*domain.Node) {
	if len(nodes) != len(rt.successorList) {
		rt.logger.Warn(
			"SetSuccessorList: length mismatch",
			logger.F("expected", len(rt.successorList)),
			logger.F("got", len(nodes)),
		)
		return
	}
	entriesInfo := make([]map[string]any, 0, len(nodes))
	for i, node := range nodes {
		rt.successorList[i].set(node)
		if node == nil {
			entriesInfo = append(entriesInfo, map[string]any{"index": i, "node": nil})
		} else {
			entriesInfo = append(entriesInfo, map[string]any{"index": i, "id": node.ID.String(), "addr": node.Addr})
		}
	}
	rt.logger.Debug("SetSuccessorList: successor list updated",
		logger.F("entries", entriesInfo),
	)
}

// PromoteCandidate restructures the successor list by promoting the
// successor at position i to the head of the list.
//
// Behavior:
//   - The node at index i becomes the new successor at position 0.
//   - All successors after position i are shifted forward,
//     preserving their relative order.
//   - All successors before position i are discarded.
//   - The list is padded with nil entries until it reaches
//     the configured successor list size.
//
// Parameters:
//   - i: the index of the candidate successor to promote.
//     If i <= 0 or out of range, the function does nothing.
func (rt *RoutingTable) PromoteCandidate(i int) {
	if i <= 0 || i >= rt.succListSize {
		rt.logger.Warn(
			"PromoteCandidate: invalid index",
			logger.F("requested", i),
			logger.F("valid_range", fmt.Sprintf("[1..%d]", rt.succListSize-1)),
		)
		return
	}
	candidate := rt.GetSuccessor(i)
	if candidate == nil {
		rt.logger.Warn(
			"PromoteCandidate: candidate is nil",
			logger.F("index", i),
		)
		return
	}
	newList := make([]*domain.Node, 0, rt.succListSize)
	newList = append(newList, candidate)
	for j := i + 1; j < rt.succListSize; j++ {
		if succ := rt.GetSuccessor(j); succ != nil {
			newList = append(newList, succ)
		}
	}
	for len(newList) < rt.succListSize {
		newList = append(newList, nil)
	}
	rt.SetSuccessorList(newList)
	rt.logger.Debug(
		"PromoteCandidate: successor promoted",
		logger.F("from_index", i),
		logger.FNode("candidate", candidate),
	)
}

// GetPredecessor returns the current predecessor node, or nil if it is
// not set. Access is synchronized with a read lock.
func (rt *RoutingTable) GetPredecessor() *domain.Node {
	return rt.predecessor.get()
}

// SetPredecessor updates the predecessor pointer to the specified node
// (nil clears it). Access is synchronized with a write lock.
func (rt *RoutingTable) SetPredecessor(node *domain.Node) {
	rt.predecessor.set(node)
	rt.logger.Debug(
		"SetPredecessor: predecessor updated",
		logger.FNode("predecessor", node),
	)
}

// GetFinger returns the node cached in the finger entry at index i,
// or nil if the entry is unset or out of range.
func (rt *RoutingTable) GetFinger(i int) *domain.Node {
	if i < 0 || i >= len(rt.fingerTable) {
		rt.logger.Warn(
			"GetFinger: index out of range",
			logger.F("requested", i),
			logger.F("valid_range", fmt.Sprintf("[0..%d]", len(rt.fingerTable)-1)),
		)
		return nil
	}
	return rt.fingerTable[i].get()
}

// SetFinger updates the finger entry at index i with the specified
// node. If the index is out of range, the method logs a warning and
// does nothing.
func (rt *RoutingTable) SetFinger(i int, node *domain.Node) {
	if i < 0 || i >= len(rt.fingerTable) {
		rt.logger.Warn(
			"SetFinger: index out of range",
			logger.F("requested", i),
			logger.F("valid_range", fmt.Sprintf("[0..%d]", len(rt.fingerTable)-1)),
		)
		return
	}
	rt.fingerTable[i].set(node)
}

// FingerCount returns the number of finger entries (the identifier
// bit-length m).
func (rt *RoutingTable) FingerCount() int {
	return len(rt.fingerTable)
}

// FingerList returns the distinct non-nil finger entries in table
// order. Consecutive finger indices frequently resolve to the same
// node; the deduplication keeps the list compact for display and for
// remote routing snapshots without changing routing behavior.
func (rt *RoutingTable) FingerList() []*domain.Node {
	out := make([]*domain.Node, 0, len(rt.fingerTable))
	seen := make(map[string]struct{}, len(rt.fingerTable))
	for _, entry := range rt.fingerTable {
		node := entry.get()
		if node == nil {
			continue
		}
		if _, ok := seen[node.Addr]; ok {
			continue
		}
		seen[node.Addr] = struct{}{}
		out = append(out, node)
	}
	return out
}

// DebugLog emits a structured DEBUG-level log entry containing a
// snapshot of the entire routing table.
//
// Unlike calling the public getters, this method accesses the internal
// entries directly under read locks, in order to avoid triggering
// additional per-entry debug logs. As a result, DebugLog produces a
// single compact log entry that reflects the current state without
// side effects.
func (rt *RoutingTable) DebugLog() {
	pred := rt.predecessor.get()

	successors := make([]map[string]any, 0, len(rt.successorList))
	for i, entry := range rt.successorList {
		node := entry.get()
		if node == nil {
			successors = append(successors, map[string]any{"index": i, "node": nil})
		} else {
			successors = append(successors, map[string]any{"index": i, "id": node.ID.String(), "addr": node.Addr})
		}
	}

	fingers := make([]map[string]any, 0, len(rt.fingerTable))
	prevAddr := ""
	for i, entry := range rt.fingerTable {
		node := entry.get()
		if node == nil || node.Addr == prevAddr {
			continue
		}
		prevAddr = node.Addr
		fingers = append(fingers, map[string]any{"index": i, "id": node.ID.String(), "addr": node.Addr})
	}

	rt.logger.Debug("RoutingTable snapshot",
		logger.FNode("self", rt.self),
		logger.FNode("predecessor", pred),
		logger.F("successors", successors),
		logger.F("fingers", fingers),
	)
}
