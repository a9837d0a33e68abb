package node

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ChordDHT/internal/client"
	"ChordDHT/internal/domain"
	"ChordDHT/internal/logger"
	"ChordDHT/internal/routingtable"
	"ChordDHT/internal/storage"
)

// Node lifecycle states. External operations are served only while
// active; crashed suspends everything, recovering allows internal ring
// mutation (rejoin, stabilize) while still rejecting traffic.
const (
	stateActive int32 = iota
	stateCrashed
	stateRecovering
)

// PeerClient is the outbound RPC surface the node needs from the
// transport layer. *client.Pool satisfies it; tests substitute a
// scripted fake ring.
type PeerClient interface {
	FailureTimeout() time.Duration
	AddRef(addr string) error
	Release(addr string) error

	NodeInfoOf(ctx context.Context, addr string) (*client.NodeInfo, error)
	GetSuccessor(ctx context.Context, addr string) (*domain.Node, error)
	GetPredecessor(ctx context.Context, addr string) (*domain.Node, error)
	GetSuccessorList(ctx context.Context, addr string) ([]*domain.Node, error)
	Notify(ctx context.Context, self *domain.Node, addr string) error
	UpdatePredecessor(ctx context.Context, pred *domain.Node, addr string) error
	UpdateSuccessor(ctx context.Context, succ *domain.Node, addr string) error
	FindSuccessor(ctx context.Context, target domain.ID, addr string) (*domain.Node, error)
	Ping(ctx context.Context, addr string) error

	StoragePut(ctx context.Context, addr string, res domain.Resource) error
	StorageGet(ctx context.Context, addr string, rawKey string) (*domain.Resource, error)
	StorageDelete(ctx context.Context, addr string, rawKey string) error
}

// Node ties together the routing table, the peer client and the local
// storage, and implements the Chord operations on top of them: the
// lookup engine (operation.go) and the maintenance loop (worker.go).
type Node struct {
	rt  *routingtable.RoutingTable
	cp  PeerClient
	s   storage.Storage
	lgr logger.Logger

	state    atomic.Int32
	hopBound int

	// lastSucc is the last successor this node linked to, kept so that
	// recovery after a simulated crash can rejoin through it.
	lastSuccMu sync.Mutex
	lastSucc   *domain.Node
}

// New assembles a node from its routing table, peer client and storage.
// The hop bound defaults to twice the identifier bit-length unless
// overridden with WithHopBound.
func New(rt *routingtable.RoutingTable, cp PeerClient, s storage.Storage, opts ...Option) *Node {
	n := &Node{
		rt:       rt,
		cp:       cp,
		s:        s,
		lgr:      &logger.NopLogger{},
		hopBound: 2 * rt.Space().Bits,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Self returns the local node information.
func (n *Node) Self() *domain.Node {
	return n.rt.Self()
}

// Space returns the identifier space of the ring.
func (n *Node) Space() domain.Space {
	return n.rt.Space()
}

// Predecessor returns the current predecessor, or nil if none is set.
func (n *Node) Predecessor() *domain.Node {
	return n.rt.GetPredecessor()
}

// Successor returns the immediate successor.
func (n *Node) Successor() *domain.Node {
	return n.rt.FirstSuccessor()
}

// SuccessorList returns the current non-nil successor list entries.
func (n *Node) SuccessorList() []*domain.Node {
	return n.rt.SuccessorList()
}

// FingerTable returns the deduplicated finger entries.
func (n *Node) FingerTable() []*domain.Node {
	return n.rt.FingerList()
}

// Crashed reports whether the node is refusing traffic (crashed or
// still recovering).
func (n *Node) Crashed() bool {
	return n.state.Load() != stateActive
}

// guard rejects externally-facing operations while the node is not
// active.
func (n *Node) guard() error {
	if n.Crashed() {
		return domain.ErrUnavailable
	}
	return nil
}

func (n *Node) rememberSuccessor(succ *domain.Node) {
	if succ == nil || succ.ID.Equal(n.rt.Self().ID) {
		return
	}
	n.lastSuccMu.Lock()
	n.lastSucc = succ
	n.lastSuccMu.Unlock()
}

func (n *Node) lastKnownSuccessor() *domain.Node {
	n.lastSuccMu.Lock()
	defer n.lastSuccMu.Unlock()
	return n.lastSucc
}

// Info is a consistent-enough snapshot of the node's routing state,
// served to peers via the node-info endpoint.
type Info struct {
	Self          *domain.Node
	Successor     *domain.Node
	Predecessor   *domain.Node
	FingerTable   []*domain.Node
	SuccessorList []*domain.Node
}

// Info snapshots the routing state for remote consumption.
func (n *Node) Info() Info {
	sl := n.rt.SuccessorList()
	var succ *domain.Node
	if len(sl) > 0 {
		succ = sl[0]
	}
	return Info{
		Self:          n.rt.Self(),
		Successor:     succ,
		Predecessor:   n.rt.GetPredecessor(),
		FingerTable:   n.rt.FingerList(),
		SuccessorList: sl,
	}
}

// Stop releases every pooled peer reference held through the routing
// table. Called on process shutdown.
func (n *Node) Stop() {
	n.releaseAllRefs()
	n.lgr.Info("node stopped")
}

func (n *Node) releaseAllRefs() {
	self := n.rt.Self()
	if pred := n.rt.GetPredecessor(); pred != nil && !pred.ID.Equal(self.ID) {
		_ = n.cp.Release(pred.Addr)
	}
	for _, nd := range n.rt.SuccessorList() {
		if nd != nil && !nd.ID.Equal(self.ID) {
			_ = n.cp.Release(nd.Addr)
		}
	}
}
