package node

import (
	"context"
	"errors"
	"fmt"

	"ChordDHT/internal/client"
	"ChordDHT/internal/ctxutil"
	"ChordDHT/internal/domain"
	"ChordDHT/internal/logger"
	"ChordDHT/internal/telemetry/lookuptrace"
)

// IsValidID checks whether the provided identifier is valid within the
// identifier space of this node.
func (n *Node) IsValidID(id []byte) error {
	return n.rt.Space().IsValidID(id)
}

// Owns reports whether this node is responsible for the given
// identifier: pred ≠ nil and id ∈ (pred, self]. A node without a
// predecessor owns nothing — except in a single-node ring, where it
// owns the whole identifier space.
func (n *Node) Owns(id domain.ID) bool {
	self := n.rt.Self()
	pred := n.rt.GetPredecessor()
	if pred == nil {
		succ := n.rt.FirstSuccessor()
		return succ != nil && succ.ID.Equal(self.ID)
	}
	return id.Between(pred.ID, self.ID)
}

// FindSuccessor returns the node responsible for the given identifier.
//
// The lookup is iterative: this node resolves each hop itself by asking
// the candidate peer for its routing snapshot, rather than delegating
// the rest of the lookup down the chain. That keeps the call stack flat
// and makes failover tractable — an unreachable hop is retried from the
// local successor list instead of unwinding through remote nodes.
//
// A hop bound of 2m caps the walk; exceeding it means the ring topology
// is inconsistent, which is surfaced to the caller and answered with an
// immediate asynchronous stabilize round.
func (n *Node) FindSuccessor(ctx context.Context, target domain.ID) (*domain.Node, error) {
	if err := n.guard(); err != nil {
		return nil, err
	}
	if err := ctxutil.CheckContext(ctx); err != nil {
		return nil, err
	}
	ctx, span := lookuptrace.StartLookup(ctx, target)
	res, hops, err := n.findSuccessor(ctx, target)
	lookuptrace.EndWithResult(span, hops, res, err)
	if err != nil && errors.Is(err, domain.ErrRingInconsistent) {
		n.lgr.Error("FindSuccessor: hop bound exceeded, scheduling stabilize",
			logger.F("target", target.ToHexString(true)),
			logger.F("hops", hops))
		go n.stabilizeSuccessor()
	}
	return res, err
}

func (n *Node) findSuccessor(ctx context.Context, target domain.ID) (*domain.Node, int, error) {
	self := n.rt.Self()
	succ := n.rt.FirstSuccessor()
	if succ == nil {
		return nil, 0, fmt.Errorf("find_successor: routing table not initialized")
	}

	// Resolved locally: either this node owns the target, or the target
	// falls between this node and its immediate successor.
	if n.Owns(target) {
		return self, 0, nil
	}
	if target.Between(self.ID, succ.ID) {
		return succ, 0, nil
	}

	// With no finger strictly preceding the target, the walk starts at
	// the immediate successor.
	next := n.closestPrecedingFinger(target)
	if next.ID.Equal(self.ID) {
		next = succ
	}

	// Peers found dead during this lookup. A stale snapshot on a live
	// node can keep pointing at a peer that already failed; without the
	// set the walk would bounce between the live node and the dead one
	// until the hop bound fires.
	dead := make(map[string]bool)
	hops := 0
	for hops < n.hopBound {
		if err := ctxutil.CheckContext(ctx); err != nil {
			return nil, hops, err
		}
		hops++
		ctx = ctxutil.IncHops(ctx)

		hopCtx, hopSpan := lookuptrace.StartHop(ctx, hops, next)
		rctx, cancel := context.WithTimeout(hopCtx, n.cp.FailureTimeout())
		info, err := n.cp.NodeInfoOf(rctx, next.Addr)
		cancel()
		hopSpan.End()

		if err != nil || info == nil || info.Self == nil || info.Successor == nil {
			// Unreachable, or answering without a successor (still
			// joining): either way this hop cannot route.
			if ctx.Err() != nil {
				return nil, hops, fmt.Errorf("find_successor interrupted: %w", ctx.Err())
			}
			n.lgr.Warn("find_successor: hop unusable, failing over via successor list",
				logger.FNode("peer", next),
				logger.F("target", target.ToHexString(true)),
				logger.F("err", err))
			dead[next.Addr] = true
			cand, ferr := n.liveSuccessorEntry(ctx, dead)
			if ferr != nil {
				return nil, hops, fmt.Errorf("find_successor for %s: %w", target.ToHexString(true), ferr)
			}
			next = cand
			continue
		}

		// The contacted node may itself be responsible: its successor
		// pointer can lag behind a failure, but its ownership interval
		// (pred, self] is authoritative.
		if info.Predecessor != nil && target.Between(info.Predecessor.ID, info.Self.ID) {
			return info.Self, hops, nil
		}
		if !dead[info.Successor.Addr] && target.Between(info.Self.ID, info.Successor.ID) {
			return info.Successor, hops, nil
		}

		if cand := closestPrecedingFromInfo(info, target, dead); cand != nil && !cand.ID.Equal(info.Self.ID) {
			next = cand
			continue
		}

		// No usable finger: advance along the remote successor list,
		// skipping entries already found dead.
		next = nil
		for _, s := range append([]*domain.Node{info.Successor}, info.SuccessorList...) {
			if s != nil && !dead[s.Addr] && !s.ID.Equal(info.Self.ID) {
				next = s
				break
			}
		}
		if next == nil {
			cand, ferr := n.liveSuccessorEntry(ctx, dead)
			if ferr != nil {
				return nil, hops, fmt.Errorf("find_successor for %s: %w", target.ToHexString(true), ferr)
			}
			next = cand
		}
	}
	return nil, hops, fmt.Errorf("find_successor for %s: %w", target.ToHexString(true), domain.ErrRingInconsistent)
}

// closestPrecedingFinger scans the local finger table from the
// furthest-reaching entry downwards and returns the first node whose ID
// lies strictly between this node and the target. Falling back to self
// signals the caller to use the immediate successor.
func (n *Node) closestPrecedingFinger(target domain.ID) *domain.Node {
	self := n.rt.Self()
	for i := n.rt.FingerCount() - 1; i >= 0; i-- {
		f := n.rt.GetFinger(i)
		if f == nil {
			continue
		}
		if f.ID.BetweenOpen(self.ID, target) {
			return f
		}
	}
	return self
}

// closestPrecedingFromInfo applies the same furthest-first scan to a
// remote node's routing snapshot, so the iterative lookup can advance
// past the remote node without delegating the lookup to it. Entries
// already found dead in this lookup are skipped.
func closestPrecedingFromInfo(info *client.NodeInfo, target domain.ID, dead map[string]bool) *domain.Node {
	for i := len(info.FingerTable) - 1; i >= 0; i-- {
		f := info.FingerTable[i]
		if f == nil || dead[f.Addr] {
			continue
		}
		if f.ID.BetweenOpen(info.Self.ID, target) {
			return f
		}
	}
	return nil
}

// liveSuccessorEntry walks the local successor list looking for the
// first live entry to restart an interrupted lookup from. Addresses
// already found dead in this lookup are skipped outright.
func (n *Node) liveSuccessorEntry(ctx context.Context, dead map[string]bool) (*domain.Node, error) {
	self := n.rt.Self()
	for _, cand := range n.rt.SuccessorList() {
		if cand == nil || dead[cand.Addr] {
			continue
		}
		if cand.ID.Equal(self.ID) {
			continue
		}
		rctx, cancel := context.WithTimeout(ctx, n.cp.FailureTimeout())
		err := n.cp.Ping(rctx, cand.Addr)
		cancel()
		if err == nil {
			return cand, nil
		}
		dead[cand.Addr] = true
	}
	return nil, domain.ErrUnreachable
}

// Notify processes a hint that p may be this node's predecessor.
//
// The predecessor is adopted when none is set, or when p falls strictly
// between the current predecessor and this node — a notify can only
// ever move the predecessor forward on the ring, never backwards.
// Keys are not transferred on adoption: responsibility narrows, and the
// entries outside the new interval are simply no longer served.
func (n *Node) Notify(p *domain.Node) {
	self := n.rt.Self()
	if p == nil || p.ID.Equal(self.ID) {
		return
	}

	pred := n.rt.GetPredecessor()
	if pred == nil || p.ID.BetweenOpen(pred.ID, self.ID) {
		if err := n.cp.AddRef(p.Addr); err != nil {
			n.lgr.Warn("Notify: failed to add new predecessor to pool",
				logger.FNode("newPredecessor", p), logger.F("err", err))
		}
		n.rt.SetPredecessor(p)
		if pred != nil {
			if err := n.cp.Release(pred.Addr); err != nil {
				n.lgr.Warn("Notify: failed to release old predecessor",
					logger.FNode("node", pred), logger.F("err", err))
			}
		}
		n.lgr.Info("Notify: predecessor updated",
			logger.FNode("newPredecessor", p),
			logger.FNode("oldPredecessor", pred))
	}
}

// HandleUpdatePredecessor force-sets the predecessor. Part of the
// voluntary-leave handshake: the leaving node points its successor at
// its own predecessor.
func (n *Node) HandleUpdatePredecessor(p *domain.Node) {
	self := n.rt.Self()
	old := n.rt.GetPredecessor()
	if p != nil && !p.ID.Equal(self.ID) {
		if err := n.cp.AddRef(p.Addr); err != nil {
			n.lgr.Warn("UpdatePredecessor: failed to add predecessor to pool",
				logger.FNode("predecessor", p), logger.F("err", err))
		}
	}
	n.rt.SetPredecessor(p)
	if old != nil && !old.ID.Equal(self.ID) {
		_ = n.cp.Release(old.Addr)
	}
	n.lgr.Info("UpdatePredecessor: predecessor replaced",
		logger.FNode("new", p), logger.FNode("old", old))
}

// HandleUpdateSuccessor force-sets the successor. Part of the
// voluntary-leave handshake: the leaving node points its predecessor at
// its own successor.
func (n *Node) HandleUpdateSuccessor(s *domain.Node) {
	if s == nil {
		return
	}
	n.adoptSuccessor(s)
	n.lgr.Info("UpdateSuccessor: successor replaced", logger.FNode("new", s))
}

// adoptSuccessor installs succ as the immediate successor, maintaining
// pool references and the recovery hint.
func (n *Node) adoptSuccessor(succ *domain.Node) {
	self := n.rt.Self()
	if succ == nil {
		return
	}
	if succ.ID.Equal(self.ID) {
		n.rt.SetSuccessor(0, self)
		return
	}
	old := n.rt.FirstSuccessor()
	if old != nil && old.Addr == succ.Addr {
		n.rememberSuccessor(succ)
		return
	}
	if err := n.cp.AddRef(succ.Addr); err != nil {
		n.lgr.Warn("adoptSuccessor: failed to add successor to pool",
			logger.FNode("successor", succ), logger.F("err", err))
	}
	n.rt.SetSuccessor(0, succ)
	if old != nil && !old.ID.Equal(self.ID) {
		_ = n.cp.Release(old.Addr)
	}
	n.rememberSuccessor(succ)
}

// Put stores a key-value pair in the DHT on behalf of a client.
//
// If this node is responsible, the pair is stored locally. Without a
// predecessor the node cannot prove responsibility, so the request is
// handed to the immediate successor. Otherwise the responsible node is
// located and the pair forwarded to it. A forward that fails is
// surfaced to the client as-is; the operation is never retried
// internally.
func (n *Node) Put(ctx context.Context, res domain.Resource) error {
	if err := n.guard(); err != nil {
		return err
	}
	if err := ctxutil.CheckContext(ctx); err != nil {
		return err
	}
	if res.RawKey == "" {
		return fmt.Errorf("%w: empty key", domain.ErrInvalidRequest)
	}

	if n.Owns(res.Key) {
		n.s.Put(res)
		n.lgr.Info("Put: resource stored locally", logger.F("key", res.RawKey))
		return nil
	}

	target, err := n.forwardTarget(ctx, res.Key)
	if err != nil {
		return fmt.Errorf("put: failed to find successor for key %s: %w", res.RawKey, err)
	}
	if target.ID.Equal(n.rt.Self().ID) {
		n.s.Put(res)
		n.lgr.Info("Put: resource stored locally", logger.F("key", res.RawKey))
		return nil
	}
	if err := n.cp.StoragePut(ctx, target.Addr, res); err != nil {
		n.lgr.Warn("Put: failed to store resource at responsible node",
			logger.F("key", res.RawKey), logger.FNode("responsible", target), logger.F("err", err))
		return fmt.Errorf("put: store at %s: %w", target.Addr, err)
	}
	n.lgr.Info("Put: resource stored at responsible node",
		logger.F("key", res.RawKey), logger.FNode("responsible", target))
	return nil
}

// Get retrieves the value for rawKey from the DHT on behalf of a
// client, routing to the responsible node if it is not this one.
func (n *Node) Get(ctx context.Context, rawKey string) (*domain.Resource, error) {
	if err := n.guard(); err != nil {
		return nil, err
	}
	if err := ctxutil.CheckContext(ctx); err != nil {
		return nil, err
	}
	if rawKey == "" {
		return nil, fmt.Errorf("%w: empty key", domain.ErrInvalidRequest)
	}
	key := n.rt.Space().NewIDFromString(rawKey)

	if n.Owns(key) {
		res, err := n.s.Get(rawKey)
		if err != nil {
			return nil, err
		}
		return &res, nil
	}

	target, err := n.forwardTarget(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get: failed to find successor for key %s: %w", rawKey, err)
	}
	if target.ID.Equal(n.rt.Self().ID) {
		res, err := n.s.Get(rawKey)
		if err != nil {
			return nil, err
		}
		return &res, nil
	}
	res, err := n.cp.StorageGet(ctx, target.Addr, rawKey)
	if err != nil {
		if errors.Is(err, domain.ErrResourceNotFound) {
			return nil, err
		}
		n.lgr.Warn("Get: failed to retrieve resource from responsible node",
			logger.F("key", rawKey), logger.FNode("responsible", target), logger.F("err", err))
		return nil, fmt.Errorf("get: retrieve from %s: %w", target.Addr, err)
	}
	return res, nil
}

// Delete removes rawKey from the DHT on behalf of a client, routing to
// the responsible node if it is not this one.
func (n *Node) Delete(ctx context.Context, rawKey string) error {
	if err := n.guard(); err != nil {
		return err
	}
	if err := ctxutil.CheckContext(ctx); err != nil {
		return err
	}
	if rawKey == "" {
		return fmt.Errorf("%w: empty key", domain.ErrInvalidRequest)
	}
	key := n.rt.Space().NewIDFromString(rawKey)

	if n.Owns(key) {
		return n.s.Delete(rawKey)
	}

	target, err := n.forwardTarget(ctx, key)
	if err != nil {
		return fmt.Errorf("delete: failed to find successor for key %s: %w", rawKey, err)
	}
	if target.ID.Equal(n.rt.Self().ID) {
		return n.s.Delete(rawKey)
	}
	if err := n.cp.StorageDelete(ctx, target.Addr, rawKey); err != nil {
		if errors.Is(err, domain.ErrResourceNotFound) {
			return err
		}
		return fmt.Errorf("delete: remove at %s: %w", target.Addr, err)
	}
	return nil
}

// forwardTarget decides where a storage operation this node does not
// own should go. With no predecessor the node cannot evaluate
// responsibility yet and hands the request to its immediate successor;
// otherwise it runs a full lookup.
func (n *Node) forwardTarget(ctx context.Context, key domain.ID) (*domain.Node, error) {
	if n.rt.GetPredecessor() == nil {
		succ := n.rt.FirstSuccessor()
		if succ == nil {
			return nil, fmt.Errorf("routing table not initialized")
		}
		return succ, nil
	}
	target, err := n.FindSuccessor(ctx, key)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, domain.ErrUnreachable
	}
	return target, nil
}

// GetAllResourceStored returns a snapshot of all resources currently in
// this node's local storage. Debug/monitoring only; no routing.
func (n *Node) GetAllResourceStored() []domain.Resource {
	return n.s.All()
}

// Join links this node into an existing ring through the first usable
// bootstrap peer: the successor of this node's own ID is looked up
// remotely and adopted, and a first stabilize round runs immediately so
// the neighbourhood learns about the newcomer without waiting a full
// tick. Joining again through the same peer is harmless.
func (n *Node) Join(ctx context.Context, peers []string) error {
	self := n.rt.Self()
	var lastErr error
	for _, peer := range peers {
		if peer == "" || peer == self.Addr {
			continue
		}
		rctx, cancel := context.WithTimeout(ctx, n.cp.FailureTimeout())
		succ, err := n.cp.FindSuccessor(rctx, self.ID, peer)
		cancel()
		if err != nil {
			n.lgr.Warn("Join: bootstrap peer failed",
				logger.F("peer", peer), logger.F("err", err))
			lastErr = err
			continue
		}
		if succ == nil {
			continue
		}
		n.rt.SetPredecessor(nil)
		if succ.ID.Equal(self.ID) {
			// The ring's only member hashed to our own ID: we are that
			// member rejoining, so collapse to a fresh single-node ring.
			n.rt.InitSingleNode()
			n.lgr.Info("Join: bootstrap resolved to self, created single-node ring")
			return nil
		}
		n.adoptSuccessor(succ)
		n.stabilizeSuccessor()
		n.lgr.Info("Join: joined ring",
			logger.F("bootstrap", peer), logger.FNode("successor", succ))
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no usable bootstrap peer")
	}
	return fmt.Errorf("join: %w", lastErr)
}

// CreateNewRing initializes this node as the sole member of a fresh
// ring.
func (n *Node) CreateNewRing() {
	n.rt.InitSingleNode()
	n.lgr.Info("created new ring")
}

// Leave departs the ring gracefully: the predecessor is pointed at the
// successor and vice versa, then the local state collapses back to a
// single-node ring. Both notifications are best-effort — the
// stabilization protocol repairs whatever they miss. Stored keys are
// not transferred and become unavailable.
func (n *Node) Leave(ctx context.Context) error {
	if err := n.guard(); err != nil {
		return err
	}
	self := n.rt.Self()
	pred := n.rt.GetPredecessor()
	succ := n.rt.FirstSuccessor()

	if succ != nil && !succ.ID.Equal(self.ID) && pred != nil && !pred.ID.Equal(self.ID) {
		rctx, cancel := context.WithTimeout(ctx, n.cp.FailureTimeout())
		if err := n.cp.UpdateSuccessor(rctx, succ, pred.Addr); err != nil {
			n.lgr.Warn("Leave: failed to update predecessor's successor",
				logger.FNode("predecessor", pred), logger.F("err", err))
		}
		cancel()
		rctx, cancel = context.WithTimeout(ctx, n.cp.FailureTimeout())
		if err := n.cp.UpdatePredecessor(rctx, pred, succ.Addr); err != nil {
			n.lgr.Warn("Leave: failed to update successor's predecessor",
				logger.FNode("successor", succ), logger.F("err", err))
		}
		cancel()
	}

	n.releaseAllRefs()
	n.rt.InitSingleNode()
	n.lgr.Info("Leave: departed ring",
		logger.FNode("notified_predecessor", pred),
		logger.FNode("notified_successor", succ))
	return nil
}

// SimCrash puts the node into the crashed state: every externally-facing
// operation fails with ErrUnavailable and the maintenance loop is
// suspended. Ring state and stored keys are frozen untouched.
func (n *Node) SimCrash() {
	if n.state.CompareAndSwap(stateActive, stateCrashed) {
		n.lgr.Warn("SimCrash: node entering crashed state")
	}
}

// SimRecover brings a crashed node back: it rejoins through its last
// known successor (or re-creates a single-node ring if it never had
// one) and completes a stabilize round before accepting traffic again.
func (n *Node) SimRecover(ctx context.Context) error {
	if !n.state.CompareAndSwap(stateCrashed, stateRecovering) {
		// Already active (or mid-recovery): nothing to do.
		return nil
	}
	defer n.state.Store(stateActive)

	last := n.lastKnownSuccessor()
	if last == nil || last.Addr == n.rt.Self().Addr {
		n.rt.InitSingleNode()
		n.lgr.Info("SimRecover: no known successor, recovered as single-node ring")
		return nil
	}
	if err := n.Join(ctx, []string{last.Addr}); err != nil {
		n.lgr.Warn("SimRecover: rejoin through last successor failed, recovering as single-node ring",
			logger.FNode("lastSuccessor", last), logger.F("err", err))
		n.rt.InitSingleNode()
		return nil
	}
	n.lgr.Info("SimRecover: rejoined ring", logger.FNode("through", last))
	return nil
}
