package node

import (
	"context"
	"errors"
	"time"

	"ChordDHT/internal/client"
	"ChordDHT/internal/ctxutil"
	"ChordDHT/internal/domain"
	"ChordDHT/internal/logger"
)

// StartStabilizers runs the periodic ring-maintenance tasks. It
// launches three independent loops:
//   - stabilize (successor verification, successor-list refresh, notify)
//   - fix_fingers (finger table refresh)
//   - check_predecessor (predecessor liveness probe)
//
// Every loop skips its tick while the node is crashed and stops when
// ctx is canceled.
func (n *Node) StartStabilizers(ctx context.Context, stabilizeInterval, fixFingersInterval, checkPredecessorInterval time.Duration) {
	go func() {
		ticker := time.NewTicker(stabilizeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				n.lgr.Info("stabilize loop stopped")
				return
			case <-ticker.C:
				if n.Crashed() {
					continue
				}
				n.stabilizeSuccessor()
				n.printRoutingTable()
				n.printStorageStats()
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(fixFingersInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				n.lgr.Info("fix_fingers loop stopped")
				return
			case <-ticker.C:
				if n.Crashed() {
					continue
				}
				n.fixFingers(ctx)
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(checkPredecessorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				n.lgr.Info("check_predecessor loop stopped")
				return
			case <-ticker.C:
				if n.Crashed() {
					continue
				}
				n.checkPredecessor()
			}
		}
	}()
}

// printRoutingTable logs the current state of the routing table.
func (n *Node) printRoutingTable() {
	n.rt.DebugLog()
}

// printStorageStats logs the current state of the local storage.
func (n *Node) printStorageStats() {
	n.s.DebugLog()
}

// stabilizeSuccessor refreshes this node's view of its immediate
// neighbourhood.
//
// The procedure is:
//  1. Ask the successor for its predecessor. If the successor is dead,
//     fail over to the next live entry of the successor list.
//  2. If the reported predecessor sits between this node and the
//     successor, a new node has joined in between: adopt it.
//  3. Rebuild the successor list from the (possibly new) successor.
//  4. Notify the successor that this node may be its predecessor.
//
// A single-node ring has a special case: a joiner announces itself via
// notify, which sets our predecessor while our successor still points
// at self. Adopting that predecessor as successor is what turns two
// lone nodes into a two-node ring.
func (n *Node) stabilizeSuccessor() {
	self := n.rt.Self()
	succ := n.rt.FirstSuccessor()
	if succ == nil {
		n.lgr.Error("stabilize: successor is nil, resetting to single-node ring")
		n.rt.InitSingleNode()
		return
	}

	if succ.ID.Equal(self.ID) {
		if pred := n.rt.GetPredecessor(); pred != nil && !pred.ID.Equal(self.ID) {
			n.adoptSuccessor(pred)
			succ = pred
		} else {
			return
		}
	}

	ctx, cancel := ctxutil.NewContext(
		ctxutil.WithTimeout(n.cp.FailureTimeout()),
		ctxutil.WithTrace(self.ID),
	)
	pred, err := n.cp.GetPredecessor(ctx, succ.Addr)
	cancel()
	if err != nil && !errors.Is(err, client.ErrNoPredecessor) {
		n.lgr.Warn("stabilize: successor unresponsive, attempting promotion",
			logger.FNode("successor", succ), logger.F("err", err))
		n.failoverSuccessor()
		return
	}

	if pred != nil && pred.ID.BetweenOpen(self.ID, succ.ID) {
		n.lgr.Info("stabilize: adopting closer successor",
			logger.FNode("new", pred), logger.FNode("old", succ))
		n.adoptSuccessor(pred)
		succ = pred
	}

	n.refreshSuccessorList(succ)

	nctx, ncancel := context.WithTimeout(context.Background(), n.cp.FailureTimeout())
	defer ncancel()
	if err := n.cp.Notify(nctx, self, succ.Addr); err != nil {
		n.lgr.Warn("stabilize: notify failed",
			logger.FNode("successor", succ), logger.F("err", err))
	}
}

// failoverSuccessor promotes the first live entry of the successor list
// to immediate successor. If every entry is dead, the node collapses
// back to a single-node ring and waits for the world to find it again.
func (n *Node) failoverSuccessor() {
	self := n.rt.Self()
	old := n.rt.FirstSuccessor()

	for i := 1; i < n.rt.SuccListSize(); i++ {
		cand := n.rt.GetSuccessor(i)
		if cand == nil || cand.ID.Equal(self.ID) {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), n.cp.FailureTimeout())
		err := n.cp.Ping(ctx, cand.Addr)
		cancel()
		if err != nil {
			n.lgr.Debug("stabilize: successor candidate dead",
				logger.F("index", i), logger.FNode("candidate", cand))
			continue
		}
		n.rt.PromoteCandidate(i)
		if old != nil && !old.ID.Equal(self.ID) {
			_ = n.cp.Release(old.Addr)
		}
		n.rememberSuccessor(cand)
		n.refreshSuccessorList(cand)

		nctx, ncancel := context.WithTimeout(context.Background(), n.cp.FailureTimeout())
		if err := n.cp.Notify(nctx, self, cand.Addr); err != nil {
			n.lgr.Warn("stabilize: notify after promotion failed",
				logger.FNode("successor", cand), logger.F("err", err))
		}
		ncancel()

		n.lgr.Info("stabilize: successor promoted from successor list",
			logger.FNode("new", cand), logger.FNode("old", old))
		return
	}

	n.lgr.Warn("stabilize: no live successor candidate, reverting to single-node ring")
	n.releaseAllRefs()
	n.rt.InitSingleNode()
}

// refreshSuccessorList rebuilds the successor list as
// [succ] ++ succ.successor_list[0..r-2], truncating at the first entry
// that wraps back to this node, and reconciles pool references between
// the old and new lists.
func (n *Node) refreshSuccessorList(succ *domain.Node) {
	self := n.rt.Self()
	if succ == nil || succ.ID.Equal(self.ID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.cp.FailureTimeout())
	remoteList, err := n.cp.GetSuccessorList(ctx, succ.Addr)
	cancel()
	if err != nil {
		n.lgr.Warn("stabilize: could not fetch successor list",
			logger.FNode("successor", succ), logger.F("err", err))
		return
	}

	oldList := n.rt.SuccessorList()
	oldSet := make(map[string]*domain.Node, len(oldList))
	for _, nd := range oldList {
		if nd != nil && !nd.ID.Equal(self.ID) {
			oldSet[nd.Addr] = nd
		}
	}

	size := n.rt.SuccListSize()
	newList := make([]*domain.Node, size)
	newList[0] = succ
	seen := map[string]bool{succ.Addr: true}
	i := 1
	for _, entry := range remoteList {
		if i >= size {
			break
		}
		if entry == nil || entry.ID.Equal(self.ID) {
			// The remote list wrapped back around to us: everything
			// past this point precedes us on the ring.
			break
		}
		if seen[entry.Addr] {
			continue
		}
		seen[entry.Addr] = true
		newList[i] = entry
		i++
	}

	newSet := make(map[string]*domain.Node, len(newList))
	for _, nd := range newList {
		if nd != nil && !nd.ID.Equal(self.ID) {
			newSet[nd.Addr] = nd
		}
	}

	for addr, nd := range newSet {
		if _, ok := oldSet[addr]; !ok {
			if err := n.cp.AddRef(addr); err != nil {
				n.lgr.Warn("stabilize: addref failed",
					logger.FNode("node", nd), logger.F("err", err))
			}
		}
	}

	n.rt.SetSuccessorList(newList)

	for addr, nd := range oldSet {
		if _, ok := newSet[addr]; !ok {
			if err := n.cp.Release(addr); err != nil {
				n.lgr.Warn("stabilize: release failed",
					logger.FNode("node", nd), logger.F("err", err))
			}
		}
	}
}

// fixFingers refreshes the whole finger table: for each i, finger[i]
// becomes the current successor of self.ID + 2^i. A failed lookup
// leaves the previous entry in place — a stale finger slows routing but
// cannot misroute, because the lookup loop always re-validates against
// the live successor of each hop.
func (n *Node) fixFingers(ctx context.Context) {
	self := n.rt.Self()
	space := n.rt.Space()
	if n.rt.FirstSuccessor() == nil {
		return
	}

	for i := 0; i < space.Bits; i++ {
		if ctx.Err() != nil {
			return
		}
		start, err := space.AddMod(self.ID, space.PowTwoMod(i))
		if err != nil {
			n.lgr.Error("fixFingers: failed to compute finger start",
				logger.F("index", i), logger.F("err", err))
			continue
		}
		lctx, cancel := ctxutil.NewContext(
			ctxutil.WithTimeout(n.cp.FailureTimeout()),
			ctxutil.WithHops(),
		)
		f, err := n.FindSuccessor(lctx, start)
		cancel()
		if err != nil || f == nil {
			n.lgr.Debug("fixFingers: lookup failed, keeping stale entry",
				logger.F("index", i), logger.F("err", err))
			continue
		}
		n.rt.SetFinger(i, f)
	}
}

// checkPredecessor probes the current predecessor and clears it when
// unresponsive, so a fresher candidate can be adopted on the next
// notify.
func (n *Node) checkPredecessor() {
	self := n.rt.Self()
	pred := n.rt.GetPredecessor()
	if pred == nil || pred.ID.Equal(self.ID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.cp.FailureTimeout())
	defer cancel()
	if err := n.cp.Ping(ctx, pred.Addr); err != nil {
		n.lgr.Warn("checkPredecessor: predecessor unresponsive, clearing",
			logger.FNode("predecessor", pred), logger.F("err", err))
		if err := n.cp.Release(pred.Addr); err != nil {
			n.lgr.Warn("checkPredecessor: failed to release predecessor from pool",
				logger.FNode("predecessor", pred), logger.F("err", err))
		}
		n.rt.SetPredecessor(nil)
	}
}
