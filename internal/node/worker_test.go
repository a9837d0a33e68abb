package node

import (
	"context"
	"testing"

	"ChordDHT/internal/domain"
)

func TestStabilizeAdoptsNewcomerBetweenSelfAndSuccessor(t *testing.T) {
	r := newTestRing(t, 10, 10, 130, 200)

	// A newcomer at 60 has joined between 10 and 130: 130 already
	// learned about it and reports it as predecessor.
	newcomer := &domain.Node{ID: r.id(60), Addr: "10.0.0.60:7000"}
	r.net.peers[newcomer.Addr] = &fakePeerState{
		self:     newcomer,
		succ:     r.nodes[1], // 130
		pred:     r.self,
		succList: []*domain.Node{r.nodes[1], r.nodes[2], r.self},
		store:    make(map[string]string),
	}
	r.net.peers["10.0.0.130:7000"].pred = newcomer

	r.node.stabilizeSuccessor()

	succ := r.rt.FirstSuccessor()
	if succ == nil || !succ.ID.Equal(newcomer.ID) {
		t.Fatalf("stabilize should adopt the newcomer as successor, got %v", succ)
	}
	// The newcomer must have been notified that we may be its predecessor.
	state := r.net.peers[newcomer.Addr]
	if len(state.notified) == 0 || !state.notified[len(state.notified)-1].ID.Equal(r.self.ID) {
		t.Error("stabilize must notify the adopted successor")
	}
	// Successor list is rebuilt starting from the new successor.
	if sl := r.rt.SuccessorList(); len(sl) == 0 || !sl[0].ID.Equal(newcomer.ID) {
		t.Errorf("successor list head should be the new successor, got %v", sl)
	}
}

func TestStabilizeFailsOverToNextLiveSuccessor(t *testing.T) {
	r := newTestRing(t, 10, 10, 60, 130, 200)
	r.kill(t, 60)

	r.node.stabilizeSuccessor()

	succ := r.rt.FirstSuccessor()
	if succ == nil || !succ.ID.Equal(r.id(130)) {
		t.Fatalf("stabilize should promote 130 after 60 dies, got %v", succ)
	}
	state := r.net.peers["10.0.0.130:7000"]
	if len(state.notified) == 0 {
		t.Error("the promoted successor must be notified")
	}
}

func TestStabilizeCollapsesWhenEveryCandidateIsDead(t *testing.T) {
	r := newTestRing(t, 10, 10, 60, 130, 200)
	r.kill(t, 60)
	r.kill(t, 130)
	r.kill(t, 200)

	r.node.stabilizeSuccessor()

	succ := r.rt.FirstSuccessor()
	if succ == nil || !succ.ID.Equal(r.self.ID) {
		t.Fatalf("with every candidate dead the node must revert to a single-node ring, got %v", succ)
	}
	if pred := r.rt.GetPredecessor(); pred != nil {
		t.Errorf("single-node reversion must clear the predecessor, got %v", pred)
	}
}

func TestStabilizeSingleNodeAdoptsNotifier(t *testing.T) {
	r := newTestRing(t, 10, 10, 60)
	// Collapse to single-node, then simulate a joiner's notify landing.
	r.rt.InitSingleNode()
	joiner := r.nodes[1] // 60, still alive in the fake network
	r.rt.SetPredecessor(joiner)

	r.node.stabilizeSuccessor()

	succ := r.rt.FirstSuccessor()
	if succ == nil || !succ.ID.Equal(joiner.ID) {
		t.Fatalf("a lone node with a notifier as predecessor should adopt it as successor, got %v", succ)
	}
}

func TestCheckPredecessorClearsDeadPredecessor(t *testing.T) {
	r := newTestRing(t, 10, 10, 60, 130, 200)
	r.kill(t, 200) // predecessor of 10

	r.node.checkPredecessor()

	if pred := r.rt.GetPredecessor(); pred != nil {
		t.Errorf("dead predecessor must be cleared, got %v", pred)
	}
}

func TestCheckPredecessorKeepsLivePredecessor(t *testing.T) {
	r := newTestRing(t, 10, 10, 60, 130, 200)

	r.node.checkPredecessor()

	if pred := r.rt.GetPredecessor(); pred == nil || !pred.ID.Equal(r.id(200)) {
		t.Errorf("live predecessor must be kept, got %v", pred)
	}
}

func TestFixFingersMatchesOracle(t *testing.T) {
	r := newTestRing(t, 10, 10, 60, 130, 200)
	// Blank the table first so the refresh has to do real work.
	for i := 0; i < r.rt.FingerCount(); i++ {
		r.rt.SetFinger(i, nil)
	}
	// Without fingers the lookup falls back to successor hops, which
	// still resolves; fix_fingers then repopulates every entry.
	r.node.fixFingers(context.Background())

	for i := 0; i < r.rt.FingerCount(); i++ {
		start, err := r.space.AddMod(r.self.ID, r.space.PowTwoMod(i))
		if err != nil {
			t.Fatalf("AddMod: %v", err)
		}
		want := oracle(r.nodes, start)
		got := r.rt.GetFinger(i)
		if got == nil || !got.ID.Equal(want.ID) {
			t.Errorf("finger[%d] = %v, want %s", i, got, want.ID)
		}
	}
}

func TestRefreshSuccessorListTruncatesAtSelf(t *testing.T) {
	r := newTestRing(t, 10, 10, 60, 130)
	r.node.refreshSuccessorList(r.nodes[1]) // 60

	sl := r.rt.SuccessorList()
	for _, s := range sl {
		if s.ID.Equal(r.self.ID) {
			t.Errorf("successor list must not wrap back to self, got %v", sl)
		}
	}
	if len(sl) != 2 { // 60 and 130 in a three-node ring
		t.Errorf("successor list should contain the two other nodes, got %v", sl)
	}
}
