package node

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"ChordDHT/internal/client"
	"ChordDHT/internal/domain"
	"ChordDHT/internal/logger"
	"ChordDHT/internal/routingtable"
	"ChordDHT/internal/storage"
)

// fakePeerState mirrors the observable routing state of one remote node.
type fakePeerState struct {
	self     *domain.Node
	succ     *domain.Node
	pred     *domain.Node
	succList []*domain.Node
	fingers  []*domain.Node
	dead     bool
	store    map[string]string
	notified []*domain.Node
}

// fakeNetwork implements PeerClient over an in-memory set of peers,
// so routing and maintenance logic can be exercised without a real
// transport.
type fakeNetwork struct {
	mu    sync.Mutex
	peers map[string]*fakePeerState
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{peers: make(map[string]*fakePeerState)}
}

func (f *fakeNetwork) FailureTimeout() time.Duration { return 50 * time.Millisecond }
func (f *fakeNetwork) AddRef(addr string) error      { return nil }
func (f *fakeNetwork) Release(addr string) error     { return nil }

func (f *fakeNetwork) peer(addr string) (*fakePeerState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.peers[addr]
	if !ok || p.dead {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnreachable, addr)
	}
	return p, nil
}

func (f *fakeNetwork) NodeInfoOf(ctx context.Context, addr string) (*client.NodeInfo, error) {
	p, err := f.peer(addr)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &client.NodeInfo{
		Self:          p.self,
		Successor:     p.succ,
		Predecessor:   p.pred,
		FingerTable:   append([]*domain.Node(nil), p.fingers...),
		SuccessorList: append([]*domain.Node(nil), p.succList...),
	}, nil
}

func (f *fakeNetwork) GetSuccessor(ctx context.Context, addr string) (*domain.Node, error) {
	p, err := f.peer(addr)
	if err != nil {
		return nil, err
	}
	return p.succ, nil
}

func (f *fakeNetwork) GetPredecessor(ctx context.Context, addr string) (*domain.Node, error) {
	p, err := f.peer(addr)
	if err != nil {
		return nil, err
	}
	if p.pred == nil {
		return nil, client.ErrNoPredecessor
	}
	return p.pred, nil
}

func (f *fakeNetwork) GetSuccessorList(ctx context.Context, addr string) ([]*domain.Node, error) {
	p, err := f.peer(addr)
	if err != nil {
		return nil, err
	}
	return append([]*domain.Node(nil), p.succList...), nil
}

func (f *fakeNetwork) Notify(ctx context.Context, self *domain.Node, addr string) error {
	p, err := f.peer(addr)
	if err != nil {
		return err
	}
	f.mu.Lock()
	p.notified = append(p.notified, self)
	f.mu.Unlock()
	return nil
}

func (f *fakeNetwork) UpdatePredecessor(ctx context.Context, pred *domain.Node, addr string) error {
	p, err := f.peer(addr)
	if err != nil {
		return err
	}
	f.mu.Lock()
	p.pred = pred
	f.mu.Unlock()
	return nil
}

func (f *fakeNetwork) UpdateSuccessor(ctx context.Context, succ *domain.Node, addr string) error {
	p, err := f.peer(addr)
	if err != nil {
		return err
	}
	f.mu.Lock()
	p.succ = succ
	f.mu.Unlock()
	return nil
}

func (f *fakeNetwork) FindSuccessor(ctx context.Context, target domain.ID, addr string) (*domain.Node, error) {
	if _, err := f.peer(addr); err != nil {
		return nil, err
	}
	succ := f.oracleSuccessor(target)
	if succ == nil {
		return nil, fmt.Errorf("fake: empty ring")
	}
	return succ, nil
}

func (f *fakeNetwork) Ping(ctx context.Context, addr string) error {
	_, err := f.peer(addr)
	return err
}

func (f *fakeNetwork) StoragePut(ctx context.Context, addr string, res domain.Resource) error {
	p, err := f.peer(addr)
	if err != nil {
		return err
	}
	f.mu.Lock()
	p.store[res.RawKey] = res.Value
	f.mu.Unlock()
	return nil
}

func (f *fakeNetwork) StorageGet(ctx context.Context, addr string, rawKey string) (*domain.Resource, error) {
	p, err := f.peer(addr)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := p.store[rawKey]
	if !ok {
		return nil, domain.ErrResourceNotFound
	}
	return &domain.Resource{RawKey: rawKey, Value: v}, nil
}

func (f *fakeNetwork) StorageDelete(ctx context.Context, addr string, rawKey string) error {
	p, err := f.peer(addr)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := p.store[rawKey]; !ok {
		return domain.ErrResourceNotFound
	}
	delete(p.store, rawKey)
	return nil
}

// oracleSuccessor computes the responsible node for target from global
// knowledge of the live ring, the way the lookup engine should resolve
// it.
func (f *fakeNetwork) oracleSuccessor(target domain.ID) *domain.Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	live := make([]*domain.Node, 0, len(f.peers))
	for _, p := range f.peers {
		if !p.dead {
			live = append(live, p.self)
		}
	}
	if len(live) == 0 {
		return nil
	}
	sort.Slice(live, func(i, j int) bool { return live[i].ID.Cmp(live[j].ID) < 0 })
	for _, n := range live {
		if n.ID.Cmp(target) >= 0 {
			return n
		}
	}
	return live[0] // wrap-around
}

// testRing wires a set of identifiers into a consistent fake ring and
// builds a real node (routing table, storage) for the first identifier.
type testRing struct {
	space domain.Space
	net   *fakeNetwork
	nodes []*domain.Node // sorted by ID
	node  *Node          // the node under test (for nodes[selfIdx])
	rt    *routingtable.RoutingTable
	store *storage.Memory
	self  *domain.Node
}

const testSuccListSize = 4

// newTestRing builds a quiescent ring out of the given 8-bit ids. The
// node under test is the one with id selfID; every node (including the
// one under test) is mirrored in the fake network so lookups can hop
// anywhere.
func newTestRing(t *testing.T, selfID uint64, ids ...uint64) *testRing {
	t.Helper()
	space, err := domain.NewSpace(8, testSuccListSize)
	if err != nil {
		t.Fatalf("NewSpace: %v", err)
	}

	all := append([]uint64{}, ids...)
	found := false
	for _, id := range all {
		if id == selfID {
			found = true
		}
	}
	if !found {
		t.Fatalf("selfID %d must be part of the ring", selfID)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	nodes := make([]*domain.Node, len(all))
	for i, id := range all {
		nodes[i] = &domain.Node{
			ID:   space.FromUint64(id),
			Addr: fmt.Sprintf("10.0.0.%d:7000", id),
		}
	}

	net := newFakeNetwork()
	for i, n := range nodes {
		succ := nodes[(i+1)%len(nodes)]
		pred := nodes[(i-1+len(nodes))%len(nodes)]
		succList := make([]*domain.Node, 0, testSuccListSize)
		for j := 0; j < testSuccListSize && j < len(nodes); j++ {
			succList = append(succList, nodes[(i+1+j)%len(nodes)])
		}
		fingers := make([]*domain.Node, space.Bits)
		for b := 0; b < space.Bits; b++ {
			start, err := space.AddMod(n.ID, space.PowTwoMod(b))
			if err != nil {
				t.Fatalf("AddMod: %v", err)
			}
			fingers[b] = oracle(nodes, start)
		}
		net.peers[n.Addr] = &fakePeerState{
			self:     n,
			succ:     succ,
			pred:     pred,
			succList: succList,
			fingers:  fingers,
			store:    make(map[string]string),
		}
	}

	var self *domain.Node
	for _, n := range nodes {
		if n.ID.Equal(space.FromUint64(selfID)) {
			self = n
		}
	}

	rt := routingtable.New(self, space, testSuccListSize)
	selfState := net.peers[self.Addr]
	rt.SetPredecessor(selfState.pred)
	sl := make([]*domain.Node, testSuccListSize)
	copy(sl, selfState.succList)
	rt.SetSuccessorList(sl)
	for b, f := range selfState.fingers {
		rt.SetFinger(b, f)
	}

	store := storage.NewMemoryStorage(&logger.NopLogger{})
	n := New(rt, net, store)
	n.rememberSuccessor(selfState.succ)

	return &testRing{
		space: space,
		net:   net,
		nodes: nodes,
		node:  n,
		rt:    rt,
		store: store,
		self:  self,
	}
}

// oracle computes the successor of target given the full sorted node
// list.
func oracle(nodes []*domain.Node, target domain.ID) *domain.Node {
	for _, n := range nodes {
		if n.ID.Cmp(target) >= 0 {
			return n
		}
	}
	return nodes[0]
}

func (r *testRing) id(v uint64) domain.ID {
	return r.space.FromUint64(v)
}

func (r *testRing) kill(t *testing.T, id uint64) {
	t.Helper()
	addr := fmt.Sprintf("10.0.0.%d:7000", id)
	p, ok := r.net.peers[addr]
	if !ok {
		t.Fatalf("no peer with id %d", id)
	}
	p.dead = true
}

// ----------------------------------------------------------------
// Ownership

func TestOwnsSingleNode(t *testing.T) {
	space, _ := domain.NewSpace(8, testSuccListSize)
	self := &domain.Node{ID: space.FromUint64(42), Addr: "10.0.0.42:7000"}
	rt := routingtable.New(self, space, testSuccListSize)
	rt.InitSingleNode()
	n := New(rt, newFakeNetwork(), storage.NewMemoryStorage(&logger.NopLogger{}))

	for _, v := range []uint64{0, 41, 42, 43, 255} {
		if !n.Owns(space.FromUint64(v)) {
			t.Errorf("single-node ring should own id %d", v)
		}
	}
}

func TestOwnsWithPredecessor(t *testing.T) {
	r := newTestRing(t, 100, 10, 100, 200)

	cases := []struct {
		id   uint64
		want bool
	}{
		{11, true},   // just above predecessor
		{100, true},  // own ID included
		{10, false},  // predecessor's own ID
		{101, false}, // just past self
		{200, false},
		{250, false}, // wrap region belongs to node 10
	}
	for _, c := range cases {
		if got := r.node.Owns(r.id(c.id)); got != c.want {
			t.Errorf("Owns(%d) = %v, want %v", c.id, got, c.want)
		}
	}
}

func TestOwnsNothingWithoutPredecessorInRing(t *testing.T) {
	r := newTestRing(t, 100, 10, 100, 200)
	r.rt.SetPredecessor(nil)
	if r.node.Owns(r.id(50)) {
		t.Error("node without predecessor in a multi-node ring must not claim ownership")
	}
}

// ----------------------------------------------------------------
// Lookup engine

func TestFindSuccessorMatchesOracle(t *testing.T) {
	r := newTestRing(t, 10, 10, 60, 130, 200)
	ctx := context.Background()

	for v := uint64(0); v < 256; v++ {
		target := r.id(v)
		want := oracle(r.nodes, target)
		got, err := r.node.FindSuccessor(ctx, target)
		if err != nil {
			t.Fatalf("FindSuccessor(%d): %v", v, err)
		}
		if !got.ID.Equal(want.ID) {
			t.Errorf("FindSuccessor(%d) = %s, oracle says %s", v, got.ID, want.ID)
		}
	}
}

func TestFindSuccessorOwnID(t *testing.T) {
	r := newTestRing(t, 10, 10, 60, 130, 200)
	got, err := r.node.FindSuccessor(context.Background(), r.id(10))
	if err != nil {
		t.Fatalf("FindSuccessor: %v", err)
	}
	if !got.ID.Equal(r.self.ID) {
		t.Errorf("a node must be responsible for its own ID, got %s", got.ID)
	}
}

func TestFindSuccessorWrapAround(t *testing.T) {
	// id just above the maximum node ID must route to the minimum one
	r := newTestRing(t, 10, 10, 60, 130, 200)
	got, err := r.node.FindSuccessor(context.Background(), r.id(201))
	if err != nil {
		t.Fatalf("FindSuccessor: %v", err)
	}
	if !got.ID.Equal(r.id(10)) {
		t.Errorf("FindSuccessor(201) = %s, want the minimum node 10", got.ID)
	}
}

func TestFindSuccessorFailsOverDeadHop(t *testing.T) {
	r := newTestRing(t, 10, 10, 60, 130, 200)
	// 130 is the far finger for targets around 140..200; kill it. The
	// lookup must recover via the successor list and still resolve.
	r.kill(t, 130)

	got, err := r.node.FindSuccessor(context.Background(), r.id(199))
	if err != nil {
		t.Fatalf("FindSuccessor with dead hop: %v", err)
	}
	if !got.ID.Equal(r.id(200)) {
		t.Errorf("FindSuccessor(199) = %s, want 200", got.ID)
	}
}

func TestFindSuccessorAllPeersDead(t *testing.T) {
	r := newTestRing(t, 10, 10, 60, 130, 200)
	r.kill(t, 60)
	r.kill(t, 130)
	r.kill(t, 200)

	_, err := r.node.FindSuccessor(context.Background(), r.id(199))
	if !errors.Is(err, domain.ErrUnreachable) {
		t.Errorf("FindSuccessor with every peer dead: got %v, want ErrUnreachable", err)
	}
}

func TestFindSuccessorWhileCrashed(t *testing.T) {
	r := newTestRing(t, 10, 10, 60, 130, 200)
	r.node.SimCrash()
	_, err := r.node.FindSuccessor(context.Background(), r.id(42))
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("FindSuccessor while crashed: got %v, want ErrUnavailable", err)
	}
}

func TestClosestPrecedingFingerPrefersFurthest(t *testing.T) {
	r := newTestRing(t, 10, 10, 60, 130, 200)
	// For a target just behind self (wrap), the furthest finger wins.
	got := r.node.closestPrecedingFinger(r.id(5))
	if !got.ID.Equal(r.id(200)) {
		t.Errorf("closestPrecedingFinger(5) = %s, want 200", got.ID)
	}
	// For a target just past the successor, no finger strictly precedes
	// it except the successor itself.
	got = r.node.closestPrecedingFinger(r.id(61))
	if !got.ID.Equal(r.id(60)) {
		t.Errorf("closestPrecedingFinger(61) = %s, want 60", got.ID)
	}
}

// ----------------------------------------------------------------
// Notify

func TestNotifyAdoptsFirstPredecessor(t *testing.T) {
	r := newTestRing(t, 10, 10, 60, 130, 200)
	r.rt.SetPredecessor(nil)
	cand := &domain.Node{ID: r.id(250), Addr: "10.0.0.250:7000"}
	r.node.Notify(cand)
	if pred := r.rt.GetPredecessor(); pred == nil || !pred.ID.Equal(cand.ID) {
		t.Errorf("Notify should adopt any candidate when predecessor is unset, got %v", pred)
	}
}

func TestNotifyAdoptsCloserPredecessor(t *testing.T) {
	r := newTestRing(t, 10, 10, 60, 130, 200) // current pred of 10 is 200
	cand := &domain.Node{ID: r.id(250), Addr: "10.0.0.250:7000"}
	r.node.Notify(cand)
	if pred := r.rt.GetPredecessor(); pred == nil || !pred.ID.Equal(cand.ID) {
		t.Errorf("Notify should adopt 250 over 200 as predecessor of 10, got %v", pred)
	}
}

func TestNotifyRejectsBackwardsMove(t *testing.T) {
	r := newTestRing(t, 10, 10, 60, 130, 200) // current pred of 10 is 200
	cand := &domain.Node{ID: r.id(130), Addr: "10.0.0.130:7000"}
	r.node.Notify(cand)
	if pred := r.rt.GetPredecessor(); pred == nil || !pred.ID.Equal(r.id(200)) {
		t.Errorf("Notify must never move the predecessor backwards, got %v", pred)
	}
}

func TestNotifyIgnoresSelfAndNil(t *testing.T) {
	r := newTestRing(t, 10, 10, 60, 130, 200)
	before := r.rt.GetPredecessor()
	r.node.Notify(nil)
	r.node.Notify(r.self)
	after := r.rt.GetPredecessor()
	if !after.ID.Equal(before.ID) {
		t.Errorf("Notify(nil/self) must be a no-op, predecessor changed %s -> %s", before.ID, after.ID)
	}
}

// ----------------------------------------------------------------
// Client operations

func TestPutGetDeleteSingleNode(t *testing.T) {
	space, _ := domain.NewSpace(8, testSuccListSize)
	self := &domain.Node{ID: space.FromUint64(42), Addr: "10.0.0.42:7000"}
	rt := routingtable.New(self, space, testSuccListSize)
	rt.InitSingleNode()
	n := New(rt, newFakeNetwork(), storage.NewMemoryStorage(&logger.NopLogger{}))
	ctx := context.Background()

	res := domain.Resource{Key: space.NewIDFromString("foo"), RawKey: "foo", Value: "bar"}
	if err := n.Put(ctx, res); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// idempotent overwrite
	if err := n.Put(ctx, res); err != nil {
		t.Fatalf("second Put: %v", err)
	}
	got, err := n.Get(ctx, "foo")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Value != "bar" {
		t.Errorf("Get(foo) = %q, want %q", got.Value, "bar")
	}
	if err := n.Delete(ctx, "foo"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := n.Get(ctx, "foo"); !errors.Is(err, domain.ErrResourceNotFound) {
		t.Errorf("Get after delete: got %v, want ErrResourceNotFound", err)
	}
}

func TestPutForwardsToResponsibleNode(t *testing.T) {
	r := newTestRing(t, 10, 10, 60, 130, 200)
	ctx := context.Background()

	// Craft a resource whose key this node does not own.
	res := domain.Resource{Key: r.id(100), RawKey: "k100", Value: "v"}
	if err := r.node.Put(ctx, res); err != nil {
		t.Fatalf("Put: %v", err)
	}
	owner := r.net.peers["10.0.0.130:7000"]
	if owner.store["k100"] != "v" {
		t.Errorf("resource for id 100 should land on node 130, store = %v", owner.store)
	}
	if _, err := r.store.Get("k100"); err == nil {
		t.Error("resource must not be stored locally when another node is responsible")
	}
}

func TestGetForwardsWithoutPredecessor(t *testing.T) {
	r := newTestRing(t, 10, 10, 60, 130, 200)
	r.rt.SetPredecessor(nil)
	// Seed the successor with the key so the forwarded read finds it.
	succState := r.net.peers["10.0.0.60:7000"]
	succState.store["somekey"] = "someval"

	got, err := r.node.Get(context.Background(), "somekey")
	if err != nil {
		t.Fatalf("Get without predecessor should forward to successor: %v", err)
	}
	if got.Value != "someval" {
		t.Errorf("forwarded Get = %q, want %q", got.Value, "someval")
	}
}

func TestPutWhileCrashed(t *testing.T) {
	r := newTestRing(t, 10, 10, 60, 130, 200)
	r.node.SimCrash()
	res := domain.Resource{Key: r.id(11), RawKey: "k", Value: "v"}
	if err := r.node.Put(context.Background(), res); !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("Put while crashed: got %v, want ErrUnavailable", err)
	}
	if _, err := r.node.Get(context.Background(), "k"); !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("Get while crashed: got %v, want ErrUnavailable", err)
	}
}

func TestPutRejectsEmptyKey(t *testing.T) {
	r := newTestRing(t, 10, 10, 60)
	err := r.node.Put(context.Background(), domain.Resource{RawKey: "", Value: "v", Key: r.id(1)})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("Put with empty key: got %v, want ErrInvalidRequest", err)
	}
}

// ----------------------------------------------------------------
// Join / Leave / crash lifecycle

func TestJoinThroughBootstrapPeer(t *testing.T) {
	r := newTestRing(t, 10, 10, 60, 130, 200)

	// A fresh node that will join the existing ring.
	newcomer := &domain.Node{ID: r.space.FromUint64(90), Addr: "10.0.0.90:7000"}
	rt := routingtable.New(newcomer, r.space, testSuccListSize)
	rt.InitSingleNode()
	n := New(rt, r.net, storage.NewMemoryStorage(&logger.NopLogger{}))

	if err := n.Join(context.Background(), []string{"10.0.0.10:7000"}); err != nil {
		t.Fatalf("Join: %v", err)
	}
	succ := rt.FirstSuccessor()
	if succ == nil || !succ.ID.Equal(r.id(130)) {
		t.Fatalf("after join, successor = %v, want node 130", succ)
	}
	// The join's immediate stabilize round must have announced us.
	target := r.net.peers["10.0.0.130:7000"]
	foundNotify := false
	for _, p := range target.notified {
		if p.ID.Equal(newcomer.ID) {
			foundNotify = true
		}
	}
	if !foundNotify {
		t.Error("join must notify the adopted successor")
	}
}

func TestJoinAllBootstrapPeersDead(t *testing.T) {
	r := newTestRing(t, 10, 10, 60)
	newcomer := &domain.Node{ID: r.space.FromUint64(90), Addr: "10.0.0.90:7000"}
	rt := routingtable.New(newcomer, r.space, testSuccListSize)
	rt.InitSingleNode()
	n := New(rt, r.net, storage.NewMemoryStorage(&logger.NopLogger{}))

	if err := n.Join(context.Background(), []string{"10.0.0.250:7000"}); err == nil {
		t.Error("Join through an unreachable bootstrap peer must fail")
	}
}

func TestLeaveLinksNeighbours(t *testing.T) {
	r := newTestRing(t, 60, 10, 60, 130, 200)
	if err := r.node.Leave(context.Background()); err != nil {
		t.Fatalf("Leave: %v", err)
	}

	pred := r.net.peers["10.0.0.10:7000"]
	if pred.succ == nil || !pred.succ.ID.Equal(r.id(130)) {
		t.Errorf("after leave of 60, predecessor 10 should point at 130, got %v", pred.succ)
	}
	succ := r.net.peers["10.0.0.130:7000"]
	if succ.pred == nil || !succ.pred.ID.Equal(r.id(10)) {
		t.Errorf("after leave of 60, successor 130 should point back at 10, got %v", succ.pred)
	}
	// Local state collapses to a single-node ring.
	if s := r.rt.FirstSuccessor(); s == nil || !s.ID.Equal(r.self.ID) {
		t.Errorf("after leave, local successor should be self, got %v", s)
	}
	if p := r.rt.GetPredecessor(); p != nil {
		t.Errorf("after leave, local predecessor should be unset, got %v", p)
	}
}

func TestSimCrashAndRecoverRejoins(t *testing.T) {
	r := newTestRing(t, 10, 10, 60, 130, 200)

	r.node.SimCrash()
	if !r.node.Crashed() {
		t.Fatal("node should report crashed")
	}
	// Idempotent crash.
	r.node.SimCrash()

	// While we are down the ring evicts us: our mirror stops answering.
	r.kill(t, 10)

	if err := r.node.SimRecover(context.Background()); err != nil {
		t.Fatalf("SimRecover: %v", err)
	}
	if r.node.Crashed() {
		t.Fatal("node should be active after recover")
	}
	succ := r.rt.FirstSuccessor()
	if succ == nil || !succ.ID.Equal(r.id(60)) {
		t.Errorf("after recover, successor = %v, want node 60", succ)
	}
	// Recover on an active node is a no-op.
	if err := r.node.SimRecover(context.Background()); err != nil {
		t.Errorf("SimRecover on active node: %v", err)
	}
}

func TestSimRecoverWithDeadSuccessorFallsBackToSingleNode(t *testing.T) {
	r := newTestRing(t, 10, 10, 60)
	r.node.SimCrash()
	r.kill(t, 60)

	if err := r.node.SimRecover(context.Background()); err != nil {
		t.Fatalf("SimRecover: %v", err)
	}
	succ := r.rt.FirstSuccessor()
	if succ == nil || !succ.ID.Equal(r.self.ID) {
		t.Errorf("recover with dead successor should collapse to single-node ring, got %v", succ)
	}
}
