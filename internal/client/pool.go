package client

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"ChordDHT/internal/domain"
	"ChordDHT/internal/logger"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// entry is a reference-counted HTTP client bound to one peer address.
//
// HTTP keep-alive connections are owned by the transport, so the client
// itself is cheap; the reference count exists to mirror the lifecycle of
// routing-table entries (successor, predecessor, successor list) and to
// let idle peers be evicted deterministically when the last reference
// is released.
type entry struct {
	client   *http.Client
	refCount int
}

// Pool manages per-peer HTTP clients for the node's outbound RPCs.
//
// The pool is the only place that knows the transport: every peer call
// in query.go resolves its client here. Peers that are referenced by
// the routing table hold a pooled entry (AddRef/Release); peers
// contacted transiently during a lookup get an ephemeral client with
// the same transport, so connection reuse still applies.
type Pool struct {
	mu    sync.RWMutex
	conns map[string]*entry

	space          domain.Space
	selfAddr       string
	failureTimeout time.Duration
	transport      http.RoundTripper
	lgr            logger.Logger
}

// New creates a pool for the node at selfAddr. The identifier space is
// needed to parse peer hashes off the wire; failureTimeout bounds every
// peer RPC issued through the pool; after it the call returns
// ErrUnreachable-classified errors.
func New(space domain.Space, selfAddr string, failureTimeout time.Duration, opts ...Option) *Pool {
	p := &Pool{
		conns:          make(map[string]*entry),
		space:          space,
		selfAddr:       selfAddr,
		failureTimeout: failureTimeout,
		lgr:            &logger.NopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.transport == nil {
		p.transport = &http.Transport{
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		}
	}
	p.lgr.Debug("client pool initialized", logger.F("self", selfAddr))
	return p
}

// FailureTimeout returns the timeout applied to peer RPCs. Callers use
// it to derive contexts for maintenance operations.
func (p *Pool) FailureTimeout() time.Duration {
	return p.failureTimeout
}

// AddRef registers interest in the given peer address, creating the
// pooled client on first reference.
func (p *Pool) AddRef(addr string) error {
	if addr == "" {
		return fmt.Errorf("clientpool: addref with empty address")
	}
	if addr == p.selfAddr {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.conns[addr]; ok {
		e.refCount++
		return nil
	}
	p.conns[addr] = &entry{client: p.newClient(), refCount: 1}
	p.lgr.Debug("clientpool: peer added", logger.F("addr", addr))
	return nil
}

// Release drops one reference to the given peer address, evicting the
// client when the count reaches zero.
func (p *Pool) Release(addr string) error {
	if addr == "" || addr == p.selfAddr {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.conns[addr]
	if !ok {
		return fmt.Errorf("clientpool: release of unknown address %s", addr)
	}
	e.refCount--
	if e.refCount <= 0 {
		e.client.CloseIdleConnections()
		delete(p.conns, addr)
		p.lgr.Debug("clientpool: peer evicted", logger.F("addr", addr))
	}
	return nil
}

// get resolves an HTTP client for addr: the pooled entry when the peer
// is referenced, an ephemeral client on the shared transport otherwise.
func (p *Pool) get(addr string) *http.Client {
	p.mu.RLock()
	e, ok := p.conns[addr]
	p.mu.RUnlock()
	if ok {
		return e.client
	}
	return p.newClient()
}

func (p *Pool) newClient() *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(p.transport),
		Timeout:   p.failureTimeout,
	}
}

// Close evicts every pooled peer and closes idle connections.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for addr, e := range p.conns {
		e.client.CloseIdleConnections()
		delete(p.conns, addr)
	}
	if t, ok := p.transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
}

// DebugLog emits a structured DEBUG-level snapshot of the pool: one
// entry per referenced peer with its reference count.
func (p *Pool) DebugLog() {
	p.mu.RLock()
	peers := make([]map[string]any, 0, len(p.conns))
	for addr, e := range p.conns {
		peers = append(peers, map[string]any{"addr": addr, "refs": e.refCount})
	}
	p.mu.RUnlock()
	p.lgr.Debug("clientpool snapshot",
		logger.F("count", len(peers)),
		logger.F("peers", peers),
	)
}
