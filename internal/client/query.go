package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"ChordDHT/internal/api"
	"ChordDHT/internal/ctxutil"
	"ChordDHT/internal/domain"
)

var (
	// ErrNoPredecessor is returned by GetPredecessor when the remote
	// node is reachable but has no predecessor set.
	ErrNoPredecessor = errors.New("client: remote node has no predecessor")
)

// NodeInfo is the decoded routing snapshot of a remote peer, as
// returned by the node-info call.
type NodeInfo struct {
	Self          *domain.Node
	Successor     *domain.Node
	Predecessor   *domain.Node
	FingerTable   []*domain.Node
	SuccessorList []*domain.Node
}

// normalizeError classifies a transport- or status-level failure into
// the shared error kinds. Connection refusals, DNS failures and
// timeouts all collapse to ErrUnreachable: the caller cannot and should
// not distinguish a dead peer from a slow one.
func normalizeError(addr string, status int, err error) error {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return fmt.Errorf("%w: %s: timeout", domain.ErrUnreachable, addr)
		}
		var ue *url.Error
		if errors.As(err, &ue) {
			return fmt.Errorf("%w: %s: %v", domain.ErrUnreachable, addr, ue.Err)
		}
		return fmt.Errorf("%w: %s: %v", domain.ErrUnreachable, addr, err)
	}
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return domain.ErrResourceNotFound
	case status == http.StatusConflict:
		return domain.ErrNotResponsible
	case status == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", domain.ErrUnavailable, addr)
	case status == http.StatusBadRequest:
		return fmt.Errorf("%w: rejected by %s", domain.ErrInvalidRequest, addr)
	case status == http.StatusBadGateway:
		return fmt.Errorf("%w: reported by %s", domain.ErrUnreachable, addr)
	default:
		return fmt.Errorf("client: %s returned status %d", addr, status)
	}
}

// do performs one HTTP round trip to addr, encoding in (when non-nil)
// as the JSON request body and decoding the response into out (when
// non-nil). Transport failures and non-2xx statuses come back
// normalized; context, encoding and decoding errors are returned as is.
func (p *Pool) do(ctx context.Context, method, addr, path string, in, out any) error {
	if err := ctxutil.CheckContext(ctx); err != nil {
		return err
	}
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode request for %s%s: %w", addr, path, err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, "http://"+addr+path, body)
	if err != nil {
		return fmt.Errorf("client: build request for %s%s: %w", addr, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := p.get(addr).Do(req)
	if err != nil {
		return normalizeError(addr, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := normalizeError(addr, resp.StatusCode, nil); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: malformed response from %s%s: %w", addr, path, err)
	}
	return nil
}

// NodeInfoOf fetches the full routing snapshot of the peer at addr.
func (p *Pool) NodeInfoOf(ctx context.Context, addr string) (*NodeInfo, error) {
	var wire api.NodeInfo
	if err := p.do(ctx, http.MethodGet, addr, "/node-info", nil, &wire); err != nil {
		return nil, err
	}
	self, err := api.ToDomain(p.space, &api.Node{Address: wire.Address, NodeHash: wire.NodeHash})
	if err != nil {
		return nil, err
	}
	succ, err := api.ToDomain(p.space, wire.Successor)
	if err != nil {
		return nil, err
	}
	pred, err := api.ToDomain(p.space, wire.Predecessor)
	if err != nil {
		return nil, err
	}
	return &NodeInfo{
		Self:          self,
		Successor:     succ,
		Predecessor:   pred,
		FingerTable:   api.ToDomainList(p.space, wire.FingerTable),
		SuccessorList: api.ToDomainList(p.space, wire.SuccessorList),
	}, nil
}

// GetSuccessor asks the peer at addr for its immediate successor.
func (p *Pool) GetSuccessor(ctx context.Context, addr string) (*domain.Node, error) {
	var wire api.Successor
	if err := p.do(ctx, http.MethodGet, addr, "/successor", nil, &wire); err != nil {
		return nil, err
	}
	return api.ToDomain(p.space, wire.Successor)
}

// GetPredecessor asks the peer at addr for its predecessor. A reachable
// peer with no predecessor yields ErrNoPredecessor, which callers must
// treat differently from ErrUnreachable.
func (p *Pool) GetPredecessor(ctx context.Context, addr string) (*domain.Node, error) {
	var wire api.Predecessor
	if err := p.do(ctx, http.MethodGet, addr, "/predecessor", nil, &wire); err != nil {
		return nil, err
	}
	if wire.Predecessor == nil {
		return nil, ErrNoPredecessor
	}
	return api.ToDomain(p.space, wire.Predecessor)
}

// GetSuccessorList fetches the successor list of the peer at addr.
func (p *Pool) GetSuccessorList(ctx context.Context, addr string) ([]*domain.Node, error) {
	var wire api.SuccessorList
	if err := p.do(ctx, http.MethodGet, addr, "/successor-list", nil, &wire); err != nil {
		return nil, err
	}
	return api.ToDomainList(p.space, wire.SuccessorList), nil
}

// Notify hints the peer at addr that self may be its predecessor.
func (p *Pool) Notify(ctx context.Context, self *domain.Node, addr string) error {
	req := api.NotifyRequest{Predecessor: *api.FromDomain(self)}
	return p.do(ctx, http.MethodPost, addr, "/notify", req, nil)
}

// UpdatePredecessor force-sets the predecessor on the peer at addr.
// Part of the voluntary-leave handshake.
func (p *Pool) UpdatePredecessor(ctx context.Context, pred *domain.Node, addr string) error {
	req := api.UpdatePredecessorRequest{Predecessor: *api.FromDomain(pred)}
	return p.do(ctx, http.MethodPost, addr, "/update-predecessor", req, nil)
}

// UpdateSuccessor force-sets the successor on the peer at addr.
// Part of the voluntary-leave handshake.
func (p *Pool) UpdateSuccessor(ctx context.Context, succ *domain.Node, addr string) error {
	req := api.UpdateSuccessorRequest{Successor: *api.FromDomain(succ)}
	return p.do(ctx, http.MethodPost, addr, "/update-successor", req, nil)
}

// FindSuccessor delegates a full lookup for target to the peer at addr.
// Used at join time, when this node has no routing state of its own yet.
func (p *Pool) FindSuccessor(ctx context.Context, target domain.ID, addr string) (*domain.Node, error) {
	req := api.FindSuccessorRequest{ID: target.ToHexString(false)}
	var wire api.FindSuccessorResponse
	if err := p.do(ctx, http.MethodPost, addr, "/find_successor", req, &wire); err != nil {
		return nil, err
	}
	if wire.Successor == nil {
		return nil, fmt.Errorf("client: %s returned no successor for %s", addr, target.ToHexString(true))
	}
	return api.ToDomain(p.space, wire.Successor)
}

// Ping checks liveness of the peer at addr via its hello endpoint.
func (p *Pool) Ping(ctx context.Context, addr string) error {
	return p.do(ctx, http.MethodGet, addr, "/helloworld", nil, nil)
}

// StoragePut stores a key-value pair on the peer at addr. The peer
// stores it locally when responsible and routes it onward otherwise.
func (p *Pool) StoragePut(ctx context.Context, addr string, res domain.Resource) error {
	if err := ctxutil.CheckContext(ctx); err != nil {
		return err
	}
	u := "http://" + addr + "/storage/" + url.PathEscape(res.RawKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, strings.NewReader(res.Value))
	if err != nil {
		return fmt.Errorf("client: build storage put for %s: %w", addr, err)
	}
	req.Header.Set("Content-Type", "text/plain")
	resp, err := p.get(addr).Do(req)
	if err != nil {
		return normalizeError(addr, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return normalizeError(addr, resp.StatusCode, nil)
}

// StorageGet fetches the value for rawKey from the peer at addr. A 404
// maps to domain.ErrResourceNotFound.
func (p *Pool) StorageGet(ctx context.Context, addr string, rawKey string) (*domain.Resource, error) {
	if err := ctxutil.CheckContext(ctx); err != nil {
		return nil, err
	}
	u := "http://" + addr + "/storage/" + url.PathEscape(rawKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("client: build storage get for %s: %w", addr, err)
	}
	resp, err := p.get(addr).Do(req)
	if err != nil {
		return nil, normalizeError(addr, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := normalizeError(addr, resp.StatusCode, nil); err != nil {
		return nil, err
	}
	value, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read storage value from %s: %w", addr, err)
	}
	return &domain.Resource{
		Key:    p.space.NewIDFromString(rawKey),
		RawKey: rawKey,
		Value:  string(value),
	}, nil
}

// StorageDelete removes rawKey from the peer at addr.
func (p *Pool) StorageDelete(ctx context.Context, addr string, rawKey string) error {
	if err := ctxutil.CheckContext(ctx); err != nil {
		return err
	}
	u := "http://" + addr + "/storage/" + url.PathEscape(rawKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("client: build storage delete for %s: %w", addr, err)
	}
	resp, err := p.get(addr).Do(req)
	if err != nil {
		return normalizeError(addr, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return normalizeError(addr, resp.StatusCode, nil)
}
