package api

import (
	"fmt"

	"ChordDHT/internal/domain"
)

// Node is the wire representation of a ring participant. The hash is
// carried alongside the address so that receivers do not need to agree
// on the hash function parameters to route. ToDomain re-derives it from
// the address when it is absent; a hash that is present is checked
// against the identifier space but not compared with the address hash.
type Node struct {
	Address  string `json:"address"`
	NodeHash string `json:"node_hash"`
}

// NodeInfo is the response body of GET /node-info: a full snapshot of
// the remote node's routing state.
type NodeInfo struct {
	Address       string `json:"address"`
	NodeHash      string `json:"node_hash"`
	Successor     *Node  `json:"successor"`
	Predecessor   *Node  `json:"predecessor"` // nullable scalar, never an array
	FingerTable   []Node `json:"finger_table"`
	SuccessorList []Node `json:"successor_list"`
}

// Successor is the response body of GET /successor.
type Successor struct {
	Successor *Node `json:"successor"`
}

// Predecessor is the response body of GET /predecessor.
type Predecessor struct {
	Predecessor *Node `json:"predecessor"`
}

// SuccessorList is the response body of GET /successor-list.
type SuccessorList struct {
	SuccessorList []Node `json:"successor_list"`
}

// NotifyRequest is the body of POST /notify: the sender hints that it
// may be the receiver's predecessor.
type NotifyRequest struct {
	Predecessor Node `json:"predecessor"`
}

// UpdatePredecessorRequest is the body of POST /update-predecessor.
type UpdatePredecessorRequest struct {
	Predecessor Node `json:"predecessor"`
}

// UpdateSuccessorRequest is the body of POST /update-successor.
type UpdateSuccessorRequest struct {
	Successor Node `json:"successor"`
}

// FindSuccessorRequest is the body of POST /find_successor. The ID is
// hex-encoded, optionally 0x-prefixed.
type FindSuccessorRequest struct {
	ID string `json:"id"`
}

// FindSuccessorResponse is the response body of POST /find_successor.
type FindSuccessorResponse struct {
	Successor *Node `json:"successor"`
}

// FingerTable is the response body of GET /fingertable: the deduplicated
// finger entries of the queried node.
type FingerTable struct {
	FingerTable []Node `json:"fingertable"`
}

// Message is the generic acknowledgement body of the POST endpoints.
type Message struct {
	Message string `json:"message"`
}

// Error is the body attached to every non-2xx response.
type Error struct {
	Error string `json:"error"`
}

// FromDomain converts a domain node into its wire form. A nil node maps
// to nil, preserving the nullable-scalar predecessor convention.
func FromDomain(n *domain.Node) *Node {
	if n == nil {
		return nil
	}
	return &Node{
		Address:  n.Addr,
		NodeHash: n.ID.ToHexString(false),
	}
}

// FromDomainList converts a slice of domain nodes, skipping nils.
func FromDomainList(nodes []*domain.Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if wn := FromDomain(n); wn != nil {
			out = append(out, *wn)
		}
	}
	return out
}

// ToDomain converts a wire node back into a domain node within the
// given identifier space. An empty hash is re-derived from the address;
// a present hash is parsed and validated against the space.
func ToDomain(sp domain.Space, n *Node) (*domain.Node, error) {
	if n == nil {
		return nil, nil
	}
	if n.Address == "" {
		return nil, fmt.Errorf("%w: node with empty address", domain.ErrInvalidRequest)
	}
	if n.NodeHash == "" {
		return &domain.Node{ID: sp.NewIDFromString(n.Address), Addr: n.Address}, nil
	}
	id, err := sp.FromHexString(n.NodeHash)
	if err != nil {
		return nil, fmt.Errorf("%w: bad node_hash for %s: %v", domain.ErrInvalidRequest, n.Address, err)
	}
	return &domain.Node{ID: id, Addr: n.Address}, nil
}

// ToDomainList converts a slice of wire nodes, dropping entries that
// fail validation rather than aborting the whole response.
func ToDomainList(sp domain.Space, nodes []Node) []*domain.Node {
	out := make([]*domain.Node, 0, len(nodes))
	for i := range nodes {
		dn, err := ToDomain(sp, &nodes[i])
		if err != nil || dn == nil {
			continue
		}
		out = append(out, dn)
	}
	return out
}
