package server

import (
	"fmt"
	"net/http"

	"ChordDHT/internal/api"
	"ChordDHT/internal/ctxutil"
	"ChordDHT/internal/domain"
	"ChordDHT/internal/logger"
	"ChordDHT/internal/node"
)

// dhtHandler serves the peer RPC surface: the endpoints other ring
// members call during stabilization and lookups.
type dhtHandler struct {
	node *node.Node
	lgr  logger.Logger
}

func (h *dhtHandler) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /node-info", h.nodeInfo)
	mux.HandleFunc("GET /successor", h.successor)
	mux.HandleFunc("GET /predecessor", h.predecessor)
	mux.HandleFunc("GET /successor-list", h.successorList)
	mux.HandleFunc("POST /notify", h.notify)
	mux.HandleFunc("POST /update-predecessor", h.updatePredecessor)
	mux.HandleFunc("POST /update-successor", h.updateSuccessor)
	mux.HandleFunc("POST /find_successor", h.findSuccessor)
}

// nodeInfo returns the full routing snapshot of this node.
func (h *dhtHandler) nodeInfo(w http.ResponseWriter, r *http.Request) {
	info := h.node.Info()
	writeJSON(w, http.StatusOK, api.NodeInfo{
		Address:       info.Self.Addr,
		NodeHash:      info.Self.ID.ToHexString(false),
		Successor:     api.FromDomain(info.Successor),
		Predecessor:   api.FromDomain(info.Predecessor),
		FingerTable:   api.FromDomainList(info.FingerTable),
		SuccessorList: api.FromDomainList(info.SuccessorList),
	})
}

func (h *dhtHandler) successor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.Successor{
		Successor: api.FromDomain(h.node.Successor()),
	})
}

// predecessor returns the current predecessor as a nullable scalar.
func (h *dhtHandler) predecessor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.Predecessor{
		Predecessor: api.FromDomain(h.node.Predecessor()),
	})
}

func (h *dhtHandler) successorList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.SuccessorList{
		SuccessorList: api.FromDomainList(h.node.SuccessorList()),
	})
}

// notify processes a predecessor hint from a peer.
func (h *dhtHandler) notify(w http.ResponseWriter, r *http.Request) {
	var req api.NotifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := api.ToDomain(h.node.Space(), &req.Predecessor)
	if err != nil {
		writeError(w, err)
		return
	}
	h.node.Notify(p)
	writeJSON(w, http.StatusOK, api.Message{Message: "notify accepted"})
}

// updatePredecessor force-sets this node's predecessor (leave handshake).
func (h *dhtHandler) updatePredecessor(w http.ResponseWriter, r *http.Request) {
	var req api.UpdatePredecessorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := api.ToDomain(h.node.Space(), &req.Predecessor)
	if err != nil {
		writeError(w, err)
		return
	}
	h.node.HandleUpdatePredecessor(p)
	writeJSON(w, http.StatusOK, api.Message{Message: "predecessor updated"})
}

// updateSuccessor force-sets this node's successor (leave handshake).
func (h *dhtHandler) updateSuccessor(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateSuccessorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s, err := api.ToDomain(h.node.Space(), &req.Successor)
	if err != nil {
		writeError(w, err)
		return
	}
	h.node.HandleUpdateSuccessor(s)
	writeJSON(w, http.StatusOK, api.Message{Message: "successor updated"})
}

// findSuccessor runs a lookup for the requested identifier on behalf of
// a peer (typically a joining node that has no routing state yet).
func (h *dhtHandler) findSuccessor(w http.ResponseWriter, r *http.Request) {
	var req api.FindSuccessorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	target, err := h.node.Space().FromHexString(req.ID)
	if err != nil {
		writeError(w, fmt.Errorf("%w: unparsable id %q", domain.ErrInvalidRequest, req.ID))
		return
	}
	succ, err := h.node.FindSuccessor(r.Context(), target)
	if err != nil {
		h.lgr.Warn("find_successor request failed",
			logger.F("trace_id", ctxutil.TraceIDFromContext(r.Context())),
			logger.F("target", target.ToHexString(true)),
			logger.F("err", err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FindSuccessorResponse{
		Successor: api.FromDomain(succ),
	})
}
