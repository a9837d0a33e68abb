package server

import (
	"fmt"
	"io"
	"net/http"

	"ChordDHT/internal/api"
	"ChordDHT/internal/domain"
	"ChordDHT/internal/logger"
	"ChordDHT/internal/node"
)

// clientHandler serves the client-facing surface: key-value operations
// and ring-membership controls.
type clientHandler struct {
	node *node.Node
	lgr  logger.Logger
}

func (h *clientHandler) register(mux *http.ServeMux) {
	mux.HandleFunc("PUT /storage/{key}", h.putKey)
	mux.HandleFunc("GET /storage/{key}", h.getKey)
	mux.HandleFunc("DELETE /storage/{key}", h.deleteKey)
	mux.HandleFunc("POST /join", h.join)
	mux.HandleFunc("POST /leave", h.leave)
	mux.HandleFunc("POST /sim-crash", h.simCrash)
	mux.HandleFunc("POST /sim-recover", h.simRecover)
	mux.HandleFunc("GET /fingertable", h.fingertable)
	mux.HandleFunc("GET /helloworld", h.helloworld)
}

// putKey stores the raw request body under the path key, routing the
// pair to the responsible node.
func (h *clientHandler) putKey(w http.ResponseWriter, r *http.Request) {
	rawKey := r.PathValue("key")
	value, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, fmt.Errorf("%w: unreadable body", domain.ErrInvalidRequest))
		return
	}
	res := domain.Resource{
		Key:    h.node.Space().NewIDFromString(rawKey),
		RawKey: rawKey,
		Value:  string(value),
	}
	if err := h.node.Put(r.Context(), res); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "stored %s\n", rawKey)
}

// getKey fetches the value for the path key, routing the read to the
// responsible node. The value comes back as a plain-text body.
func (h *clientHandler) getKey(w http.ResponseWriter, r *http.Request) {
	rawKey := r.PathValue("key")
	res, err := h.node.Get(r.Context(), rawKey)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, res.Value)
}

// deleteKey removes the path key, routing to the responsible node.
func (h *clientHandler) deleteKey(w http.ResponseWriter, r *http.Request) {
	rawKey := r.PathValue("key")
	if err := h.node.Delete(r.Context(), rawKey); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "deleted %s\n", rawKey)
}

// join links this node into the ring of the node given by ?nprime=.
func (h *clientHandler) join(w http.ResponseWriter, r *http.Request) {
	nprime := r.URL.Query().Get("nprime")
	if nprime == "" {
		writeError(w, fmt.Errorf("%w: missing nprime parameter", domain.ErrInvalidRequest))
		return
	}
	if err := h.node.Join(r.Context(), []string{nprime}); err != nil {
		h.lgr.Warn("join request failed", logger.F("nprime", nprime), logger.F("err", err))
		writeError(w, fmt.Errorf("%w: join via %s failed: %v", domain.ErrInvalidRequest, nprime, err))
		return
	}
	writeJSON(w, http.StatusOK, api.Message{Message: "joined via " + nprime})
}

// leave departs the ring gracefully.
func (h *clientHandler) leave(w http.ResponseWriter, r *http.Request) {
	if err := h.node.Leave(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.Message{Message: "left the ring"})
}

// simCrash flips the node into the simulated-crash state.
func (h *clientHandler) simCrash(w http.ResponseWriter, r *http.Request) {
	h.node.SimCrash()
	writeJSON(w, http.StatusOK, api.Message{Message: "crashed"})
}

// simRecover brings the node back from the simulated-crash state.
func (h *clientHandler) simRecover(w http.ResponseWriter, r *http.Request) {
	if err := h.node.SimRecover(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.Message{Message: "recovered"})
}

// fingertable returns the deduplicated finger entries of this node.
func (h *clientHandler) fingertable(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.FingerTable{
		FingerTable: api.FromDomainList(h.node.FingerTable()),
	})
}

// helloworld answers with this node's advertised address. Doubles as
// the liveness probe used by peers.
func (h *clientHandler) helloworld(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, h.node.Self().Addr)
}
