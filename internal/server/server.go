package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"ChordDHT/internal/ctxutil"
	"ChordDHT/internal/logger"
	"ChordDHT/internal/node"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server hosts both the peer RPC surface and the client-facing surface
// of a Chord node over HTTP.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	lgr        logger.Logger
	telemetry  bool
}

// New creates an HTTP server bound to the given listener and registers
// both handler groups against the node.
func New(lis net.Listener, n *node.Node, opts ...Option) *Server {
	s := &Server{
		listener: lis,
		lgr:      &logger.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	dht := &dhtHandler{node: n, lgr: s.lgr}
	dht.register(mux)
	cli := &clientHandler{node: n, lgr: s.lgr}
	cli.register(mux)

	var root http.Handler = attachTrace(n, crashGuard(n, mux))
	if s.telemetry {
		root = otelhttp.NewHandler(root, "chord.server")
	}

	s.httpServer = &http.Server{
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start runs the HTTP server and blocks until it stops. A clean
// shutdown via GracefulStop/Stop returns nil.
func (s *Server) Start() error {
	if err := s.httpServer.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server stopped: %w", err)
	}
	return nil
}

// Stop immediately stops the server and closes all active connections.
func (s *Server) Stop() {
	_ = s.httpServer.Close()
}

// GracefulStop shuts the server down, waiting for in-flight requests
// to complete or the context to expire.
func (s *Server) GracefulStop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// attachTrace ensures every inbound request context carries a trace ID
// derived from this node's identifier, so log lines across the handler
// and node layers can be correlated per request.
func attachTrace(n *node.Node, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := ctxutil.EnsureTraceID(r.Context(), n.Self().ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// crashGuard short-circuits every endpoint with 503 while the node is
// in the crashed state, without touching any handler. The recovery
// endpoint is the single exemption — a crashed node must still be
// recoverable.
func crashGuard(n *node.Node, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if n.Crashed() && !(r.Method == http.MethodPost && r.URL.Path == "/sim-recover") {
			writeError(w, errUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}
