package client

import (
	"net/http"

	"ChordDHT/internal/logger"
)

type Option func(pool *Pool)

// WithLogger sets the logger used by the client pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.lgr = l
		}
	}
}

// WithTransport overrides the HTTP transport shared by all pooled
// clients. Used by tests to point the pool at an in-process server.
func WithTransport(t http.RoundTripper) Option {
	return func(p *Pool) {
		p.transport = t
	}
}
