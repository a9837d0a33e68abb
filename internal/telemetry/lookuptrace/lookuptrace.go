package lookuptrace

import (
	"context"

	"ChordDHT/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "chord/lookuptrace"

var tracer = otel.Tracer(tracerName)

// StartLookup opens the root span of a find-successor lookup for the
// given target identifier. The caller must End the returned span.
func StartLookup(ctx context.Context, target domain.ID) (context.Context, trace.Span) {
	return tracer.Start(ctx, "chord.find_successor",
		trace.WithAttributes(
			attribute.String("dht.lookup.target", target.ToHexString(true)),
		),
	)
}

// StartHop opens a child span for one routing hop: the hop index and
// the peer being contacted. The caller must End the returned span.
func StartHop(ctx context.Context, hop int, peer *domain.Node) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.Int("dht.lookup.hop", hop),
	}
	if peer != nil {
		attrs = append(attrs,
			attribute.String("dht.lookup.peer.addr", peer.Addr),
			attribute.String("dht.lookup.peer.id", peer.ID.ToHexString(true)),
		)
	}
	return tracer.Start(ctx, "chord.lookup_hop",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// EndWithResult annotates and closes a lookup span with the outcome.
func EndWithResult(span trace.Span, hops int, result *domain.Node, err error) {
	span.SetAttributes(attribute.Int("dht.lookup.hops", hops))
	if result != nil {
		span.SetAttributes(attribute.String("dht.lookup.result.addr", result.Addr))
	}
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
