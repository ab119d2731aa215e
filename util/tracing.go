package util

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "go-kadtable"

// StartSpan starts a span named after the routing table operation. Spans are
// recorded by whichever tracer provider the hosting node installed.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "KadTable."+name, opts...)
}
