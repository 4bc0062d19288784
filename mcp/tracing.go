// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/modelcontextprotocol/go-mcp-core/mcp")

var propagator = propagation.TraceContext{}

// metaCarrier adapts a Meta map to [propagation.TextMapCarrier] so trace
// context can ride in params._meta.traceparent/tracestate (component J:
// diagnostics). Only those two keys are ever touched; every other _meta
// entry (e.g. progressToken) is left alone.
type metaCarrier Meta

func (c metaCarrier) Get(key string) string {
	v, _ := c[key].(string)
	return v
}

func (c metaCarrier) Set(key, value string) { c[key] = value }

func (c metaCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// injectTraceContext stamps the span context carried by ctx into p's
// _meta.traceparent/tracestate fields. Called on outbound requests only;
// notifications (including the logging-message notification, which must
// never be instrumented) are sent without trace context.
func injectTraceContext(ctx context.Context, p metaSetter) {
	m := p.GetMeta()
	if m == nil {
		m = make(Meta)
		p.setMeta(m)
	}
	propagator.Inject(ctx, metaCarrier(m))
}

// extractTraceContext returns a context continuing the span described by
// p's _meta.traceparent/tracestate fields, or ctx unchanged if absent.
func extractTraceContext(ctx context.Context, p metaGetter) context.Context {
	m := p.GetMeta()
	if m == nil {
		return ctx
	}
	return propagator.Extract(ctx, metaCarrier(m))
}

// startSpan starts a child span for the named MCP operation. Callers for
// notifications/message must not call this: the logging-message
// notification must never be instrumented.
func startSpan(ctx context.Context, method string, kind trace.SpanKind) (context.Context, trace.Span) {
	return tracer.Start(ctx, method, trace.WithSpanKind(kind), trace.WithAttributes(
		attribute.String("mcp.method", method),
	))
}
