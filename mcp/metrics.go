// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/modelcontextprotocol/go-mcp-core/internal/jsonrpc2"
)

// operationDurationBuckets are the histogram buckets (seconds) MCP
// semantic conventions specify for operation-duration metrics.
var operationDurationBuckets = []float64{
	0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 30, 60, 120, 300,
}

// Metrics implements [jsonrpc2.Observer] by recording every call and
// handler dispatch as a Prometheus histogram observation, labeled by
// method, direction, and outcome. It is component J's metrics half of
// the core's diagnostics contract.
type Metrics struct {
	duration *prometheus.HistogramVec
}

var _ jsonrpc2.Observer = (*Metrics)(nil)

// NewMetrics registers the mcp_operation_duration_seconds histogram with
// reg and returns a Metrics ready to pass as [ServerOptions.Observer] or
// [ClientOptions.Observer].
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mcp",
				Name:      "operation_duration_seconds",
				Help:      "Duration of MCP JSON-RPC operations, by method, direction, and outcome.",
				Buckets:   operationDurationBuckets,
			},
			[]string{"method", "direction", "outcome"},
		),
	}
}

// ObserveRequest implements [jsonrpc2.Observer].
func (m *Metrics) ObserveRequest(method string, direction jsonrpc2.Direction, duration time.Duration, err error) {
	dir := "outbound"
	if direction == jsonrpc2.Inbound {
		dir = "inbound"
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.duration.WithLabelValues(method, dir, outcome).Observe(duration.Seconds())
}
