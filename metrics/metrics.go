/*
Package metrics provides Prometheus collectors of the upload and gateway check
statistics.

All collectors are registered in the private registry of the [Metrics]
instance, nil instance silently drops all observations.
*/
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nspcc-dev/blockpush/gateway"
	"github.com/nspcc-dev/blockpush/upload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "blockpush"

// Metrics implements [upload.Metrics] and [gateway.Metrics] interfaces.
type Metrics struct {
	reg *prometheus.Registry

	probedBlocks   *prometheus.CounterVec
	batches        *prometheus.CounterVec
	blocks         *prometheus.CounterVec
	bytes          prometheus.Counter
	gatewayChecks  *prometheus.CounterVec
	batchBlockSize prometheus.Histogram
}

var (
	_ upload.Metrics  = (*Metrics)(nil)
	_ gateway.Metrics = (*Metrics)(nil)
)

// New returns Metrics with collectors registered in the new registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	return &Metrics{
		reg: reg,
		probedBlocks: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upload",
				Name:      "probed_blocks_total",
				Help:      "Total number of blocks checked at the destination by presence",
			},
			[]string{"present"},
		),
		batches: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upload",
				Name:      "batches_total",
				Help:      "Total number of submitted batches by outcome",
			},
			[]string{"outcome"},
		),
		blocks: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upload",
				Name:      "blocks_total",
				Help:      "Total number of submitted blocks by batch outcome",
			},
			[]string{"outcome"},
		),
		bytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upload",
				Name:      "bytes_total",
				Help:      "Total size of submitted block data",
			},
		),
		batchBlockSize: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "upload",
				Name:      "batch_bytes",
				Help:      "Distribution of cumulative block data size per batch",
				Buckets: []float64{
					1 << 10,   // 1KB
					8 << 10,   // 8KB
					32 << 10,  // 32KB
					128 << 10, // 128KB
					256 << 10, // batch limit
					1 << 20,   // oversized single block
				},
			},
		),
		gatewayChecks: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "checks_total",
				Help:      "Total number of content retrieval checks by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
	}
}

// Registry returns registry of all collectors.
func (x *Metrics) Registry() *prometheus.Registry {
	if x == nil {
		return nil
	}
	return x.reg
}

// ProbedBlock implements [upload.Metrics] interface.
func (x *Metrics) ProbedBlock(present bool) {
	if x == nil {
		return
	}
	x.probedBlocks.WithLabelValues(strconv.FormatBool(present)).Inc()
}

// SubmittedBatch implements [upload.Metrics] interface.
func (x *Metrics) SubmittedBatch(o upload.Outcome, blocks, bytes int) {
	if x == nil {
		return
	}
	x.batches.WithLabelValues(o.String()).Inc()
	x.blocks.WithLabelValues(o.String()).Add(float64(blocks))
	x.bytes.Add(float64(bytes))
	x.batchBlockSize.Observe(float64(bytes))
}

// Checked implements [gateway.Metrics] interface.
func (x *Metrics) Checked(endpoint string, o gateway.Outcome) {
	if x == nil {
		return
	}
	x.gatewayChecks.WithLabelValues(endpoint, o.String()).Inc()
}

// Handler returns HTTP handler exposing collected metrics.
func (x *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(x.reg, promhttp.HandlerOpts{Registry: x.reg})
}

// Serve exposes metrics at /metrics path of the given address until ctx is
// done.
func (x *Metrics) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", x.Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen metrics address: %w", err)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving metrics", zap.Stringer("address", ln.Addr()))

	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return fmt.Errorf("serve metrics: %w", err)
}
