// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"cmp"
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DocumentsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finrag_documents_ingested_total",
			Help: "Total number of documents successfully ingested by corpus",
		},
		[]string{"corpus"},
	)

	UploadErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finrag_upload_errors_total",
			Help: "Total number of failed document uploads by reason",
		},
		[]string{"reason"},
	)

	Queries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finrag_queries_total",
			Help: "Total number of queries by corpus and outcome",
		},
		[]string{"corpus", "outcome"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finrag_query_duration_seconds",
			Help:    "Duration of query handling including retrieval and generation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"corpus"},
	)
)

type PromServerOpts struct {
	Addr              string
	Path              string        // Path for metrics endpoint, defaults to "/metrics"
	ShutdownTimeout   time.Duration // Timeout for server shutdown, defaults to 5 seconds
	ReadHeaderTimeout time.Duration // Timeout for reading request headers, defaults to 3 seconds
}

func defaultPrometheusServerOptions() PromServerOpts {
	return PromServerOpts{
		Addr:              ":9100",
		Path:              "/metrics",
		ShutdownTimeout:   5 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// StartPrometheusServer starts a Prometheus metrics server with the given
// options. The server shuts down gracefully when ctx is canceled.
func StartPrometheusServer(ctx context.Context, wg *sync.WaitGroup, opts *PromServerOpts) {
	effectiveOpts := defaultPrometheusServerOptions()
	if opts != nil {
		effectiveOpts.Addr = cmp.Or(opts.Addr, effectiveOpts.Addr)
		effectiveOpts.Path = cmp.Or(opts.Path, effectiveOpts.Path)
		effectiveOpts.ShutdownTimeout = cmp.Or(opts.ShutdownTimeout, effectiveOpts.ShutdownTimeout)
		effectiveOpts.ReadHeaderTimeout = cmp.Or(opts.ReadHeaderTimeout, effectiveOpts.ReadHeaderTimeout)
	}

	mux := http.NewServeMux()
	mux.Handle(effectiveOpts.Path, promhttp.Handler())
	server := &http.Server{
		Addr:              effectiveOpts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: effectiveOpts.ReadHeaderTimeout,
	}

	serverClosed := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("Starting Prometheus metrics server on %s", effectiveOpts.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
		close(serverClosed)
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), effectiveOpts.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down metrics server: %v", err)
		}

		select {
		case <-serverClosed:
			log.Println("Metrics server shutdown complete")
		case <-shutdownCtx.Done():
			log.Println("Metrics server shutdown timed out")
		}
	}()
}
