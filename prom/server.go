package prom

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StartMetricsServer starts a HTTP server that only serves Prometheus
// metrics. It blocks, so call it in a goroutine.
func StartMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	log.Printf("action: start_metrics_server | result: success | addr: %s", addr)

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("action: metrics_server | result: fail | error: %v", err)
	}
}
