// Package api hosts the HTTP server, middleware, and REST handlers for on-demand
// product acquisition. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/products/{id} runs a single acquisition.
//   - POST /v1/products/batch acquires up to server.max_batch_size ids.
package api
