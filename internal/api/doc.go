// Package api exposes the counter session over HTTP: JSON actions, a state
// stream over WebSocket, chain metadata and Prometheus metrics.
package api
