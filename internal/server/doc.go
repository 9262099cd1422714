// Package server implements the operator-facing HTTP surface of the relay.
//
// It serves a health check, Prometheus metrics, and a WebSocket bridge that
// lets browser clients join the relay as peers. The package also owns the
// environment-driven process configuration used by cmd/relay.
package server
