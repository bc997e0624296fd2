// Package server wires the doorbell HTTP server: configuration, logging,
// metrics, notification delivery and the door coordinator.
package server
