// Package common holds helpers shared by several services.
//
// It provides a small HTTP client for the doorbell server endpoints used by
// the embedded client, with per-call timeouts.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
