// Package config defines the settings shared by doorbell-server and
// doorbell-client and provides helpers to load, validate and save them in
// YAML format.
//
// Secrets and deployment-specific values may be supplied through environment
// variables instead of the file; see ApplyEnv.
package config
