// Package logger wraps zap for the doorbell binaries.
//
// A global sugared logger writes to stdout with a console encoder. Services
// attach a named logger to their context (WithName, WithKV) and log through
// the package helpers (Info, InfoKV, ErrorKV, ...), which pick the logger
// out of the context again.
package logger
