// Package client implements the embedded doorbell client.
//
// It reports a ring to doorbell-server, then long-polls until the operator
// lets the visitor in or the wait budget runs out, and fires the latch when
// told to open.
package client
