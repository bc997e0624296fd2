// Package door contains the core domain types of the doorbell: the door
// state, the operator identity, replies and long-poll outcomes.
package door
