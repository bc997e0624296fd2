// Package coordinator implements the door state machine.
//
// A Coordinator arbitrates between rings reported by the embedded client,
// replies from the operators and long-polls from the embedded client asking
// whether to fire the latch. All state lives behind one mutex; every
// transition wakes every blocked long-poll, which then re-checks whether an
// open window is available and consumes it if so.
package coordinator
