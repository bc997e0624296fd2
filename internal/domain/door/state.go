package door

import "time"

// State is the mutually exclusive state of the door coordinator.
type State int

// Door states.
const (
	// Neutral means nothing is pending.
	Neutral State = iota
	// RecentlyBuzzed means someone rang and the operator has not answered yet.
	RecentlyBuzzed
	// Open means the operator approved; the latch should fire.
	Open
	// PartyModeNeutral means party mode is on and no buzz is pending.
	PartyModeNeutral
	// PartyModeOpen means party mode is on and the latch should fire.
	PartyModeOpen
)

var stateNames = [...]string{
	Neutral:          "NEUTRAL",
	RecentlyBuzzed:   "RECENTLY_BUZZED",
	Open:             "OPEN",
	PartyModeNeutral: "PARTY_MODE_NEUTRAL",
	PartyModeOpen:    "PARTY_MODE_OPEN",
}

// String returns the upper snake case name of the state.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}

	return stateNames[s]
}

// IsParty reports whether s is one of the party mode states.
func (s State) IsParty() bool {
	return s == PartyModeNeutral || s == PartyModeOpen
}

// IsOpen reports whether s instructs the latch to fire.
func (s State) IsOpen() bool {
	return s == Open || s == PartyModeOpen
}

// Consumed returns the state an open state settles into once a poller has
// acted on it. Non-open states are returned unchanged.
func (s State) Consumed() State {
	switch s {
	case Open:
		return Neutral
	case PartyModeOpen:
		return PartyModeNeutral
	default:
		return s
	}
}

// Caller identifies the operator who sent a reply, as a phone number.
type Caller string

// Snapshot is a point-in-time copy of the coordinator state.
type Snapshot struct {
	// State is the current door state.
	State State
	// TransitionedAt is when State was entered.
	TransitionedAt time.Time
}

// PollResult is the answer to a long-poll.
type PollResult string

// Long-poll outcomes.
const (
	// PollOpen tells the client to fire the latch.
	PollOpen PollResult = "open"
	// PollPunt tells the client nothing happened before the deadline.
	PollPunt PollResult = "punt"
)
