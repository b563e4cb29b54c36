// Package workflow implements the record lifecycle state machine.
package workflow

type State string

const (
	StateDraft     State = "draft"
	StateSubmitted State = "submitted"
	StateInReview  State = "in_review"
	StateApproved  State = "approved"
	StateRejected  State = "rejected"
	StateArchived  State = "archived"
)

// Event names emitted to the notification collaborator on terminal
// transitions.
type Event string

const (
	EventSubmitted Event = "record.submitted"
	EventApproved  Event = "record.approved"
	EventRejected  Event = "record.rejected"
)

var labels = map[State]string{
	StateDraft:     "Draft",
	StateSubmitted: "Submitted",
	StateInReview:  "In Review",
	StateApproved:  "Approved",
	StateRejected:  "Rejected",
	StateArchived:  "Archived",
}

func Label(state State) string {
	if label, ok := labels[state]; ok {
		return label
	}
	return string(state)
}

func Valid(state string) bool {
	_, ok := labels[State(state)]
	return ok
}

func States() []State {
	return []State{StateDraft, StateSubmitted, StateInReview, StateApproved, StateRejected, StateArchived}
}

var transitions = map[State][]State{
	StateDraft:     {StateSubmitted},
	StateSubmitted: {StateInReview, StateApproved, StateRejected},
	StateInReview:  {StateApproved, StateRejected},
	StateApproved:  {StateArchived},
}

// CanTransition reports whether the lifecycle permits moving from one
// state to another. Role gating and preconditions live with the caller.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RestingState maps a transition target to the state the record settles
// in. A rejected record rests at draft so the owner can revise it; the
// rejected event is still recorded in history.
func RestingState(to State) State {
	if to == StateRejected {
		return StateDraft
	}
	return to
}

// Editable reports whether a record in the given state accepts field
// edits. Only draft qualifies: rejected records rest at draft, and every
// other state hands mutation rights to the review flow.
func Editable(state State) bool {
	return state == StateDraft
}

// EventFor returns the notification event for a transition target, or
// "" when the transition is silent.
func EventFor(to State) (Event, bool) {
	switch to {
	case StateSubmitted:
		return EventSubmitted, true
	case StateApproved:
		return EventApproved, true
	case StateRejected:
		return EventRejected, true
	}
	return "", false
}
