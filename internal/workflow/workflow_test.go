package workflow

import "testing"

func TestCanTransitionTable(t *testing.T) {
	allowed := map[[2]State]bool{
		{StateDraft, StateSubmitted}:     true,
		{StateSubmitted, StateInReview}:  true,
		{StateSubmitted, StateApproved}:  true,
		{StateSubmitted, StateRejected}:  true,
		{StateInReview, StateApproved}:   true,
		{StateInReview, StateRejected}:   true,
		{StateApproved, StateArchived}:   true,
	}

	for _, from := range States() {
		for _, to := range States() {
			want := allowed[[2]State{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, from := range []State{StateRejected, StateArchived} {
		for _, to := range States() {
			if CanTransition(from, to) {
				t.Errorf("%s should have no outgoing transitions, got %s", from, to)
			}
		}
	}
}

func TestRestingState(t *testing.T) {
	if got := RestingState(StateRejected); got != StateDraft {
		t.Errorf("RestingState(rejected) = %s, want draft", got)
	}
	for _, to := range []State{StateSubmitted, StateInReview, StateApproved, StateArchived} {
		if got := RestingState(to); got != to {
			t.Errorf("RestingState(%s) = %s, want identity", to, got)
		}
	}
}

func TestEditableOnlyInDraft(t *testing.T) {
	for _, state := range States() {
		want := state == StateDraft
		if got := Editable(state); got != want {
			t.Errorf("Editable(%s) = %v, want %v", state, got, want)
		}
	}
}

func TestEventFor(t *testing.T) {
	tests := []struct {
		to    State
		event Event
		ok    bool
	}{
		{StateSubmitted, EventSubmitted, true},
		{StateApproved, EventApproved, true},
		{StateRejected, EventRejected, true},
		{StateInReview, "", false},
		{StateArchived, "", false},
	}
	for _, tt := range tests {
		event, ok := EventFor(tt.to)
		if event != tt.event || ok != tt.ok {
			t.Errorf("EventFor(%s) = (%s, %v), want (%s, %v)", tt.to, event, ok, tt.event, tt.ok)
		}
	}
}

func TestLabel(t *testing.T) {
	if got := Label(StateInReview); got != "In Review" {
		t.Errorf("Label(in_review) = %s", got)
	}
	if got := Label(State("weird")); got != "weird" {
		t.Errorf("Label(weird) = %s, want passthrough", got)
	}
}

func TestValid(t *testing.T) {
	for _, state := range States() {
		if !Valid(string(state)) {
			t.Errorf("Valid(%s) = false", state)
		}
	}
	if Valid("pending") {
		t.Error("Valid(pending) = true")
	}
}
