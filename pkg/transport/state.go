package transport

import "fmt"

// State is a step in the lifecycle of one request.
type State int

const (
	StateReceived State = iota // IncomingMessage accepted, nothing built yet
	StateBuilt                 // Fetch-style request constructed
	StateHandled               // handler returned a response
	StateWritten               // status, headers and body written
	StateDone                  // outgoing message ended
	StateAborted               // cancellation signal fired before writing completed
)

var stateNames = map[State]string{
	StateReceived: "received",
	StateBuilt:    "built",
	StateHandled:  "handled",
	StateWritten:  "written",
	StateDone:     "done",
	StateAborted:  "aborted",
}

// String returns the lower-case state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// ValidateTransition checks whether a lifecycle transition is valid.
// Aborting is possible only from StateBuilt or StateHandled; terminal states
// do not allow outgoing transitions.
func ValidateTransition(from, to State) error {
	valid := map[State][]State{
		StateReceived: {StateBuilt},
		StateBuilt:    {StateHandled, StateAborted},
		StateHandled:  {StateWritten, StateAborted},
		StateWritten:  {StateDone},
	}

	for _, s := range valid[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid transition from %s to %s", from, to)
}

// Lifecycle tracks the state of one request. It is not safe for concurrent
// use; the goroutine serving the request owns it.
type Lifecycle struct {
	state State
}

// Current returns the current state.
func (l *Lifecycle) Current() State {
	return l.state
}

// Advance moves to the next state, rejecting invalid transitions.
func (l *Lifecycle) Advance(to State) error {
	if err := ValidateTransition(l.state, to); err != nil {
		return err
	}
	l.state = to
	return nil
}

// MustAdvance is like Advance but panics on an invalid transition. Callers
// that drive the lifecycle in a fixed order use it, since a rejected
// transition there is a programming error.
func (l *Lifecycle) MustAdvance(to State) {
	if err := l.Advance(to); err != nil {
		panic(err)
	}
}
