package scan

import "fmt"

// State is a step of a single scan attempt.
type State int

const (
	Idle State = iota
	Capturing
	Submitted
	Parsed
	AllergenChecked
	Failed
	Persisted
)

var stateNames = [...]string{
	Idle:            "idle",
	Capturing:       "capturing",
	Submitted:       "submitted",
	Parsed:          "parsed",
	AllergenChecked: "allergen_checked",
	Failed:          "failed",
	Persisted:       "persisted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText renders the state by name in JSON replies.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == Failed || s == Persisted
}

// next lists the legal transitions out of each state.
var next = map[State][]State{
	Idle:            {Capturing},
	Capturing:       {Submitted, Failed},
	Submitted:       {Parsed, Failed},
	Parsed:          {AllergenChecked, Failed},
	AllergenChecked: {Persisted},
}

func canMove(from, to State) bool {
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}
