package domain

import "fmt"

type Status string

const (
	StatusOpen     Status = "open"
	StatusStanding Status = "standing"
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"

	// StatusRemoved is never stored; a transition to it deletes the entry.
	StatusRemoved Status = "removed"
)

var Statuses = []Status{StatusOpen, StatusStanding, StatusPending, StatusResolved}

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusStanding, StatusPending, StatusResolved:
		return true
	}
	return false
}

// Available reports whether a wager in this status can still be taken.
func (s Status) Available() bool { return s == StatusOpen || s == StatusStanding }

func (s Status) Terminal() bool { return s == StatusResolved }

type Event string

const (
	EventAccept   Event = "accept"
	EventWithdraw Event = "withdraw"
	EventResolve  Event = "resolve"
)

var transitions = map[Status]map[Event]Status{
	StatusOpen: {
		EventAccept:   StatusPending,
		EventWithdraw: StatusRemoved,
		EventResolve:  StatusRemoved,
	},
	StatusStanding: {
		EventAccept:   StatusPending,
		EventWithdraw: StatusRemoved,
		EventResolve:  StatusRemoved,
	},
	StatusPending: {
		EventResolve: StatusResolved,
	},
}

// Transition returns the status a wager moves to when ev is applied in from.
// Guards on the actor are the engine's concern; this only encodes the table.
func Transition(from Status, ev Event) (Status, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return "", fmt.Errorf("%w: cannot %s a %s bet", ErrInvalidTransition, ev, from)
}

// Vocabulary maps statuses to the tokens written to the store.
// Missing statuses fall back to their own name.
type Vocabulary map[Status]string

func DefaultVocabulary() Vocabulary {
	v := Vocabulary{}
	for _, s := range Statuses {
		v[s] = string(s)
	}
	return v
}

func (v Vocabulary) Token(s Status) string {
	if t, ok := v[s]; ok && t != "" {
		return t
	}
	return string(s)
}

// Parse maps a stored token back to its status.
func (v Vocabulary) Parse(token string) (Status, error) {
	for _, s := range Statuses {
		if v.Token(s) == token {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status token %q", token)
}

// Check rejects vocabularies in which two statuses share a token.
func (v Vocabulary) Check() error {
	seen := map[string]Status{}
	for _, s := range Statuses {
		t := v.Token(s)
		if prev, dup := seen[t]; dup {
			return fmt.Errorf("statuses %s and %s share token %q", prev, s, t)
		}
		seen[t] = s
	}
	for s := range v {
		if !s.Valid() {
			return fmt.Errorf("vocabulary names unknown status %q", s)
		}
	}
	return nil
}
