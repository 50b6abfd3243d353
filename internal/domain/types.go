package domain

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

type WagerID int64
type ParticipantID string

type Wager struct {
	ID        WagerID
	Proposer  ParticipantID
	Acceptor  ParticipantID // empty until accepted
	Status    Status
	Statement string
	CreatedAt time.Time
}

// HasAcceptor reports whether the wager has been taken by someone.
func (w *Wager) HasAcceptor() bool { return w.Acceptor != "" }

// Participant reports whether p is on either side of the wager.
func (w *Wager) Participant(p ParticipantID) bool {
	return p != "" && (w.Proposer == p || w.Acceptor == p)
}

// Ledger is the whole persisted aggregate. It is loaded and saved as a unit.
type Ledger struct {
	NextID  WagerID
	Entries map[WagerID]*Wager
}

func NewLedger() *Ledger {
	return &Ledger{NextID: 1, Entries: map[WagerID]*Wager{}}
}

// Allocate returns the next id and advances the counter. Ids are never reused.
func (l *Ledger) Allocate() WagerID {
	id := l.NextID
	l.NextID++
	return id
}

// Newest returns the ids of stored wagers, highest first. Its cost follows
// the number of entries, not next_id, which may sit far above them.
func (l *Ledger) Newest() []WagerID {
	ids := make([]WagerID, 0, len(l.Entries))
	for id := range l.Entries {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b WagerID) int { return cmp.Compare(b, a) })
	return ids
}

// Validate checks the structural invariants a loaded ledger must satisfy.
func (l *Ledger) Validate() error {
	if l.NextID < 1 {
		return fmt.Errorf("next_id must be positive, got %d", l.NextID)
	}
	for key, w := range l.Entries {
		if w == nil {
			return fmt.Errorf("entry %d is empty", key)
		}
		if w.ID != key {
			return fmt.Errorf("entry %d carries bet_id %d", key, w.ID)
		}
		if w.ID < 1 || w.ID >= l.NextID {
			return fmt.Errorf("bet_id %d outside allocated range [1, %d)", w.ID, l.NextID)
		}
		if w.Proposer == "" {
			return fmt.Errorf("bet %d has no bidder", w.ID)
		}
		if !w.Status.Valid() {
			return fmt.Errorf("bet %d has unknown status %q", w.ID, w.Status)
		}
		if w.Status.Available() && w.HasAcceptor() {
			return fmt.Errorf("bet %d is %s but has a seller", w.ID, w.Status)
		}
		if !w.Status.Available() && !w.HasAcceptor() {
			return fmt.Errorf("bet %d is %s without a seller", w.ID, w.Status)
		}
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without touching the original.
func (l *Ledger) Clone() *Ledger {
	out := &Ledger{NextID: l.NextID, Entries: make(map[WagerID]*Wager, len(l.Entries))}
	for id, w := range l.Entries {
		c := *w
		out.Entries[id] = &c
	}
	return out
}
