package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/vi13x/wagerbot/internal/domain"
)

const (
	nextIDKey = "next_id"
	betPrefix = "bet_"
)

type betRecord struct {
	BetID     int64      `json:"bet_id"`
	Bidder    string     `json:"bidder"`
	Seller    string     `json:"seller,omitempty"`
	Status    string     `json:"status"`
	Statement string     `json:"statement"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

func BetKey(id domain.WagerID) string { return betPrefix + strconv.FormatInt(int64(id), 10) }

// encodeLedger writes next_id first and then entries by ascending id so that
// the same ledger always produces the same bytes.
func encodeLedger(l *domain.Ledger, vocab domain.Vocabulary) ([]byte, error) {
	ids := make([]domain.WagerID, 0, len(l.Entries))
	for id := range l.Entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "{\n  %q: %d", nextIDKey, l.NextID)
	for _, id := range ids {
		w := l.Entries[id]
		rec := betRecord{
			BetID:     int64(w.ID),
			Bidder:    string(w.Proposer),
			Seller:    string(w.Acceptor),
			Status:    vocab.Token(w.Status),
			Statement: w.Statement,
		}
		if !w.CreatedAt.IsZero() {
			ts := w.CreatedAt
			rec.CreatedAt = &ts
		}
		body, err := json.MarshalIndent(rec, "  ", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", BetKey(id), err)
		}
		fmt.Fprintf(&buf, ",\n  %q: ", BetKey(id))
		buf.Write(body)
	}
	buf.WriteString("\n}\n")
	return buf.Bytes(), nil
}

// decodeLedger returns a plain error describing what is malformed; callers
// wrap it as a CorruptStoreError with their own location.
func decodeLedger(data []byte, vocab domain.Vocabulary) (*domain.Ledger, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	rawNext, ok := doc[nextIDKey]
	if !ok {
		return nil, fmt.Errorf("missing %s", nextIDKey)
	}
	l := domain.NewLedger()
	if err := json.Unmarshal(rawNext, &l.NextID); err != nil {
		return nil, fmt.Errorf("%s: %w", nextIDKey, err)
	}
	for key, raw := range doc {
		if key == nextIDKey {
			continue
		}
		idText, ok := strings.CutPrefix(key, betPrefix)
		if !ok {
			return nil, fmt.Errorf("unexpected key %q", key)
		}
		id, err := strconv.ParseInt(idText, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		w, err := decodeRecord(raw, vocab)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if w.ID != domain.WagerID(id) {
			return nil, fmt.Errorf("%s carries bet_id %d", key, w.ID)
		}
		l.Entries[w.ID] = w
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

func decodeRecord(raw json.RawMessage, vocab domain.Vocabulary) (*domain.Wager, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var rec betRecord
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	status, err := vocab.Parse(rec.Status)
	if err != nil {
		return nil, err
	}
	w := &domain.Wager{
		ID:        domain.WagerID(rec.BetID),
		Proposer:  domain.ParticipantID(rec.Bidder),
		Acceptor:  domain.ParticipantID(rec.Seller),
		Status:    status,
		Statement: rec.Statement,
	}
	if rec.CreatedAt != nil {
		w.CreatedAt = *rec.CreatedAt
	}
	return w, nil
}
