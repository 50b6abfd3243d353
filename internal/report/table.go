// Package report renders ledger listings as plain-text tables.
package report

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"

	"github.com/vi13x/wagerbot/internal/domain"
)

// Placeholder is shown for fields a wager does not have.
const Placeholder = "N/A"

type Column string

const (
	ColumnID        Column = "bet_id"
	ColumnProposer  Column = "bidder"
	ColumnAcceptor  Column = "seller"
	ColumnStatus    Column = "status"
	ColumnStatement Column = "statement"
	ColumnCreated   Column = "created"
)

var DefaultColumns = []Column{ColumnID, ColumnProposer, ColumnAcceptor, ColumnStatus, ColumnStatement}

func ParseColumns(names []string) ([]Column, error) {
	if len(names) == 0 {
		return DefaultColumns, nil
	}
	out := make([]Column, 0, len(names))
	for _, n := range names {
		switch c := Column(n); c {
		case ColumnID, ColumnProposer, ColumnAcceptor, ColumnStatus, ColumnStatement, ColumnCreated:
			out = append(out, c)
		default:
			return nil, fmt.Errorf("unknown column %q", n)
		}
	}
	return out, nil
}

// Directory turns participant ids into names people recognise.
type Directory interface {
	DisplayName(ctx context.Context, id domain.ParticipantID) (string, error)
}

// FormatError is returned when a cell could not be produced.
type FormatError struct {
	BetID  domain.WagerID
	Column Column
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("render bet %d column %s: %v", e.BetID, e.Column, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

type Formatter struct {
	dir   Directory
	vocab domain.Vocabulary
	now   func() time.Time
}

func NewFormatter(dir Directory, vocab domain.Vocabulary) *Formatter {
	if vocab == nil {
		vocab = domain.DefaultVocabulary()
	}
	return &Formatter{dir: dir, vocab: vocab, now: time.Now}
}

// Render lays out entries in the given order, one row each, under a header
// of column names. Lookups are not cached and a failed one aborts the render.
func (f *Formatter) Render(ctx context.Context, entries []domain.Wager, columns []Column) (string, error) {
	if len(columns) == 0 {
		columns = DefaultColumns
	}
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = string(c)
	}
	data := pterm.TableData{header}
	for _, w := range entries {
		row := make([]string, len(columns))
		for i, c := range columns {
			cell, err := f.cell(ctx, w, c)
			if err != nil {
				return "", &FormatError{BetID: w.ID, Column: c, Err: err}
			}
			row[i] = cell
		}
		data = append(data, row)
	}

	plain := pterm.NewStyle()
	return pterm.DefaultTable.
		WithHasHeader().
		WithStyle(plain).
		WithHeaderStyle(plain).
		WithSeparatorStyle(plain).
		WithHeaderRowSeparator("-").
		WithHeaderRowSeparatorStyle(plain).
		WithData(data).
		Srender()
}

func (f *Formatter) cell(ctx context.Context, w domain.Wager, c Column) (string, error) {
	switch c {
	case ColumnID:
		return strconv.FormatInt(int64(w.ID), 10), nil
	case ColumnProposer:
		return f.name(ctx, w.Proposer)
	case ColumnAcceptor:
		return f.name(ctx, w.Acceptor)
	case ColumnStatus:
		return f.vocab.Token(w.Status), nil
	case ColumnStatement:
		return w.Statement, nil
	case ColumnCreated:
		if w.CreatedAt.IsZero() {
			return Placeholder, nil
		}
		return humanize.RelTime(w.CreatedAt, f.now(), "ago", "from now"), nil
	}
	return "", fmt.Errorf("unknown column %q", c)
}

func (f *Formatter) name(ctx context.Context, id domain.ParticipantID) (string, error) {
	if id == "" {
		return Placeholder, nil
	}
	if f.dir == nil {
		return string(id), nil
	}
	return f.dir.DisplayName(ctx, id)
}
