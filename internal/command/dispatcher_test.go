package command

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vi13x/wagerbot/internal/domain"
	"github.com/vi13x/wagerbot/internal/service"
	"github.com/vi13x/wagerbot/internal/storage"
)

type directory map[domain.ParticipantID]string

func (d directory) DisplayName(_ context.Context, id domain.ParticipantID) (string, error) {
	if n, ok := d[id]; ok {
		return n, nil
	}
	return "", errors.New("no such member")
}

var people = directory{"1": "alice", "2": "bob", "3": "carol"}

func newDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	db, err := storage.OpenFileDB(filepath.Join(t.TempDir(), "bet_log.json"), nil)
	require.NoError(t, err)
	return NewDispatcher(service.NewLedger(db), Options{})
}

func run(d *Dispatcher, actor domain.ParticipantID, text string) Reply {
	cmd, args, _ := Parse(text, "/")
	return d.Handle(context.Background(), Request{Actor: actor, Command: cmd, Args: args, Directory: people})
}

func TestParse(t *testing.T) {
	cmd, args, ok := Parse("/bet  rain tomorrow ", "/")
	require.True(t, ok)
	assert.Equal(t, "bet", cmd)
	assert.Equal(t, "rain tomorrow", args)

	cmd, args, ok = Parse("/Take@wager_bot 4", "/")
	require.True(t, ok)
	assert.Equal(t, "take", cmd)
	assert.Equal(t, "4", args)

	_, _, ok = Parse("hello there", "/")
	assert.False(t, ok)
	_, _, ok = Parse("!", "!")
	assert.False(t, ok)
}

func TestBetLifecycleReplies(t *testing.T) {
	d := newDispatcher(t)

	assert.Equal(t, `added bet 1 "rain tomorrow" by alice to log.`, run(d, "1", "/bet rain tomorrow").String())
	assert.Equal(t, "You can't take your own bet!", run(d, "1", "/take 1").String())
	assert.Equal(t, "Bet 1 has been claimed by bob!", run(d, "2", "/take 1").String())
	assert.Equal(t, "That bet's not up for grabs!", run(d, "3", "/take 1").String())
	assert.Equal(t, "You can't resolve bets you aren't a part of!", run(d, "3", "/resolve 1").String())
	assert.Equal(t, "Bet 1 has been resolved. Settle up between yourselves.", run(d, "1", "/resolve 1").String())
	assert.Equal(t, "That bet has already been resolved.", run(d, "2", "/resolve 1").String())
	assert.Equal(t, "That bet doesn't exist!", run(d, "2", "/take 9").String())

	r := run(d, "3", "/viewbets 10 resolved")
	require.Len(t, r.Lines, 1)
	assert.Equal(t, "Viewing latest 10 bets with status resolved", r.Lines[0])
	assert.Contains(t, r.Table, "rain tomorrow")
	assert.Contains(t, r.Table, "alice")
	assert.Contains(t, r.Table, "bob")
}

func TestWithdrawReplies(t *testing.T) {
	d := newDispatcher(t)
	assert.Equal(t, "I couldn't find any of your open bets", run(d, "1", "/imout").String())
	run(d, "1", "/bet x")
	run(d, "1", "/bet y")
	assert.Equal(t, "removed bet 2 by alice", run(d, "1", "/imout").String())

	r := run(d, "1", "/viewbets")
	assert.Equal(t, "Viewing latest 10 bets with status anything", r.Lines[0])
	assert.Contains(t, r.Table, "x")
	assert.NotContains(t, r.Table, " y ")
}

func TestStandingBetReoffers(t *testing.T) {
	d := newDispatcher(t)
	run(d, "1", "/standing sun tomorrow")
	r := run(d, "2", "/take 1")
	assert.Equal(t, []string{
		"Bet 1 has been claimed by bob!",
		"It's a standing bet, so it's back on the board as bet 2.",
	}, r.Lines)

	open := run(d, "3", "/viewbets 5 open")
	assert.Contains(t, open.Table, "sun tomorrow")
}

func TestResolveAnnulsOpenBet(t *testing.T) {
	d := newDispatcher(t)
	run(d, "1", "/bet x")
	assert.Equal(t, "removed bet 1 by alice", run(d, "1", "/resolve 1").String())
	assert.Equal(t, "That bet doesn't exist!", run(d, "1", "/resolve 1").String())
}

func TestUsageAndUnknown(t *testing.T) {
	d := newDispatcher(t)
	assert.Equal(t, "Usage: /bet <statement>", run(d, "1", "/bet").String())
	assert.Equal(t, "Usage: /take <bet_id>", run(d, "1", "/take abc").String())
	assert.Equal(t, "Usage: /resolve <bet_id>", run(d, "1", "/resolve -3").String())
	assert.Equal(t, "Usage: /viewbets [num_bets] [status]", run(d, "1", "/viewbets many").String())
	assert.Equal(t, `I don't know the status "won"`, run(d, "1", "/viewbets 3 won").String())
	assert.Equal(t, "I don't know that one. Try /help", run(d, "1", "/dance").String())
	assert.Len(t, run(d, "1", "/help").Lines, 6)

	r := run(d, "1", "/viewbets 3")
	assert.Equal(t, []string{"Viewing latest 3 bets with status anything", "No bets to show."}, r.Lines)
}

func TestUnknownNameFallsBackInConfirmation(t *testing.T) {
	d := newDispatcher(t)
	assert.Equal(t, `added bet 1 "x" by Unknown to log.`, run(d, "42", "/bet x").String())
}

func TestListingLookupFailureIsNotSwallowed(t *testing.T) {
	var logs bytes.Buffer
	db, err := storage.OpenFileDB(filepath.Join(t.TempDir(), "bet_log.json"), nil)
	require.NoError(t, err)
	d := NewDispatcher(service.NewLedger(db), Options{Logger: slog.New(slog.NewTextHandler(&logs, nil))})

	run(d, "42", "/bet x")
	r := run(d, "1", "/viewbets")
	assert.Equal(t, failureText, r.String())
	assert.Contains(t, logs.String(), "command failed")
	assert.Contains(t, logs.String(), "no such member")
}

type stubLedger struct {
	Ledger
	err error
}

func (s stubLedger) Withdraw(context.Context, domain.ParticipantID) (domain.WagerID, error) {
	return 0, s.err
}

func TestInfrastructureErrorsAreLogged(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	d := NewDispatcher(stubLedger{err: domain.WriteError("bet_log.json", errors.New("disk full"))}, Options{Logger: logger})

	r := d.Handle(context.Background(), Request{Actor: "1", Command: CmdWithdraw, Directory: people})
	assert.Equal(t, failureText, r.String())
	assert.Contains(t, logs.String(), "disk full")

	d = NewDispatcher(stubLedger{err: domain.ErrBusy}, Options{Logger: logger})
	r = d.Handle(context.Background(), Request{Actor: "1", Command: CmdWithdraw, Directory: people})
	assert.Equal(t, "still working! try again in a moment", r.String())
}

func TestCustomPrefixAndVocabulary(t *testing.T) {
	db, err := storage.OpenFileDB(filepath.Join(t.TempDir(), "bet_log.json"), nil)
	require.NoError(t, err)
	vocab := domain.Vocabulary{domain.StatusOpen: "Open"}
	d := NewDispatcher(service.NewLedger(db), Options{Prefix: "$", Vocabulary: vocab, DefaultView: 2})

	assert.Equal(t, "I don't know that one. Try $help", d.Handle(context.Background(), Request{Command: "nope"}).String())

	ctx := context.Background()
	d.Handle(ctx, Request{Actor: "1", Command: CmdBet, Args: "x", Directory: people})
	r := d.Handle(ctx, Request{Actor: "1", Command: CmdView, Args: "", Directory: people})
	assert.Equal(t, "Viewing latest 2 bets with status anything", r.Lines[0])
	assert.Contains(t, r.Table, "Open")

	r = d.Handle(ctx, Request{Actor: "1", Command: CmdView, Args: "5 Open", Directory: people})
	assert.Equal(t, "Viewing latest 5 bets with status Open", r.Lines[0])
}

func TestViewAllStatuses(t *testing.T) {
	d := newDispatcher(t)
	run(d, "1", "/bet first")
	run(d, "2", "/bet second")
	run(d, "1", "/take 2")

	r := run(d, "3", "/viewbets 5 all")
	require.Len(t, r.Lines, 1)
	assert.Equal(t, "Viewing latest 5 bets with status anything", r.Lines[0])
	assert.Contains(t, r.Table, "first")
	assert.Contains(t, r.Table, "second")
}

func TestViewUsesDefaultLimit(t *testing.T) {
	db, err := storage.OpenFileDB(filepath.Join(t.TempDir(), "bet_log.json"), nil)
	require.NoError(t, err)
	d := NewDispatcher(service.NewLedger(db), Options{DefaultView: 2})
	for _, s := range []string{"first", "second", "third"} {
		run(d, "1", "/bet "+s)
	}

	r := run(d, "2", "/viewbets")
	require.Len(t, r.Lines, 1)
	assert.Equal(t, "Viewing latest 2 bets with status anything", r.Lines[0])
	assert.Contains(t, r.Table, "third")
	assert.Contains(t, r.Table, "second")
	assert.NotContains(t, r.Table, "first")

	r = run(d, "2", "/viewbets 1")
	assert.Equal(t, "Viewing latest 1 bets with status anything", r.Lines[0])
}
