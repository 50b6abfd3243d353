// Package command turns chat commands into ledger operations and the ledger's
// answers into short replies.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/vi13x/wagerbot/internal/domain"
	"github.com/vi13x/wagerbot/internal/report"
	"github.com/vi13x/wagerbot/internal/service"
)

const (
	CmdBet      = "bet"
	CmdStanding = "standing"
	CmdWithdraw = "imout"
	CmdView     = "viewbets"
	CmdTake     = "take"
	CmdResolve  = "resolve"
	CmdHelp     = "help"
)

const failureText = "Hmm... that didn't seem to work."

// Ledger is the part of service.Ledger the dispatcher drives.
type Ledger interface {
	Propose(ctx context.Context, proposer domain.ParticipantID, statement string, opts ...service.ProposeOption) (domain.WagerID, error)
	Withdraw(ctx context.Context, actor domain.ParticipantID) (domain.WagerID, error)
	Accept(ctx context.Context, actor domain.ParticipantID, id domain.WagerID) (domain.WagerID, error)
	Resolve(ctx context.Context, actor domain.ParticipantID, id domain.WagerID) (service.Resolution, error)
	List(ctx context.Context, limit int, filter domain.Status) ([]domain.Wager, error)
}

type Request struct {
	Actor     domain.ParticipantID
	Command   string
	Args      string
	Directory report.Directory
}

type Reply struct {
	Lines []string
	// Table is preformatted text that transports should show verbatim.
	Table string
}

func (r Reply) String() string {
	text := strings.Join(r.Lines, "\n")
	if r.Table != "" {
		text += "\n" + r.Table
	}
	return text
}

type Dispatcher struct {
	ledger      Ledger
	vocab       domain.Vocabulary
	columns     []report.Column
	defaultView int
	prefix      string
	log         *slog.Logger
}

type Options struct {
	Vocabulary  domain.Vocabulary
	Columns     []report.Column
	DefaultView int
	Prefix      string
	Logger      *slog.Logger
}

func NewDispatcher(ledger Ledger, opts Options) *Dispatcher {
	d := &Dispatcher{
		ledger:      ledger,
		vocab:       opts.Vocabulary,
		columns:     opts.Columns,
		defaultView: opts.DefaultView,
		prefix:      opts.Prefix,
		log:         opts.Logger,
	}
	if d.vocab == nil {
		d.vocab = domain.DefaultVocabulary()
	}
	if len(d.columns) == 0 {
		d.columns = report.DefaultColumns
	}
	if d.defaultView <= 0 {
		d.defaultView = 10
	}
	if d.prefix == "" {
		d.prefix = "/"
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	return d
}

// Prefix is the command prefix replies refer to.
func (d *Dispatcher) Prefix() string { return d.prefix }

// Parse splits "<prefix>cmd args..." into its parts. ok is false when the
// text is not a command.
func Parse(text, prefix string) (cmd, args string, ok bool) {
	text = strings.TrimSpace(text)
	rest, found := strings.CutPrefix(text, prefix)
	if !found || rest == "" {
		return "", "", false
	}
	cmd, args, _ = strings.Cut(rest, " ")
	// Telegram appends @botname in group chats.
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), strings.TrimSpace(args), true
}

func (d *Dispatcher) Handle(ctx context.Context, req Request) Reply {
	switch req.Command {
	case CmdBet:
		return d.propose(ctx, req)
	case CmdStanding:
		return d.propose(ctx, req, service.AsStanding())
	case CmdWithdraw:
		return d.withdraw(ctx, req)
	case CmdView:
		return d.view(ctx, req)
	case CmdTake:
		return d.take(ctx, req)
	case CmdResolve:
		return d.resolve(ctx, req)
	case CmdHelp, "start":
		return d.help()
	}
	return say("I don't know that one. Try " + d.prefix + CmdHelp)
}

func (d *Dispatcher) help() Reply {
	p := d.prefix
	return say(
		p+CmdBet+" <statement>: create an open bet",
		p+CmdStanding+" <statement>: create a bet that is re-offered each time it is taken",
		p+CmdWithdraw+": cancel your most recent unclaimed offer",
		p+CmdView+" [num_bets] [status]: see open, standing, pending, resolved or all bets",
		p+CmdTake+" <bet_id>: take an open bet",
		p+CmdResolve+" <bet_id>: resolve a pending bet or delete an open one",
	)
}

func (d *Dispatcher) propose(ctx context.Context, req Request, opts ...service.ProposeOption) Reply {
	if req.Args == "" {
		return say("Usage: " + d.prefix + req.Command + " <statement>")
	}
	id, err := d.ledger.Propose(ctx, req.Actor, req.Args, opts...)
	if err != nil {
		return d.fail(req, err)
	}
	return say(fmt.Sprintf("added bet %d %q by %s to log.", id, req.Args, d.nick(ctx, req)))
}

func (d *Dispatcher) withdraw(ctx context.Context, req Request) Reply {
	id, err := d.ledger.Withdraw(ctx, req.Actor)
	if errors.Is(err, domain.ErrNotFound) {
		return say("I couldn't find any of your open bets")
	}
	if err != nil {
		return d.fail(req, err)
	}
	return say(fmt.Sprintf("removed bet %d by %s", id, d.nick(ctx, req)))
}

func (d *Dispatcher) take(ctx context.Context, req Request) Reply {
	id, ok := parseID(req.Args)
	if !ok {
		return say("Usage: " + d.prefix + CmdTake + " <bet_id>")
	}
	reoffer, err := d.ledger.Accept(ctx, req.Actor, id)
	if err != nil {
		return d.fail(req, err)
	}
	r := say(fmt.Sprintf("Bet %d has been claimed by %s!", id, d.nick(ctx, req)))
	if reoffer != 0 {
		r.Lines = append(r.Lines, fmt.Sprintf("It's a standing bet, so it's back on the board as bet %d.", reoffer))
	}
	return r
}

func (d *Dispatcher) resolve(ctx context.Context, req Request) Reply {
	id, ok := parseID(req.Args)
	if !ok {
		return say("Usage: " + d.prefix + CmdResolve + " <bet_id>")
	}
	res, err := d.ledger.Resolve(ctx, req.Actor, id)
	if err != nil {
		return d.fail(req, err)
	}
	if res == service.Annulled {
		return say(fmt.Sprintf("removed bet %d by %s", id, d.nick(ctx, req)))
	}
	return say(fmt.Sprintf("Bet %d has been resolved. Settle up between yourselves.", id))
}

func (d *Dispatcher) view(ctx context.Context, req Request) Reply {
	limit := d.defaultView
	var filter domain.Status
	fields := strings.Fields(req.Args)
	if len(fields) > 0 {
		n, err := strconv.Atoi(fields[0])
		if err != nil || n < 0 {
			return say("Usage: " + d.prefix + CmdView + " [num_bets] [status]")
		}
		limit = n
	}
	if len(fields) > 1 && !isAll(fields[1:]) {
		s, err := d.parseStatus(strings.Join(fields[1:], " "))
		if err != nil {
			return say(fmt.Sprintf("I don't know the status %q", strings.Join(fields[1:], " ")))
		}
		filter = s
	}

	entries, err := d.ledger.List(ctx, limit, filter)
	if err != nil {
		return d.fail(req, err)
	}
	label := "anything"
	if filter != "" {
		label = d.vocab.Token(filter)
	}
	header := fmt.Sprintf("Viewing latest %d bets with status %s", limit, label)
	if len(entries) == 0 {
		return say(header, "No bets to show.")
	}
	table, err := report.NewFormatter(req.Directory, d.vocab).Render(ctx, entries, d.columns)
	if err != nil {
		return d.fail(req, err)
	}
	return Reply{Lines: []string{header}, Table: table}
}

func isAll(fields []string) bool {
	if len(fields) != 1 {
		return false
	}
	switch strings.ToLower(fields[0]) {
	case "all", "any", "anything":
		return true
	}
	return false
}

func (d *Dispatcher) parseStatus(arg string) (domain.Status, error) {
	if s := domain.Status(strings.ToLower(arg)); s.Valid() {
		return s, nil
	}
	return d.vocab.Parse(arg)
}

// nick is used only in confirmations, after the ledger has already changed,
// so a failed lookup falls back to a literal instead of failing the reply.
func (d *Dispatcher) nick(ctx context.Context, req Request) string {
	if req.Directory == nil {
		return string(req.Actor)
	}
	name, err := req.Directory.DisplayName(ctx, req.Actor)
	if err != nil {
		d.log.Warn("display name lookup failed", "actor", req.Actor, "error", err)
		return "Unknown"
	}
	return name
}

// fail maps ledger errors to denials. Infrastructure errors go to the log in
// full and the user only learns that something broke.
func (d *Dispatcher) fail(req Request, err error) Reply {
	switch {
	case errors.Is(err, domain.ErrBusy):
		return say("still working! try again in a moment")
	case errors.Is(err, domain.ErrNotFound):
		return say("That bet doesn't exist!")
	case errors.Is(err, domain.ErrUnauthorized):
		if req.Command == CmdResolve {
			return say("You can't resolve bets you aren't a part of!")
		}
		return say("You can't do that.")
	case errors.Is(err, domain.ErrSelfAcceptance):
		return say("You can't take your own bet!")
	case errors.Is(err, domain.ErrInvalidTransition):
		switch req.Command {
		case CmdTake:
			return say("That bet's not up for grabs!")
		case CmdResolve:
			return say("That bet has already been resolved.")
		}
		return say("That bet can't do that right now.")
	case errors.Is(err, domain.ErrEmptyStatement):
		return say("A bet needs a statement.")
	}
	d.log.Error("command failed", "command", req.Command, "actor", req.Actor, "error", err)
	return say(failureText)
}

func parseID(arg string) (domain.WagerID, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return domain.WagerID(n), true
}

func say(lines ...string) Reply { return Reply{Lines: lines} }
