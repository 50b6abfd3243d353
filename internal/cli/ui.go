package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"

	"github.com/vi13x/wagerbot/internal/command"
	"github.com/vi13x/wagerbot/internal/domain"
	"github.com/vi13x/wagerbot/internal/service"
)

// StaticDirectory names participants from a fixed map and shows unmapped
// ids as they are.
type StaticDirectory map[domain.ParticipantID]string

func (d StaticDirectory) DisplayName(_ context.Context, id domain.ParticipantID) (string, error) {
	if name, ok := d[id]; ok {
		return name, nil
	}
	return string(id), nil
}

// Archive is the operator-only side of the ledger.
type Archive interface {
	ExportCSV(ctx context.Context, w io.Writer, filter domain.Status) error
	Backup(ctx context.Context) (string, error)
	Backups() ([]string, error)
	RestoreBackup(ctx context.Context, name string) error
}

var _ Archive = (*service.Archive)(nil)

// UI is an operator console over the same commands the chat bot accepts.
// Lines may be typed with or without the command prefix.
type UI struct {
	dispatcher *command.Dispatcher
	archive    Archive
	dir        StaticDirectory
	in         *bufio.Reader
	out        io.Writer
	prefix     string
	actor      domain.ParticipantID
}

// NewUI builds a console. archive may be nil, which disables the export and
// backup commands.
func NewUI(dispatcher *command.Dispatcher, archive Archive, dir StaticDirectory, in io.Reader, out io.Writer, actor domain.ParticipantID) *UI {
	return &UI{
		dispatcher: dispatcher,
		archive:    archive,
		dir:        dir,
		in:         bufio.NewReader(in),
		out:        out,
		prefix:     dispatcher.Prefix(),
		actor:      actor,
	}
}

// Run reads commands until EOF or "quit".
func (ui *UI) Run(ctx context.Context) error {
	fmt.Fprintf(ui.out, "Acting as %s. Type %shelp for bet commands, \"ops\" for operator commands, \"quit\" to leave.\n", ui.actor, ui.prefix)
	for {
		fmt.Fprintf(ui.out, "%s> ", ui.actor)
		line, err := ui.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}
		if ui.operator(ctx, line) {
			continue
		}
		ui.exec(ctx, line)
	}
}

// operator handles console-only commands and reports whether line was one.
func (ui *UI) operator(ctx context.Context, line string) bool {
	name, args, _ := strings.Cut(line, " ")
	args = strings.TrimSpace(args)
	switch name {
	case "ops":
		fmt.Fprintln(ui.out, "as <id>: act as another participant")
		fmt.Fprintln(ui.out, "export <file.csv> [status]: write bets as CSV")
		fmt.Fprintln(ui.out, "backup: snapshot the ledger")
		fmt.Fprintln(ui.out, "backups: list snapshots")
		fmt.Fprintln(ui.out, "restore <name>: replace the ledger with a snapshot")
	case "as":
		ui.switchActor(args)
	case "export", "backup", "backups", "restore":
		if ui.archive == nil {
			fmt.Fprintln(ui.out, pterm.Error.Sprint("archive commands are not available"))
			return true
		}
		if err := ui.archiveCommand(ctx, name, args); err != nil {
			fmt.Fprintln(ui.out, pterm.Error.Sprint(err))
		}
	default:
		return false
	}
	return true
}

func (ui *UI) archiveCommand(ctx context.Context, name, args string) error {
	switch name {
	case "export":
		path, filter, _ := strings.Cut(args, " ")
		if path == "" {
			return errors.New("export <file.csv> [status]")
		}
		status := domain.Status(strings.TrimSpace(filter))
		if status == "all" {
			status = ""
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := ui.archive.ExportCSV(ctx, f, status); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintln(ui.out, pterm.Success.Sprintf("exported to %s", path))
	case "backup":
		saved, err := ui.archive.Backup(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(ui.out, pterm.Success.Sprintf("backup %s written", saved))
	case "backups":
		names, err := ui.archive.Backups()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Fprintln(ui.out, "no backups")
		}
		for i, n := range names {
			fmt.Fprintf(ui.out, "%d) %s\n", i+1, n)
		}
	case "restore":
		if args == "" {
			return errors.New("restore <name>")
		}
		if err := ui.archive.RestoreBackup(ctx, args); err != nil {
			return err
		}
		fmt.Fprintln(ui.out, pterm.Success.Sprintf("restored %s", args))
	}
	return nil
}

func (ui *UI) switchActor(who string) {
	if who == "" {
		fmt.Fprintln(ui.out, pterm.Error.Sprint("as <id>: id is required"))
		return
	}
	ui.actor = domain.ParticipantID(who)
	fmt.Fprintln(ui.out, pterm.Info.Sprintf("now acting as %s", who))
}

func (ui *UI) exec(ctx context.Context, line string) {
	if !strings.HasPrefix(line, ui.prefix) {
		line = ui.prefix + line
	}
	cmd, args, ok := command.Parse(line, ui.prefix)
	if !ok {
		return
	}
	reply := ui.dispatcher.Handle(ctx, command.Request{
		Actor:     ui.actor,
		Command:   cmd,
		Args:      args,
		Directory: ui.dir,
	})
	for _, l := range reply.Lines {
		fmt.Fprintln(ui.out, l)
	}
	if reply.Table != "" {
		fmt.Fprint(ui.out, reply.Table)
		if !strings.HasSuffix(reply.Table, "\n") {
			fmt.Fprintln(ui.out)
		}
	}
}

func (ui *UI) readLine() (string, error) {
	s, err := ui.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	return strings.TrimSpace(s), nil
}
