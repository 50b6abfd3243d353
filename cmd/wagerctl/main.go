// wagerctl is an operator console for the wager ledger. It accepts the same
// commands as the bot, typed on stdin, acting as the participant named by
// --actor.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/vi13x/wagerbot/internal/cli"
	"github.com/vi13x/wagerbot/internal/command"
	"github.com/vi13x/wagerbot/internal/config"
	"github.com/vi13x/wagerbot/internal/domain"
	"github.com/vi13x/wagerbot/internal/service"
	"github.com/vi13x/wagerbot/internal/storage"
)

func main() {
	if err := run(); err != nil {
		config.Exitf("error: %v", err)
	}
}

func run() error {
	var (
		actor      string
		configFile string
		storePath  string
		driver     string
		backupDir  string
		names      []string
	)
	flagSet := pflag.NewFlagSet("wagerctl", pflag.ContinueOnError)
	flagSet.StringVarP(&actor, "actor", "a", "operator", "participant id to act as")
	flagSet.StringVarP(&configFile, "config", "c", "", "YAML config file (overrides WAGERBOT_CONFIG_FILE)")
	flagSet.StringVar(&storePath, "store", "", "ledger path (overrides WAGERBOT_STORE_PATH)")
	flagSet.StringVar(&backupDir, "backups", "", "backup directory (overrides WAGERBOT_BACKUP_DIR)")
	flagSet.StringVar(&driver, "driver", "", "store driver: file or sqlite (overrides WAGERBOT_STORE_DRIVER)")
	flagSet.StringSliceVar(&names, "name", nil, "display name as id=name, repeatable")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	var cfg config.Config
	if err := config.ParseEnv(&cfg); err != nil {
		return err
	}
	if configFile != "" {
		cfg.File = configFile
	}
	if storePath != "" {
		cfg.StorePath = storePath
	}
	if driver != "" {
		cfg.StoreDriver = driver
	}
	if backupDir != "" {
		cfg.BackupDir = backupDir
	}
	if err := cfg.LoadFile(cfg.File); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	dir, err := parseNames(names)
	if err != nil {
		return err
	}

	vocab, err := cfg.Vocabulary()
	if err != nil {
		return err
	}
	columns, err := cfg.Columns()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stderr)

	store, err := storage.Open(cfg.StoreDriver, cfg.StorePath, vocab)
	if err != nil {
		return err
	}
	defer store.Close()

	ledger := service.NewLedger(store,
		service.WithLogger(logger),
		service.WithStoreTimeout(cfg.StoreTimeout),
	)
	dispatcher := command.NewDispatcher(ledger, command.Options{
		Vocabulary:  vocab,
		Columns:     columns,
		DefaultView: cfg.View(),
		Prefix:      cfg.Prefix(),
		Logger:      logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	archive := service.NewArchive(ledger, vocab, cfg.BackupDir)
	return cli.NewUI(dispatcher, archive, dir, os.Stdin, os.Stdout, domain.ParticipantID(actor)).Run(ctx)
}

func parseNames(pairs []string) (cli.StaticDirectory, error) {
	dir := cli.StaticDirectory{}
	for _, p := range pairs {
		id, name, ok := strings.Cut(p, "=")
		if !ok || id == "" || name == "" {
			return nil, fmt.Errorf("--name %q: want id=name", p)
		}
		dir[domain.ParticipantID(id)] = name
	}
	return dir, nil
}
