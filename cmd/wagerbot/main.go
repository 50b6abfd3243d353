// wagerbot runs the wager ledger as a Telegram bot.
//
// Configuration comes from WAGERBOT_* environment variables and an optional
// YAML file named by WAGERBOT_CONFIG_FILE.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vi13x/wagerbot/bot"
	"github.com/vi13x/wagerbot/internal/command"
	"github.com/vi13x/wagerbot/internal/config"
	"github.com/vi13x/wagerbot/internal/service"
	"github.com/vi13x/wagerbot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("config: %v", err)
	}
	if cfg.TelegramToken == "" {
		config.Exitf("config: WAGERBOT_TELEGRAM_TOKEN is required")
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("wagerbot stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	vocab, err := cfg.Vocabulary()
	if err != nil {
		return err
	}
	columns, err := cfg.Columns()
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.StoreDriver, cfg.StorePath, vocab)
	if err != nil {
		return err
	}
	defer store.Close()

	// Fail at startup rather than on the first command.
	if _, err := store.Load(ctx); err != nil {
		return err
	}

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

	if err := tgbotapi.SetLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug)); err != nil {
		return err
	}
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("connect to telegram: %w", err)
	}
	logger.Info("wagerbot started",
		"account", api.Self.UserName,
		"store", store.Path(),
		"driver", cfg.StoreDriver,
	)

	bot.New(api, dispatcher, logger).Start(ctx)
	logger.Info("wagerbot stopped")
	return nil
}
