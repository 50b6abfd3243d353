package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/vi13x/wagerbot/internal/domain"
	"github.com/vi13x/wagerbot/internal/report"
	"github.com/vi13x/wagerbot/internal/storage"
)

const (
	DriverFile   = storage.DriverFile
	DriverSQLite = storage.DriverSQLite
)

type Config struct {
	TelegramToken string        `env:"WAGERBOT_TELEGRAM_TOKEN"`
	StoreDriver   string        `env:"WAGERBOT_STORE_DRIVER" envDefault:"file"`
	StorePath     string        `env:"WAGERBOT_STORE_PATH" envDefault:"data/bet_log.json"`
	StoreTimeout  time.Duration `env:"WAGERBOT_STORE_TIMEOUT" envDefault:"5s"`
	BackupDir     string        `env:"WAGERBOT_BACKUP_DIR" envDefault:"data/backups"`
	LogFormat     string        `env:"WAGERBOT_LOG_FORMAT" envDefault:"text"`
	LogLevel      slog.Level    `env:"WAGERBOT_LOG_LEVEL" envDefault:"info"`
	File          string        `env:"WAGERBOT_CONFIG_FILE"`

	Ledger LedgerFile
}

// LedgerFile is the optional YAML file. Every field has a usable default.
type LedgerFile struct {
	BetStatus     map[string]string `yaml:"bet_status"`
	BetLogColumns []string          `yaml:"bet_log_columns"`
	CommandPrefix string            `yaml:"command_prefix"`
	DefaultView   int               `yaml:"default_view"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the environment and then the YAML file it points at, if any.
func Load() (*Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.LoadFile(cfg.File); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var f LedgerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.File = path
	c.Ledger = f
	return nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverFile, DriverSQLite:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if strings.TrimSpace(c.StorePath) == "" {
		return fmt.Errorf("store path is required")
	}
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("store timeout must be positive")
	}
	if _, err := c.Vocabulary(); err != nil {
		return err
	}
	if _, err := c.Columns(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Vocabulary() (domain.Vocabulary, error) {
	v := domain.DefaultVocabulary()
	for name, token := range c.Ledger.BetStatus {
		s := domain.Status(name)
		if !s.Valid() {
			return nil, fmt.Errorf("bet_status: unknown status %q", name)
		}
		v[s] = token
	}
	if err := v.Check(); err != nil {
		return nil, fmt.Errorf("bet_status: %w", err)
	}
	return v, nil
}

func (c *Config) Columns() ([]report.Column, error) {
	cols, err := report.ParseColumns(c.Ledger.BetLogColumns)
	if err != nil {
		return nil, fmt.Errorf("bet_log_columns: %w", err)
	}
	return cols, nil
}

func (c *Config) Prefix() string {
	if c.Ledger.CommandPrefix == "" {
		return "/"
	}
	return c.Ledger.CommandPrefix
}

func (c *Config) View() int {
	if c.Ledger.DefaultView <= 0 {
		return 10
	}
	return c.Ledger.DefaultView
}
