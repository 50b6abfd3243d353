package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vi13x/wagerbot/internal/domain"
)

const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Backend is a ledger store the binaries own for their lifetime.
type Backend interface {
	Load(ctx context.Context) (*domain.Ledger, error)
	Save(ctx context.Context, l *domain.Ledger) error
	Path() string
	Close() error
}

// Close is a no-op; FileDB holds no handles between operations.
func (db *FileDB) Close() error { return nil }

// Open returns the backend named by driver.
func Open(driver, path string, vocab domain.Vocabulary) (Backend, error) {
	switch driver {
	case DriverFile, "":
		return OpenFileDB(path, vocab)
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
		return OpenSQLiteDB(path, vocab)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
