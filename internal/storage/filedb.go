package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/vi13x/wagerbot/internal/domain"
)

// FileDB keeps the ledger as a single JSON document. Nothing is cached:
// every Load reads the file and every Save rewrites it.
type FileDB struct {
	path  string
	vocab domain.Vocabulary
}

func OpenFileDB(path string, vocab domain.Vocabulary) (*FileDB, error) {
	if vocab == nil {
		vocab = domain.DefaultVocabulary()
	}
	if err := vocab.Check(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	return &FileDB{path: path, vocab: vocab}, nil
}

func (db *FileDB) Path() string { return db.path }

// Load returns an empty ledger when the file is missing or empty.
func (db *FileDB) Load(ctx context.Context) (*domain.Ledger, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.ReadError(db.path, err)
	}
	data, err := os.ReadFile(db.path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.NewLedger(), nil
	}
	if err != nil {
		return nil, domain.ReadError(db.path, err)
	}
	if len(data) == 0 {
		return domain.NewLedger(), nil
	}
	l, err := decodeLedger(data, db.vocab)
	if err != nil {
		return nil, &domain.CorruptStoreError{Path: db.path, Reason: "decode ledger", Err: err}
	}
	return l, nil
}

// Save replaces the file contents through a temporary file and a rename, so a
// failed write leaves the previous ledger in place.
func (db *FileDB) Save(ctx context.Context, l *domain.Ledger) error {
	if err := ctx.Err(); err != nil {
		return domain.WriteError(db.path, err)
	}
	data, err := encodeLedger(l, db.vocab)
	if err != nil {
		return domain.WriteError(db.path, err)
	}
	if err := writeFileAtomic(db.path, data); err != nil {
		return domain.WriteError(db.path, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating temporary ledger file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary ledger file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary ledger file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary ledger file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming ledger file into place: %w", err)
	}

	// Make the rename itself durable.
	if err := syncDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("syncing ledger directory: %w", err)
	}
	return nil
}

// Windows cannot fsync a directory handle.
var syncDir = func(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	dir, err := os.Open(path)
	if err != nil {
		return err
	}
	if err := dir.Sync(); err != nil {
		dir.Close()
		return err
	}
	return dir.Close()
}
