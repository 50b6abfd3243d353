package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vi13x/wagerbot/internal/domain"
	"github.com/vi13x/wagerbot/internal/storage"
)

const backupPrefix = "bet_log-"

// Snapshot returns a copy of the whole ledger.
func (s *Ledger) Snapshot(ctx context.Context) (*domain.Ledger, error) {
	var out *domain.Ledger
	err := s.run(ctx, "snapshot", func(l *domain.Ledger) (bool, error) {
		out = l.Clone()
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Restore replaces the stored ledger with l. The replacement must be valid
// and must not move next_id backwards, so ids already handed out stay unused.
func (s *Ledger) Restore(ctx context.Context, l *domain.Ledger) error {
	if err := l.Validate(); err != nil {
		return err
	}
	var nextID domain.WagerID
	err := s.run(ctx, "restore", func(cur *domain.Ledger) (bool, error) {
		next := l.Clone()
		if next.NextID < cur.NextID {
			next.NextID = cur.NextID
		}
		*cur = *next
		nextID = next.NextID
		return true, nil
	})
	if err != nil {
		return err
	}
	s.log.Info("ledger restored", "op", "restore", "bets", len(l.Entries), "next_id", nextID)
	return nil
}

// Archive exports and backs up the ledger for operators.
type Archive struct {
	ledger *Ledger
	vocab  domain.Vocabulary
	dir    string
}

func NewArchive(ledger *Ledger, vocab domain.Vocabulary, backupDir string) *Archive {
	if vocab == nil {
		vocab = domain.DefaultVocabulary()
	}
	return &Archive{ledger: ledger, vocab: vocab, dir: backupDir}
}

// ExportCSV writes wagers in id order. An empty filter writes all of them.
func (a *Archive) ExportCSV(ctx context.Context, w io.Writer, filter domain.Status) error {
	if filter != "" && !filter.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownStatus, filter)
	}
	l, err := a.ledger.Snapshot(ctx)
	if err != nil {
		return err
	}
	ids := make([]domain.WagerID, 0, len(l.Entries))
	for id, e := range l.Entries {
		if filter == "" || e.Status == filter {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"bet_id", "bidder", "seller", "status", "statement", "created_at"}); err != nil {
		return err
	}
	for _, id := range ids {
		e := l.Entries[id]
		created := ""
		if !e.CreatedAt.IsZero() {
			created = e.CreatedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			strconv.FormatInt(int64(e.ID), 10),
			string(e.Proposer),
			string(e.Acceptor),
			a.vocab.Token(e.Status),
			e.Statement,
			created,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Backup writes the current ledger to a new timestamped file in the backup
// directory and returns its name.
func (a *Archive) Backup(ctx context.Context) (string, error) {
	l, err := a.ledger.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	name := backupPrefix + a.ledger.now().UTC().Format("20060102T150405.000000000Z") + ".json"
	db, err := storage.OpenFileDB(filepath.Join(a.dir, name), a.vocab)
	if err != nil {
		return "", err
	}
	if err := db.Save(ctx, l); err != nil {
		return "", err
	}
	a.ledger.log.Info("ledger backed up", "op", "backup", "file", db.Path())
	return name, nil
}

// Backups lists backup names, oldest first.
func (a *Archive) Backups() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.ReadError(a.dir, err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), backupPrefix) && strings.HasSuffix(e.Name(), ".json") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// RestoreBackup loads a backup by name and makes it the live ledger.
func (a *Archive) RestoreBackup(ctx context.Context, name string) error {
	if name == "" || filepath.Base(name) != name || !strings.HasPrefix(name, backupPrefix) {
		return fmt.Errorf("%w: backup %q", domain.ErrNotFound, name)
	}
	path := filepath.Join(a.dir, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: backup %q", domain.ErrNotFound, name)
		}
		return domain.ReadError(path, err)
	}
	db, err := storage.OpenFileDB(path, a.vocab)
	if err != nil {
		return err
	}
	l, err := db.Load(ctx)
	if err != nil {
		return err
	}
	return a.ledger.Restore(ctx, l)
}
