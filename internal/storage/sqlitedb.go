package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vi13x/wagerbot/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ledger_meta (
  key   TEXT PRIMARY KEY,
  value INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS wagers (
  bet_id     INTEGER PRIMARY KEY,
  bidder     TEXT NOT NULL,
  seller     TEXT,
  status     TEXT NOT NULL,
  statement  TEXT NOT NULL,
  created_at INTEGER
);`

// SQLiteDB stores the same ledger as FileDB in two tables. Save replaces the
// whole ledger inside one transaction.
type SQLiteDB struct {
	sqlDB *sql.DB
	name  string
	vocab domain.Vocabulary
}

func OpenSQLiteDB(path string, vocab domain.Vocabulary) (*SQLiteDB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	db, err := newSQLiteDB(sqlDB, cleanPath, vocab)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func newSQLiteDB(sqlDB *sql.DB, name string, vocab domain.Vocabulary) (*SQLiteDB, error) {
	if vocab == nil {
		vocab = domain.DefaultVocabulary()
	}
	if err := vocab.Check(); err != nil {
		return nil, err
	}
	return &SQLiteDB{sqlDB: sqlDB, name: name, vocab: vocab}, nil
}

func (s *SQLiteDB) Path() string { return s.name }

func (s *SQLiteDB) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLiteDB) Load(ctx context.Context) (*domain.Ledger, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.ReadError(s.name, err)
	}
	defer tx.Rollback()

	l := domain.NewLedger()
	var haveNext bool
	err = tx.QueryRowContext(ctx, `SELECT value FROM ledger_meta WHERE key = ?`, nextIDKey).Scan(&l.NextID)
	switch {
	case err == nil:
		haveNext = true
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, domain.ReadError(s.name, err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT bet_id, bidder, seller, status, statement, created_at FROM wagers`)
	if err != nil {
		return nil, domain.ReadError(s.name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id        int64
			bidder    string
			seller    sql.NullString
			token     string
			statement string
			created   sql.NullInt64
		)
		if err := rows.Scan(&id, &bidder, &seller, &token, &statement, &created); err != nil {
			return nil, domain.ReadError(s.name, err)
		}
		status, err := s.vocab.Parse(token)
		if err != nil {
			return nil, &domain.CorruptStoreError{Path: s.name, Reason: BetKey(domain.WagerID(id)), Err: err}
		}
		w := &domain.Wager{
			ID:        domain.WagerID(id),
			Proposer:  domain.ParticipantID(bidder),
			Acceptor:  domain.ParticipantID(seller.String),
			Status:    status,
			Statement: statement,
		}
		if created.Valid {
			w.CreatedAt = time.UnixMilli(created.Int64).UTC()
		}
		l.Entries[w.ID] = w
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ReadError(s.name, err)
	}

	if !haveNext {
		if len(l.Entries) > 0 {
			return nil, &domain.CorruptStoreError{Path: s.name, Reason: "missing " + nextIDKey}
		}
		return domain.NewLedger(), nil
	}
	if err := l.Validate(); err != nil {
		return nil, &domain.CorruptStoreError{Path: s.name, Reason: "validate ledger", Err: err}
	}
	return l, nil
}

func (s *SQLiteDB) Save(ctx context.Context, l *domain.Ledger) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WriteError(s.name, err)
	}
	if err := s.replace(ctx, tx, l); err != nil {
		_ = tx.Rollback()
		return domain.WriteError(s.name, err)
	}
	if err := tx.Commit(); err != nil {
		return domain.WriteError(s.name, err)
	}
	return nil
}

func (s *SQLiteDB) replace(ctx context.Context, tx *sql.Tx, l *domain.Ledger) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM wagers`); err != nil {
		return fmt.Errorf("clear wagers: %w", err)
	}
	for _, w := range l.Entries {
		var seller, created any
		if w.HasAcceptor() {
			seller = string(w.Acceptor)
		}
		if !w.CreatedAt.IsZero() {
			created = w.CreatedAt.UTC().UnixMilli()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO wagers (bet_id, bidder, seller, status, statement, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			int64(w.ID), string(w.Proposer), seller, s.vocab.Token(w.Status), w.Statement, created,
		)
		if err != nil {
			return fmt.Errorf("insert %s: %w", BetKey(w.ID), err)
		}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		nextIDKey, int64(l.NextID),
	)
	if err != nil {
		return fmt.Errorf("update %s: %w", nextIDKey, err)
	}
	return nil
}
