package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vi13x/wagerbot/internal/domain"
)

func sampleLedger() *domain.Ledger {
	l := domain.NewLedger()
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	for _, w := range []domain.Wager{
		{Proposer: "alice", Status: domain.StatusOpen, Statement: "rain tomorrow", CreatedAt: created},
		{Proposer: "alice", Acceptor: "bob", Status: domain.StatusPending, Statement: `quotes "and" <tags>`},
		{Proposer: "carol", Acceptor: "alice", Status: domain.StatusResolved, Statement: "x"},
		{Proposer: "bob", Status: domain.StatusStanding, Statement: "standing offer"},
	} {
		w.ID = l.Allocate()
		l.Entries[w.ID] = &w
	}
	// id 5 allocated then removed
	l.Allocate()
	return l
}

func openTestFileDB(t *testing.T) *FileDB {
	t.Helper()
	db, err := OpenFileDB(filepath.Join(t.TempDir(), "data", "bet_log.json"), nil)
	require.NoError(t, err)
	return db
}

func TestFileDBMissingFileLoadsEmptyLedger(t *testing.T) {
	db := openTestFileDB(t)
	l, err := db.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.WagerID(1), l.NextID)
	assert.Empty(t, l.Entries)
}

func TestFileDBRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestFileDB(t)
	want := sampleLedger()
	require.NoError(t, db.Save(ctx, want))

	got, err := db.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileDBSaveOfLoadIsByteIdentical(t *testing.T) {
	ctx := context.Background()
	db := openTestFileDB(t)
	require.NoError(t, db.Save(ctx, sampleLedger()))
	before, err := os.ReadFile(db.Path())
	require.NoError(t, err)

	l, err := db.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, db.Save(ctx, l))
	after, err := os.ReadFile(db.Path())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	_, err = os.Stat(db.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file should be renamed away")
}

func TestFileDBLayout(t *testing.T) {
	ctx := context.Background()
	db := openTestFileDB(t)
	l := domain.NewLedger()
	id := l.Allocate()
	l.Entries[id] = &domain.Wager{ID: id, Proposer: "alice", Status: domain.StatusOpen, Statement: "rain"}
	require.NoError(t, db.Save(ctx, l))

	data, err := os.ReadFile(db.Path())
	require.NoError(t, err)
	assert.Equal(t, `{
  "next_id": 2,
  "bet_1": {
    "bet_id": 1,
    "bidder": "alice",
    "status": "open",
    "statement": "rain"
  }
}
`, string(data))
}

func TestFileDBVocabulary(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bet_log.json")
	vocab := domain.Vocabulary{domain.StatusOpen: "Open", domain.StatusPending: "Pending"}
	db, err := OpenFileDB(path, vocab)
	require.NoError(t, err)
	require.NoError(t, db.Save(ctx, sampleLedger()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status": "Open"`)
	assert.Contains(t, string(data), `"status": "Pending"`)

	l, err := db.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, l.Entries[1].Status)

	plain, err := OpenFileDB(path, nil)
	require.NoError(t, err)
	_, err = plain.Load(ctx)
	assert.True(t, domain.IsCorrupt(err), "tokens from another vocabulary are not understood: %v", err)
}

func TestFileDBCorrupt(t *testing.T) {
	cases := map[string]string{
		"not json":           `{"next_id": 2,`,
		"missing next_id":    `{"bet_1": {"bet_id": 1, "bidder": "a", "status": "open", "statement": "s"}}`,
		"bad next_id":        `{"next_id": "two"}`,
		"foreign key":        `{"next_id": 1, "bets": {}}`,
		"key id mismatch":    `{"next_id": 3, "bet_1": {"bet_id": 2, "bidder": "a", "status": "open", "statement": "s"}}`,
		"unknown status":     `{"next_id": 2, "bet_1": {"bet_id": 1, "bidder": "a", "status": "won", "statement": "s"}}`,
		"unknown field":      `{"next_id": 2, "bet_1": {"bet_id": 1, "bidder": "a", "status": "open", "statement": "s", "odds": 3}}`,
		"id beyond next_id":  `{"next_id": 1, "bet_1": {"bet_id": 1, "bidder": "a", "status": "open", "statement": "s"}}`,
		"open with seller":   `{"next_id": 2, "bet_1": {"bet_id": 1, "bidder": "a", "seller": "b", "status": "open", "statement": "s"}}`,
		"missing bidder":     `{"next_id": 2, "bet_1": {"bet_id": 1, "status": "open", "statement": "s"}}`,
		"pending w/o seller": `{"next_id": 2, "bet_1": {"bet_id": 1, "bidder": "a", "status": "pending", "statement": "s"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			db := openTestFileDB(t)
			require.NoError(t, os.WriteFile(db.Path(), []byte(body), 0o600))
			_, err := db.Load(context.Background())
			require.Error(t, err)
			assert.True(t, domain.IsCorrupt(err), "got %v", err)
		})
	}
}

func TestFileDBIOErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "bet_log.json")
	require.NoError(t, os.Mkdir(path, 0o755))
	db, err := OpenFileDB(path, nil)
	require.NoError(t, err)

	_, err = db.Load(ctx)
	assert.True(t, domain.IsStoreReadError(err), "got %v", err)

	err = db.Save(ctx, domain.NewLedger())
	assert.True(t, domain.IsStoreWriteError(err), "got %v", err)
	_, statErr := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileDBExpiredContext(t *testing.T) {
	db := openTestFileDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := db.Save(ctx, domain.NewLedger())
	assert.True(t, domain.IsStoreWriteError(err))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = db.Load(ctx)
	assert.True(t, domain.IsStoreReadError(err))
	_, statErr := os.Stat(db.Path())
	assert.True(t, os.IsNotExist(statErr), "nothing may be written after cancellation")
}

func TestFileDBDirectorySyncFailure(t *testing.T) {
	db := openTestFileDB(t)
	syncErr := errors.New("input/output error")
	orig := syncDir
	syncDir = func(string) error { return syncErr }
	t.Cleanup(func() { syncDir = orig })

	err := db.Save(context.Background(), sampleLedger())
	assert.True(t, domain.IsStoreWriteError(err), "got %v", err)
	assert.ErrorIs(t, err, syncErr)
}
