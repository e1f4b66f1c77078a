// Package store persists encoded receipt containers in sqlite, keyed by
// session ID. Receipts survive process restarts, so a session proven once
// can be composed, wrapped or re-verified later without re-proving.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/claim"
	"github.com/kestrel-zk/kestrel-zkvm/internal/kestrel-zkvm/receipt"
)

// ErrNotFound is returned when no receipt exists under the given ID.
var ErrNotFound = errors.New("store: receipt not found")

const schema = `
CREATE TABLE IF NOT EXISTS receipts (
	id           TEXT PRIMARY KEY,
	kind         INTEGER NOT NULL,
	claim_digest TEXT NOT NULL,
	container    BLOB NOT NULL,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS receipts_kind ON receipts(kind);
CREATE INDEX IF NOT EXISTS receipts_claim ON receipts(claim_digest);
`

// Entry describes a stored receipt without its container payload.
type Entry struct {
	ID          uuid.UUID
	Kind        receipt.Kind
	ClaimDigest claim.Digest
	CreatedAt   time.Time
}

// Store is a sqlite-backed receipt store. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a store at path. Use ":memory:" for an
// ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open receipt store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize receipt store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Put encodes and stores a receipt under the given ID, replacing any
// previous receipt with that ID.
func (s *Store) Put(ctx context.Context, id uuid.UUID, r *receipt.Receipt) error {
	container, err := r.Encode()
	if err != nil {
		return fmt.Errorf("store receipt %s: %w", id, err)
	}
	c, err := r.Claim()
	if err != nil {
		return fmt.Errorf("store receipt %s: %w", id, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO receipts (id, kind, claim_digest, container, created_at) VALUES (?, ?, ?, ?, ?)`,
		id.String(), int(r.Kind), c.Digest().String(), container, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store receipt %s: %w", id, err)
	}
	return nil
}

// Get loads and decodes the receipt stored under id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*receipt.Receipt, error) {
	var container []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT container FROM receipts WHERE id = ?`, id.String()).Scan(&container)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load receipt %s: %w", id, err)
	}
	r, err := receipt.Decode(container)
	if err != nil {
		return nil, fmt.Errorf("load receipt %s: %w", id, err)
	}
	return r, nil
}

// List returns entries for all stored receipts, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, claim_digest, created_at FROM receipts ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			idStr     string
			kind      int
			digestStr string
			created   int64
		)
		if err := rows.Scan(&idStr, &kind, &digestStr, &created); err != nil {
			return nil, fmt.Errorf("list receipts: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("list receipts: corrupt ID %q: %w", idStr, err)
		}
		var digest claim.Digest
		if err := digest.UnmarshalText([]byte(digestStr)); err != nil {
			return nil, fmt.Errorf("list receipts: corrupt claim digest %q: %w", digestStr, err)
		}
		entries = append(entries, Entry{
			ID:          id,
			Kind:        receipt.Kind(kind),
			ClaimDigest: digest,
			CreatedAt:   time.Unix(created, 0),
		})
	}
	return entries, rows.Err()
}

// Delete removes the receipt stored under id.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM receipts WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete receipt %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete receipt %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
