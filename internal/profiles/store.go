// Package profiles stores profile documents in PostgreSQL.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ecoscope/ecoscope/internal/session"
)

// DB is the subset of pgxpool.Pool used by the store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OrphanAccount is an account that has no profile row.
type OrphanAccount struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// PGStore implements session.ProfileStore.
type PGStore struct {
	db DB
}

// NewPGStore constructs the store.
func NewPGStore(db DB) *PGStore {
	return &PGStore{db: db}
}

const upsertProfile = `INSERT INTO profiles (uid, first_name, last_name, email, phone_number, preferred_language, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (uid) DO UPDATE SET
	first_name = EXCLUDED.first_name,
	last_name = EXCLUDED.last_name,
	email = EXCLUDED.email,
	phone_number = EXCLUDED.phone_number,
	preferred_language = EXCLUDED.preferred_language,
	created_at = EXCLUDED.created_at,
	updated_at = EXCLUDED.updated_at`

// Write replaces the whole document stored under id.
func (s *PGStore) Write(ctx context.Context, id string, doc session.ProfileDocument) error {
	_, err := s.db.Exec(ctx, upsertProfile,
		id, doc.FirstName, doc.LastName, doc.Email, doc.PhoneNumber,
		doc.PreferredLanguage, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("profiles: write: %w", err)
	}
	return nil
}

// Read returns the document stored under id or session.ErrProfileNotFound.
func (s *PGStore) Read(ctx context.Context, id string) (session.ProfileDocument, error) {
	var doc session.ProfileDocument
	err := s.db.QueryRow(ctx,
		`SELECT uid, first_name, last_name, email, phone_number, preferred_language, created_at, updated_at
FROM profiles WHERE uid = $1`, id).
		Scan(&doc.UID, &doc.FirstName, &doc.LastName, &doc.Email, &doc.PhoneNumber,
			&doc.PreferredLanguage, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.ProfileDocument{}, session.ErrProfileNotFound
		}
		return session.ProfileDocument{}, fmt.Errorf("profiles: read: %w", err)
	}
	return doc, nil
}

// ListOrphanAccounts returns local accounts without a profile, oldest first.
func (s *PGStore) ListOrphanAccounts(ctx context.Context, limit int) ([]OrphanAccount, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx,
		`SELECT a.id::text, a.email, a.created_at FROM accounts a
LEFT JOIN profiles p ON p.uid = a.id::text
WHERE p.uid IS NULL
ORDER BY a.created_at
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("profiles: list orphans: %w", err)
	}
	defer rows.Close()

	var out []OrphanAccount
	for rows.Next() {
		var o OrphanAccount
		if err := rows.Scan(&o.ID, &o.Email, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("profiles: scan orphan: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("profiles: list orphans: %w", err)
	}
	return out, nil
}

var _ session.ProfileStore = (*PGStore)(nil)
