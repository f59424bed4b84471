package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/telephonist/pkg/contact"
)

// Schema is the SQL DDL for the contact tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
//
// The position columns fix directory order and number preference.
const Schema = `
CREATE TABLE IF NOT EXISTS contacts (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    position   BIGSERIAL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_contacts_position ON contacts(position);

CREATE TABLE IF NOT EXISTS contact_numbers (
    contact_id TEXT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
    position   INT  NOT NULL,
    number     TEXT NOT NULL,
    PRIMARY KEY (contact_id, position)
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] on the given connection or pool.
// The caller is responsible for calling [PostgresStore.Migrate].
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPool connects to dsn and verifies the connection.
func OpenPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("directory: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("directory: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("directory: ping: %w", err)
	}
	return pool, nil
}

// Migrate executes the [Schema] DDL.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("directory: migrate: %w", err)
	}
	return nil
}

// Lookup implements [contact.Directory]. It returns every contact ordered by
// insertion.
func (s *PostgresStore) Lookup(ctx context.Context, nameQuery string) ([]contact.Entry, error) {
	const query = `SELECT id, name FROM contacts ORDER BY position`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("directory: lookup: %w", err)
	}
	defer rows.Close()

	var entries []contact.Entry
	for rows.Next() {
		var e contact.Entry
		if err := rows.Scan(&e.ID, &e.DisplayName); err != nil {
			return nil, fmt.Errorf("directory: lookup scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: lookup: %w", err)
	}
	return entries, nil
}

// NumbersOf implements [contact.Directory]. Unknown entries have no numbers.
func (s *PostgresStore) NumbersOf(ctx context.Context, e contact.Entry) ([]string, error) {
	const query = `SELECT number FROM contact_numbers WHERE contact_id = $1 ORDER BY position`

	rows, err := s.db.Query(ctx, query, e.ID)
	if err != nil {
		return nil, fmt.Errorf("directory: numbers of %q: %w", e.ID, err)
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("directory: numbers scan: %w", err)
		}
		numbers = append(numbers, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: numbers of %q: %w", e.ID, err)
	}
	return numbers, nil
}

// Add implements [Store.Add]. The contact and its numbers are written in one
// statement.
func (s *PostgresStore) Add(ctx context.Context, c Contact) (Contact, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	const query = `
		WITH inserted AS (
			INSERT INTO contacts (id, name) VALUES ($1, $2)
			RETURNING id
		)
		INSERT INTO contact_numbers (contact_id, position, number)
		SELECT inserted.id, n.ord, n.number
		FROM inserted, unnest($3::text[]) WITH ORDINALITY AS n(number, ord)`

	if _, err := s.db.Exec(ctx, query, c.ID, c.Name, emptySlice(c.Numbers)); err != nil {
		if isDuplicateKeyError(err) {
			return Contact{}, fmt.Errorf("directory: add %q: %w", c.ID, ErrDuplicateID)
		}
		return Contact{}, fmt.Errorf("directory: add: %w", err)
	}
	return c, nil
}

// Get implements [Store.Get].
func (s *PostgresStore) Get(ctx context.Context, id string) (Contact, error) {
	const query = `
		SELECT c.id, c.name,
		       COALESCE(array_agg(n.number ORDER BY n.position) FILTER (WHERE n.number IS NOT NULL), '{}')
		FROM contacts c
		LEFT JOIN contact_numbers n ON n.contact_id = c.id
		WHERE c.id = $1
		GROUP BY c.id, c.name`

	var c Contact
	err := s.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Numbers)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contact{}, ErrNotFound
		}
		return Contact{}, fmt.Errorf("directory: get %q: %w", id, err)
	}
	return c, nil
}

// List implements [Store.List].
func (s *PostgresStore) List(ctx context.Context) ([]Contact, error) {
	const query = `
		SELECT c.id, c.name,
		       COALESCE(array_agg(n.number ORDER BY n.position) FILTER (WHERE n.number IS NOT NULL), '{}')
		FROM contacts c
		LEFT JOIN contact_numbers n ON n.contact_id = c.id
		GROUP BY c.id, c.name, c.position
		ORDER BY c.position`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("directory: list: %w", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Numbers); err != nil {
			return nil, fmt.Errorf("directory: list scan: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: list: %w", err)
	}
	return contacts, nil
}

// Remove implements [Store.Remove]. Numbers go with the contact.
func (s *PostgresStore) Remove(ctx context.Context, id string) error {
	const query = `DELETE FROM contacts WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("directory: remove %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// emptySlice returns s if non-nil, otherwise an empty non-nil slice so the
// array parameter is '{}' rather than NULL.
func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// isDuplicateKeyError checks whether a PostgreSQL error is a unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
