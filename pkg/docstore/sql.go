package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Dialect selects placeholder syntax and duplicate-key detection
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// DriverName returns the database/sql driver registered for d
func (d Dialect) DriverName() string {
	if d == SQLite {
		return "sqlite3"
	}
	return "postgres"
}

func (d Dialect) placeholder(n int) string {
	if d == SQLite {
		return "?"
	}
	return "$" + strconv.Itoa(n)
}

func (d Dialect) isDuplicate(err error) bool {
	switch d {
	case Postgres:
		var pqErr *pq.Error
		return errors.As(err, &pqErr) && pqErr.Code == "23505"
	case SQLite:
		var liteErr sqlite3.Error
		return errors.As(err, &liteErr) && liteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// SQLCollection stores documents as JSON rows in a single table
type SQLCollection[T Entity] struct {
	db      *sql.DB
	dialect Dialect
	table   string
	now     func() time.Time
}

// NewSQLCollection creates a collection backed by table
func NewSQLCollection[T Entity](db *sql.DB, dialect Dialect, table string) (*SQLCollection[T], error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}
	return &SQLCollection[T]{
		db:      db,
		dialect: dialect,
		table:   table,
		now:     time.Now,
	}, nil
}

// Migrate creates the backing table and scope index if missing
func (c *SQLCollection[T]) Migrate(ctx context.Context) error {
	bigint := "BIGINT"
	if c.dialect == SQLite {
		bigint = "INTEGER"
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL DEFAULT '',
		version %s NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`, c.table, bigint)
	if _, err := c.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table %s: %w", c.table, err)
	}

	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_scope_idx ON %s (scope)`, c.table, c.table)
	if _, err := c.db.ExecContext(ctx, idx); err != nil {
		return fmt.Errorf("failed to create scope index on %s: %w", c.table, err)
	}
	return nil
}

func (c *SQLCollection[T]) p(n int) string {
	return c.dialect.placeholder(n)
}

func (c *SQLCollection[T]) decode(version int64, body string) (T, error) {
	var doc T
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return doc, fmt.Errorf("failed to decode document: %w", err)
	}
	doc.SetVersion(version)
	return doc, nil
}

// Get loads a document by id
func (c *SQLCollection[T]) Get(ctx context.Context, id string) (T, error) {
	query := fmt.Sprintf(`SELECT version, body FROM %s WHERE id = %s`, c.table, c.p(1))

	var version int64
	var body string
	err := c.db.QueryRowContext(ctx, query, id).Scan(&version, &body)
	if err == sql.ErrNoRows {
		var zero T
		return zero, ErrNotFound
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to get document: %w", err)
	}
	return c.decode(version, body)
}

// Insert stores doc at version 1
func (c *SQLCollection[T]) Insert(ctx context.Context, doc T) error {
	prev := doc.GetVersion()
	doc.SetVersion(1)
	body, err := json.Marshal(doc)
	if err != nil {
		doc.SetVersion(prev)
		return fmt.Errorf("failed to encode document: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, scope, version, body, created_at, updated_at) VALUES (%s, %s, %s, %s, %s, %s)`,
		c.table, c.p(1), c.p(2), c.p(3), c.p(4), c.p(5), c.p(6))
	now := c.now().UTC()
	if _, err := c.db.ExecContext(ctx, query, doc.GetID(), doc.GetScope(), int64(1), string(body), now, now); err != nil {
		doc.SetVersion(prev)
		if c.dialect.isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// Replace overwrites doc where the stored version still matches
func (c *SQLCollection[T]) Replace(ctx context.Context, doc T) error {
	expected := doc.GetVersion()
	doc.SetVersion(expected + 1)
	body, err := json.Marshal(doc)
	if err != nil {
		doc.SetVersion(expected)
		return fmt.Errorf("failed to encode document: %w", err)
	}

	query := fmt.Sprintf(`UPDATE %s SET scope = %s, version = %s, body = %s, updated_at = %s WHERE id = %s AND version = %s`,
		c.table, c.p(1), c.p(2), c.p(3), c.p(4), c.p(5), c.p(6))
	result, err := c.db.ExecContext(ctx, query, doc.GetScope(), expected+1, string(body), c.now().UTC(), doc.GetID(), expected)
	if err != nil {
		doc.SetVersion(expected)
		return fmt.Errorf("failed to replace document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		doc.SetVersion(expected)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		doc.SetVersion(expected)
		return c.missOrConflict(ctx, doc.GetID())
	}
	return nil
}

func (c *SQLCollection[T]) missOrConflict(ctx context.Context, id string) error {
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE id = %s`, c.table, c.p(1))
	var one int
	err := c.db.QueryRowContext(ctx, query, id).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check document: %w", err)
	}
	return ErrConflict
}

// Delete removes a document
func (c *SQLCollection[T]) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = %s`, c.table, c.p(1))
	result, err := c.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns documents in scope ordered by creation time
func (c *SQLCollection[T]) List(ctx context.Context, scope string) ([]T, error) {
	query := fmt.Sprintf(`SELECT version, body FROM %s`, c.table)
	var args []any
	if scope != "" {
		query += fmt.Sprintf(` WHERE scope = %s`, c.p(1))
		args = append(args, scope)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]T, 0)
	for rows.Next() {
		var version int64
		var body string
		if err := rows.Scan(&version, &body); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc, err := c.decode(version, body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

// DeleteScope removes every document in scope
func (c *SQLCollection[T]) DeleteScope(ctx context.Context, scope string) (int64, error) {
	if scope == "" {
		return 0, fmt.Errorf("scope is required")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE scope = %s`, c.table, c.p(1))
	result, err := c.db.ExecContext(ctx, query, scope)
	if err != nil {
		return 0, fmt.Errorf("failed to delete scope: %w", err)
	}
	return result.RowsAffected()
}
