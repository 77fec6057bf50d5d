package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/neomorfeo/statusgate/internal/domain"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Compile-time check: EntityRepository implements domain.EntityRepository.
var _ domain.EntityRepository = (*EntityRepository)(nil)

// Outbox enqueues a transition event inside the transaction that commits it.
type Outbox interface {
	EnqueueTx(ctx context.Context, tx *sql.Tx, event domain.EntityTransitioned) error
}

// EntityRepository implements domain.EntityRepository using SQLite.
type EntityRepository struct {
	db     *sql.DB
	outbox Outbox
}

// New opens a SQLite database, runs migrations, and returns a ready repository.
func New(dataSourceName string) (*EntityRepository, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := Configure(db); err != nil {
		return nil, err
	}

	return NewFromDB(db)
}

// Configure applies the connection settings the repository and River rely
// on. Call it on any *sql.DB opened outside New.
func Configure(db *sql.DB) error {
	// One connection: in-memory databases are per connection, and writers
	// serialize anyway. This also avoids SQLITE_BUSY with River sharing the DB.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("applying %q: %w", p, err)
		}
	}
	return nil
}

// NewFromDB wraps an existing database connection, runs migrations, and returns a ready repository.
// Use this when the *sql.DB has been pre-configured (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*EntityRepository, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &EntityRepository{db: db}, nil
}

// UseOutbox makes CommitTransition enqueue events through o. Without an
// outbox, transitions are committed without emitting events.
func (r *EntityRepository) UseOutbox(o Outbox) {
	r.outbox = o
}

// Close closes the underlying database connection.
func (r *EntityRepository) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for use by other adapters (e.g., river).
func (r *EntityRepository) DB() *sql.DB {
	return r.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

const entityColumns = `id, tenant_id, entity_type, status, version, amount, currency, reference, attributes, created_at, updated_at`

func (r *EntityRepository) Create(ctx context.Context, e domain.Entity) error {
	attrs, err := encodeMap(e.Attributes)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO entities (`+entityColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TenantID, string(e.Type), string(e.Status), e.Version,
		e.Amount.String(), e.Currency, e.Reference, attrs,
		e.CreatedAt.UTC().Format(timeFormat),
		e.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEntityExists
		}
		return &domain.PersistenceError{Op: "inserting entity", Err: err}
	}
	return nil
}

func (r *EntityRepository) Get(ctx context.Context, tenantID, id string) (domain.Entity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE tenant_id = ? AND id = ?`,
		tenantID, id,
	)
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Entity{}, domain.ErrEntityNotFound
		}
		return domain.Entity{}, &domain.PersistenceError{Op: "scanning entity", Err: err}
	}
	return e, nil
}

func (r *EntityRepository) List(ctx context.Context, tenantID string, filter domain.ListFilter) ([]domain.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE tenant_id = ?`
	args := []any{tenantID}

	if filter.Type != nil {
		query += ` AND entity_type = ?`
		args = append(args, string(*filter.Type))
	}

	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*filter.Status))
	}

	query += ` ORDER BY created_at DESC, rowid DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += ` LIMIT -1`
	}

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "listing entities", Err: err}
	}
	defer rows.Close()

	var entities []domain.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "scanning entity row", Err: err}
		}
		entities = append(entities, e)
	}

	return entities, rows.Err()
}

func (r *EntityRepository) Stats(ctx context.Context, tenantID string, entityType domain.EntityType) ([]domain.StatusStat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, amount FROM entities WHERE tenant_id = ? AND entity_type = ? ORDER BY status`,
		tenantID, string(entityType),
	)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "querying stats", Err: err}
	}
	defer rows.Close()

	// Amounts are summed in Go to keep decimal precision.
	var stats []domain.StatusStat
	index := map[domain.Status]int{}
	for rows.Next() {
		var status, amount string
		if err := rows.Scan(&status, &amount); err != nil {
			return nil, &domain.PersistenceError{Op: "scanning stats row", Err: err}
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parsing amount %q: %w", amount, err)
		}

		i, ok := index[domain.Status(status)]
		if !ok {
			i = len(stats)
			index[domain.Status(status)] = i
			stats = append(stats, domain.StatusStat{Status: domain.Status(status), Amount: decimal.Zero})
		}
		stats[i].Count++
		stats[i].Amount = stats[i].Amount.Add(d)
	}

	return stats, rows.Err()
}

func (r *EntityRepository) History(ctx context.Context, tenantID, entityID string) ([]domain.TransitionRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, entity_type, entity_id, from_state, to_state, actor_id, reason, payload, created_at
		 FROM transition_records WHERE tenant_id = ? AND entity_id = ? ORDER BY seq`,
		tenantID, entityID,
	)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "querying history", Err: err}
	}
	defer rows.Close()

	var records []domain.TransitionRecord
	for rows.Next() {
		var rec domain.TransitionRecord
		var entityType, from, to, payload, createdAt string
		if err := rows.Scan(&rec.ID, &rec.TenantID, &entityType, &rec.EntityID, &from, &to,
			&rec.ActorID, &rec.Reason, &payload, &createdAt); err != nil {
			return nil, &domain.PersistenceError{Op: "scanning record row", Err: err}
		}
		rec.EntityType = domain.EntityType(entityType)
		rec.From = domain.Status(from)
		rec.To = domain.Status(to)
		rec.Timestamp, _ = time.Parse(timeFormat, createdAt)
		if rec.Payload, err = decodeMap(payload); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// CommitTransition performs the compare-and-swap update, the audit insert
// and the outbox enqueue in one transaction.
func (r *EntityRepository) CommitTransition(ctx context.Context, c domain.Change) error {
	attrs, err := encodeMap(c.After.Attributes)
	if err != nil {
		return err
	}
	payload, err := encodeMap(c.Record.Payload)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.PersistenceError{Op: "beginning transaction", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`UPDATE entities SET status = ?, version = ?, attributes = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ? AND status = ? AND version = ?`,
		string(c.After.Status), c.After.Version, attrs, c.After.UpdatedAt.UTC().Format(timeFormat),
		c.Before.TenantID, c.Before.ID, string(c.Before.Status), c.Before.Version,
	)
	if err != nil {
		return &domain.PersistenceError{Op: "updating entity status", Err: err}
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return &domain.PersistenceError{Op: "checking rows affected", Err: err}
	}
	if rows == 0 {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM entities WHERE tenant_id = ? AND id = ?`,
			c.Before.TenantID, c.Before.ID,
		).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrEntityNotFound
		}
		if err != nil {
			return &domain.PersistenceError{Op: "checking entity", Err: err}
		}
		return &domain.ConcurrentModificationError{
			EntityID: c.Before.ID,
			Expected: c.Before.Status,
			Version:  c.Before.Version,
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transition_records (id, tenant_id, entity_type, entity_id, from_state, to_state, actor_id, reason, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Record.ID, c.Record.TenantID, string(c.Record.EntityType), c.Record.EntityID,
		string(c.Record.From), string(c.Record.To), c.Record.ActorID, c.Record.Reason,
		payload, c.Record.Timestamp.UTC().Format(timeFormat),
	)
	if err != nil {
		return &domain.PersistenceError{Op: "inserting transition record", Err: err}
	}

	if r.outbox != nil {
		if err := r.outbox.EnqueueTx(ctx, tx, c.Event); err != nil {
			return &domain.PersistenceError{Op: "enqueuing transition event", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &domain.PersistenceError{Op: "committing transition", Err: err}
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(s scanner) (domain.Entity, error) {
	var e domain.Entity
	var entityType, status, amount, attrs, createdAt, updatedAt string

	err := s.Scan(&e.ID, &e.TenantID, &entityType, &status, &e.Version,
		&amount, &e.Currency, &e.Reference, &attrs, &createdAt, &updatedAt)
	if err != nil {
		return domain.Entity{}, err
	}

	e.Type = domain.EntityType(entityType)
	e.Status = domain.Status(status)
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.Entity{}, fmt.Errorf("parsing amount %q: %w", amount, err)
	}
	if e.Attributes, err = decodeMap(attrs); err != nil {
		return domain.Entity{}, err
	}
	e.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	e.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return e, nil
}

func encodeMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding attributes: %w", err)
	}
	return string(b), nil
}

func decodeMap(s string) (map[string]string, error) {
	m := map[string]string{}
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("decoding attributes: %w", err)
	}
	return m, nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
