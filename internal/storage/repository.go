package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"defter/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an update or delete targets a missing row.
var ErrNotFound = errors.New("record not found")

// SQLiteRepository is the record store for entities, transactions and
// settings. Every mutation emits a change notification through the attached
// Notifier after the write commits.
type SQLiteRepository struct {
	db       *sql.DB
	notifier *Notifier
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:       db,
		notifier: NewNotifier(),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Notifier exposes the change-notification hub so callers can subscribe.
func (r *SQLiteRepository) Notifier() *Notifier {
	return r.notifier
}

// ---- entities ----

func (r *SQLiteRepository) InsertEntity(ctx context.Context, e core.Entity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO entities (id, name, role, contact, note, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, nullString(e.Role), nullString(e.Contact), nullString(e.Note), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}

	slog.InfoContext(ctx, "Entity saved", "id", e.ID, "name", e.Name)
	r.notifier.Notify(TableEntities, OpInsert, e.ID)
	return nil
}

func (r *SQLiteRepository) ListEntities(ctx context.Context) ([]core.Entity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(role,''), COALESCE(contact,''), COALESCE(note,''), created_at
		 FROM entities ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []core.Entity
	for rows.Next() {
		var e core.Entity
		if err := rows.Scan(&e.ID, &e.Name, &e.Role, &e.Contact, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetEntity(ctx context.Context, id string) (core.Entity, error) {
	var e core.Entity
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, COALESCE(role,''), COALESCE(contact,''), COALESCE(note,''), created_at
		 FROM entities WHERE id = ?`, id).
		Scan(&e.ID, &e.Name, &e.Role, &e.Contact, &e.Note, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entity{}, ErrNotFound
	}
	if err != nil {
		return core.Entity{}, fmt.Errorf("get entity: %w", err)
	}
	return e, nil
}

// EntityNames returns the id -> display-name map used to resolve references
// during aggregation. Deleted entities simply stay absent from the map.
func (r *SQLiteRepository) EntityNames(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM entities`)
	if err != nil {
		return nil, fmt.Errorf("list entity names: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan entity name: %w", err)
		}
		out[id] = name
	}
	return out, rows.Err()
}

// DeleteEntity removes the entity only. Transactions keep their reference;
// no cascade, dangling ids resolve to "(none)" at display time.
func (r *SQLiteRepository) DeleteEntity(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Entity deleted", "id", id)
	r.notifier.Notify(TableEntities, OpDelete, id)
	return nil
}

// ---- transactions ----

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, tx_date, amount, kind, open_ended, entity_id, description, currency, raw_amount, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, nullDate(t.Date), t.Amount, string(t.Kind), boolToInt(t.OpenEnded),
		nullString(t.EntityID), nullString(t.Description), nullString(string(t.Unit)), t.RawAmount, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID, "kind", string(t.Kind), "amount", t.Amount, "currency", string(t.Unit))
	r.notifier.Notify(TableTransactions, OpInsert, t.ID)
	return nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET tx_date = ?, amount = ?, kind = ?, open_ended = ?, entity_id = ?, description = ?, currency = ?, raw_amount = ?
		 WHERE id = ?`,
		nullDate(t.Date), t.Amount, string(t.Kind), boolToInt(t.OpenEnded),
		nullString(t.EntityID), nullString(t.Description), nullString(string(t.Unit)), t.RawAmount, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Transaction updated", "id", t.ID, "kind", string(t.Kind), "amount", t.Amount)
	r.notifier.Notify(TableTransactions, OpUpdate, t.ID)
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	r.notifier.Notify(TableTransactions, OpDelete, id)
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectTransaction+` WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns every row, newest creation first. Aggregation
// passes read this fully before grouping begins; no streaming.
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return r.queryTransactions(ctx, selectTransaction+` ORDER BY created_at DESC, COALESCE(tx_date,'9999-12-31') DESC`)
}

// ListTransactionsForEntity returns one entity's rows, oldest first, the
// order a statement reads in.
func (r *SQLiteRepository) ListTransactionsForEntity(ctx context.Context, entityID string) ([]core.Transaction, error) {
	return r.queryTransactions(ctx,
		selectTransaction+` WHERE entity_id = ? ORDER BY created_at ASC, COALESCE(tx_date,'9999-12-31') ASC`,
		entityID)
}

// ListByKindBetween returns dated rows of one kind within [from, to].
func (r *SQLiteRepository) ListByKindBetween(ctx context.Context, kind core.Kind, from, to core.Date) ([]core.Transaction, error) {
	return r.queryTransactions(ctx,
		selectTransaction+` WHERE kind = ? AND tx_date IS NOT NULL AND tx_date >= ? AND tx_date <= ?
		 ORDER BY tx_date ASC, created_at ASC`,
		string(kind), from.String(), to.String())
}

const selectTransaction = `SELECT id, tx_date, amount, kind, open_ended, COALESCE(entity_id,''), COALESCE(description,''), COALESCE(currency,''), raw_amount, created_at FROM transactions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t         core.Transaction
		txDate    sql.NullString
		openEnded int
		unit      string
		rawAmount sql.NullFloat64
	)
	err := row.Scan(&t.ID, &txDate, &t.Amount, (*string)(&t.Kind), &openEnded,
		&t.EntityID, &t.Description, &unit, &rawAmount, &t.CreatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	t.OpenEnded = openEnded != 0
	t.Unit = core.Unit(unit)
	if txDate.Valid && txDate.String != "" {
		d, err := core.ParseDate(txDate.String)
		if err == nil {
			t.Date = d
		}
	}
	if rawAmount.Valid {
		v := rawAmount.Float64
		t.RawAmount = &v
	}
	return t, nil
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ---- settings ----

// GetSetting returns the stored value for key, or def when absent.
func (r *SQLiteRepository) GetSetting(ctx context.Context, key, def string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting upserts a key. Settings carry no change notification; rate
// snapshot writers overwrite wholesale and readers reload on use.
func (r *SQLiteRepository) SetSetting(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullDate(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
