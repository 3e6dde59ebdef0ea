package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sandeepkv93/dailyd/internal/model"
)

const sqliteTimeLayout = time.RFC3339Nano

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLiteRepository struct {
	db *sql.DB
	q  queryer
	tx *sql.Tx
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &SQLiteRepository{db: db, q: db}, nil
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
// A single connection is used so that ":memory:" databases and the
// one-writer model both behave.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if err := MigrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	repo, err := NewSQLiteRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.tx != nil {
		return errors.New("storage: close called inside transaction")
	}
	return r.db.Close()
}

func (r *SQLiteRepository) InTx(ctx context.Context, fn func(Store) error) error {
	if r.tx != nil {
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	if err := fn(&SQLiteRepository{db: r.db, q: tx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ScheduleAt(ctx context.Context, n model.Notification) (model.Notification, error) {
	if err := n.Validate(); err != nil {
		return model.Notification{}, err
	}
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return model.Notification{}, fmt.Errorf("encode payload %s: %w", n.Key, err)
	}
	n.FireAt = n.FireAt.Truncate(time.Millisecond)
	n.Revision = newRevision()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO notifications (key, fire_at_ms, kind, payload, revision, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			fire_at_ms = excluded.fire_at_ms,
			kind = excluded.kind,
			payload = excluded.payload,
			revision = excluded.revision,
			created_at = excluded.created_at`,
		n.Key, n.FireAt.UnixMilli(), string(n.Payload.Kind), string(payload), n.Revision, mustTime(n.CreatedAt),
	)
	if err != nil {
		return model.Notification{}, fmt.Errorf("schedule %s: %w", n.Key, err)
	}
	return n, nil
}

func (r *SQLiteRepository) GetNotification(ctx context.Context, key string) (model.Notification, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT key, fire_at_ms, payload, revision, created_at
		FROM notifications WHERE key = ?`, key)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Notification{}, ErrNotFound
		}
		return model.Notification{}, err
	}
	return n, nil
}

func (r *SQLiteRepository) CancelNotification(ctx context.Context, key string) (model.Notification, error) {
	row := r.q.QueryRowContext(ctx, `
		DELETE FROM notifications WHERE key = ?
		RETURNING key, fire_at_ms, payload, revision, created_at`, key)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Notification{}, ErrNotFound
		}
		return model.Notification{}, err
	}
	return n, nil
}

func (r *SQLiteRepository) ListNotifications(ctx context.Context, filter NotificationListFilter) ([]model.Notification, error) {
	query := `SELECT key, fire_at_ms, payload, revision, created_at FROM notifications`
	args := make([]any, 0, 3)
	if filter.Kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(filter.Kind))
	}
	query += ` ORDER BY fire_at_ms ASC, key ASC`
	query += applyPagination(&args, filter.Limit, filter.Offset)
	return r.queryNotifications(ctx, query, args...)
}

func (r *SQLiteRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]model.Notification, error) {
	args := []any{now.UnixMilli()}
	query := `
		SELECT key, fire_at_ms, payload, revision, created_at
		FROM notifications WHERE fire_at_ms <= ?
		ORDER BY fire_at_ms ASC, key ASC`
	query += applyPagination(&args, limit, 0)
	return r.queryNotifications(ctx, query, args...)
}

func (r *SQLiteRepository) Consume(ctx context.Context, key, revision string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM notifications WHERE key = ? AND revision = ?`, key, revision)
	if err != nil {
		return false, fmt.Errorf("consume %s: %w", key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *SQLiteRepository) Counter(ctx context.Context, name string) (int, error) {
	var value int
	err := r.q.QueryRowContext(ctx, `SELECT value FROM counters WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read counter %s: %w", name, err)
	}
	return value, nil
}

func (r *SQLiteRepository) AddCounter(ctx context.Context, name string, delta int) (int, error) {
	var value int
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO counters (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = value + excluded.value, updated_at = excluded.updated_at
		RETURNING value`,
		name, delta, mustTime(time.Now()),
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("add counter %s: %w", name, err)
	}
	return value, nil
}

func (r *SQLiteRepository) SetCounter(ctx context.Context, name string, value int) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO counters (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, value, mustTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("set counter %s: %w", name, err)
	}
	return nil
}

func (r *SQLiteRepository) EnsureCounter(ctx context.Context, name string, initial int) (int, error) {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO counters (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO NOTHING`,
		name, initial, mustTime(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("ensure counter %s: %w", name, err)
	}
	return r.Counter(ctx, name)
}

func (r *SQLiteRepository) GetRoll(ctx context.Context, id string) (model.Roll, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, final, position, remaining, finished, updated_at
		FROM rolls WHERE id = ?`, id)
	roll, err := scanRoll(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Roll{}, ErrNotFound
		}
		return model.Roll{}, err
	}
	return roll, nil
}

func (r *SQLiteRepository) PutRoll(ctx context.Context, in model.Roll) error {
	if in.UpdatedAt.IsZero() {
		in.UpdatedAt = time.Now()
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO rolls (id, final, position, remaining, finished, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			final = excluded.final,
			position = excluded.position,
			remaining = excluded.remaining,
			finished = excluded.finished,
			updated_at = excluded.updated_at`,
		in.ID, in.Final, in.Position, in.Remaining, boolInt(in.Finished), mustTime(in.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put roll %s: %w", in.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) ListRolls(ctx context.Context) ([]model.Roll, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, final, position, remaining, finished, updated_at
		FROM rolls ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Roll, 0)
	for rows.Next() {
		item, scanErr := scanRoll(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// queryNotifications keeps rows whose payload fails to decode; they come
// back with an empty payload so the dispatcher can drop them.
func (r *SQLiteRepository) queryNotifications(ctx context.Context, query string, args ...any) ([]model.Notification, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Notification, 0)
	for rows.Next() {
		item, scanErr := scanNotification(rows)
		if scanErr != nil && !errors.Is(scanErr, ErrCorruptPayload) {
			return nil, scanErr
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func newRevision() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, v)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func applyPagination(args *[]any, limit, offset int) string {
	sql := ""
	if limit > 0 {
		sql += " LIMIT ?"
		*args = append(*args, limit)
	}
	if offset > 0 {
		if limit <= 0 {
			sql += " LIMIT -1"
		}
		sql += " OFFSET ?"
		*args = append(*args, offset)
	}
	return sql
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(s scanner) (model.Notification, error) {
	var out model.Notification
	var fireAtMs int64
	var payload string
	var created string
	if err := s.Scan(&out.Key, &fireAtMs, &payload, &out.Revision, &created); err != nil {
		return model.Notification{}, err
	}
	out.FireAt = time.UnixMilli(fireAtMs)
	createdAt, err := parseRequiredTime(created)
	if err != nil {
		return model.Notification{}, err
	}
	out.CreatedAt = createdAt
	if err := decodePayload(payload, &out.Payload); err != nil {
		out.Payload = model.Payload{}
		return out, fmt.Errorf("%w: %s: %v", ErrCorruptPayload, out.Key, err)
	}
	return out, nil
}

func decodePayload(raw string, out *model.Payload) error {
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return err
	}
	return out.Validate()
}

func scanRoll(s scanner) (model.Roll, error) {
	var out model.Roll
	var finished int
	var updated string
	if err := s.Scan(&out.ID, &out.Final, &out.Position, &out.Remaining, &finished, &updated); err != nil {
		return model.Roll{}, err
	}
	updatedAt, err := parseRequiredTime(updated)
	if err != nil {
		return model.Roll{}, err
	}
	out.Finished = finished == 1
	out.UpdatedAt = updatedAt
	return out, nil
}
