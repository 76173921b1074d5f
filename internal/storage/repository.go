package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"finledger/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup by id or email matches nothing.
var ErrNotFound = errors.New("not found")

// SQLiteRepository is the durable store for users and ledger records. Each
// method owns its own transaction boundary; SQLite provides row-level
// atomicity for single-record writes.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Ping reports whether the database connection is still usable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// tableFor maps a record kind to its table. Kinds are validated at the
// service boundary; an unknown kind here is a programming error.
func tableFor(kind core.RecordKind) (string, error) {
	switch kind {
	case core.KindIncome:
		return "income_records", nil
	case core.KindExpense:
		return "expense_records", nil
	default:
		return "", core.ErrInvalidKind
	}
}

// CreateUser persists a new user and returns it with the generated id.
func (r *SQLiteRepository) CreateUser(ctx context.Context, name, email, passwordHash string, role core.Role) (*core.User, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, role) VALUES (?, ?, ?, ?)`,
		name, email, passwordHash, string(role))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user insert id: %w", err)
	}

	slog.InfoContext(ctx, "User created", "id", id, "email", email, "role", role)
	return &core.User{ID: id, Name: name, Email: email, PasswordHash: passwordHash, Role: role}, nil
}

// GetUserByEmail looks a user up by its case-insensitive email key.
func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, role FROM users WHERE email = ? COLLATE NOCASE`,
		email)
	return scanUser(row)
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, role FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// DeleteUser removes an account. Deleting a missing user is a no-op.
func (r *SQLiteRepository) DeleteUser(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	slog.InfoContext(ctx, "User deleted", "id", id)
	return nil
}

func scanUser(row *sql.Row) (*core.User, error) {
	var u core.User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = core.Role(role)
	return &u, nil
}

// CreateRecord persists a new ledger record and returns it with the
// generated id.
func (r *SQLiteRepository) CreateRecord(ctx context.Context, rec core.Record) (*core.Record, error) {
	table, err := tableFor(rec.Kind)
	if err != nil {
		return nil, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO `+table+` (category, amount_cents, date, description, user_id) VALUES (?, ?, ?, ?, ?)`,
		rec.Category, rec.Amount.Cents, rec.Date.String(), rec.Description, rec.UserID)
	if err != nil {
		return nil, fmt.Errorf("insert %s record: %w", rec.Kind, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("record insert id: %w", err)
	}
	rec.ID = id

	slog.InfoContext(ctx, "Record saved",
		"kind", rec.Kind,
		"id", rec.ID,
		"category", rec.Category,
		"amount_cents", rec.Amount.Cents,
		"user_id", rec.UserID)
	return &rec, nil
}

// GetRecord fetches a single record by id, regardless of owner. Ownership
// checks belong to the caller.
func (r *SQLiteRepository) GetRecord(ctx context.Context, kind core.RecordKind, id int64) (*core.Record, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT id, category, amount_cents, date, description, user_id FROM `+table+` WHERE id = ?`, id)

	rec, err := scanRecord(row.Scan, kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s record: %w", kind, err)
	}
	return rec, nil
}

// UpdateRecord overwrites the mutable fields of an existing record.
func (r *SQLiteRepository) UpdateRecord(ctx context.Context, rec core.Record) error {
	table, err := tableFor(rec.Kind)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE `+table+` SET category = ?, amount_cents = ?, date = ?, description = ? WHERE id = ?`,
		rec.Category, rec.Amount.Cents, rec.Date.String(), rec.Description, rec.ID)
	if err != nil {
		return fmt.Errorf("update %s record: %w", rec.Kind, err)
	}

	slog.InfoContext(ctx, "Record updated", "kind", rec.Kind, "id", rec.ID)
	return nil
}

// DeleteRecord removes a record by id. Deleting a missing id is a no-op.
func (r *SQLiteRepository) DeleteRecord(ctx context.Context, kind core.RecordKind, id int64) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete %s record: %w", kind, err)
	}

	slog.InfoContext(ctx, "Record deleted", "kind", kind, "id", id)
	return nil
}

// ListRecordsByOwner returns every record owned by userID, newest first.
func (r *SQLiteRepository) ListRecordsByOwner(ctx context.Context, kind core.RecordKind, userID int64) ([]core.Record, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category, amount_cents, date, description, user_id FROM `+table+
			` WHERE user_id = ? ORDER BY date DESC, id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list %s records: %w", kind, err)
	}
	defer rows.Close()

	return collectRecords(rows, kind)
}

// ListRecordsByOwnerMonth returns the owner's records whose date falls in the
// given calendar year and month. This is a separate query from
// ListRecordsByOwner on purpose: the two are not a consistent snapshot under
// concurrent writes, which the aggregation contract accepts.
func (r *SQLiteRepository) ListRecordsByOwnerMonth(ctx context.Context, kind core.RecordKind, userID int64, year, month int) ([]core.Record, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	start := core.NewDate(year, month, 1)
	end := core.Date{Time: start.AddDate(0, 1, 0)}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category, amount_cents, date, description, user_id FROM `+table+
			` WHERE user_id = ? AND date >= ? AND date < ? ORDER BY date DESC, id DESC`,
		userID, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("list %s records for month: %w", kind, err)
	}
	defer rows.Close()

	return collectRecords(rows, kind)
}

func collectRecords(rows *sql.Rows, kind core.RecordKind) ([]core.Record, error) {
	records := []core.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows.Scan, kind)
		if err != nil {
			return nil, fmt.Errorf("scan %s record: %w", kind, err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanRecord(scan func(...any) error, kind core.RecordKind) (*core.Record, error) {
	var rec core.Record
	var date string
	if err := scan(&rec.ID, &rec.Category, &rec.Amount.Cents, &date, &rec.Description, &rec.UserID); err != nil {
		return nil, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("parse stored date %q: %w", date, err)
	}
	rec.Kind = kind
	rec.Date = d
	return &rec, nil
}
