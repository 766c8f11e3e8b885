package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Fixed width so text ordering matches time ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteLedger struct {
	db *sql.DB
}

func NewSQLiteLedger(db *sql.DB) (*SQLiteLedger, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	return &SQLiteLedger{db: db}, nil
}

// OpenLedger opens the SQLite file at path and applies migrations.
func OpenLedger(ctx context.Context, path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := MigrateUp(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	ledger, err := NewSQLiteLedger(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return ledger, nil
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func (l *SQLiteLedger) Record(ctx context.Context, in Delivery) error {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.AttemptedAt.IsZero() {
		in.AttemptedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO deliveries (id, sweep_id, kind, pseudonym, item_id, status, error, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.SweepID, in.Kind, in.Pseudonym, in.ItemID, in.Status, in.Error, mustTime(in.AttemptedAt),
	)
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) Get(ctx context.Context, id string) (Delivery, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, sweep_id, kind, pseudonym, item_id, status, error, attempted_at
		FROM deliveries WHERE id = ?`, id)
	out, err := scanDelivery(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Delivery{}, ErrNotFound
		}
		return Delivery{}, err
	}
	return out, nil
}

func (l *SQLiteLedger) List(ctx context.Context, filter DeliveryFilter) ([]Delivery, error) {
	query := `SELECT id, sweep_id, kind, pseudonym, item_id, status, error, attempted_at FROM deliveries`
	where := make([]string, 0, 4)
	args := make([]any, 0, 6)
	if filter.SweepID != "" {
		where = append(where, "sweep_id = ?")
		args = append(args, filter.SweepID)
	}
	if filter.Pseudonym != "" {
		where = append(where, "pseudonym = ?")
		args = append(args, filter.Pseudonym)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, filter.Kind)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += ` ORDER BY attempted_at DESC, id`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Delivery, 0)
	for rows.Next() {
		d, scanErr := scanDelivery(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (l *SQLiteLedger) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM deliveries GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

// Prune deletes rows attempted before the cutoff and reports how many went.
func (l *SQLiteLedger) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM deliveries WHERE attempted_at < ?`, mustTime(before))
	if err != nil {
		return 0, fmt.Errorf("prune deliveries: %w", err)
	}
	return res.RowsAffected()
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, v)
}

func applyPagination(args *[]any, limit, offset int) string {
	sql := ""
	if limit > 0 {
		sql += " LIMIT ?"
		*args = append(*args, limit)
	} else if offset > 0 {
		sql += " LIMIT -1"
	}
	if offset > 0 {
		sql += " OFFSET ?"
		*args = append(*args, offset)
	}
	return sql
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDelivery(s scanner) (Delivery, error) {
	var out Delivery
	var attempted string
	if err := s.Scan(&out.ID, &out.SweepID, &out.Kind, &out.Pseudonym, &out.ItemID, &out.Status, &out.Error, &attempted); err != nil {
		return Delivery{}, err
	}
	attemptedAt, err := parseRequiredTime(attempted)
	if err != nil {
		return Delivery{}, err
	}
	out.AttemptedAt = attemptedAt
	return out, nil
}
