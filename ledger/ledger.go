// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Table describes one inbox
type Table struct {
	Name string
	// FilterStatus narrows which rows count as unviewed; empty means any status
	FilterStatus string
	// PendingStatus is what the degraded count falls back to
	PendingStatus string
}

var (
	ReferralSubmissions = Table{Name: "referral_submissions", PendingStatus: "pending"}
	InvestmentRequests  = Table{Name: "investment_requests", FilterStatus: "pending", PendingStatus: "pending"}
)

// Ledger runs viewed-state queries against a single table
type Ledger struct {
	db    *sql.DB
	table Table
	now   func() time.Time
}

func New(db *sql.DB, table Table) *Ledger {
	return &Ledger{db: db, table: table, now: func() time.Time { return time.Now().UTC() }}
}

// Table is the inbox this ledger reads; stores use its name for events and logs
func (l *Ledger) Table() Table {
	return l.table
}

// IsMissingViewedColumn reports whether err comes from a schema without the
// viewed column. Drivers word this differently, so only the substrings matter.
func IsMissingViewedColumn(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "column") && strings.Contains(msg, "viewed")
}

// UnviewedCount counts rows still waiting to be opened
func (l *Ledger) UnviewedCount(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE (viewed IS NULL OR viewed = FALSE)`, l.table.Name)
	var args []any
	if l.table.FilterStatus != "" {
		query += ` AND status = $1`
		args = append(args, l.table.FilterStatus)
	}

	var count int
	err := l.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if err == nil {
		return count, nil
	}
	if !IsMissingViewedColumn(err) {
		return 0, fmt.Errorf("count unviewed %s: %w", l.table.Name, err)
	}

	slog.Warn("viewed column missing, counting by status", "table", l.table.Name, "error", err)
	return l.countByStatus(ctx)
}

func (l *Ledger) countByStatus(ctx context.Context) (int, error) {
	var count int
	err := l.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE status = $1`, l.table.Name),
		l.table.PendingStatus,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count %s by status: %w", l.table.Name, err)
	}
	return count, nil
}

// MarkViewed marks the given ids, or every currently unviewed row when ids is
// empty. It returns the number of rows that changed. Already viewed rows are
// left alone so viewed_at keeps its first value.
func (l *Ledger) MarkViewed(ctx context.Context, ids ...string) (int64, error) {
	now := l.now()
	query := fmt.Sprintf(`
		UPDATE %s
		SET viewed = TRUE, viewed_at = COALESCE(viewed_at, $1), updated_at = $1
		WHERE (viewed IS NULL OR viewed = FALSE)`, l.table.Name)
	args := []any{now}

	if len(ids) > 0 {
		placeholders := make([]string, len(ids))
		for i, id := range ids {
			args = append(args, id)
			placeholders[i] = fmt.Sprintf("$%d", i+2)
		}
		query += ` AND id IN (` + strings.Join(placeholders, ", ") + `)`
	} else if l.table.FilterStatus != "" {
		args = append(args, l.table.FilterStatus)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	result, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		if IsMissingViewedColumn(err) {
			slog.Warn("viewed column missing, skipping mark viewed", "table", l.table.Name, "error", err)
			return 0, nil
		}
		return 0, fmt.Errorf("mark %s viewed: %w", l.table.Name, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark %s viewed: %w", l.table.Name, err)
	}
	return n, nil
}

// IsViewed reports the latch for a single row. ok is false when the row
// does not exist.
func (l *Ledger) IsViewed(ctx context.Context, id string) (viewed bool, ok bool, err error) {
	var v sql.NullBool
	err = l.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT viewed FROM %s WHERE id = $1`, l.table.Name), id,
	).Scan(&v)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		if IsMissingViewedColumn(err) {
			return false, true, nil
		}
		return false, false, fmt.Errorf("read %s viewed: %w", l.table.Name, err)
	}
	return v.Valid && v.Bool, true, nil
}
