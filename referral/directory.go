// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package referral

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danielhkuo/referral-funnel/models"
)

// InvestorDirectory looks up referrer details owned by the portfolio side
type InvestorDirectory interface {
	Lookup(ctx context.Context, investorID int64) (models.Investor, error)
}

// SQLDirectory reads the investors table. Rows go through
// models.NormalizeInvestor, so mirrored tables with differently named
// columns still work.
type SQLDirectory struct {
	db *sql.DB
}

func NewSQLDirectory(db *sql.DB) *SQLDirectory {
	return &SQLDirectory{db: db}
}

func (d *SQLDirectory) Lookup(ctx context.Context, investorID int64) (models.Investor, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT * FROM investors WHERE id = $1`, investorID)
	if err != nil {
		return models.Investor{}, fmt.Errorf("lookup investor: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return models.Investor{}, fmt.Errorf("lookup investor: %w", err)
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return models.Investor{}, fmt.Errorf("lookup investor: %w", err)
		}
		return models.Investor{}, ErrNotFound
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return models.Investor{}, fmt.Errorf("scan investor: %w", err)
	}

	row := make(map[string]any, len(cols))
	for i, col := range cols {
		row[col] = values[i]
	}
	return models.NormalizeInvestor(row)
}
