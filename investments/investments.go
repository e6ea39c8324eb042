// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package investments is the admin inbox for investment requests. It shares
// the viewed ledger with referral submissions.
package investments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/danielhkuo/referral-funnel/auth"
	"github.com/danielhkuo/referral-funnel/changefeed"
	"github.com/danielhkuo/referral-funnel/ledger"
	"github.com/danielhkuo/referral-funnel/models"
)

var (
	ErrInvalidRequest = errors.New("invalid investment request")
	ErrInvalidStatus  = errors.New("invalid status")
)

// Store reads and writes investment requests
type Store struct {
	db        *sql.DB
	ledger    *ledger.Ledger
	publisher changefeed.Publisher
}

func NewStore(db *sql.DB, publisher changefeed.Publisher) *Store {
	return &Store{db: db, ledger: ledger.New(db, ledger.InvestmentRequests), publisher: publisher}
}

// Create records a new pending, unviewed request
func (s *Store) Create(ctx context.Context, req models.CreateInvestmentRequest) (models.InvestmentRequest, error) {
	if req.InvestorID <= 0 {
		return models.InvestmentRequest{}, fmt.Errorf("%w: investor_id must be positive", ErrInvalidRequest)
	}
	if req.Amount != nil && *req.Amount < 0 {
		return models.InvestmentRequest{}, fmt.Errorf("%w: amount must not be negative", ErrInvalidRequest)
	}
	if req.Notes != nil {
		n := strings.TrimSpace(*req.Notes)
		req.Notes = &n
		if n == "" {
			req.Notes = nil
		}
	}

	id, err := auth.GenerateID(16)
	if err != nil {
		return models.InvestmentRequest{}, fmt.Errorf("generate request id: %w", err)
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO investment_requests (id, investor_id, amount, notes, status, viewed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, id, req.InvestorID, req.Amount, req.Notes, models.InvestmentPending, false, now)
	if err != nil {
		return models.InvestmentRequest{}, fmt.Errorf("insert investment request: %w", err)
	}

	changefeed.Publish(s.publisher, s.ledger.Table().Name, changefeed.OpInsert, id)
	slog.Info("investment request created", "table", s.ledger.Table().Name, "id", id, "investor_id", req.InvestorID, "amount", models.AmountLabel(req.Amount))

	return models.InvestmentRequest{
		ID:         id,
		InvestorID: req.InvestorID,
		Amount:     req.Amount,
		Notes:      req.Notes,
		Status:     models.InvestmentPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// List returns requests newest first, optionally filtered by status
func (s *Store) List(ctx context.Context, status models.InvestmentStatus) ([]models.InvestmentRequest, error) {
	query := `SELECT id, investor_id, amount, notes, status, viewed, viewed_at, created_at, updated_at FROM investment_requests`
	var args []any
	if status != "" {
		if !status.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
		}
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list investment requests: %w", err)
	}
	defer rows.Close()

	requests := []models.InvestmentRequest{}
	for rows.Next() {
		var r models.InvestmentRequest
		var viewed sql.NullBool
		if err := rows.Scan(&r.ID, &r.InvestorID, &r.Amount, &r.Notes, &r.Status, &viewed, &r.ViewedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan investment request: %w", err)
		}
		r.Viewed = viewed.Valid && viewed.Bool
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

// UnviewedCount counts pending requests nobody has opened
func (s *Store) UnviewedCount(ctx context.Context) (int, error) {
	return s.ledger.UnviewedCount(ctx)
}

// MarkViewed marks ids, or every unviewed pending request when ids is empty
func (s *Store) MarkViewed(ctx context.Context, ids ...string) (int64, error) {
	n, err := s.ledger.MarkViewed(ctx, ids...)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		changefeed.Publish(s.publisher, s.ledger.Table().Name, changefeed.OpUpdate, "")
		slog.Info("investment requests marked viewed", "table", s.ledger.Table().Name, "marked", n)
	}
	return n, nil
}
