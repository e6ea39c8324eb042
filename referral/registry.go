// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package referral

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/danielhkuo/referral-funnel/auth"
	"github.com/danielhkuo/referral-funnel/models"
)

// maxCodeAttempts bounds retries when a freshly generated code is already taken
const maxCodeAttempts = 5

// Registry issues and resolves referral codes
type Registry struct {
	db      *sql.DB
	newCode func() (string, error)
}

func NewRegistry(db *sql.DB) *Registry {
	return &Registry{
		db: db,
		newCode: func() (string, error) {
			return auth.GenerateReferralCode(auth.DefaultCodeLength)
		},
	}
}

// GetOrCreateCode returns the investor's code, issuing one on first call.
// Concurrent first calls converge on a single code.
func (r *Registry) GetOrCreateCode(ctx context.Context, investorID int64) (models.ReferralCode, error) {
	if investorID <= 0 {
		return models.ReferralCode{}, &ValidationError{Field: "investor_id", Message: "must be a positive integer"}
	}

	rc, err := r.lookupByInvestor(ctx, investorID)
	if err == nil {
		return rc, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return models.ReferralCode{}, err
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := r.newCode()
		if err != nil {
			return models.ReferralCode{}, fmt.Errorf("generate referral code: %w", err)
		}

		_, err = r.db.ExecContext(ctx, `
			INSERT INTO referral_codes (investor_id, code, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, investorID, code, time.Now().UTC())
		if err != nil {
			return models.ReferralCode{}, fmt.Errorf("insert referral code: %w", err)
		}

		// Either our row, a concurrent caller's row, or nothing if the code collided
		rc, err = r.lookupByInvestor(ctx, investorID)
		if err == nil {
			if attempt > 1 {
				slog.Info("referral code issued after collision", "investor_id", investorID, "attempts", attempt)
			}
			return rc, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return models.ReferralCode{}, err
		}
		slog.Warn("referral code collision", "investor_id", investorID, "attempt", attempt)
	}

	return models.ReferralCode{}, fmt.Errorf("issue referral code for investor %d: %d collisions", investorID, maxCodeAttempts)
}

func (r *Registry) lookupByInvestor(ctx context.Context, investorID int64) (models.ReferralCode, error) {
	var rc models.ReferralCode
	err := r.db.QueryRowContext(ctx, `
		SELECT investor_id, code, created_at FROM referral_codes WHERE investor_id = $1
	`, investorID).Scan(&rc.InvestorID, &rc.Code, &rc.CreatedAt)
	if err == sql.ErrNoRows {
		return rc, ErrNotFound
	}
	if err != nil {
		return rc, fmt.Errorf("lookup referral code: %w", err)
	}
	return rc, nil
}

// NormalizeCode uppercases and trims a code as typed or pasted by a visitor
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Resolve maps a code to its owning referrer. Malformed and unknown codes
// both return ErrInvalidCode.
func (r *Registry) Resolve(ctx context.Context, code string) (models.ReferralCode, error) {
	code = NormalizeCode(code)
	if !auth.IsValidCodeFormat(code) {
		return models.ReferralCode{}, ErrInvalidCode
	}

	var rc models.ReferralCode
	err := r.db.QueryRowContext(ctx, `
		SELECT investor_id, code, created_at FROM referral_codes WHERE code = $1
	`, code).Scan(&rc.InvestorID, &rc.Code, &rc.CreatedAt)
	if err == sql.ErrNoRows {
		return rc, ErrInvalidCode
	}
	if err != nil {
		return rc, fmt.Errorf("resolve referral code: %w", err)
	}
	return rc, nil
}
