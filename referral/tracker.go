// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package referral

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/danielhkuo/referral-funnel/auth"
	"github.com/danielhkuo/referral-funnel/changefeed"
	"github.com/danielhkuo/referral-funnel/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const referralColumns = `id, referrer_id, referral_code, visitor_token, referred_email, referred_name,
	status, clicked_at, signed_up_at, submitted_at, created_at, updated_at`

const referralsTable = "referrals"

type scanner interface {
	Scan(dest ...any) error
}

func scanReferral(row scanner) (models.Referral, error) {
	var ref models.Referral
	err := row.Scan(
		&ref.ID, &ref.ReferrerID, &ref.ReferralCode, &ref.VisitorToken,
		&ref.ReferredEmail, &ref.ReferredName, &ref.Status,
		&ref.ClickedAt, &ref.SignedUpAt, &ref.SubmittedAt,
		&ref.CreatedAt, &ref.UpdatedAt,
	)
	return ref, err
}

// Tracker moves referrals through the funnel. Status only ever advances.
type Tracker struct {
	db        *sql.DB
	registry  *Registry
	publisher changefeed.Publisher
	ipSalt    string
}

func NewTracker(db *sql.DB, registry *Registry, publisher changefeed.Publisher, ipSalt string) *Tracker {
	return &Tracker{db: db, registry: registry, publisher: publisher, ipSalt: ipSalt}
}

type ClickInput struct {
	Code         string
	VisitorToken string
	IP           string
	UserAgent    string
	LandingPath  string
}

type ClickResult struct {
	ReferrerID   int64
	ReferralID   string
	VisitorToken string
	Status       models.ReferralStatus
	Created      bool
}

// TrackClick attributes a click to the code's referrer. Every call records a
// click event; the referral for (code, visitor) is created once and moves
// from pending to clicked, never backwards.
func (t *Tracker) TrackClick(ctx context.Context, in ClickInput) (ClickResult, error) {
	rc, err := t.registry.Resolve(ctx, in.Code)
	if err != nil {
		return ClickResult{}, err
	}

	token := in.VisitorToken
	if !auth.IsValidVisitorToken(token) {
		token = auth.NewVisitorToken()
	}
	now := time.Now().UTC()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return ClickResult{}, fmt.Errorf("begin click: %w", err)
	}
	defer tx.Rollback()

	ref, created, err := findOrCreateReferral(ctx, tx, rc, token, now)
	if err != nil {
		return ClickResult{}, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE referrals
		SET clicked_at = COALESCE(clicked_at, $1),
		    status = CASE WHEN status = $2 THEN $3 ELSE status END,
		    updated_at = $1
		WHERE id = $4
	`, now, models.ReferralPending, models.ReferralClicked, ref.ID)
	if err != nil {
		return ClickResult{}, fmt.Errorf("advance referral on click: %w", err)
	}

	clickID, err := auth.GenerateID(16)
	if err != nil {
		return ClickResult{}, fmt.Errorf("generate click id: %w", err)
	}
	var ipHash *string
	if in.IP != "" {
		h := auth.HashIP(in.IP, t.ipSalt)
		ipHash = &h
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO referral_clicks (id, referral_id, referral_code, visitor_token, ip_hash, user_agent, landing_path, clicked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, clickID, ref.ID, rc.Code, token, ipHash, nullable(in.UserAgent), nullable(in.LandingPath), now)
	if err != nil {
		return ClickResult{}, fmt.Errorf("record click: %w", err)
	}

	ref, err = scanReferral(tx.QueryRowContext(ctx, `SELECT `+referralColumns+` FROM referrals WHERE id = $1`, ref.ID))
	if err != nil {
		return ClickResult{}, fmt.Errorf("reload referral: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ClickResult{}, fmt.Errorf("commit click: %w", err)
	}

	op := changefeed.OpUpdate
	if created {
		op = changefeed.OpInsert
	}
	changefeed.Publish(t.publisher, referralsTable, op, ref.ID)

	slog.Info("referral click tracked",
		"referral_id", ref.ID,
		"referrer_id", ref.ReferrerID,
		"status", ref.Status,
		"created", created,
	)

	return ClickResult{
		ReferrerID:   ref.ReferrerID,
		ReferralID:   ref.ID,
		VisitorToken: token,
		Status:       ref.Status,
		Created:      created,
	}, nil
}

// findOrCreateReferral returns the referral for (code, visitor), inserting a
// pending one when none exists. The UNIQUE constraint settles concurrent inserts.
func findOrCreateReferral(ctx context.Context, q querier, rc models.ReferralCode, token string, now time.Time) (models.Referral, bool, error) {
	ref, err := scanReferral(q.QueryRowContext(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE referral_code = $1 AND visitor_token = $2`,
		rc.Code, token))
	if err == nil {
		return ref, false, nil
	}
	if err != sql.ErrNoRows {
		return ref, false, fmt.Errorf("lookup referral: %w", err)
	}

	id, err := auth.GenerateID(16)
	if err != nil {
		return ref, false, fmt.Errorf("generate referral id: %w", err)
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO referrals (id, referrer_id, referral_code, visitor_token, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (referral_code, visitor_token) DO NOTHING
	`, id, rc.InvestorID, rc.Code, token, models.ReferralPending, now)
	if err != nil {
		return ref, false, fmt.Errorf("insert referral: %w", err)
	}
	n, _ := result.RowsAffected()

	ref, err = scanReferral(q.QueryRowContext(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE referral_code = $1 AND visitor_token = $2`,
		rc.Code, token))
	if err != nil {
		return ref, false, fmt.Errorf("reload referral: %w", err)
	}
	return ref, n == 1, nil
}

type ContactInput struct {
	Code         string
	VisitorToken string
	Email        string
	Name         string
}

type ContactResult struct {
	ReferrerID   int64
	ReferralID   string
	VisitorToken string
	// Existing is set when a tokenless caller's email matched a referral
	// it does not own. That referral is left untouched and its ids are withheld.
	Existing bool
}

// NormalizeEmail trims and lowercases an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UpdateContact attaches an email and name to the visitor's referral. A
// caller with a valid visitor token only ever touches the referral for that
// token, created as pending if needed. A tokenless caller whose email already
// has a referral under the code gets Existing back; otherwise a pending
// referral with a fresh token is created. Status is never touched.
func (t *Tracker) UpdateContact(ctx context.Context, in ContactInput) (ContactResult, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return ContactResult{}, &ValidationError{Field: "email", Message: "must be a valid email address"}
	}

	rc, err := t.registry.Resolve(ctx, in.Code)
	if err != nil {
		return ContactResult{}, err
	}
	now := time.Now().UTC()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return ContactResult{}, fmt.Errorf("begin contact update: %w", err)
	}
	defer tx.Rollback()

	token := in.VisitorToken
	if !auth.IsValidVisitorToken(token) {
		var id string
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM referrals WHERE referral_code = $1 AND referred_email = $2
			 ORDER BY created_at DESC LIMIT 1`,
			rc.Code, email).Scan(&id)
		switch {
		case err == nil:
			return ContactResult{ReferrerID: rc.InvestorID, Existing: true}, nil
		case err != sql.ErrNoRows:
			return ContactResult{}, fmt.Errorf("lookup referral by email: %w", err)
		}
		token = auth.NewVisitorToken()
	}

	ref, created, err := findOrCreateReferral(ctx, tx, rc, token, now)
	if err != nil {
		return ContactResult{}, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE referrals
		SET referred_email = $1, referred_name = COALESCE($2, referred_name), updated_at = $3
		WHERE id = $4
	`, email, nullable(strings.TrimSpace(in.Name)), now, ref.ID)
	if err != nil {
		return ContactResult{}, fmt.Errorf("update referral contact: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ContactResult{}, fmt.Errorf("commit contact update: %w", err)
	}

	op := changefeed.OpUpdate
	if created {
		op = changefeed.OpInsert
	}
	changefeed.Publish(t.publisher, referralsTable, op, ref.ID)

	return ContactResult{ReferrerID: ref.ReferrerID, ReferralID: ref.ID, VisitorToken: token}, nil
}

// MarkActiveInvestor records that a submitted prospect became an investor.
// Calling it again on an active referral is a no-op.
func (t *Tracker) MarkActiveInvestor(ctx context.Context, referralID string) (models.Referral, error) {
	ref, err := t.Get(ctx, referralID)
	if err != nil {
		return ref, err
	}
	if ref.Status == models.ReferralActiveInvestor {
		return ref, nil
	}
	if ref.Status != models.ReferralSubmitted {
		return ref, fmt.Errorf("%w: referral is %s, must be submitted", ErrInvalidStatus, ref.Status)
	}

	now := time.Now().UTC()
	changed, err := advanceReferral(ctx, t.db, referralID, models.ReferralActiveInvestor, "signed_up_at", now)
	if err != nil {
		return ref, err
	}
	if changed {
		changefeed.Publish(t.publisher, referralsTable, changefeed.OpUpdate, referralID)
		slog.Info("referral converted", "referral_id", referralID, "referrer_id", ref.ReferrerID)
	}
	return t.Get(ctx, referralID)
}

// advanceReferral moves a referral forward to status, stamping column the
// first time. Rows already at or past status are left alone.
func advanceReferral(ctx context.Context, q querier, id string, to models.ReferralStatus, column string, now time.Time) (bool, error) {
	before := to.Before()
	args := []any{to, now, id}
	placeholders := make([]string, len(before))
	for i, s := range before {
		args = append(args, s)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}

	query := fmt.Sprintf(`
		UPDATE referrals
		SET status = $1, %s = COALESCE(%s, $2), updated_at = $2
		WHERE id = $3 AND status IN (%s)
	`, column, column, strings.Join(placeholders, ", "))

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("advance referral to %s: %w", to, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advance referral to %s: %w", to, err)
	}
	return n > 0, nil
}

func (t *Tracker) Get(ctx context.Context, referralID string) (models.Referral, error) {
	ref, err := scanReferral(t.db.QueryRowContext(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE id = $1`, referralID))
	if err == sql.ErrNoRows {
		return ref, ErrNotFound
	}
	if err != nil {
		return ref, fmt.Errorf("get referral: %w", err)
	}
	return ref, nil
}

// ListByReferrer returns a referrer's referrals, newest first
func (t *Tracker) ListByReferrer(ctx context.Context, referrerID int64) ([]models.Referral, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE referrer_id = $1 ORDER BY created_at DESC, id`,
		referrerID)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	defer rows.Close()

	referrals := []models.Referral{}
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, fmt.Errorf("scan referral: %w", err)
		}
		referrals = append(referrals, ref)
	}
	return referrals, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
