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

	"github.com/danielhkuo/referral-funnel/changefeed"
	"github.com/danielhkuo/referral-funnel/ledger"
	"github.com/danielhkuo/referral-funnel/models"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 500
)

const submissionColumns = `id, referral_id, referral_code, referrer_id, referrer_name, referrer_email,
	full_name, email, phone, company, address, city, state, zip_code, country,
	investment_amount, investment_interest, preferred_contact_method, message,
	status, viewed, viewed_at, admin_notes, created_at, updated_at`

func scanSubmission(row scanner) (models.ReferralSubmission, error) {
	var s models.ReferralSubmission
	var viewed sql.NullBool
	err := row.Scan(
		&s.ID, &s.ReferralID, &s.ReferralCode, &s.ReferrerID, &s.ReferrerName, &s.ReferrerEmail,
		&s.FullName, &s.Email, &s.Phone, &s.Company, &s.Address, &s.City, &s.State, &s.ZipCode, &s.Country,
		&s.InvestmentAmount, &s.InvestmentInterest, &s.PreferredContactMethod, &s.Message,
		&s.Status, &viewed, &s.ViewedAt, &s.AdminNotes, &s.CreatedAt, &s.UpdatedAt,
	)
	s.Viewed = viewed.Valid && viewed.Bool
	return s, err
}

// Triage is the admin side of submissions: listing, read state, and status.
// Status changes never touch the parent referral.
type Triage struct {
	db        *sql.DB
	ledger    *ledger.Ledger
	publisher changefeed.Publisher
	now       func() time.Time
}

func NewTriage(db *sql.DB, publisher changefeed.Publisher) *Triage {
	return &Triage{
		db:        db,
		ledger:    ledger.New(db, ledger.ReferralSubmissions),
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ClampPage applies the default page size and bounds
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// List returns submissions newest first
func (t *Triage) List(ctx context.Context, limit, offset int) ([]models.ReferralSubmission, error) {
	limit, offset = ClampPage(limit, offset)

	rows, err := t.db.QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM referral_submissions
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	submissions := []models.ReferralSubmission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		submissions = append(submissions, s)
	}
	return submissions, rows.Err()
}

func (t *Triage) Get(ctx context.Context, id string) (models.ReferralSubmission, error) {
	s, err := scanSubmission(t.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM referral_submissions WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, fmt.Errorf("get submission: %w", err)
	}
	return s, nil
}

// MarkViewed latches one submission as viewed. Repeating it succeeds.
func (t *Triage) MarkViewed(ctx context.Context, id string) error {
	n, err := t.ledger.MarkViewed(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		changefeed.Publish(t.publisher, t.ledger.Table().Name, changefeed.OpUpdate, id)
		return nil
	}

	_, ok, err := t.ledger.IsViewed(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// MarkViewedIDs latches the listed submissions; unknown ids are skipped
func (t *Triage) MarkViewedIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := t.ledger.MarkViewed(ctx, ids...)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		changefeed.Publish(t.publisher, t.ledger.Table().Name, changefeed.OpUpdate, "")
		slog.Info("submissions marked viewed", "table", t.ledger.Table().Name, "requested", len(ids), "marked", n)
	}
	return n, nil
}

// MarkAllViewed latches every unviewed submission, as when the inbox is opened
func (t *Triage) MarkAllViewed(ctx context.Context) (int64, error) {
	n, err := t.ledger.MarkViewed(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		changefeed.Publish(t.publisher, t.ledger.Table().Name, changefeed.OpUpdate, "")
		slog.Info("submissions marked viewed", "table", t.ledger.Table().Name, "marked", n)
	}
	return n, nil
}

func (t *Triage) UnviewedCount(ctx context.Context) (int, error) {
	return t.ledger.UnviewedCount(ctx)
}

// SetStatus moves a submission to any triage status from any other. Notes
// replace the stored notes only when given.
func (t *Triage) SetStatus(ctx context.Context, id string, status models.SubmissionStatus, notes *string) (models.ReferralSubmission, error) {
	if !status.IsTriageTarget() {
		return models.ReferralSubmission{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if notes != nil {
		v := strings.TrimSpace(*notes)
		notes = &v
	}

	result, err := t.db.ExecContext(ctx, `
		UPDATE referral_submissions
		SET status = $1, admin_notes = COALESCE($2, admin_notes), updated_at = $3
		WHERE id = $4
	`, status, notes, t.now(), id)
	if err != nil {
		return models.ReferralSubmission{}, fmt.Errorf("update submission status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return models.ReferralSubmission{}, fmt.Errorf("update submission status: %w", err)
	}
	if n == 0 {
		return models.ReferralSubmission{}, ErrNotFound
	}

	changefeed.Publish(t.publisher, t.ledger.Table().Name, changefeed.OpUpdate, id)
	slog.Info("submission triaged", "table", t.ledger.Table().Name, "submission_id", id, "status", status)

	return t.Get(ctx, id)
}
