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
	"github.com/danielhkuo/referral-funnel/changefeed"
	"github.com/danielhkuo/referral-funnel/models"
)

const submissionsTable = "referral_submissions"

// ValidateForm checks the required fields and returns a normalized copy:
// strings trimmed, email lowercased, blank optionals dropped, and the
// contact method defaulted. The amount is left as given, so nil stays nil.
func ValidateForm(form models.ReferralForm) (models.ReferralForm, error) {
	form.Code = NormalizeCode(form.Code)
	form.FullName = strings.TrimSpace(form.FullName)
	form.Email = NormalizeEmail(form.Email)

	if form.FullName == "" {
		return form, &ValidationError{Field: "full_name", Message: "is required"}
	}
	if form.Email == "" {
		return form, &ValidationError{Field: "email", Message: "is required"}
	}
	if !strings.Contains(form.Email, "@") {
		return form, &ValidationError{Field: "email", Message: "must contain @"}
	}
	if form.InvestmentAmount != nil && *form.InvestmentAmount < 0 {
		return form, &ValidationError{Field: "investment_amount", Message: "must not be negative"}
	}

	for _, field := range []**string{
		&form.Phone, &form.Company, &form.Address, &form.City, &form.State,
		&form.ZipCode, &form.Country, &form.InvestmentInterest, &form.Message,
	} {
		*field = trimOptional(*field)
	}

	form.PreferredContactMethod = strings.ToLower(strings.TrimSpace(form.PreferredContactMethod))
	if form.PreferredContactMethod == "" {
		form.PreferredContactMethod = models.ContactMethodEmail
	}
	return form, nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// Intake turns prospect forms into submissions
type Intake struct {
	db        *sql.DB
	registry  *Registry
	directory InvestorDirectory
	publisher changefeed.Publisher
}

func NewIntake(db *sql.DB, registry *Registry, directory InvestorDirectory, publisher changefeed.Publisher) *Intake {
	return &Intake{db: db, registry: registry, directory: directory, publisher: publisher}
}

type SubmitInput struct {
	VisitorToken string
	Form         models.ReferralForm
}

type SubmitResult struct {
	SubmissionID string
	ReferralID   string
	ReferrerID   int64
	// Existing is set when the referral already had a submission. Ids are
	// withheld when the caller reached that referral by email alone.
	Existing bool
}

// withhold strips ids a caller without the referral's visitor token must not see
func (r SubmitResult) withhold(owned bool) SubmitResult {
	if owned {
		return r
	}
	r.ReferralID = ""
	if r.Existing {
		r.SubmissionID = ""
	}
	return r
}

// Submit validates the form, checks the code, and records one submission
// per referral. Resubmitting from the same visitor returns the original
// submission. Resubmitting the same email without a visitor token reports
// Existing but does not reveal the original.
func (in *Intake) Submit(ctx context.Context, input SubmitInput) (SubmitResult, error) {
	form, err := ValidateForm(input.Form)
	if err != nil {
		return SubmitResult{}, err
	}

	rc, err := in.registry.Resolve(ctx, form.Code)
	if err != nil {
		return SubmitResult{}, err
	}

	referrer := models.Investor{ID: rc.InvestorID}
	if in.directory != nil {
		inv, err := in.directory.Lookup(ctx, rc.InvestorID)
		if err != nil {
			// Non-fatal: the submission is still attributed by id
			slog.Warn("referrer lookup failed", "referrer_id", rc.InvestorID, "error", err)
		} else {
			referrer = inv
		}
	}

	now := time.Now().UTC()
	tx, err := in.db.BeginTx(ctx, nil)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("begin submission: %w", err)
	}
	defer tx.Rollback()

	ref, owned, err := in.referralFor(ctx, tx, rc, input.VisitorToken, form.Email, now)
	if err != nil {
		return SubmitResult{}, err
	}

	existingID, err := submissionForReferral(ctx, tx, ref.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return SubmitResult{}, err
	}
	if err == nil {
		slog.Info("duplicate referral submission", "submission_id", existingID, "referral_id", ref.ID)
		res := SubmitResult{SubmissionID: existingID, ReferralID: ref.ID, ReferrerID: ref.ReferrerID, Existing: true}
		return res.withhold(owned), nil
	}

	submissionID, err := auth.GenerateID(16)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("generate submission id: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO referral_submissions (
			id, referral_id, referral_code, referrer_id, referrer_name, referrer_email,
			full_name, email, phone, company, address, city, state, zip_code, country,
			investment_amount, investment_interest, preferred_contact_method, message,
			status, viewed, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $22)
		ON CONFLICT (referral_id) DO NOTHING
	`,
		submissionID, ref.ID, rc.Code, rc.InvestorID, referrer.Name, referrer.Email,
		form.FullName, form.Email, form.Phone, form.Company, form.Address, form.City, form.State, form.ZipCode, form.Country,
		form.InvestmentAmount, form.InvestmentInterest, form.PreferredContactMethod, form.Message,
		models.SubmissionPending, false, now,
	)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("insert submission: %w", err)
	}

	// A concurrent submit for the same referral may have won the insert
	storedID, err := submissionForReferral(ctx, tx, ref.ID)
	if err != nil {
		return SubmitResult{}, err
	}
	existing := storedID != submissionID

	if !existing {
		_, err = tx.ExecContext(ctx, `
			UPDATE referrals
			SET referred_email = COALESCE(referred_email, $1), referred_name = COALESCE(referred_name, $2)
			WHERE id = $3
		`, form.Email, form.FullName, ref.ID)
		if err != nil {
			return SubmitResult{}, fmt.Errorf("attach submitter to referral: %w", err)
		}
		if _, err := advanceReferral(ctx, tx, ref.ID, models.ReferralSubmitted, "submitted_at", now); err != nil {
			return SubmitResult{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return SubmitResult{}, fmt.Errorf("commit submission: %w", err)
	}

	if !existing {
		changefeed.Publish(in.publisher, submissionsTable, changefeed.OpInsert, storedID)
		changefeed.Publish(in.publisher, referralsTable, changefeed.OpUpdate, ref.ID)
		slog.Info("referral submission received",
			"submission_id", storedID,
			"referral_id", ref.ID,
			"referrer_id", ref.ReferrerID,
			"amount", models.AmountLabel(form.InvestmentAmount),
		)
	}

	res := SubmitResult{SubmissionID: storedID, ReferralID: ref.ID, ReferrerID: ref.ReferrerID, Existing: existing}
	return res.withhold(owned), nil
}

// referralFor picks the referral a submission belongs to: the visitor's own,
// else the latest one already carrying this email, else a new one. owned is
// false only for the email match.
func (in *Intake) referralFor(ctx context.Context, q querier, rc models.ReferralCode, token, email string, now time.Time) (ref models.Referral, owned bool, err error) {
	if auth.IsValidVisitorToken(token) {
		ref, _, err = findOrCreateReferral(ctx, q, rc, token, now)
		return ref, true, err
	}

	ref, err = scanReferral(q.QueryRowContext(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE referral_code = $1 AND referred_email = $2
		 ORDER BY created_at DESC LIMIT 1`,
		rc.Code, email))
	if err == nil {
		return ref, false, nil
	}
	if err != sql.ErrNoRows {
		return ref, false, fmt.Errorf("lookup referral by email: %w", err)
	}

	ref, _, err = findOrCreateReferral(ctx, q, rc, auth.NewVisitorToken(), now)
	return ref, true, err
}

func submissionForReferral(ctx context.Context, q querier, referralID string) (string, error) {
	var id string
	err := q.QueryRowContext(ctx, `SELECT id FROM referral_submissions WHERE referral_id = $1`, referralID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup submission: %w", err)
	}
	return id, nil
}
