// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package referral

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/referral-funnel/models"
	"github.com/danielhkuo/referral-funnel/testutil"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func TestValidateForm(t *testing.T) {
	tests := []struct {
		name      string
		form      models.ReferralForm
		wantField string
	}{
		{"minimal", models.ReferralForm{FullName: "Jane Doe", Email: "jane@x.com"}, ""},
		{"empty name", models.ReferralForm{FullName: "", Email: "jane@x.com"}, "full_name"},
		{"blank name", models.ReferralForm{FullName: "   ", Email: "jane@x.com"}, "full_name"},
		{"empty email", models.ReferralForm{FullName: "Jane", Email: ""}, "email"},
		{"email without at", models.ReferralForm{FullName: "Jane", Email: "jane.x.com"}, "email"},
		{"negative amount", models.ReferralForm{FullName: "Jane", Email: "j@x.com", InvestmentAmount: floatPtr(-1)}, "investment_amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateForm(tt.form)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.wantField, verr.Field)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestValidateFormDefaults(t *testing.T) {
	form, err := ValidateForm(models.ReferralForm{
		Code:     " ab12cd ",
		FullName: " Jane Doe ",
		Email:    "Jane@X.com",
		Phone:    strPtr("  "),
		City:     strPtr(" Tulsa "),
	})
	require.NoError(t, err)

	assert.Equal(t, "AB12CD", form.Code)
	assert.Equal(t, "Jane Doe", form.FullName)
	assert.Equal(t, "jane@x.com", form.Email)
	assert.Equal(t, models.ContactMethodEmail, form.PreferredContactMethod)
	assert.Nil(t, form.Phone)
	assert.Equal(t, "Tulsa", *form.City)
	assert.Nil(t, form.InvestmentAmount)

	form, err = ValidateForm(models.ReferralForm{FullName: "J", Email: "j@x.com", PreferredContactMethod: "Phone", InvestmentAmount: floatPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, "phone", form.PreferredContactMethod)
	require.NotNil(t, form.InvestmentAmount)
	assert.Equal(t, 0.0, *form.InvestmentAmount)
}

func setupIntake(t *testing.T) (*sql.DB, *Tracker, *Intake, *recorder) {
	t.Helper()
	conn, tr, rec := setupTracker(t)
	reg := NewRegistry(conn)
	return conn, tr, NewIntake(conn, reg, NewSQLDirectory(conn), rec), rec
}

func TestSubmitMinimal(t *testing.T) {
	conn, tr, in, _ := setupIntake(t)
	ctx := context.Background()

	click, err := tr.TrackClick(ctx, ClickInput{Code: "AB12CD"})
	require.NoError(t, err)

	res, err := in.Submit(ctx, SubmitInput{
		VisitorToken: click.VisitorToken,
		Form:         models.ReferralForm{Code: "AB12CD", FullName: "Jane Doe", Email: "jane@x.com"},
	})
	require.NoError(t, err)
	assert.False(t, res.Existing)
	assert.Equal(t, click.ReferralID, res.ReferralID)

	sub, err := NewTriage(conn, nil).Get(ctx, res.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, models.ContactMethodEmail, sub.PreferredContactMethod)
	assert.Nil(t, sub.InvestmentAmount)
	assert.Equal(t, models.SubmissionPending, sub.Status)
	assert.False(t, sub.Viewed)
	assert.Equal(t, int64(42), sub.ReferrerID)
	require.NotNil(t, sub.ReferrerName)
	assert.Equal(t, "Ref Errer", *sub.ReferrerName)
	require.NotNil(t, sub.ReferrerEmail)
	assert.Equal(t, "ref@example.com", *sub.ReferrerEmail)

	ref, err := tr.Get(ctx, click.ReferralID)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralSubmitted, ref.Status)
	assert.NotNil(t, ref.SubmittedAt)
}

func TestSubmitKeepsZeroAmount(t *testing.T) {
	conn, _, in, _ := setupIntake(t)
	ctx := context.Background()

	res, err := in.Submit(ctx, SubmitInput{Form: models.ReferralForm{
		Code: "AB12CD", FullName: "Zero", Email: "zero@x.com", InvestmentAmount: floatPtr(0),
	}})
	require.NoError(t, err)

	sub, err := NewTriage(conn, nil).Get(ctx, res.SubmissionID)
	require.NoError(t, err)
	require.NotNil(t, sub.InvestmentAmount)
	assert.Equal(t, 0.0, *sub.InvestmentAmount)
	assert.Equal(t, "$0", sub.AmountLabel())
}

func TestSubmitRejectsWithoutRow(t *testing.T) {
	conn, _, in, rec := setupIntake(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		form    models.ReferralForm
		wantErr error
	}{
		{"empty name", models.ReferralForm{Code: "AB12CD", Email: "a@b.com"}, ErrInvalidInput},
		{"bad email", models.ReferralForm{Code: "AB12CD", FullName: "A", Email: "ab.com"}, ErrInvalidInput},
		{"unknown code", models.ReferralForm{Code: "ZZZZZZ", FullName: "A", Email: "a@b.com"}, ErrInvalidCode},
		{"missing code", models.ReferralForm{FullName: "A", Email: "a@b.com"}, ErrInvalidCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := in.Submit(ctx, SubmitInput{Form: tt.form})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Equal(t, 0, countRows(t, conn, `SELECT COUNT(*) FROM referral_submissions`))
	assert.Equal(t, 0, countRows(t, conn, `SELECT COUNT(*) FROM referrals`))
	assert.Empty(t, rec.tables())
}

func TestSubmitRetryReturnsExisting(t *testing.T) {
	conn, tr, in, _ := setupIntake(t)
	ctx := context.Background()

	click, err := tr.TrackClick(ctx, ClickInput{Code: "AB12CD"})
	require.NoError(t, err)

	input := SubmitInput{
		VisitorToken: click.VisitorToken,
		Form:         models.ReferralForm{Code: "AB12CD", FullName: "Jane Doe", Email: "jane@x.com"},
	}
	first, err := in.Submit(ctx, input)
	require.NoError(t, err)

	second, err := in.Submit(ctx, input)
	require.NoError(t, err)
	assert.True(t, second.Existing)
	assert.Equal(t, first.SubmissionID, second.SubmissionID)
	assert.Equal(t, 1, countRows(t, conn, `SELECT COUNT(*) FROM referral_submissions`))

	// without a token, the email is recognised but the original stays hidden
	third, err := in.Submit(ctx, SubmitInput{Form: input.Form})
	require.NoError(t, err)
	assert.True(t, third.Existing)
	assert.Empty(t, third.SubmissionID)
	assert.Empty(t, third.ReferralID)
	assert.Equal(t, 1, countRows(t, conn, `SELECT COUNT(*) FROM referral_submissions`))
}

func TestSubmitByEmailWithholdsReferral(t *testing.T) {
	conn, tr, in, _ := setupIntake(t)
	ctx := context.Background()

	click, err := tr.TrackClick(ctx, ClickInput{Code: "AB12CD"})
	require.NoError(t, err)
	_, err = tr.UpdateContact(ctx, ContactInput{Code: "AB12CD", VisitorToken: click.VisitorToken, Email: "jane@x.com"})
	require.NoError(t, err)

	res, err := in.Submit(ctx, SubmitInput{Form: models.ReferralForm{Code: "AB12CD", FullName: "Jane Doe", Email: "jane@x.com"}})
	require.NoError(t, err)
	assert.False(t, res.Existing)
	assert.NotEmpty(t, res.SubmissionID)
	assert.Empty(t, res.ReferralID)

	var referralID string
	require.NoError(t, conn.QueryRow(`SELECT referral_id FROM referral_submissions WHERE id = $1`, res.SubmissionID).Scan(&referralID))
	assert.Equal(t, click.ReferralID, referralID)
}

func TestSubmitFromActiveReferralKeepsStatus(t *testing.T) {
	conn, tr, in, _ := setupIntake(t)
	ctx := context.Background()

	click, err := tr.TrackClick(ctx, ClickInput{Code: "AB12CD"})
	require.NoError(t, err)
	_, err = conn.Exec(`UPDATE referrals SET status = 'active_investor', signed_up_at = $1 WHERE id = $2`,
		time.Now().UTC(), click.ReferralID)
	require.NoError(t, err)

	_, err = in.Submit(ctx, SubmitInput{
		VisitorToken: click.VisitorToken,
		Form:         models.ReferralForm{Code: "AB12CD", FullName: "Late", Email: "late@x.com"},
	})
	require.NoError(t, err)

	ref, err := tr.Get(ctx, click.ReferralID)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralActiveInvestor, ref.Status)
}

type failingDirectory struct{}

func (failingDirectory) Lookup(context.Context, int64) (models.Investor, error) {
	return models.Investor{}, errors.New("directory offline")
}

func TestSubmitSurvivesDirectoryFailure(t *testing.T) {
	conn, _, _, _ := setupIntake(t)
	in := NewIntake(conn, NewRegistry(conn), failingDirectory{}, nil)

	res, err := in.Submit(context.Background(), SubmitInput{Form: models.ReferralForm{Code: "AB12CD", FullName: "A", Email: "a@b.com"}})
	require.NoError(t, err)

	sub, err := NewTriage(conn, nil).Get(context.Background(), res.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), sub.ReferrerID)
	assert.Nil(t, sub.ReferrerName)
}

// Referrer 42 gets AB12CD, a visitor clicks and submits, an admin approves.
func TestReferralLifecycle(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	ctx := context.Background()
	testutil.CreateTestInvestor(t, conn, 42, "Ref Errer", "ref@example.com")

	reg := NewRegistry(conn)
	reg.newCode = fixedCodes("AB12CD")
	tr := NewTracker(conn, reg, nil, "salt")
	in := NewIntake(conn, reg, NewSQLDirectory(conn), nil)
	triage := NewTriage(conn, nil)

	rc, err := reg.GetOrCreateCode(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "AB12CD", rc.Code)

	click, err := tr.TrackClick(ctx, ClickInput{Code: "AB12CD"})
	require.NoError(t, err)
	assert.Equal(t, models.ReferralClicked, click.Status)
	assert.Equal(t, int64(42), click.ReferrerID)

	res, err := in.Submit(ctx, SubmitInput{
		VisitorToken: click.VisitorToken,
		Form:         models.ReferralForm{Code: "AB12CD", FullName: "Jane Doe", Email: "jane@x.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, conn, `SELECT COUNT(*) FROM referral_submissions`))

	ref, err := tr.Get(ctx, click.ReferralID)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralSubmitted, ref.Status)

	before, err := triage.Get(ctx, res.SubmissionID)
	require.NoError(t, err)

	later := before.UpdatedAt.Add(time.Minute)
	triage.now = func() time.Time { return later }
	approved, err := triage.SetStatus(ctx, res.SubmissionID, models.SubmissionApproved, nil)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionApproved, approved.Status)
	assert.True(t, approved.UpdatedAt.After(before.UpdatedAt))

	ref, err = tr.Get(ctx, click.ReferralID)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralSubmitted, ref.Status)
}
