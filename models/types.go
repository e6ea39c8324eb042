// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"time"

	"github.com/dustin/go-humanize"
)

// ReferralStatus is the funnel position of a referral. It only moves forward.
type ReferralStatus string

const (
	ReferralPending        ReferralStatus = "pending"
	ReferralClicked        ReferralStatus = "clicked"
	ReferralSubmitted      ReferralStatus = "submitted"
	ReferralActiveInvestor ReferralStatus = "active_investor"
)

// ReferralStatuses in funnel order
var ReferralStatuses = []ReferralStatus{
	ReferralPending,
	ReferralClicked,
	ReferralSubmitted,
	ReferralActiveInvestor,
}

// Rank is the position in the funnel, or -1 for an unknown status
func (s ReferralStatus) Rank() int {
	for i, st := range ReferralStatuses {
		if st == s {
			return i
		}
	}
	return -1
}

func (s ReferralStatus) Valid() bool {
	return s.Rank() >= 0
}

// CanAdvanceTo reports whether moving from s to next is a forward step
func (s ReferralStatus) CanAdvanceTo(next ReferralStatus) bool {
	return next.Valid() && next.Rank() > s.Rank()
}

// Before returns the statuses strictly earlier than s
func (s ReferralStatus) Before() []ReferralStatus {
	if !s.Valid() {
		return nil
	}
	return ReferralStatuses[:s.Rank()]
}

// SubmissionStatus is the admin triage state of a submission. Any triage
// status is reachable from any other.
type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionReviewed  SubmissionStatus = "reviewed"
	SubmissionContacted SubmissionStatus = "contacted"
	SubmissionApproved  SubmissionStatus = "approved"
	SubmissionRejected  SubmissionStatus = "rejected"
)

func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionPending, SubmissionReviewed, SubmissionContacted, SubmissionApproved, SubmissionRejected:
		return true
	}
	return false
}

// IsTriageTarget reports whether an admin may set s. pending is only ever the initial state.
func (s SubmissionStatus) IsTriageTarget() bool {
	return s.Valid() && s != SubmissionPending
}

// InvestmentStatus is the review state of an investment request
type InvestmentStatus string

const (
	InvestmentPending  InvestmentStatus = "pending"
	InvestmentApproved InvestmentStatus = "approved"
	InvestmentRejected InvestmentStatus = "rejected"
)

func (s InvestmentStatus) Valid() bool {
	switch s {
	case InvestmentPending, InvestmentApproved, InvestmentRejected:
		return true
	}
	return false
}

// ContactMethodEmail is used when the form leaves preferred_contact_method empty
const ContactMethodEmail = "email"

// Request types

// ClickRequest is sent when a visitor lands with ?ref=<code>
type ClickRequest struct {
	Code        string `json:"code"`
	LandingPath string `json:"landing_path,omitempty"`
}

type ContactRequest struct {
	Code  string `json:"code,omitempty"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ReferralForm is the prospect intake form. Optional numbers are pointers so
// that an absent amount stays distinct from zero.
type ReferralForm struct {
	Code                   string   `json:"code"`
	FullName               string   `json:"full_name"`
	Email                  string   `json:"email"`
	Phone                  *string  `json:"phone,omitempty"`
	Company                *string  `json:"company,omitempty"`
	Address                *string  `json:"address,omitempty"`
	City                   *string  `json:"city,omitempty"`
	State                  *string  `json:"state,omitempty"`
	ZipCode                *string  `json:"zip_code,omitempty"`
	Country                *string  `json:"country,omitempty"`
	InvestmentAmount       *float64 `json:"investment_amount,omitempty"`
	InvestmentInterest     *string  `json:"investment_interest,omitempty"`
	PreferredContactMethod string   `json:"preferred_contact_method,omitempty"`
	Message                *string  `json:"message,omitempty"`
}

// ContactFormRequest is the site-wide contact form, unrelated to referrals
type ContactFormRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

type UpdateSubmissionStatusRequest struct {
	Status     SubmissionStatus `json:"status"`
	AdminNotes *string          `json:"admin_notes,omitempty"`
}

// MarkViewedRequest marks the listed ids, or every unviewed row when IDs is empty
type MarkViewedRequest struct {
	IDs []string `json:"ids,omitempty"`
}

type CreateInvestmentRequest struct {
	InvestorID int64    `json:"investor_id"`
	Amount     *float64 `json:"amount,omitempty"`
	Notes      *string  `json:"notes,omitempty"`
}

// Response types

// FunnelResponse is the result-with-error shape of the public funnel endpoints
type FunnelResponse struct {
	Success      bool   `json:"success"`
	ReferrerID   *int64 `json:"referrer_id,omitempty"`
	ReferralID   string `json:"referral_id,omitempty"`
	VisitorToken string `json:"visitor_token,omitempty"`
	Error        string `json:"error,omitempty"`
}

type SubmitResponse struct {
	Success      bool   `json:"success"`
	SubmissionID string `json:"submission_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

type ReferralCodeResponse struct {
	InvestorID int64  `json:"investor_id"`
	Code       string `json:"code"`
	Link       string `json:"link"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type MarkViewedResponse struct {
	Success bool `json:"success"`
	Updated int  `json:"updated"`
}

type ListSubmissionsResponse struct {
	Submissions []ReferralSubmission `json:"submissions"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

// Domain types

type Investor struct {
	ID    int64   `json:"id"`
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

type ReferralCode struct {
	InvestorID int64     `json:"investor_id"`
	Code       string    `json:"code"`
	CreatedAt  time.Time `json:"created_at"`
}

type Referral struct {
	ID            string         `json:"id"`
	ReferrerID    int64          `json:"referrer_id"`
	ReferralCode  string         `json:"referral_code"`
	VisitorToken  string         `json:"-"` // tracking context, never exposed
	ReferredEmail *string        `json:"referred_email"`
	ReferredName  *string        `json:"referred_name"`
	Status        ReferralStatus `json:"status"`
	ClickedAt     *time.Time     `json:"clicked_at"`
	SignedUpAt    *time.Time     `json:"signed_up_at"`
	SubmittedAt   *time.Time     `json:"submitted_at"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type ReferralSubmission struct {
	ID                     string           `json:"id"`
	ReferralID             string           `json:"referral_id"`
	ReferralCode           string           `json:"referral_code"`
	ReferrerID             int64            `json:"referrer_id"`
	ReferrerName           *string          `json:"referrer_name"`
	ReferrerEmail          *string          `json:"referrer_email"`
	FullName               string           `json:"full_name"`
	Email                  string           `json:"email"`
	Phone                  *string          `json:"phone"`
	Company                *string          `json:"company"`
	Address                *string          `json:"address"`
	City                   *string          `json:"city"`
	State                  *string          `json:"state"`
	ZipCode                *string          `json:"zip_code"`
	Country                *string          `json:"country"`
	InvestmentAmount       *float64         `json:"investment_amount"`
	InvestmentInterest     *string          `json:"investment_interest"`
	PreferredContactMethod string           `json:"preferred_contact_method"`
	Message                *string          `json:"message"`
	Status                 SubmissionStatus `json:"status"`
	Viewed                 bool             `json:"viewed"`
	ViewedAt               *time.Time       `json:"viewed_at"`
	AdminNotes             *string          `json:"admin_notes"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
}

// AmountLabel renders the investment amount for logs and admin summaries
func (s ReferralSubmission) AmountLabel() string {
	return AmountLabel(s.InvestmentAmount)
}

// AmountLabel formats an optional amount; nil is "unspecified", never "$0"
func AmountLabel(amount *float64) string {
	if amount == nil {
		return "unspecified"
	}
	return "$" + humanize.CommafWithDigits(*amount, 2)
}

type InvestmentRequest struct {
	ID         string           `json:"id"`
	InvestorID int64            `json:"investor_id"`
	Amount     *float64         `json:"amount"`
	Notes      *string          `json:"notes"`
	Status     InvestmentStatus `json:"status"`
	Viewed     bool             `json:"viewed"`
	ViewedAt   *time.Time       `json:"viewed_at"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
