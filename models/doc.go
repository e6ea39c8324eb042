// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - ClickRequest: code, landing_path
  - ContactRequest: code, email, name
  - ReferralForm: the prospect form (full_name, email, optional details)
  - ContactFormRequest: name, email, message
  - UpdateSubmissionStatusRequest: status, admin_notes
  - MarkViewedRequest: ids (empty means all)
  - CreateInvestmentRequest: investor_id, amount, notes

# Response Types

  - FunnelResponse: success, referrer_id, referral_id, visitor_token, error
  - SubmitResponse: success, submission_id, error
  - ReferralCodeResponse: investor_id, code, link
  - CountResponse, MarkViewedResponse, ListSubmissionsResponse
  - ErrorResponse: error, message

# Domain Types

  - Investor: a referrer, normalized from whatever the investors table holds
  - ReferralCode: the one code issued to an investor
  - Referral: one code and one visitor; carries the funnel status
  - ReferralSubmission: the form a referred prospect filed
  - InvestmentRequest: an investor asking to add capital

# Statuses

Referral status only moves forward:

	pending → clicked → submitted → active_investor

Submission status starts at pending; admins move it to reviewed, contacted,
approved, or rejected. Investment requests are pending, approved, or rejected.

Amounts are optional everywhere. A nil amount means the prospect did not say,
which is different from zero; AmountLabel renders it as "unspecified".
*/
package models
