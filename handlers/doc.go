// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the referral funnel API.

# Handler Types

Each handler is a struct built from the database and config:

  - FunnelHandler: visitor clicks, contact capture, and both forms
  - InvestorHandler: referral codes, share links, and per-referrer lists
  - AdminHandler: submission triage and the investment request inbox
  - EventsHandler: server-sent change events for admin views

Example:

	funnelHandler := handlers.NewFunnelHandler(db, cfg, publisher, attribution)

# Funnel

	POST /referrals/click   → TrackClick (returns visitor_token)
	POST /referrals/contact → UpdateContact
	POST /referrals/submit  → Submit (returns submission_id)

Funnel responses use one result shape:

	{"success": false, "error": "invalid referral link"}

Visitor operations read the X-Visitor-Token header or the visitor_token
cookie. TrackClick sets both. The code a visitor arrived with is remembered
per token, so the form and the contact form work without resending it.

# Side Attribution

POST /contact stores the message and returns. If the visitor came through a
referral link, their email and name are attached to the referral in the
background; failures there are logged and never reach the visitor.

# Admin

Admin routes are wrapped in middleware.RequireAdmin. Submission status may
move between reviewed, contacted, approved, and rejected in any order.
Viewed flags only ever go from false to true.

After WatchInbox, the default first page of submissions is served from a
live snapshot that the change hub refreshes on every write.
*/
package handlers
