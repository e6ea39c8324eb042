// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the referral funnel API.

# Route Registration

NewRouter wires every handler onto an http.ServeMux:

	rt := router.NewRouter(db, cfg, router.Options{
		Hub:         hub,
		Publisher:   hub,
		Attribution: attribution,
	})

Publisher should be set on every backend. On Postgres the NOTIFY triggers
also feed the hub, so an event can arrive twice.

Watch starts the live admin views. Until it is called, every list request
reads the database.

	rt.Watch(ctx)

# Endpoints

Health and metrics:

	GET /health
	GET /metrics

Referrers:

	GET /investors/{id}/referral-code - Get or issue the code and share link
	GET /investors/{id}/referrals     - Referrals credited to the investor

Visitors (public, X-Visitor-Token header or visitor_token cookie):

	POST /referrals/click   - Record a landing through ?ref=<code>
	POST /referrals/contact - Attach email and name
	POST /referrals/submit  - Submit the prospect form
	POST /contact           - Site contact form, attributed in the background

Admin (requires X-Admin-Key):

	GET  /admin/referral-submissions                - Newest first, ?limit=&offset=
	GET  /admin/referral-submissions/unviewed-count - Inbox badge
	POST /admin/referral-submissions/viewed         - Mark listed ids, or all
	POST /admin/referral-submissions/{id}/viewed    - Mark one
	PUT  /admin/referral-submissions/{id}/status    - Triage
	POST /admin/referrals/{id}/activate             - Prospect became an investor
	GET  /admin/investment-requests                 - ?status=
	POST /admin/investment-requests
	GET  /admin/investment-requests/unviewed-count
	POST /admin/investment-requests/viewed
	GET  /admin/events?table=<name>                 - Server-sent change events

The events route also accepts ?admin_key= since EventSource cannot set headers.
*/
package router
