// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package referral implements the referral funnel.

A Registry issues one immutable code per investor. A Tracker follows each
visitor who arrives through a code:

	pending -> clicked -> submitted -> active_investor

Status only moves forward. Repeat clicks are recorded as click events but
never create a second referral for the same visitor token or move a
converted referral back.

Intake validates the prospect form before touching the database, rejects
unknown codes, and stores at most one submission per referral. Triage is the
admin side: paging, the viewed latch, and free-form status changes that do
not affect the referral.

Every writer takes a changefeed.Publisher (nil is fine) so admin views can
refetch after any change.
*/
package referral
