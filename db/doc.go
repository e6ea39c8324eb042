// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the database and creates the schema.

# Drivers

Open picks the driver by type:

	conn, err := db.Open(cfg.DatabaseType, cfg.DatabaseURL)

postgres uses lib/pq. sqlite uses the pure Go modernc.org/sqlite driver,
limited to one open connection, with foreign keys switched on in the DSN.
All queries use $N placeholders, which both drivers accept.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
Timestamps are written by the application in UTC, never by column defaults.

# Tables

  - investors: referrer directory (id, name, email)
  - referral_codes: one immutable code per investor
  - referrals: one per (referral_code, visitor_token), funnel status
  - referral_clicks: append-only click events
  - referral_submissions: intake forms, at most one per referral
  - investment_requests: investor requests sharing the viewed inbox shape
  - contact_messages: site contact form

# Relationships

	referral_codes 1──* referrals
	referrals 1──* referral_clicks
	referrals 1──0..1 referral_submissions

# Change Notifications

On postgres, CreateNotifyTriggers adds AFTER triggers on referrals,
referral_submissions and investment_requests that pg_notify the
row_changes channel with {"table", "op", "id"}.
*/
package db
