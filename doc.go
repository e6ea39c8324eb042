// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the referral funnel API server.

The server attributes prospective investors to the existing investor whose
link brought them in. It issues referral codes, tracks clicks and contact
details per visitor, takes the referral form, and gives admins an inbox of
submissions and investment requests with live change events.

# Starting the Server

Configuration comes from flags, the environment, or a .env file:

	DATABASE_URL=file:referrals.db ADMIN_KEY=... go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." --origin https://invest.example.com

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite file URL or PostgreSQL connection string
  - ADMIN_KEY (--admin-key): key for the admin endpoints

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite (default) or postgres
  - PUBLIC_ORIGIN (--origin): base of affiliate links
  - REDIS_URL (--redis): share attribution sessions between instances
  - SESSION_TTL (--session-ttl): how long a visitor's code is remembered
  - IP_HASH_SALT (--ip-salt): salt for hashed click IPs

# Change Events

With PostgreSQL, row triggers NOTIFY on every write to the watched tables and
each instance forwards them to its admin event streams. With SQLite the
stores publish directly to the in-process hub.

# Architecture

  - handlers: HTTP request handlers (funnel, investors, admin, events)
  - router: Route definitions using Go 1.22+ routing
  - referral: codes, click tracking, intake, triage
  - ledger: shared viewed/unviewed bookkeeping
  - investments: investment request inbox
  - changefeed: change hub, live lists, Postgres listener
  - session: remembered referral codes (memory or redis)
  - middleware: CORS, logging, metrics, admin auth, JSON helpers
  - metrics: Prometheus collectors
  - models: Request/response and domain types
  - auth: code and token generation
  - db: Schema creation
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
