// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// Open connects with the driver for dbType. SQLite gets a single connection
// and foreign keys enabled; the schema relies on both.
func Open(dbType, url string) (*sql.DB, error) {
	switch dbType {
	case TypePostgres:
		conn, err := sql.Open("postgres", url)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		return conn, nil
	case TypeSQLite:
		conn, err := sql.Open("sqlite", sqliteDSN(url))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		conn.SetMaxOpenConns(1)
		return conn, nil
	}
	return nil, fmt.Errorf("unsupported database type %q", dbType)
}

func sqliteDSN(url string) string {
	if strings.Contains(url, "_pragma=foreign_keys") {
		return url
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// CreateNotifyTriggers installs row triggers that publish every change to
// the watched tables on NotifyChannel. Postgres only.
func CreateNotifyTriggers(db *sql.DB) error {
	_, err := db.Exec(notifyTriggers)
	if err != nil {
		return fmt.Errorf("failed to create notify triggers: %w", err)
	}

	return nil
}

// NotifyChannel is the LISTEN channel fed by CreateNotifyTriggers
const NotifyChannel = "row_changes"

// WatchedTables are the tables whose changes are broadcast to admin views
var WatchedTables = []string{"referrals", "referral_submissions", "investment_requests"}

const schema = `
-- Investors (owned by the portfolio side; mirrored here for referrer lookups)
CREATE TABLE IF NOT EXISTS investors (
    id BIGINT PRIMARY KEY,
    name TEXT,
    email TEXT,
    created_at TIMESTAMP NOT NULL
);

-- Referral codes: one per investor, immutable once issued
CREATE TABLE IF NOT EXISTS referral_codes (
    investor_id BIGINT PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    created_at TIMESTAMP NOT NULL
);

-- Referrals: one per (code, visitor tracking context)
CREATE TABLE IF NOT EXISTS referrals (
    id TEXT PRIMARY KEY,
    referrer_id BIGINT NOT NULL,
    referral_code TEXT NOT NULL REFERENCES referral_codes(code),
    visitor_token TEXT NOT NULL,
    referred_email TEXT,
    referred_name TEXT,
    status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'clicked', 'submitted', 'active_investor')),
    clicked_at TIMESTAMP,
    signed_up_at TIMESTAMP,
    submitted_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE (referral_code, visitor_token)
);

CREATE INDEX IF NOT EXISTS idx_referrals_referrer_id ON referrals(referrer_id);
CREATE INDEX IF NOT EXISTS idx_referrals_code_email ON referrals(referral_code, referred_email);

-- Click events (append-only)
CREATE TABLE IF NOT EXISTS referral_clicks (
    id TEXT PRIMARY KEY,
    referral_id TEXT NOT NULL REFERENCES referrals(id),
    referral_code TEXT NOT NULL,
    visitor_token TEXT NOT NULL,
    ip_hash TEXT,
    user_agent TEXT,
    landing_path TEXT,
    clicked_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_referral_clicks_referral_id ON referral_clicks(referral_id);

-- Referral submissions: at most one per referral
CREATE TABLE IF NOT EXISTS referral_submissions (
    id TEXT PRIMARY KEY,
    referral_id TEXT NOT NULL UNIQUE REFERENCES referrals(id),
    referral_code TEXT NOT NULL,
    referrer_id BIGINT NOT NULL,
    referrer_name TEXT,
    referrer_email TEXT,
    full_name TEXT NOT NULL,
    email TEXT NOT NULL,
    phone TEXT,
    company TEXT,
    address TEXT,
    city TEXT,
    state TEXT,
    zip_code TEXT,
    country TEXT,
    investment_amount NUMERIC(14, 2),
    investment_interest TEXT,
    preferred_contact_method TEXT NOT NULL DEFAULT 'email',
    message TEXT,
    status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'reviewed', 'contacted', 'approved', 'rejected')),
    viewed BOOLEAN DEFAULT FALSE,
    viewed_at TIMESTAMP,
    admin_notes TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_referral_submissions_created_at ON referral_submissions(created_at);
CREATE INDEX IF NOT EXISTS idx_referral_submissions_viewed ON referral_submissions(viewed);

-- Investment requests share the viewed/unviewed inbox shape
CREATE TABLE IF NOT EXISTS investment_requests (
    id TEXT PRIMARY KEY,
    investor_id BIGINT NOT NULL,
    amount NUMERIC(14, 2),
    notes TEXT,
    status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
    viewed BOOLEAN DEFAULT FALSE,
    viewed_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_investment_requests_status ON investment_requests(status);

-- Site contact form
CREATE TABLE IF NOT EXISTS contact_messages (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    message TEXT NOT NULL,
    referral_code TEXT,
    created_at TIMESTAMP NOT NULL
);
`

const notifyTriggers = `
CREATE OR REPLACE FUNCTION notify_row_change() RETURNS trigger AS $$
DECLARE
    row_id TEXT;
BEGIN
    IF TG_OP = 'DELETE' THEN
        row_id := OLD.id::text;
    ELSE
        row_id := NEW.id::text;
    END IF;
    PERFORM pg_notify('row_changes', json_build_object('table', TG_TABLE_NAME, 'op', TG_OP, 'id', row_id)::text);
    RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS referrals_notify ON referrals;
CREATE TRIGGER referrals_notify AFTER INSERT OR UPDATE OR DELETE ON referrals
    FOR EACH ROW EXECUTE FUNCTION notify_row_change();

DROP TRIGGER IF EXISTS referral_submissions_notify ON referral_submissions;
CREATE TRIGGER referral_submissions_notify AFTER INSERT OR UPDATE OR DELETE ON referral_submissions
    FOR EACH ROW EXECUTE FUNCTION notify_row_change();

DROP TRIGGER IF EXISTS investment_requests_notify ON investment_requests;
CREATE TRIGGER investment_requests_notify AFTER INSERT OR UPDATE OR DELETE ON investment_requests
    FOR EACH ROW EXECUTE FUNCTION notify_row_change();
`
