// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/referral-funnel/auth"
	"github.com/danielhkuo/referral-funnel/cliparse"
	"github.com/danielhkuo/referral-funnel/db"
)

// TestAdminKey is the admin key configured by GetTestConfig
const TestAdminKey = "test-admin-key"

// SetupTestDB creates a fresh SQLite database with the full schema.
// Each test gets its own file, removed when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "referrals.db")
	conn, err := db.Open(db.TypeSQLite, "file:"+path)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:         3318,
		DatabaseURL:  "file::memory:",
		DatabaseType: cliparse.DatabaseSQLite,
		AdminKey:     TestAdminKey,
		IPSalt:       "test-ip-salt",
		PublicOrigin: "https://invest.example.com",
		SessionKey:   "referral_code",
		SessionTTL:   time.Hour,
	}
}

// CreateTestInvestor inserts an investor row
func CreateTestInvestor(t *testing.T, conn *sql.DB, id int64, name, email string) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO investors (id, name, email, created_at)
		VALUES ($1, $2, $3, $4)
	`, id, name, email, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test investor: %v", err)
	}
}

// CreateTestCode issues a fixed referral code to an investor
func CreateTestCode(t *testing.T, conn *sql.DB, investorID int64, code string) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO referral_codes (investor_id, code, created_at)
		VALUES ($1, $2, $3)
	`, investorID, code, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test referral code: %v", err)
	}
}

// CreateTestSubmission inserts a referral and its submission directly and
// returns the submission ID. The code must already exist.
func CreateTestSubmission(t *testing.T, conn *sql.DB, code string, referrerID int64, fullName, email string) string {
	t.Helper()

	now := time.Now().UTC()
	referralID, _ := auth.GenerateID(16)
	token := auth.NewVisitorToken()
	_, err := conn.Exec(`
		INSERT INTO referrals (id, referrer_id, referral_code, visitor_token, referred_email, referred_name, status, submitted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'submitted', $7, $7, $7)
	`, referralID, referrerID, code, token, email, fullName, now)
	if err != nil {
		t.Fatalf("Failed to create test referral: %v", err)
	}

	submissionID, _ := auth.GenerateID(16)
	_, err = conn.Exec(`
		INSERT INTO referral_submissions (id, referral_id, referral_code, referrer_id, full_name, email, preferred_contact_method, status, viewed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'email', 'pending', FALSE, $7, $7)
	`, submissionID, referralID, code, referrerID, fullName, email, now)
	if err != nil {
		t.Fatalf("Failed to create test submission: %v", err)
	}

	return submissionID
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AdminHeaders returns the headers an admin request needs
func AdminHeaders() map[string]string {
	return map[string]string{"X-Admin-Key": TestAdminKey}
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
