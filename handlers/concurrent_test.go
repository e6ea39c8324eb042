// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/danielhkuo/referral-funnel/auth"
	"github.com/danielhkuo/referral-funnel/models"
	"github.com/danielhkuo/referral-funnel/testutil"
)

// TestConcurrentClicksSameVisitor verifies that simultaneous clicks from one
// visitor land on a single referral
func TestConcurrentClicksSameVisitor(t *testing.T) {
	db, h := setupFunnel(t)
	token := auth.NewVisitorToken()

	numClicks := 10
	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < numClicks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := testutil.MakeRequest("POST", "/referrals/click", models.ClickRequest{Code: "AB12CD"}, visitorHeaders(token))
			w := httptest.NewRecorder()
			h.TrackClick(w, req)
			if w.Code == http.StatusOK {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if int(successCount.Load()) != numClicks {
		t.Errorf("Expected %d successful clicks, got %d", numClicks, successCount.Load())
	}

	var referrals, clicks int
	db.QueryRow(`SELECT COUNT(*) FROM referrals`).Scan(&referrals)
	db.QueryRow(`SELECT COUNT(*) FROM referral_clicks`).Scan(&clicks)
	if referrals != 1 {
		t.Errorf("Expected 1 referral, got %d", referrals)
	}
	if clicks != numClicks {
		t.Errorf("Expected %d click events, got %d", numClicks, clicks)
	}
}

// TestConcurrentSubmissions verifies that a double-submitted form creates one
// submission and every request gets the same id back
func TestConcurrentSubmissions(t *testing.T) {
	db, h := setupFunnel(t)
	click := clickAs(t, h, "AB12CD", "")

	numRequests := 8
	ids := make([]string, numRequests)
	var created atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < numRequests; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			req := testutil.MakeRequest("POST", "/referrals/submit",
				models.ReferralForm{FullName: "Jane Doe", Email: "jane@x.com"}, visitorHeaders(click.VisitorToken))
			w := httptest.NewRecorder()
			h.Submit(w, req)

			if w.Code == http.StatusCreated {
				created.Add(1)
			}
			var resp models.SubmitResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Errorf("decode submit response: %v", err)
				return
			}
			ids[idx] = resp.SubmissionID
		}(i)
	}
	wg.Wait()

	if created.Load() != 1 {
		t.Errorf("Expected exactly 1 created response, got %d", created.Load())
	}
	for i, id := range ids {
		if id != ids[0] {
			t.Errorf("Request %d got submission %q, want %q", i, id, ids[0])
		}
	}

	var count int
	db.QueryRow(`SELECT COUNT(*) FROM referral_submissions`).Scan(&count)
	if count != 1 {
		t.Errorf("Expected 1 submission, got %d", count)
	}
}

// TestParallelReferrers checks that visitors of different investors stay apart
func TestParallelReferrers(t *testing.T) {
	db, h := setupFunnel(t)
	testutil.CreateTestInvestor(t, db, 43, "Other", "other@example.com")
	testutil.CreateTestCode(t, db, 43, "XYZ789")

	var wg sync.WaitGroup
	for _, code := range []string{"AB12CD", "XYZ789"} {
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(code string) {
				defer wg.Done()
				w := httptest.NewRecorder()
				h.TrackClick(w, testutil.MakeRequest("POST", "/referrals/click", models.ClickRequest{Code: code}, nil))
			}(code)
		}
	}
	wg.Wait()

	for _, id := range []int64{42, 43} {
		var count int
		db.QueryRow(`SELECT COUNT(*) FROM referrals WHERE referrer_id = $1`, id).Scan(&count)
		if count != 5 {
			t.Errorf("Expected 5 referrals for investor %d, got %d", id, count)
		}
	}
}
