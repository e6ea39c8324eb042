// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielhkuo/referral-funnel/changefeed"
	"github.com/danielhkuo/referral-funnel/models"
	"github.com/danielhkuo/referral-funnel/testutil"
)

func setupAdmin(t *testing.T) (*sql.DB, *AdminHandler) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	testutil.CreateTestInvestor(t, db, 42, "Ref Errer", "ref@example.com")
	testutil.CreateTestCode(t, db, 42, "AB12CD")
	return db, NewAdminHandler(db, testutil.GetTestConfig(), nil)
}

func unviewedCount(t *testing.T, h *AdminHandler) int {
	t.Helper()
	w := httptest.NewRecorder()
	h.SubmissionsUnviewedCount(w, testutil.MakeRequest("GET", "/admin/referral-submissions/unviewed-count", nil, testutil.AdminHeaders()))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.CountResponse
	testutil.AssertJSON(t, w, &resp)
	return resp.Count
}

func TestListSubmissions(t *testing.T) {
	db, h := setupAdmin(t)
	testutil.CreateTestSubmission(t, db, "AB12CD", 42, "Jane Doe", "jane@x.com")
	testutil.CreateTestSubmission(t, db, "AB12CD", 42, "John Roe", "john@x.com")

	w := httptest.NewRecorder()
	h.ListSubmissions(w, testutil.MakeRequest("GET", "/admin/referral-submissions?limit=1", nil, testutil.AdminHeaders()))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.ListSubmissionsResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Limit != 1 || len(resp.Submissions) != 1 {
		t.Errorf("Expected one submission with limit 1, got %d (limit %d)", len(resp.Submissions), resp.Limit)
	}

	w = httptest.NewRecorder()
	h.ListSubmissions(w, testutil.MakeRequest("GET", "/admin/referral-submissions?limit=100000", nil, testutil.AdminHeaders()))
	testutil.AssertJSON(t, w, &resp)
	if resp.Limit != 500 {
		t.Errorf("Expected limit clamped to 500, got %d", resp.Limit)
	}
	if len(resp.Submissions) != 2 {
		t.Errorf("Expected 2 submissions, got %d", len(resp.Submissions))
	}
}

func TestMarkSubmissionsViewed(t *testing.T) {
	db, h := setupAdmin(t)
	first := testutil.CreateTestSubmission(t, db, "AB12CD", 42, "Jane Doe", "jane@x.com")
	testutil.CreateTestSubmission(t, db, "AB12CD", 42, "John Roe", "john@x.com")
	testutil.CreateTestSubmission(t, db, "AB12CD", 42, "Ann Poe", "ann@x.com")

	if got := unviewedCount(t, h); got != 3 {
		t.Fatalf("Expected 3 unviewed, got %d", got)
	}

	// single id
	req := testutil.MakeRequest("POST", "/admin/referral-submissions/"+first+"/viewed", nil, testutil.AdminHeaders())
	req.SetPathValue("id", first)
	w := httptest.NewRecorder()
	h.MarkSubmissionViewed(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	if got := unviewedCount(t, h); got != 2 {
		t.Errorf("Expected 2 unviewed, got %d", got)
	}

	// empty body marks the rest
	w = httptest.NewRecorder()
	h.MarkSubmissionsViewed(w, testutil.MakeRequest("POST", "/admin/referral-submissions/viewed", nil, testutil.AdminHeaders()))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.MarkViewedResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Updated != 2 {
		t.Errorf("Expected 2 updated, got %d", resp.Updated)
	}
	if got := unviewedCount(t, h); got != 0 {
		t.Errorf("Expected 0 unviewed, got %d", got)
	}
}

func TestMarkSubmissionsViewedByIDs(t *testing.T) {
	db, h := setupAdmin(t)
	a := testutil.CreateTestSubmission(t, db, "AB12CD", 42, "Jane Doe", "jane@x.com")
	b := testutil.CreateTestSubmission(t, db, "AB12CD", 42, "John Roe", "john@x.com")
	testutil.CreateTestSubmission(t, db, "AB12CD", 42, "Ann Poe", "ann@x.com")

	w := httptest.NewRecorder()
	h.MarkSubmissionsViewed(w, testutil.MakeRequest("POST", "/admin/referral-submissions/viewed",
		models.MarkViewedRequest{IDs: []string{a, b, "missing"}}, testutil.AdminHeaders()))
	testutil.AssertStatus(t, w, http.StatusOK)

	if got := unviewedCount(t, h); got != 1 {
		t.Errorf("Expected 1 unviewed, got %d", got)
	}
}

func TestMarkSubmissionsViewedBadJSON(t *testing.T) {
	_, h := setupAdmin(t)

	req := httptest.NewRequest("POST", "/admin/referral-submissions/viewed", bytes.NewBufferString("{nope"))
	w := httptest.NewRecorder()
	h.MarkSubmissionsViewed(w, req)
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestMarkSubmissionViewedNotFound(t *testing.T) {
	_, h := setupAdmin(t)

	req := testutil.MakeRequest("POST", "/admin/referral-submissions/nope/viewed", nil, testutil.AdminHeaders())
	req.SetPathValue("id", "nope")
	w := httptest.NewRecorder()
	h.MarkSubmissionViewed(w, req)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestUpdateSubmissionStatus(t *testing.T) {
	db, h := setupAdmin(t)
	id := testutil.CreateTestSubmission(t, db, "AB12CD", 42, "Jane Doe", "jane@x.com")

	notes := "called, follow up friday"
	req := testutil.MakeRequest("PUT", "/admin/referral-submissions/"+id+"/status",
		models.UpdateSubmissionStatusRequest{Status: models.SubmissionContacted, AdminNotes: &notes}, testutil.AdminHeaders())
	req.SetPathValue("id", id)
	w := httptest.NewRecorder()
	h.UpdateSubmissionStatus(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var sub models.ReferralSubmission
	testutil.AssertJSON(t, w, &sub)
	if sub.Status != models.SubmissionContacted {
		t.Errorf("Expected status contacted, got %s", sub.Status)
	}
	if sub.AdminNotes == nil || *sub.AdminNotes != notes {
		t.Errorf("Expected admin notes saved, got %v", sub.AdminNotes)
	}

	// omitted notes keep the previous value
	req = testutil.MakeRequest("PUT", "/admin/referral-submissions/"+id+"/status",
		models.UpdateSubmissionStatusRequest{Status: models.SubmissionApproved}, testutil.AdminHeaders())
	req.SetPathValue("id", id)
	w = httptest.NewRecorder()
	h.UpdateSubmissionStatus(w, req)
	testutil.AssertJSON(t, w, &sub)
	if sub.AdminNotes == nil || *sub.AdminNotes != notes {
		t.Errorf("Expected admin notes kept, got %v", sub.AdminNotes)
	}
}

func TestUpdateSubmissionStatusErrors(t *testing.T) {
	db, h := setupAdmin(t)
	id := testutil.CreateTestSubmission(t, db, "AB12CD", 42, "Jane Doe", "jane@x.com")

	testCases := []struct {
		name   string
		id     string
		status models.SubmissionStatus
		want   int
	}{
		{"back to pending", id, models.SubmissionPending, http.StatusBadRequest},
		{"unknown status", id, "archived", http.StatusBadRequest},
		{"missing submission", "nope", models.SubmissionReviewed, http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := testutil.MakeRequest("PUT", "/admin/referral-submissions/"+tc.id+"/status",
				models.UpdateSubmissionStatusRequest{Status: tc.status}, testutil.AdminHeaders())
			req.SetPathValue("id", tc.id)
			w := httptest.NewRecorder()
			h.UpdateSubmissionStatus(w, req)
			testutil.AssertStatus(t, w, tc.want)
		})
	}
}

func TestInvestmentRequestInbox(t *testing.T) {
	_, h := setupAdmin(t)

	amount := 25000.0
	for _, body := range []models.CreateInvestmentRequest{
		{InvestorID: 42, Amount: &amount},
		{InvestorID: 42},
	} {
		w := httptest.NewRecorder()
		h.CreateInvestmentRequest(w, testutil.MakeRequest("POST", "/admin/investment-requests", body, testutil.AdminHeaders()))
		testutil.AssertStatus(t, w, http.StatusCreated)
	}

	w := httptest.NewRecorder()
	h.InvestmentsUnviewedCount(w, testutil.MakeRequest("GET", "/admin/investment-requests/unviewed-count", nil, testutil.AdminHeaders()))
	var count models.CountResponse
	testutil.AssertJSON(t, w, &count)
	if count.Count != 2 {
		t.Errorf("Expected 2 unviewed investment requests, got %d", count.Count)
	}

	w = httptest.NewRecorder()
	h.ListInvestmentRequests(w, testutil.MakeRequest("GET", "/admin/investment-requests?status=pending", nil, testutil.AdminHeaders()))
	testutil.AssertStatus(t, w, http.StatusOK)
	var list []models.InvestmentRequest
	testutil.AssertJSON(t, w, &list)
	if len(list) != 2 {
		t.Errorf("Expected 2 pending requests, got %d", len(list))
	}

	w = httptest.NewRecorder()
	h.MarkInvestmentsViewed(w, testutil.MakeRequest("POST", "/admin/investment-requests/viewed", nil, testutil.AdminHeaders()))
	var marked models.MarkViewedResponse
	testutil.AssertJSON(t, w, &marked)
	if marked.Updated != 2 {
		t.Errorf("Expected 2 marked viewed, got %d", marked.Updated)
	}
}

func TestInvestmentRequestErrors(t *testing.T) {
	_, h := setupAdmin(t)

	w := httptest.NewRecorder()
	h.CreateInvestmentRequest(w, testutil.MakeRequest("POST", "/admin/investment-requests",
		models.CreateInvestmentRequest{InvestorID: 0}, testutil.AdminHeaders()))
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	w = httptest.NewRecorder()
	h.ListInvestmentRequests(w, testutil.MakeRequest("GET", "/admin/investment-requests?status=maybe", nil, testutil.AdminHeaders()))
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestWatchInboxServesLiveSnapshot(t *testing.T) {
	db, h := setupAdmin(t)
	hub := changefeed.NewHub(nil)
	testutil.CreateTestSubmission(t, db, "AB12CD", 42, "Jane Doe", "jane@x.com")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.WatchInbox(ctx, hub)

	live := h.inbox.Load()
	waitForGeneration(t, live, 1)

	testutil.CreateTestSubmission(t, db, "AB12CD", 42, "John Roe", "john@x.com")
	changefeed.Publish(hub, "referral_submissions", changefeed.OpInsert, "")
	waitForGeneration(t, live, 2)

	w := httptest.NewRecorder()
	h.ListSubmissions(w, testutil.MakeRequest("GET", "/admin/referral-submissions", nil, testutil.AdminHeaders()))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.ListSubmissionsResponse
	testutil.AssertJSON(t, w, &resp)
	if len(resp.Submissions) != 2 {
		t.Errorf("Expected 2 submissions from live inbox, got %d", len(resp.Submissions))
	}
}

func TestWatchInboxReadAfterWrite(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.CreateTestInvestor(t, db, 42, "Ref Errer", "ref@example.com")
	testutil.CreateTestCode(t, db, 42, "AB12CD")
	id := testutil.CreateTestSubmission(t, db, "AB12CD", 42, "Jane Doe", "jane@x.com")

	hub := changefeed.NewHub(nil)
	h := NewAdminHandler(db, testutil.GetTestConfig(), hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.WatchInbox(ctx, hub)
	waitForGeneration(t, h.inbox.Load(), 1)

	statuses := []models.SubmissionStatus{models.SubmissionContacted, models.SubmissionApproved}
	for i := 0; i < 50; i++ {
		want := statuses[i%2]
		req := testutil.MakeRequest("PUT", "/admin/referral-submissions/"+id+"/status",
			models.UpdateSubmissionStatusRequest{Status: want}, testutil.AdminHeaders())
		req.SetPathValue("id", id)
		w := httptest.NewRecorder()
		h.UpdateSubmissionStatus(w, req)
		testutil.AssertStatus(t, w, http.StatusOK)

		w = httptest.NewRecorder()
		h.ListSubmissions(w, testutil.MakeRequest("GET", "/admin/referral-submissions", nil, testutil.AdminHeaders()))
		testutil.AssertStatus(t, w, http.StatusOK)

		var resp models.ListSubmissionsResponse
		testutil.AssertJSON(t, w, &resp)
		if len(resp.Submissions) != 1 {
			t.Fatalf("Expected 1 submission, got %d", len(resp.Submissions))
		}
		if resp.Submissions[0].Status != want {
			t.Fatalf("write %d: expected status %s, got %s", i, want, resp.Submissions[0].Status)
		}
	}
}

func waitForGeneration(t *testing.T, live *changefeed.LiveList[models.ReferralSubmission], gen uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for live.Generation() < gen {
		if time.Now().After(deadline) {
			t.Fatalf("live inbox stuck at generation %d, want %d", live.Generation(), gen)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
