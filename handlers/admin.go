// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/danielhkuo/referral-funnel/changefeed"
	"github.com/danielhkuo/referral-funnel/cliparse"
	"github.com/danielhkuo/referral-funnel/investments"
	"github.com/danielhkuo/referral-funnel/metrics"
	"github.com/danielhkuo/referral-funnel/middleware"
	"github.com/danielhkuo/referral-funnel/models"
	"github.com/danielhkuo/referral-funnel/referral"
)

// AdminHandler serves the admin inboxes. Routes are wrapped in
// middleware.RequireAdmin by the router.
type AdminHandler struct {
	cfg         cliparse.Config
	triage      *referral.Triage
	investments *investments.Store

	// inbox holds the first page of submissions once WatchInbox runs
	inbox atomic.Pointer[changefeed.LiveList[models.ReferralSubmission]]
}

func NewAdminHandler(db *sql.DB, cfg cliparse.Config, publisher changefeed.Publisher) *AdminHandler {
	return &AdminHandler{
		cfg:         cfg,
		triage:      referral.NewTriage(db, publisher),
		investments: investments.NewStore(db, publisher),
	}
}

// WatchInbox keeps the default submissions page live from hub until ctx ends
func (h *AdminHandler) WatchInbox(ctx context.Context, hub *changefeed.Hub) {
	live := changefeed.NewLiveList[models.ReferralSubmission]("referral_submissions", func(ctx context.Context) ([]models.ReferralSubmission, error) {
		return h.triage.List(ctx, referral.DefaultPageSize, 0)
	}, nil)
	h.inbox.Store(live)

	go func() {
		if err := live.Run(ctx, hub); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("submission inbox watch stopped", "error", err)
		}
	}()
}

func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return v
}

// parseMarkViewed reads an optional id list; an empty body means all
func parseMarkViewed(r *http.Request) (models.MarkViewedRequest, error) {
	var req models.MarkViewedRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		return req, err
	}
	return req, nil
}

// ListSubmissions handles GET /admin/referral-submissions?limit=&offset=
func (h *AdminHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	limit, offset := referral.ClampPage(queryInt(r, "limit"), queryInt(r, "offset"))

	if live := h.inbox.Load(); live != nil && limit == referral.DefaultPageSize && offset == 0 {
		if subs, fresh := live.Snapshot(); fresh {
			middleware.JSONResponse(w, http.StatusOK, models.ListSubmissionsResponse{
				Submissions: subs,
				Limit:       limit,
				Offset:      offset,
			})
			return
		}
	}

	subs, err := h.triage.List(r.Context(), limit, offset)
	if err != nil {
		slog.Error("failed to list submissions", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ListSubmissionsResponse{
		Submissions: subs,
		Limit:       limit,
		Offset:      offset,
	})
}

// SubmissionsUnviewedCount handles GET /admin/referral-submissions/unviewed-count
func (h *AdminHandler) SubmissionsUnviewedCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.triage.UnviewedCount(r.Context())
	if err != nil {
		slog.Error("failed to count unviewed submissions", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.CountResponse{Count: count})
}

// MarkSubmissionsViewed handles POST /admin/referral-submissions/viewed
// Marks the listed ids, or every unviewed submission when none are given
func (h *AdminHandler) MarkSubmissionsViewed(w http.ResponseWriter, r *http.Request) {
	req, err := parseMarkViewed(r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var n int64
	if len(req.IDs) > 0 {
		n, err = h.triage.MarkViewedIDs(r.Context(), req.IDs)
	} else {
		n, err = h.triage.MarkAllViewed(r.Context())
	}
	if err != nil {
		slog.Error("failed to mark submissions viewed", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.MarkViewedResponse{Success: true, Updated: int(n)})
}

// MarkSubmissionViewed handles POST /admin/referral-submissions/{id}/viewed
func (h *AdminHandler) MarkSubmissionViewed(w http.ResponseWriter, r *http.Request) {
	err := h.triage.MarkViewed(r.Context(), r.PathValue("id"))
	if errors.Is(err, referral.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Submission not found")
		return
	}
	if err != nil {
		slog.Error("failed to mark submission viewed", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.MarkViewedResponse{Success: true})
}

// UpdateSubmissionStatus handles PUT /admin/referral-submissions/{id}/status
func (h *AdminHandler) UpdateSubmissionStatus(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateSubmissionStatusRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	sub, err := h.triage.SetStatus(r.Context(), r.PathValue("id"), req.Status, req.AdminNotes)
	switch {
	case errors.Is(err, referral.ErrInvalidStatus):
		middleware.ErrorResponse(w, http.StatusBadRequest, "status must be one of: reviewed, contacted, approved, rejected")
		return
	case errors.Is(err, referral.ErrNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, "Submission not found")
		return
	case err != nil:
		slog.Error("failed to update submission status", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	metrics.TriageTransitions.WithLabelValues(string(req.Status)).Inc()

	middleware.JSONResponse(w, http.StatusOK, sub)
}

// ListInvestmentRequests handles GET /admin/investment-requests?status=
func (h *AdminHandler) ListInvestmentRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.investments.List(r.Context(), models.InvestmentStatus(r.URL.Query().Get("status")))
	if errors.Is(err, investments.ErrInvalidStatus) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "status must be one of: pending, approved, rejected")
		return
	}
	if err != nil {
		slog.Error("failed to list investment requests", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, reqs)
}

// CreateInvestmentRequest handles POST /admin/investment-requests
func (h *AdminHandler) CreateInvestmentRequest(w http.ResponseWriter, r *http.Request) {
	var req models.CreateInvestmentRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	created, err := h.investments.Create(r.Context(), req)
	if errors.Is(err, investments.ErrInvalidRequest) {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to create investment request", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, created)
}

// InvestmentsUnviewedCount handles GET /admin/investment-requests/unviewed-count
func (h *AdminHandler) InvestmentsUnviewedCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.investments.UnviewedCount(r.Context())
	if err != nil {
		slog.Error("failed to count unviewed investment requests", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.CountResponse{Count: count})
}

// MarkInvestmentsViewed handles POST /admin/investment-requests/viewed
func (h *AdminHandler) MarkInvestmentsViewed(w http.ResponseWriter, r *http.Request) {
	req, err := parseMarkViewed(r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	n, err := h.investments.MarkViewed(r.Context(), req.IDs...)
	if err != nil {
		slog.Error("failed to mark investment requests viewed", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.MarkViewedResponse{Success: true, Updated: int(n)})
}
