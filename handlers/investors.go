// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielhkuo/referral-funnel/changefeed"
	"github.com/danielhkuo/referral-funnel/cliparse"
	"github.com/danielhkuo/referral-funnel/middleware"
	"github.com/danielhkuo/referral-funnel/models"
	"github.com/danielhkuo/referral-funnel/referral"
)

// InvestorHandler serves the referrer side: their code, link, and referrals
type InvestorHandler struct {
	cfg      cliparse.Config
	registry *referral.Registry
	tracker  *referral.Tracker
}

func NewInvestorHandler(db *sql.DB, cfg cliparse.Config, publisher changefeed.Publisher) *InvestorHandler {
	registry := referral.NewRegistry(db)
	return &InvestorHandler{
		cfg:      cfg,
		registry: registry,
		tracker:  referral.NewTracker(db, registry, publisher, cfg.IPSalt),
	}
}

func investorID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// GetReferralCode handles GET /investors/{id}/referral-code
// Issues the investor's code on first call and returns it with the share link
func (h *InvestorHandler) GetReferralCode(w http.ResponseWriter, r *http.Request) {
	id, ok := investorID(r)
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "investor id must be a positive integer")
		return
	}

	rc, err := h.registry.GetOrCreateCode(r.Context(), id)
	if err != nil {
		// The link is unavailable; this says nothing about existing referrals
		slog.Error("failed to get referral code", "investor_id", id, "error", err)
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "Referral link unavailable")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ReferralCodeResponse{
		InvestorID: rc.InvestorID,
		Code:       rc.Code,
		Link:       referral.AffiliateLink(h.cfg.PublicOrigin, rc.Code),
	})
}

// ListReferrals handles GET /investors/{id}/referrals
func (h *InvestorHandler) ListReferrals(w http.ResponseWriter, r *http.Request) {
	id, ok := investorID(r)
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "investor id must be a positive integer")
		return
	}

	refs, err := h.tracker.ListByReferrer(r.Context(), id)
	if err != nil {
		slog.Error("failed to list referrals", "investor_id", id, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, refs)
}

// ActivateReferral handles POST /admin/referrals/{id}/activate
// Marks a submitted referral's prospect as an active investor
func (h *InvestorHandler) ActivateReferral(w http.ResponseWriter, r *http.Request) {
	ref, err := h.tracker.MarkActiveInvestor(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, referral.ErrNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, "Referral not found")
		return
	case errors.Is(err, referral.ErrInvalidStatus):
		middleware.ErrorResponse(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		slog.Error("failed to activate referral", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, ref)
}
