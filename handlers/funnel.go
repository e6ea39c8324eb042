// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielhkuo/referral-funnel/auth"
	"github.com/danielhkuo/referral-funnel/changefeed"
	"github.com/danielhkuo/referral-funnel/cliparse"
	"github.com/danielhkuo/referral-funnel/metrics"
	"github.com/danielhkuo/referral-funnel/middleware"
	"github.com/danielhkuo/referral-funnel/models"
	"github.com/danielhkuo/referral-funnel/referral"
	"github.com/danielhkuo/referral-funnel/session"
)

const invalidLinkMessage = "invalid referral link"

// FunnelHandler serves the public visitor side: clicks, contact capture,
// the referral form, and the site contact form
type FunnelHandler struct {
	db          *sql.DB
	cfg         cliparse.Config
	tracker     *referral.Tracker
	intake      *referral.Intake
	side        *referral.SideAttributor
	attribution *session.Attribution
}

func NewFunnelHandler(db *sql.DB, cfg cliparse.Config, publisher changefeed.Publisher, attribution *session.Attribution) *FunnelHandler {
	registry := referral.NewRegistry(db)
	tracker := referral.NewTracker(db, registry, publisher, cfg.IPSalt)
	return &FunnelHandler{
		db:          db,
		cfg:         cfg,
		tracker:     tracker,
		intake:      referral.NewIntake(db, registry, referral.NewSQLDirectory(db), publisher),
		side:        referral.NewSideAttributor(tracker, referral.DefaultSideTimeout),
		attribution: attribution,
	}
}

// Wait blocks until background attributions finish
func (h *FunnelHandler) Wait() {
	h.side.Wait()
}

// rememberedCode is the code this visitor arrived with, if any
func (h *FunnelHandler) rememberedCode(r *http.Request, token string) string {
	if h.attribution == nil || token == "" {
		return ""
	}
	code, err := h.attribution.Code(r.Context(), token)
	if err != nil {
		slog.Warn("failed to read remembered referral code", "error", err)
		return ""
	}
	return code
}

// TrackClick handles POST /referrals/click
// Attributes a landing with ?ref=<code> to its referrer
func (h *FunnelHandler) TrackClick(w http.ResponseWriter, r *http.Request) {
	var req models.ClickRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.JSONResponse(w, http.StatusBadRequest, models.FunnelResponse{Error: "Invalid JSON"})
		return
	}

	res, err := h.tracker.TrackClick(r.Context(), referral.ClickInput{
		Code:         req.Code,
		VisitorToken: visitorToken(r),
		IP:           middleware.GetClientIP(r),
		UserAgent:    r.UserAgent(),
		LandingPath:  req.LandingPath,
	})
	if errors.Is(err, referral.ErrInvalidCode) {
		metrics.Clicks.WithLabelValues("invalid_code").Inc()
		middleware.JSONResponse(w, http.StatusBadRequest, models.FunnelResponse{Error: invalidLinkMessage})
		return
	}
	if err != nil {
		metrics.Clicks.WithLabelValues("error").Inc()
		slog.Error("failed to track click", "error", err)
		middleware.JSONResponse(w, http.StatusInternalServerError, models.FunnelResponse{Error: "Failed to track click"})
		return
	}
	metrics.Clicks.WithLabelValues("tracked").Inc()

	rememberVisitor(w, h.cfg, res.VisitorToken)
	if h.attribution != nil {
		if err := h.attribution.Remember(r.Context(), res.VisitorToken, referral.NormalizeCode(req.Code)); err != nil {
			// Non-fatal: the click itself is recorded
			slog.Warn("failed to remember referral code", "error", err)
		}
	}

	middleware.JSONResponse(w, http.StatusOK, models.FunnelResponse{
		Success:      true,
		ReferrerID:   &res.ReferrerID,
		ReferralID:   res.ReferralID,
		VisitorToken: res.VisitorToken,
	})
}

// UpdateContact handles POST /referrals/contact
// Attaches an email and name to the visitor's referral
func (h *FunnelHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	var req models.ContactRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.JSONResponse(w, http.StatusBadRequest, models.FunnelResponse{Error: "Invalid JSON"})
		return
	}

	token := visitorToken(r)
	code := req.Code
	if code == "" {
		code = h.rememberedCode(r, token)
	}
	if code == "" {
		middleware.JSONResponse(w, http.StatusBadRequest, models.FunnelResponse{Error: "no referral code for this visitor"})
		return
	}

	res, err := h.tracker.UpdateContact(r.Context(), referral.ContactInput{
		Code:         code,
		VisitorToken: token,
		Email:        req.Email,
		Name:         req.Name,
	})
	if err != nil {
		status, msg := funnelError(err)
		if status == http.StatusInternalServerError {
			slog.Error("failed to update referral contact", "error", err)
		}
		middleware.JSONResponse(w, status, models.FunnelResponse{Error: msg})
		return
	}

	if res.VisitorToken != "" {
		rememberVisitor(w, h.cfg, res.VisitorToken)
	}
	middleware.JSONResponse(w, http.StatusOK, models.FunnelResponse{
		Success:      true,
		ReferrerID:   &res.ReferrerID,
		ReferralID:   res.ReferralID,
		VisitorToken: res.VisitorToken,
	})
}

// Submit handles POST /referrals/submit
// Records the prospect form; the code may come from the body or the session
func (h *FunnelHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var form models.ReferralForm
	if err := middleware.ParseJSONBody(r, &form); err != nil {
		middleware.JSONResponse(w, http.StatusBadRequest, models.SubmitResponse{Error: "Invalid JSON"})
		return
	}

	token := visitorToken(r)
	if strings.TrimSpace(form.Code) == "" {
		form.Code = h.rememberedCode(r, token)
	}

	res, err := h.intake.Submit(r.Context(), referral.SubmitInput{VisitorToken: token, Form: form})
	if err != nil {
		status, msg := funnelError(err)
		switch {
		case errors.Is(err, referral.ErrInvalidInput):
			metrics.Submissions.WithLabelValues("invalid_input").Inc()
		case errors.Is(err, referral.ErrInvalidCode):
			metrics.Submissions.WithLabelValues("invalid_code").Inc()
		default:
			metrics.Submissions.WithLabelValues("error").Inc()
			slog.Error("failed to submit referral form", "error", err)
		}
		middleware.JSONResponse(w, status, models.SubmitResponse{Error: msg})
		return
	}

	status := http.StatusCreated
	if res.Existing {
		status = http.StatusOK
		metrics.Submissions.WithLabelValues("duplicate").Inc()
	} else {
		metrics.Submissions.WithLabelValues("created").Inc()
	}

	middleware.JSONResponse(w, status, models.SubmitResponse{Success: true, SubmissionID: res.SubmissionID})
}

// ContactForm handles POST /contact
// Stores a site contact message. When the visitor arrived through a referral
// link, their details are attributed in the background.
func (h *FunnelHandler) ContactForm(w http.ResponseWriter, r *http.Request) {
	var req models.ContactFormRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = referral.NormalizeEmail(req.Email)
	req.Message = strings.TrimSpace(req.Message)
	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}
	if !strings.Contains(req.Email, "@") {
		middleware.ErrorResponse(w, http.StatusBadRequest, "email must be a valid email address")
		return
	}
	if req.Message == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "message is required")
		return
	}

	token := visitorToken(r)
	code := h.rememberedCode(r, token)

	id, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate contact message ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to send message")
		return
	}

	var codeArg *string
	if code != "" {
		codeArg = &code
	}
	_, err = h.db.ExecContext(r.Context(), `
		INSERT INTO contact_messages (id, name, email, message, referral_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, req.Name, req.Email, req.Message, codeArg, time.Now().UTC())
	if err != nil {
		slog.Error("failed to insert contact message", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to send message")
		return
	}

	h.side.Attribute(r.Context(), referral.ContactInput{
		Code:         code,
		VisitorToken: token,
		Email:        req.Email,
		Name:         req.Name,
	})

	slog.Info("contact message received", "id", id, "attributed", code != "")
	middleware.JSONResponse(w, http.StatusCreated, models.FunnelResponse{Success: true})
}

// funnelError maps domain errors to a status and a user-facing message
func funnelError(err error) (int, string) {
	var verr *referral.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, referral.ErrInvalidCode):
		return http.StatusBadRequest, invalidLinkMessage
	case errors.Is(err, referral.ErrNotFound):
		return http.StatusNotFound, "Not found"
	}
	return http.StatusInternalServerError, "Something went wrong, please try again"
}
