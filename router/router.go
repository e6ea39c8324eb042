// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhkuo/referral-funnel/changefeed"
	"github.com/danielhkuo/referral-funnel/cliparse"
	"github.com/danielhkuo/referral-funnel/handlers"
	"github.com/danielhkuo/referral-funnel/middleware"
	"github.com/danielhkuo/referral-funnel/session"
)

// Options carries the collaborators that differ between deployments
type Options struct {
	// Hub feeds the admin event stream
	Hub *changefeed.Hub
	// Publisher receives writes from the stores. Set it on every backend;
	// the live inbox only notices writes that reach the hub.
	Publisher changefeed.Publisher
	// Attribution remembers each visitor's referral code
	Attribution *session.Attribution
}

// Router is the HTTP entry point
type Router struct {
	mux    *http.ServeMux
	hub    *changefeed.Hub
	funnel *handlers.FunnelHandler
	admin  *handlers.AdminHandler
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

// Watch starts the live admin views; they stop when ctx ends
func (rt *Router) Watch(ctx context.Context) {
	rt.admin.WatchInbox(ctx, rt.hub)
}

// Wait blocks until background work started by requests has finished
func (rt *Router) Wait() {
	rt.funnel.Wait()
}

func NewRouter(db *sql.DB, cfg cliparse.Config, opts Options) *Router {
	mux := http.NewServeMux()

	if opts.Hub == nil {
		opts.Hub = changefeed.NewHub(nil)
	}

	// Initialize handlers
	funnelHandler := handlers.NewFunnelHandler(db, cfg, opts.Publisher, opts.Attribution)
	investorHandler := handlers.NewInvestorHandler(db, cfg, opts.Publisher)
	adminHandler := handlers.NewAdminHandler(db, cfg, opts.Publisher)
	eventsHandler := handlers.NewEventsHandler(opts.Hub)

	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireAdmin(cfg.AdminKey, h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// Referrer side
	mux.HandleFunc("GET /investors/{id}/referral-code", middleware.WithLogging(investorHandler.GetReferralCode))
	mux.HandleFunc("GET /investors/{id}/referrals", middleware.WithLogging(investorHandler.ListReferrals))

	// Visitor funnel (public)
	mux.HandleFunc("POST /referrals/click", middleware.WithLogging(funnelHandler.TrackClick))
	mux.HandleFunc("POST /referrals/contact", middleware.WithLogging(funnelHandler.UpdateContact))
	mux.HandleFunc("POST /referrals/submit", middleware.WithLogging(funnelHandler.Submit))
	mux.HandleFunc("POST /contact", middleware.WithLogging(funnelHandler.ContactForm))

	// Submission triage (admin)
	mux.HandleFunc("GET /admin/referral-submissions", admin(adminHandler.ListSubmissions))
	mux.HandleFunc("GET /admin/referral-submissions/unviewed-count", admin(adminHandler.SubmissionsUnviewedCount))
	mux.HandleFunc("POST /admin/referral-submissions/viewed", admin(adminHandler.MarkSubmissionsViewed))
	mux.HandleFunc("POST /admin/referral-submissions/{id}/viewed", admin(adminHandler.MarkSubmissionViewed))
	mux.HandleFunc("PUT /admin/referral-submissions/{id}/status", admin(adminHandler.UpdateSubmissionStatus))
	mux.HandleFunc("POST /admin/referrals/{id}/activate", admin(investorHandler.ActivateReferral))

	// Investment requests (admin)
	mux.HandleFunc("GET /admin/investment-requests", admin(adminHandler.ListInvestmentRequests))
	mux.HandleFunc("POST /admin/investment-requests", admin(adminHandler.CreateInvestmentRequest))
	mux.HandleFunc("GET /admin/investment-requests/unviewed-count", admin(adminHandler.InvestmentsUnviewedCount))
	mux.HandleFunc("POST /admin/investment-requests/viewed", admin(adminHandler.MarkInvestmentsViewed))

	// Change stream; no request logging, the connection stays open
	mux.HandleFunc("GET /admin/events", middleware.RequireAdmin(cfg.AdminKey, eventsHandler.Stream))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("referral-funnel API v1"))
	})

	return &Router{mux: mux, hub: opts.Hub, funnel: funnelHandler, admin: adminHandler}
}
