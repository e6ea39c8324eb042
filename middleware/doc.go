// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging and Metrics

Wrap route handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (status, duration_ms).

WithMetrics wraps the whole mux and records Prometheus request counts and
latency labelled by the matched route pattern, so path values such as
investor ids do not multiply series.

# Admin Routes

	mux.HandleFunc("GET /admin/referral-submissions",
		middleware.WithLogging(middleware.RequireAdmin(cfg.AdminKey, h.List)))

Requests must carry the configured key in X-Admin-Key. The admin_key query
parameter is accepted too, since EventSource cannot set headers.

# Panics

Recoverer (chi's) turns a panicking handler into a 500 and logs the stack.

# CORS Middleware

Enable cross-origin requests for frontend access:

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

Allows methods GET, POST, PUT, DELETE, OPTIONS with headers
Content-Type, Authorization, X-Admin-Key, X-Visitor-Token, and exposes
X-Visitor-Token so the frontend can keep it.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

	var form models.ReferralForm
	if err := middleware.ParseJSONBody(r, &form); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# Client IP Extraction

	ip := middleware.GetClientIP(r)

Checks X-Forwarded-For, then X-Real-IP, then RemoteAddr. Click events store
only a salted hash of the result.
*/
package middleware
