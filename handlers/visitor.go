// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"strings"

	"github.com/danielhkuo/referral-funnel/auth"
	"github.com/danielhkuo/referral-funnel/cliparse"
	"github.com/danielhkuo/referral-funnel/middleware"
)

// VisitorCookie holds the visitor token for browsers that do not send the header
const VisitorCookie = "visitor_token"

// visitorToken returns the caller's tracking token, header first, or "" when
// none or an invalid one was sent
func visitorToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(middleware.VisitorTokenHeader)); auth.IsValidVisitorToken(token) {
		return token
	}
	if c, err := r.Cookie(VisitorCookie); err == nil && auth.IsValidVisitorToken(c.Value) {
		return c.Value
	}
	return ""
}

// rememberVisitor hands the token back as both header and cookie
func rememberVisitor(w http.ResponseWriter, cfg cliparse.Config, token string) {
	w.Header().Set(middleware.VisitorTokenHeader, token)
	http.SetCookie(w, &http.Cookie{
		Name:     VisitorCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   strings.HasPrefix(cfg.PublicOrigin, "https://"),
		SameSite: http.SameSiteLaxMode,
	})
}
