// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/danielhkuo/referral-funnel/metrics"
)

func TestWithMetricsCountsByPattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /investors/{id}/referrals", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := WithMetrics(mux)

	counter := metrics.RequestCount.WithLabelValues("GET /investors/{id}/referrals", "GET", "418")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"1", "2", "3"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/investors/"+id+"/referrals", nil))
		assert.Equal(t, http.StatusTeapot, w.Code)
	}

	assert.Equal(t, before+3, testutil.ToFloat64(counter))
}

func TestWithMetricsImplicitOK(t *testing.T) {
	handler := WithMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	counter := metrics.RequestCount.WithLabelValues("unmatched", "GET", "200")
	before := testutil.ToFloat64(counter)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestRequireAdmin(t *testing.T) {
	called := false
	handler := RequireAdmin("secret", func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		key    string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusUnauthorized},
		{"correct", "secret", http.StatusNoContent},
	}

	t.Run("query parameter", func(t *testing.T) {
		called = false
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest("GET", "/admin/events?admin_key=secret", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.True(t, called)
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called = false
			req := httptest.NewRequest("GET", "/admin/referral-submissions", nil)
			if tt.key != "" {
				req.Header.Set(AdminKeyHeader, tt.key)
			}
			w := httptest.NewRecorder()
			handler(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.status == http.StatusNoContent, called)
		})
	}
}

func TestRecoverer(t *testing.T) {
	handler := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
