// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics holds the Prometheus collectors. Call Init once from main.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "referral_http_request_duration_seconds",
			Help:    "Histogram of response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// Clicks by outcome: tracked, invalid_code, error
	Clicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_clicks_total",
			Help: "Referral link clicks by outcome",
		},
		[]string{"result"},
	)

	// Submissions by outcome: created, duplicate, invalid_input, invalid_code, error
	Submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_submissions_total",
			Help: "Referral form submissions by outcome",
		},
		[]string{"result"},
	)

	TriageTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_triage_transitions_total",
			Help: "Admin status changes on referral submissions",
		},
		[]string{"status"},
	)

	SideAttributions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_side_attributions_total",
			Help: "Best-effort contact attributions by outcome",
		},
		[]string{"result"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCount, RequestDuration, Clicks, Submissions, TriageTransitions, SideAttributions)
}
