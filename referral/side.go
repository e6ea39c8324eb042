// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package referral

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/danielhkuo/referral-funnel/metrics"
)

// ContactUpdater is the tracker operation side attribution runs
type ContactUpdater interface {
	UpdateContact(ctx context.Context, in ContactInput) (ContactResult, error)
}

// DefaultSideTimeout bounds a single side attribution
const DefaultSideTimeout = 5 * time.Second

// SideAttributor performs best-effort side attribution: attaching a
// visitor's contact details to their referral while some other action, like
// a general contact form, is the thing the visitor asked for. Attribution
// runs in the background, outlives the request that started it, and its
// failures are logged and dropped.
type SideAttributor struct {
	updater ContactUpdater
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewSideAttributor(updater ContactUpdater, timeout time.Duration) *SideAttributor {
	if timeout <= 0 {
		timeout = DefaultSideTimeout
	}
	return &SideAttributor{updater: updater, timeout: timeout}
}

// Attribute starts attribution and returns immediately. Inputs without a
// code are ignored.
func (s *SideAttributor) Attribute(ctx context.Context, in ContactInput) {
	if in.Code == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		res, err := s.updater.UpdateContact(ctx, in)
		if err != nil {
			metrics.SideAttributions.WithLabelValues("dropped").Inc()
			slog.Warn("side attribution dropped", "code", in.Code, "error", err)
			return
		}
		metrics.SideAttributions.WithLabelValues("recorded").Inc()
		slog.Info("side attribution recorded", "referral_id", res.ReferralID, "referrer_id", res.ReferrerID)
	}()
}

// Wait blocks until every started attribution has finished
func (s *SideAttributor) Wait() {
	s.wg.Wait()
}
