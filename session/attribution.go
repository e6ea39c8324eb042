// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"context"
	"errors"
	"time"
)

// Attribution remembers which referral code a visitor session arrived with
type Attribution struct {
	store Store
	key   string
	ttl   time.Duration
}

// NewAttribution stores codes under "<key>:<session id>" for ttl
func NewAttribution(store Store, key string, ttl time.Duration) *Attribution {
	return &Attribution{store: store, key: key, ttl: ttl}
}

func (a *Attribution) storageKey(sessionID string) string {
	return a.key + ":" + sessionID
}

// Remember records code for the session, replacing any earlier code
func (a *Attribution) Remember(ctx context.Context, sessionID, code string) error {
	if sessionID == "" || code == "" {
		return nil
	}
	return a.store.Set(ctx, a.storageKey(sessionID), code, a.ttl)
}

// Code returns the remembered code, or "" when there is none
func (a *Attribution) Code(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", nil
	}
	code, err := a.store.Get(ctx, a.storageKey(sessionID))
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return code, err
}

func (a *Attribution) Forget(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return a.store.Delete(ctx, a.storageKey(sessionID))
}
