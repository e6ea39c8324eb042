// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides identifier generation and the admin key gate.

# Referral Codes

Referral codes are random Crockford base32 strings (no I, L, O, U):

	code, err := auth.GenerateReferralCode(auth.DefaultCodeLength)

Codes are never derived from the investor id, so they leak nothing about
who owns them. Uniqueness is enforced by the referral_codes table; callers
retry with a fresh code on collision.

# Visitor Tokens

Anonymous visitors are identified by a UUID tracking context:

	token := auth.NewVisitorToken()

The token is what makes repeat clicks idempotent: one referral per
(code, visitor token).

# Admin Keys

Admin endpoints compare the X-Admin-Key header to the configured key:

	err := auth.ValidateAdminKey(r.Header.Get("X-Admin-Key"), cfg.AdminKey)

# ID Generation

Random hex IDs for database records:

	id, err := auth.GenerateID(16)  // 32 hex characters

# IP Hashing

Click events store a salted hash rather than the address:

	hash := auth.HashIP(ipAddress, salt)

Returns first 8 bytes (16 hex chars) of HMAC-SHA256.
*/
package auth
