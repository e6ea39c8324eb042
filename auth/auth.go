// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrInvalidAdminKey = errors.New("invalid admin key")
	ErrCodeTooShort    = errors.New("referral code length must be at least 6")
)

// MinCodeLength is the shortest referral code GenerateReferralCode will produce
const MinCodeLength = 6

// DefaultCodeLength gives 40 bits of entropy
const DefaultCodeLength = 8

// Crockford base32 without I, L, O, U so codes survive being read aloud
const codeAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateReferralCode creates a random uppercase base32 code.
// Each byte of randomness is masked to 5 bits, so every symbol is equally likely.
func GenerateReferralCode(length int) (string, error) {
	if length < MinCodeLength {
		return "", ErrCodeTooShort
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate referral code: %w", err)
	}

	for i := range b {
		b[i] = codeAlphabet[b[i]&0x1f]
	}
	return string(b), nil
}

// IsValidCodeFormat reports whether code could have been produced by GenerateReferralCode
func IsValidCodeFormat(code string) bool {
	if len(code) < MinCodeLength || len(code) > 32 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if indexByte(codeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

// NewVisitorToken creates the tracking context for an anonymous visitor
func NewVisitorToken() string {
	return uuid.NewString()
}

// IsValidVisitorToken reports whether token parses as a UUID
func IsValidVisitorToken(token string) bool {
	return uuid.Validate(token) == nil
}

// ValidateAdminKey compares the provided key against the configured one in constant time.
// An empty configured key never validates.
func ValidateAdminKey(provided, configured string) error {
	if configured == "" || provided == "" {
		return ErrInvalidAdminKey
	}
	if !hmac.Equal([]byte(provided), []byte(configured)) {
		return ErrInvalidAdminKey
	}
	return nil
}

// HashIP creates a one-way hash of an IP address for privacy
// Includes salt to prevent rainbow table attacks
func HashIP(ip, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(ip))
	sum := h.Sum(nil)
	// Return first 16 hex chars (64 bits) - enough for deduplication
	return hex.EncodeToString(sum[:8])
}
