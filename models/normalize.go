// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrMissingInvestorID = errors.New("investor row has no usable id")

// Field priorities for investor rows coming from the external directory.
// Exact names are tried in order first, then the same names case-insensitively,
// so investor_id beats id, and both beat INVESTOR_ID.
var (
	InvestorIDFields    = []string{"investor_id", "id"}
	InvestorNameFields  = []string{"name", "full_name", "investor_name"}
	InvestorEmailFields = []string{"email", "investor_email"}
)

// NormalizeInvestor maps a loosely shaped directory row onto Investor
func NormalizeInvestor(row map[string]any) (Investor, error) {
	raw, ok := lookupField(row, InvestorIDFields)
	if !ok {
		return Investor{}, ErrMissingInvestorID
	}
	id, err := toInt64(raw)
	if err != nil || id <= 0 {
		return Investor{}, fmt.Errorf("%w: %v", ErrMissingInvestorID, raw)
	}

	inv := Investor{ID: id}
	if v, ok := lookupField(row, InvestorNameFields); ok {
		inv.Name = toOptionalString(v)
	}
	if v, ok := lookupField(row, InvestorEmailFields); ok {
		inv.Email = toOptionalString(v)
	}
	return inv, nil
}

// lookupField returns the first non-nil value for names, exact matches first
func lookupField(row map[string]any, names []string) (any, bool) {
	for _, name := range names {
		if v, ok := row[name]; ok && v != nil {
			return v, true
		}
	}
	for _, name := range names {
		for k, v := range row {
			if v != nil && strings.EqualFold(k, name) {
				return v, true
			}
		}
	}
	return nil, false
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("non-integer id %v", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(n)), 10, 64)
	}
	return 0, fmt.Errorf("unsupported id type %T", v)
}

func toOptionalString(v any) *string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		s = fmt.Sprint(t)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
