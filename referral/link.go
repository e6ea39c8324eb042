// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package referral

import (
	"net/url"
	"strings"
)

// RefParam is the query parameter that carries a referral code
const RefParam = "ref"

// AffiliateLink builds the shareable link for code: <origin>?ref=<code>
func AffiliateLink(origin, code string) string {
	return strings.TrimRight(origin, "?") + "?" + RefParam + "=" + url.QueryEscape(code)
}
