// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package session carries a visitor's referral code between unrelated requests.

A visitor who arrives through ?ref=CODE may fill in the site contact form
days later. Attribution remembers the code per visitor session so that a later
request can still be credited. The storage backend, key prefix, and TTL are
all chosen by whoever constructs the Attribution; nothing here is global.
*/
package session
