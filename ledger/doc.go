// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ledger tracks read state for admin inboxes.

An inbox table carries a nullable boolean viewed column and a viewed_at
timestamp. A row counts as unviewed while viewed is NULL or FALSE, and
optionally only while its status matches a filter. Marking is one-way:
viewed only moves to TRUE and viewed_at keeps its first value.

Schemas that predate the viewed column are still served. When a query fails
because the column is missing, counts fall back to the status filter alone and
marking becomes a successful no-op.
*/
package ledger
