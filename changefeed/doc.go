// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package changefeed broadcasts coarse row-change events keyed by table name.

Events only say that something in a table changed. Consumers throw away what
they hold and refetch the whole list; LiveList packages that behavior.

The stores publish straight into a Hub, and Hub.Publish runs the OnPublish
hooks before it returns, so a LiveList is stale by the time the write's
response goes out. With Postgres, triggers also NOTIFY on a channel and
ListenPostgres feeds the Hub, so writes from any instance reach every
subscriber. Events can repeat; they are refetch hints, not a log.
*/
package changefeed
