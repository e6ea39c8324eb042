// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// notification is the payload written by the notify_row_change trigger
type notification struct {
	Table string `json:"table"`
	Op    Op     `json:"op"`
	ID    string `json:"id"`
}

// DecodeNotification turns a NOTIFY payload into an Event
func DecodeNotification(payload string) (Event, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return Event{}, fmt.Errorf("decode notification: %w", err)
	}
	if n.Table == "" {
		return Event{}, fmt.Errorf("decode notification: missing table")
	}
	return Event{Table: n.Table, Op: n.Op, RowID: n.ID, At: time.Now().UTC()}, nil
}

// ListenPostgres forwards NOTIFY messages on channel into hub until ctx ends.
// Used when several server instances share one database, so every instance
// sees every write.
func ListenPostgres(ctx context.Context, dsn, channel string, hub *Hub, logger *slog.Logger) error {
	l := logger.With("component", "pq-listener", "channel", channel)

	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			l.Warn("listener event", "event", ev, "error", err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(channel); err != nil {
		return fmt.Errorf("listen %s: %w", channel, err)
	}
	l.Info("listening for row changes")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-listener.Notify:
			if n == nil {
				// connection was re-established; changes may have been missed
				for _, table := range trackedTables(hub) {
					hub.Publish(Event{Table: table, Op: OpUpdate, At: time.Now().UTC()})
				}
				continue
			}
			e, err := DecodeNotification(n.Extra)
			if err != nil {
				l.Warn("dropping bad notification", "error", err)
				continue
			}
			hub.Publish(e)
		case <-time.After(90 * time.Second):
			go func() {
				if err := listener.Ping(); err != nil {
					l.Warn("listener ping failed", "error", err)
				}
			}()
		}
	}
}

func trackedTables(h *Hub) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	tables := make([]string, 0, len(h.subs))
	for t := range h.subs {
		tables = append(tables, t)
	}
	return tables
}
