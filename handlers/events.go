// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/danielhkuo/referral-funnel/changefeed"
	"github.com/danielhkuo/referral-funnel/db"
	"github.com/danielhkuo/referral-funnel/middleware"
)

// heartbeatInterval keeps idle proxies from closing the stream
const heartbeatInterval = 25 * time.Second

type EventsHandler struct {
	hub *changefeed.Hub
}

func NewEventsHandler(hub *changefeed.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream handles GET /admin/events?table=<name>
// Server-sent events; each "change" event means the client must refetch
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")
	if !slices.Contains(db.WatchedTables, table) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "table must be one of the watched tables")
		return
	}

	rc := http.NewResponseController(w)
	events, cancel := h.hub.Subscribe(table)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, ": connected\n\n")
	if err := rc.Flush(); err != nil {
		slog.Error("event stream cannot flush", "error", err)
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				slog.Error("failed to encode change event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", data)
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
