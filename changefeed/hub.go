// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package changefeed

import (
	"log/slog"
	"sync"
	"time"
)

type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Event says that a row in Table changed. Subscribers must refetch; the
// event carries no row data.
type Event struct {
	Table string    `json:"table"`
	Op    Op        `json:"op"`
	RowID string    `json:"id,omitempty"`
	At    time.Time `json:"at"`
}

// Publisher is what writers depend on. A nil Publisher is allowed everywhere.
type Publisher interface {
	Publish(e Event)
}

// Publish sends e through p when p is set
func Publish(p Publisher, table string, op Op, rowID string) {
	if p == nil {
		return
	}
	p.Publish(Event{Table: table, Op: op, RowID: rowID, At: time.Now().UTC()})
}

// subscriberBuffer is small on purpose: one queued event already forces a refetch
const subscriberBuffer = 1

type hook struct{ fn func() }

// Hub fans events out to subscribers by table name
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{}
	hooks  map[string]map[*hook]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[string]map[chan Event]struct{}),
		hooks:  make(map[string]map[*hook]struct{}),
		logger: logger.With("component", "changefeed"),
	}
}

// Subscribe returns a channel of events for table and a cancel func that
// closes it. Events that arrive while one is already queued are coalesced.
func (h *Hub) Subscribe(table string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[table] == nil {
		h.subs[table] = make(map[chan Event]struct{})
	}
	h.subs[table][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[table], ch)
			if len(h.subs[table]) == 0 {
				delete(h.subs, table)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// OnPublish registers fn to run inside Publish for table, before any
// subscriber channel is signalled. fn must not block or call back into the Hub.
func (h *Hub) OnPublish(table string, fn func()) func() {
	hk := &hook{fn: fn}

	h.mu.Lock()
	if h.hooks[table] == nil {
		h.hooks[table] = make(map[*hook]struct{})
	}
	h.hooks[table][hk] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.hooks[table], hk)
			if len(h.hooks[table]) == 0 {
				delete(h.hooks, table)
			}
			h.mu.Unlock()
		})
	}
}

// Publish never blocks. Hooks have run by the time it returns.
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for hk := range h.hooks[e.Table] {
		hk.fn()
	}
	for ch := range h.subs[e.Table] {
		select {
		case ch <- e:
		default:
			// already has a pending invalidation
		}
	}
	h.logger.Debug("change published", "table", e.Table, "op", e.Op, "id", e.RowID)
}

// SubscriberCount reports how many subscribers table has
func (h *Hub) SubscriberCount(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[table])
}
