// Package server keeps the append-only, in-memory record of every accepted
// chat message, and owns the identifier sequence that orders them.
package server

import (
	"sync"
	"time"
)

// HistoryStore is the ordered, append-only sequence of accepted messages.
// Identifier allocation and the append happen under one lock, so concurrent
// submissions always receive distinct, strictly increasing IDs matching the
// order they were accepted. The log lives only for the process lifetime.
type HistoryStore struct {
	mu       sync.Mutex
	messages []Message
	nextID   int64
}

// NewHistoryStore creates an empty history whose first message gets ID 1.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{nextID: 1}
}

// Add accepts a message, assigning the next identifier and the acceptance
// timestamp, and appends it to the history. This is the submit critical
// section: no two calls interleave between allocation and append.
func (h *HistoryStore) Add(text, user string) Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	msg := Message{
		ID:        h.nextID,
		Text:      text,
		User:      user,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	h.nextID++
	h.messages = append(h.messages, msg)
	return msg
}

// Snapshot returns a copy of all messages in acceptance order. Callers never
// see the live slice, so the store's internal state cannot be mutated from
// outside.
func (h *HistoryStore) Snapshot() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]Message(nil), h.messages...)
}

// Len reports the number of accepted messages.
func (h *HistoryStore) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}
