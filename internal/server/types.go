// Package server defines the wire-level message types shared between the
// client pumps, the hub, and the HTTP history endpoint.
package server

import (
	"errors"
	"strings"
)

// ErrEmptyMessage rejects frames whose text is empty after trimming.
var ErrEmptyMessage = errors.New("empty message")

// Message is the broadcast payload delivered to every connected session and
// stored in the history. IDs are assigned by the hub in acceptance order.
type Message struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	User      string `json:"user"`
	Timestamp string `json:"timestamp"`
}

// InboundMessage is the V1 JSON frame a client sends over the WebSocket.
// The User field is accepted for wire compatibility but never trusted;
// authorship always comes from the authenticated session.
type InboundMessage struct {
	Text string `json:"text"`
	User string `json:"user,omitempty"`
}

// ErrorEvent is sent back to a single client whose frame was rejected.
// It is never broadcast.
type ErrorEvent struct {
	Error string `json:"error"`
}

// Submission is an accepted inbound frame queued for the hub's serialized
// ordering and fan-out path, tagged with the session that sent it.
type Submission struct {
	Sender *Client
	Text   string
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
