// Package server coordinates session registration, message ordering, and
// broadcast fan-out for the Nexus chat system via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Hub tracks all admitted sessions and is the single ordering authority for
// messages. Registration, removal, and submission all funnel through one
// event loop, so every session observes messages in the same global order.
type Hub struct {
	sessions   map[*Client]bool
	history    *HistoryStore
	submit     chan Submission
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates and initializes a new Hub with an empty session set and an
// empty history. The returned Hub is ready to admit connections.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		sessions:   make(map[*Client]bool),
		history:    NewHistoryStore(),
		submit:     make(chan Submission),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// History returns the hub's message history store. The HTTP gateway reads
// snapshots from it; only the hub's event loop appends.
func (h *Hub) History() *HistoryStore {
	return h.history
}

// GetRegisterChan returns the channel used for admitting authenticated
// sessions to the hub. This channel is write-only from the caller's perspective.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for removing sessions from the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// GetSubmitChan returns the channel carrying accepted inbound messages into
// the hub's serialized ordering path.
func (h *Hub) GetSubmitChan() chan<- Submission {
	return h.submit
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	// Hold the lock during the entire send operation to prevent race conditions
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.sessions[client]
	if !exists || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// Run starts the hub's main event loop, handling session admission, removal,
// and message submission. This method should be called in a separate
// goroutine as it runs indefinitely.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownSessions()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil session registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.sessions[client] = true
			sessionCount := len(h.sessions)
			h.mutex.Unlock()
			log.Printf("Session %s admitted for %q from %s. Total sessions: %d",
				client.sessionID, client.username, client.addr, sessionCount)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.sessions[client]; ok {
				delete(h.sessions, client)
				client.closed = true
				sessionCount := len(h.sessions)
				h.mutex.Unlock()
				// Close the channel after releasing the lock
				close(client.send)
				log.Printf("Session %s for %q removed. Total sessions: %d",
					client.sessionID, client.username, sessionCount)
			} else {
				h.mutex.Unlock()
			}

		case sub := <-h.submit:
			h.acceptSubmission(sub)
		}
	}
}

var hub = NewHub()

// acceptSubmission assigns identity and order to an inbound message, appends
// it to the history, and fans it out to every admitted session, the sender
// included. Runs only on the hub loop, so submissions never interleave.
func (h *Hub) acceptSubmission(sub Submission) {
	if sub.Sender == nil {
		log.Printf("Received submission with nil sender; skipping")
		return
	}

	// A session torn down between the read pump handing off the frame and the
	// loop reaching it is no longer authenticated; its frame is dropped.
	h.mutex.RLock()
	_, admitted := h.sessions[sub.Sender]
	h.mutex.RUnlock()
	if !admitted {
		log.Printf("Dropping submission from removed session %s", sub.Sender.sessionID)
		return
	}

	// The read pump trims before handing off; enforce the contract here too
	// so no caller can append blank text to the history.
	text := strings.TrimSpace(sub.Text)
	if text == "" {
		sub.Sender.rejectMessage(ErrEmptyMessage.Error())
		return
	}

	msg := h.history.Add(text, sub.Sender.username)

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error encoding message %d: %v", msg.ID, err)
		return
	}

	sessions := h.getSessionSnapshot()
	log.Printf("Broadcasting message %d from %q to %d sessions", msg.ID, msg.User, len(sessions))

	var failed []*Client
	for _, client := range sessions {
		if !h.safeSend(client, payload) {
			failed = append(failed, client)
		}
	}
	h.removeFailedSessions(failed)
}

// getSessionSnapshot returns a thread-safe snapshot of all admitted sessions.
// Fan-out iterates the snapshot, so sessions removed concurrently are simply
// skipped by safeSend rather than breaking iteration.
func (h *Hub) getSessionSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return lo.Keys(h.sessions)
}

// removeFailedSessions drops sessions whose send buffers were unreachable and
// closes their channels. A slow session never fails delivery to the others.
func (h *Hub) removeFailedSessions(failed []*Client) {
	if len(failed) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range failed {
		if _, exists := h.sessions[client]; exists {
			delete(h.sessions, client)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			log.Printf("Session %s for %q removed due to full send buffer", client.sessionID, client.username)
		}
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock
	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownSessions gracefully closes all active connections.
func (h *Hub) shutdownSessions() {
	log.Println("Shutting down all sessions...")

	h.mutex.Lock()
	sessions := lo.Keys(h.sessions)
	h.mutex.Unlock()

	for _, client := range sessions {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing connection for session %s: %v", client.sessionID, err)
				}
			}
		}
	}

	log.Printf("Closed %d sessions", len(sessions))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines
// to complete. It returns after all connections are closed and the pump
// goroutines have finished, or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()

	// Wait for Run() to complete
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
