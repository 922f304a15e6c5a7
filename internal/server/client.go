// Package server manages individual authenticated sessions, handling
// read/write pumps and lifecycle control for each WebSocket connection.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client represents one admitted session: an authenticated WebSocket
// connection bound to the username its token was issued for. The username is
// fixed at admission and is the only source of message authorship.
type Client struct {
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	addr           string
	sessionID      string
	username       string
	connectedAt    time.Time
	closed         bool
	maxMessageSize int64
}

// NewClient creates a session for a connection whose token already verified
// as the given username. The send channel is buffered to absorb bursts of
// fan-out without blocking the hub.
func NewClient(conn *websocket.Conn, hub *Hub, addr, username string) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		conn:           conn,
		send:           make(chan []byte, 256),
		hub:            hub,
		addr:           addr,
		sessionID:      uuid.NewString(),
		username:       username,
		connectedAt:    time.Now(),
		closed:         false,
		maxMessageSize: cfg.MaxMessageSize,
	}
}

// Username returns the authenticated identity this session was admitted under.
func (c *Client) Username() string {
	return c.username
}

// SessionID returns the opaque handle identifying this session.
func (c *Client) SessionID() string {
	return c.sessionID
}

// GetSendChan returns the client's send channel for reading outgoing messages.
// This channel is read-only from the caller's perspective.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", c.addr, err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", c.addr, err)
		}
		return nil
	})
}

// handleReadError logs appropriate error messages based on the error type
// and returns true if the read loop should break
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		log.Printf("Message from %s exceeded maximum size of %d bytes", c.addr, c.maxMessageSize)
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		log.Printf("Session %s (%s) disconnected: %v", c.sessionID, c.username, err)
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		log.Printf("Session %s connection closed: %v", c.sessionID, err)
		return true
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		log.Printf("Unexpected WebSocket error from %s: %v", c.addr, err)
		return true
	}

	log.Printf("WebSocket read error from %s: %v", c.addr, err)
	return true
}

// rejectMessage reports a rejected frame back to this session only. The
// rejection is never broadcast and never stored. Delivery goes through the
// hub's guarded send: an evicted session's channel is already closed, and the
// rejection is dropped rather than sent on it.
func (c *Client) rejectMessage(reason string) {
	payload, err := json.Marshal(ErrorEvent{Error: reason})
	if err != nil {
		return
	}
	c.hub.safeSend(c, payload)
}

// processMessage parses an inbound frame and hands it to the hub. Authorship
// comes from the session's authenticated username; a client-supplied user
// field is ignored. Empty or whitespace-only text is rejected to the sender.
func (c *Client) processMessage(rawMessage []byte) bool {
	var msg InboundMessage
	if err := json.Unmarshal(rawMessage, &msg); err != nil {
		log.Printf("Invalid frame from session %s: %v", c.sessionID, err)
		c.rejectMessage("invalid message")
		return false
	}

	if msg.User != "" && msg.User != c.username {
		log.Printf("Session %s (%s) supplied mismatched author %q; using authenticated identity",
			c.sessionID, c.username, msg.User)
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		c.rejectMessage(ErrEmptyMessage.Error())
		return false
	}

	select {
	case c.hub.submit <- Submission{Sender: c, Text: text}:
	case <-c.hub.ctx.Done():
		return false
	}
	return true
}

func (c *Client) readPump() {
	defer func() {
		// During hub shutdown the event loop is gone; don't block on it.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error closing connection in readPump: %v", err)
			}
		}
	}()

	c.setupReadConnection()

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				break
			}
			continue
		}

		c.processMessage(rawMessage)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	case <-c.hub.ctx.Done():
		return false
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error closing connection in writePump: %v", err)
		}
	}
}

// handleMessage processes outgoing messages and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		log.Printf("Error setting write deadline for %s: %v", c.addr, err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	return c.writeTextMessage(message)
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing close message to %s: %v", c.addr, err)
		}
	}
	return false
}

// writeTextMessage writes a single framed message. Queued fan-out messages
// are left in the channel so each broadcast arrives as its own frame.
func (c *Client) writeTextMessage(message []byte) bool {
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		log.Printf("Error writing message to %s: %v", c.addr, err)
		return false
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		log.Printf("Error setting write deadline for ping to %s: %v", c.addr, err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing ping message to %s: %v", c.addr, err)
		}
		return false
	}
	return true
}
