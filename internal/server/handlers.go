// Package server exposes HTTP handlers, including the authenticated
// WebSocket upgrade and the health check.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler admits authenticated clients to the chat. The token cookie
// is verified before the upgrade; a missing or invalid token rejects the
// request with 401 and the connection is never admitted to the hub.
func WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	username, err := authenticateRequest(r)
	if err != nil {
		log.Printf("Rejected WebSocket upgrade from %s: %v", r.RemoteAddr, err)
		writeMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	// Register the session with the hub; the hub launches the pump goroutines.
	admitSession(NewClient(conn, hub, r.RemoteAddr, username))
}

// admitSession hands a session to its hub's event loop. If the hub has
// already shut down nobody drains the register channel, so the connection is
// closed instead of blocking the caller forever.
func admitSession(client *Client) {
	select {
	case client.hub.register <- client:
	case <-client.hub.ctx.Done():
		log.Printf("Hub stopped; closing connection from %s without admitting session", client.addr)
		if client.conn == nil {
			return
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection for unadmitted session: %v", err)
		}
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Nexus chat server is running!")
}
