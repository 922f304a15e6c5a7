// Package server wires HTTP handlers into a ServeMux for the Nexus chat
// application via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns the application's HTTP handler. It sets
// up the health check, the auth endpoints, the history endpoint, and the
// WebSocket endpoint, all behind the origin-aware CORS middleware.
func SetupRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/api/register", RegisterHandler)
	mux.HandleFunc("/api/login", LoginHandler)
	mux.HandleFunc("/api/messages", MessagesHandler)
	mux.HandleFunc("/ws", WebSocketHandler)
	return corsMiddleware(mux)
}
