// Package testhelpers provides common utilities for testing the Nexus chat server.
//
// It contains reusable helpers shared across unit and integration tests:
// creating test servers, registering users, dialing authenticated WebSocket
// connections, and reading broadcast frames with deadlines.
package testhelpers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/nexus-chat-server/internal/server"
)

// TestSecret is the signing secret used by all tests.
const TestSecret = "test-signing-secret"

// ConfigureServer installs a test configuration whose allowed origins include
// the given base URL, applies any extra customization, and restores the
// default configuration when the test finishes.
func ConfigureServer(t *testing.T, baseURL string, customize func(cfg *server.Config)) {
	t.Helper()

	cfg := server.NewConfig()
	cfg.JWTSecret = TestSecret
	cfg.BcryptCost = 4
	if baseURL != "" {
		cfg.AllowedOrigins = append([]string{baseURL}, cfg.AllowedOrigins...)
	}
	if customize != nil {
		customize(cfg)
	}
	server.SetConfig(cfg)
	t.Cleanup(func() {
		server.SetConfig(nil)
	})
}

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// PostJSON sends a JSON body to the given URL with the origin header set.
func PostJSON(t *testing.T, url, origin string, body any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request body: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request to %s failed: %v", url, err)
	}
	return resp
}

// RegisterUser registers a user through the API and returns the identity
// token cookie from the response. It fails the test on any non-200 answer.
func RegisterUser(t *testing.T, baseURL, username, password string) *http.Cookie {
	t.Helper()

	resp := PostJSON(t, baseURL+"/api/register", baseURL, map[string]string{
		"username": username,
		"password": password,
	})
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Registration of %q failed with status %d", username, resp.StatusCode)
	}

	cookie := TokenCookie(resp)
	if cookie == nil {
		t.Fatalf("Registration of %q set no token cookie", username)
	}
	return cookie
}

// TokenCookie extracts the identity token cookie from a response, or nil.
func TokenCookie(resp *http.Response) *http.Cookie {
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "jwt" {
			return cookie
		}
	}
	return nil
}

// WebSocketURL converts an httptest server base URL into its /ws endpoint.
func WebSocketURL(t *testing.T, baseURL string) string {
	t.Helper()

	u, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("Failed to parse base URL %q: %v", baseURL, err)
	}
	u.Scheme = "ws"
	u.Path = "/ws"
	return u.String()
}

// DialWebSocket opens an authenticated WebSocket connection using the given
// token cookie and origin. The caller owns the returned connection.
func DialWebSocket(t *testing.T, wsURL, origin string, cookie *http.Cookie) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	if cookie != nil {
		header.Set("Cookie", cookie.Name+"="+cookie.Value)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", wsURL, err)
	}
	_ = resp.Body.Close()
	return conn
}

// SendChatMessage writes an inbound chat frame on the connection.
func SendChatMessage(t *testing.T, conn *websocket.Conn, text, user string) {
	t.Helper()

	payload, err := json.Marshal(server.InboundMessage{Text: text, User: user})
	if err != nil {
		t.Fatalf("Failed to marshal chat message: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("Failed to send chat message: %v", err)
	}
}

// ReadBroadcast reads the next frame and decodes it as a broadcast message.
func ReadBroadcast(t *testing.T, conn *websocket.Conn, timeout time.Duration) server.Message {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}

	var msg server.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("Failed to decode broadcast %q: %v", payload, err)
	}
	return msg
}

// ReadErrorEvent reads the next frame and decodes it as an error event.
func ReadErrorEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) server.ErrorEvent {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read error event: %v", err)
	}

	var event server.ErrorEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("Failed to decode error event %q: %v", payload, err)
	}
	return event
}

// ExpectNoMessage asserts that nothing arrives on the connection before the
// timeout elapses.
func ExpectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no message, but received %q", payload)
	}
	if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	t.Fatalf("Unexpected error while waiting for absence of message: %v", err)
}
