package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/nexus-chat-server/internal/server"
	"github.com/Tyrowin/nexus-chat-server/test/testhelpers"
)

// Shutdown tests run against hubs created locally so the process-global hub
// used by the other integration tests keeps running.

func TestGracefulShutdownIdleHub(t *testing.T) {
	hub := server.NewHub()
	go hub.Run()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, hub.Shutdown(5*time.Second))
}

// TestGracefulShutdownWithSessions admits real WebSocket sessions into a
// local hub and verifies shutdown closes every connection within the bound.
func TestGracefulShutdownWithSessions(t *testing.T) {
	testhelpers.ConfigureServer(t, "", func(cfg *server.Config) {
		cfg.AllowedOrigins = []string{"*"}
	})

	hub := server.NewHub()
	go hub.Run()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := server.NewClient(conn, hub, r.RemoteAddr, "shutdown-tester")
		hub.GetRegisterChan() <- client
	})

	testServer := testhelpers.CreateTestServer(mux)
	defer testServer.Close()
	wsURL := testhelpers.WebSocketURL(t, testServer.URL)

	const numClients = 5
	conns := make([]*websocket.Conn, numClients)
	for i := range conns {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err, "client %d failed to connect", i)
		conns[i] = conn
		defer func() { _ = conn.Close() }()
	}
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, hub.Shutdown(5*time.Second))

	// Every client should observe its connection closing promptly.
	closed := 0
	for i, conn := range conns {
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		if _, _, err := conn.ReadMessage(); err != nil {
			closed++
		} else {
			t.Errorf("client %d still receiving after shutdown", i)
		}
	}
	assert.Equal(t, numClients, closed)
}

func TestShutdownServerStopsListening(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", server.HealthHandler)
	httpServer := server.CreateServer("127.0.0.1:18095", mux)

	go func() { _ = server.StartServer(httpServer) }()
	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get("http://" + httpServer.Addr + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.NoError(t, server.ShutdownServer(httpServer, 5*time.Second))

	_, err = http.Get("http://" + httpServer.Addr + "/")
	assert.Error(t, err, "server should refuse connections after shutdown")
}

func TestHubShutdownTimesOutGracefully(t *testing.T) {
	hub := server.NewHub()
	go hub.Run()
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	err := hub.Shutdown(2 * time.Second)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, 2*time.Second, "idle hub must shut down well before the timeout")
}
