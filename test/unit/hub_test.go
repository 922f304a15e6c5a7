package unit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/nexus-chat-server/internal/server"
)

func TestNewHub(t *testing.T) {
	hub := server.NewHub()

	require.NotNil(t, hub)
	require.NotNil(t, hub.History())

	select {
	case hub.GetRegisterChan() <- nil:
	case <-time.After(10 * time.Millisecond):
	}
}

func TestHubChannels(t *testing.T) {
	hub := server.NewHub()

	assert.NotNil(t, hub.GetRegisterChan())
	assert.NotNil(t, hub.GetUnregisterChan())
	assert.NotNil(t, hub.GetSubmitChan())
}

// TestHubRunSkipsNilRegistration verifies that a nil registration does not
// panic the event loop and admits no session.
func TestHubRunSkipsNilRegistration(t *testing.T) {
	hub := server.NewHub()
	go hub.Run()

	select {
	case hub.GetRegisterChan() <- nil:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Hub did not accept registration event")
	}

	require.NoError(t, hub.Shutdown(time.Second))
}

// TestHubRunSkipsNilSubmission verifies a submission without a sender is
// dropped without touching the history.
func TestHubRunSkipsNilSubmission(t *testing.T) {
	hub := server.NewHub()
	go hub.Run()

	select {
	case hub.GetSubmitChan() <- server.Submission{Text: "orphan"}:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Hub did not accept submission event")
	}

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, hub.History().Len())

	require.NoError(t, hub.Shutdown(time.Second))
}

func TestHubShutdownIsBounded(t *testing.T) {
	hub := server.NewHub()
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	start := time.Now()
	require.NoError(t, hub.Shutdown(2*time.Second))
	assert.Less(t, time.Since(start), 2*time.Second)
}
