package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/nexus-chat-server/test/testhelpers"
)

const broadcastTimeout = 2 * time.Second

// TestBroadcastEchoAndDisconnect runs the canonical two-session scenario:
// both sessions receive A's message (sender echo included), and a disconnect
// by B must not disturb A's next submission.
func TestBroadcastEchoAndDisconnect(t *testing.T) {
	baseURL := startTestServer(t)
	wsURL := testhelpers.WebSocketURL(t, baseURL)

	aliceName := uniqueUsername("alice")
	bobName := uniqueUsername("bob")
	aliceCookie := testhelpers.RegisterUser(t, baseURL, aliceName, "a-strong-password")
	bobCookie := testhelpers.RegisterUser(t, baseURL, bobName, "a-strong-password")

	alice := testhelpers.DialWebSocket(t, wsURL, baseURL, aliceCookie)
	defer func() { _ = alice.Close() }()
	bob := testhelpers.DialWebSocket(t, wsURL, baseURL, bobCookie)

	// Give the hub time to admit both sessions.
	time.Sleep(50 * time.Millisecond)

	testhelpers.SendChatMessage(t, alice, "hello", aliceName)

	first := testhelpers.ReadBroadcast(t, alice, broadcastTimeout)
	assert.Equal(t, "hello", first.Text)
	assert.Equal(t, aliceName, first.User)
	assert.NotEmpty(t, first.Timestamp)

	bobCopy := testhelpers.ReadBroadcast(t, bob, broadcastTimeout)
	assert.Equal(t, first, bobCopy, "all sessions must observe the same message")

	// B disconnects; A's next message must still go through with the next ID.
	require.NoError(t, bob.Close())
	time.Sleep(50 * time.Millisecond)

	testhelpers.SendChatMessage(t, alice, "world", aliceName)

	second := testhelpers.ReadBroadcast(t, alice, broadcastTimeout)
	assert.Equal(t, "world", second.Text)
	assert.Equal(t, aliceName, second.User)
	assert.Equal(t, first.ID+1, second.ID)
}

// TestBroadcastOrderingAcrossSessions sends several messages from two
// sessions and checks every session observes strictly increasing IDs.
func TestBroadcastOrderingAcrossSessions(t *testing.T) {
	baseURL := startTestServer(t)
	wsURL := testhelpers.WebSocketURL(t, baseURL)

	aliceName := uniqueUsername("orda")
	bobName := uniqueUsername("ordb")
	aliceCookie := testhelpers.RegisterUser(t, baseURL, aliceName, "a-strong-password")
	bobCookie := testhelpers.RegisterUser(t, baseURL, bobName, "a-strong-password")

	alice := testhelpers.DialWebSocket(t, wsURL, baseURL, aliceCookie)
	defer func() { _ = alice.Close() }()
	bob := testhelpers.DialWebSocket(t, wsURL, baseURL, bobCookie)
	defer func() { _ = bob.Close() }()

	time.Sleep(50 * time.Millisecond)

	const perSender = 5
	for i := 0; i < perSender; i++ {
		testhelpers.SendChatMessage(t, alice, "from alice", aliceName)
		testhelpers.SendChatMessage(t, bob, "from bob", bobName)
	}

	total := 2 * perSender
	aliceIDs := make([]int64, 0, total)
	bobIDs := make([]int64, 0, total)
	for i := 0; i < total; i++ {
		aliceIDs = append(aliceIDs, testhelpers.ReadBroadcast(t, alice, broadcastTimeout).ID)
		bobIDs = append(bobIDs, testhelpers.ReadBroadcast(t, bob, broadcastTimeout).ID)
	}

	require.Equal(t, aliceIDs, bobIDs, "sessions must observe the same global order")
	for i := 1; i < len(aliceIDs); i++ {
		assert.Greater(t, aliceIDs[i], aliceIDs[i-1])
	}
}

// TestHistoryMatchesBroadcasts confirms a message delivered over the channel
// also shows up, identically, in the HTTP history snapshot.
func TestHistoryMatchesBroadcasts(t *testing.T) {
	baseURL := startTestServer(t)
	wsURL := testhelpers.WebSocketURL(t, baseURL)

	username := uniqueUsername("histmatch")
	cookie := testhelpers.RegisterUser(t, baseURL, username, "a-strong-password")

	conn := testhelpers.DialWebSocket(t, wsURL, baseURL, cookie)
	defer func() { _ = conn.Close() }()
	time.Sleep(50 * time.Millisecond)

	testhelpers.SendChatMessage(t, conn, "for the record", username)
	broadcast := testhelpers.ReadBroadcast(t, conn, broadcastTimeout)

	messages := fetchHistory(t, baseURL, cookie)
	require.NotEmpty(t, messages)

	found := false
	for _, msg := range messages {
		if msg.ID == broadcast.ID {
			assert.Equal(t, broadcast, msg)
			found = true
		}
	}
	assert.True(t, found, "broadcast message %d missing from history", broadcast.ID)
}
