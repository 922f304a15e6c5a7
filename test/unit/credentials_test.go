// Package unit contains unit tests for individual components of the Nexus
// chat server.
//
// These tests focus on testing specific functions and types in isolation,
// without a running HTTP server or live WebSocket connections.
package unit

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/nexus-chat-server/internal/server"
)

// Low bcrypt cost keeps the hashing-heavy tests fast.
const testBcryptCost = 4

func TestRegisterThenVerify(t *testing.T) {
	store := server.NewCredentialStore(testBcryptCost)

	require.NoError(t, store.Register("alice", "correct horse battery"))
	assert.NoError(t, store.Verify("alice", "correct horse battery"))
}

func TestRegisterDuplicateUsername(t *testing.T) {
	store := server.NewCredentialStore(testBcryptCost)

	require.NoError(t, store.Register("alice", "first-password"))

	err := store.Register("alice", "second-password")
	require.ErrorIs(t, err, server.ErrUsernameTaken)

	// The original record must be untouched.
	assert.NoError(t, store.Verify("alice", "first-password"))
	assert.ErrorIs(t, store.Verify("alice", "second-password"), server.ErrInvalidCredentials)
}

// TestVerifyFailuresIndistinguishable checks that a wrong password and a
// nonexistent username produce the exact same error value, so the HTTP layer
// cannot leak which usernames exist.
func TestVerifyFailuresIndistinguishable(t *testing.T) {
	store := server.NewCredentialStore(testBcryptCost)
	require.NoError(t, store.Register("alice", "her-password"))

	wrongPassword := store.Verify("alice", "not-her-password")
	unknownUser := store.Verify("nobody", "any-password")

	require.ErrorIs(t, wrongPassword, server.ErrInvalidCredentials)
	require.ErrorIs(t, unknownUser, server.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword, unknownUser)
}

// TestConcurrentRegisterSameUsername launches many concurrent registrations
// for one username and requires exactly one winner. The existence check and
// insert must be atomic.
func TestConcurrentRegisterSameUsername(t *testing.T) {
	store := server.NewCredentialStore(testBcryptCost)

	const attempts = 16
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Register("contested", fmt.Sprintf("password-%d", i))
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, server.ErrUsernameTaken)
		}
	}
	assert.Equal(t, 1, successes, "exactly one concurrent registration should win")
}

func TestConcurrentRegisterDistinctUsernames(t *testing.T) {
	store := server.NewCredentialStore(testBcryptCost)

	const users = 8
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Register(fmt.Sprintf("user%d", i), "shared-password"))
		}(i)
	}
	wg.Wait()

	for i := 0; i < users; i++ {
		assert.NoError(t, store.Verify(fmt.Sprintf("user%d", i), "shared-password"))
	}
}
