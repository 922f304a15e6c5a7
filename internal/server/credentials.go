// Package server manages user credential records, hashing passwords on
// registration and verifying them on login without leaking account existence.
package server

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUsernameTaken indicates a registration attempt for an existing username.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrInvalidCredentials indicates a failed login. It is deliberately the
	// same whether the username is unknown or the password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// CredentialStore holds username to password-hash records. It knows nothing
// about sessions or messages.
type CredentialStore struct {
	mu        sync.Mutex
	users     map[string]string
	cost      int
	dummy     []byte
	dummyCost int
}

// NewCredentialStore creates an empty credential store hashing with the given
// bcrypt cost. A non-positive cost defers to the active configuration at
// registration time.
func NewCredentialStore(cost int) *CredentialStore {
	return &CredentialStore{
		users: make(map[string]string),
		cost:  cost,
	}
}

func (s *CredentialStore) hashCost() int {
	if s.cost > 0 {
		return s.cost
	}
	if cost := currentConfig().BcryptCost; cost > 0 {
		return cost
	}
	return bcrypt.DefaultCost
}

// missHash returns a throwaway hash generated at the store's effective cost,
// so the comparison on an unknown username costs the same as one against a
// real record. The hash is cached and regenerated only when the cost changes.
func (s *CredentialStore) missHash() []byte {
	cost := s.hashCost()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dummy == nil || s.dummyCost != cost {
		s.dummy, _ = bcrypt.GenerateFromPassword([]byte("nexus-dummy-password"), cost)
		s.dummyCost = cost
	}
	return s.dummy
}

// Register hashes the password and stores a new user record. It fails with
// ErrUsernameTaken when the username exists. The existence check and the
// insert happen under one lock so two concurrent registrations for the same
// name cannot both succeed; the hash itself is computed outside the lock.
func (s *CredentialStore) Register(username, password string) error {
	s.mu.Lock()
	_, exists := s.users[username]
	s.mu.Unlock()
	if exists {
		return ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[username]; exists {
		return ErrUsernameTaken
	}
	s.users[username] = string(hash)
	return nil
}

// Verify checks the password against the stored hash for the username.
// Unknown usernames and wrong passwords both return ErrInvalidCredentials
// after a full bcrypt comparison, so the two cases are indistinguishable in
// both response and timing.
func (s *CredentialStore) Verify(username, password string) error {
	s.mu.Lock()
	hash, exists := s.users[username]
	s.mu.Unlock()

	if !exists {
		_ = bcrypt.CompareHashAndPassword(s.missHash(), []byte(password))
		return ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
