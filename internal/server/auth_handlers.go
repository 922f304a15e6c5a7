// Package server exposes the authentication gateway: the HTTP endpoints that
// turn credentials into tokens and tokens into authorization decisions.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// tokenCookieName is the HTTP-only cookie carrying the identity token.
const tokenCookieName = "jwt"

var credentials = NewCredentialStore(0)

var validate = validator.New()

// credentialsRequest is the JSON body accepted by register and login.
type credentialsRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func decodeCredentials(r *http.Request) (credentialsRequest, error) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, err
	}
	return req, validate.Struct(req)
}

// setTokenCookie issues a token for the username and attaches it as an
// HTTP-only cookie. The Secure flag is set outside development.
func setTokenCookie(w http.ResponseWriter, username string) error {
	token, err := IssueToken(username)
	if err != nil {
		return err
	}

	cfg := currentConfig()
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   !cfg.IsDevelopment(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(cfg.TokenTTL.Seconds()),
	})
	return nil
}

// RegisterHandler creates a new user and logs them in. Responds 400 when the
// username is taken or the payload is malformed.
func RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	req, err := decodeCredentials(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid registration request")
		return
	}

	if err := credentials.Register(req.Username, req.Password); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			writeMessage(w, http.StatusBadRequest, "Username already exists")
			return
		}
		log.Printf("Error registering user: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	if err := setTokenCookie(w, req.Username); err != nil {
		log.Printf("Error issuing token for %q: %v", req.Username, err)
		writeMessage(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	log.Printf("Registered user %q", req.Username)
	writeMessage(w, http.StatusOK, "Registration successful")
}

// LoginHandler verifies credentials and sets the token cookie. Every failure
// path answers 401 with the same body, so a caller cannot tell an unknown
// username from a wrong password.
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	req, err := decodeCredentials(r)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := credentials.Verify(req.Username, req.Password); err != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := setTokenCookie(w, req.Username); err != nil {
		log.Printf("Error issuing token for %q: %v", req.Username, err)
		writeMessage(w, http.StatusInternalServerError, "Login failed")
		return
	}

	writeMessage(w, http.StatusOK, "Login successful")
}

// authenticateRequest resolves the request's token cookie to a username.
func authenticateRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(tokenCookieName)
	if err != nil {
		return "", ErrInvalidToken
	}
	return VerifyToken(cookie.Value)
}

// MessagesHandler returns the full history snapshot in acceptance order.
// Unauthenticated callers get 401 and no message content.
func MessagesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if _, err := authenticateRequest(r); err != nil {
		writeMessage(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	snapshot := hub.History().Snapshot()
	if snapshot == nil {
		snapshot = []Message{}
	}
	writeJSON(w, http.StatusOK, snapshot)
}
