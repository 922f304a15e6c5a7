// Package server implements the authenticated chat service: credential
// storage, token issuance and verification, the HTTP auth gateway, and the
// hub that orders and fans out messages to every connected session.
//
// The implementation is organized into specialized files for configuration,
// credentials, tokens, the hub, sessions, routing, and HTTP handlers to keep
// the codebase maintainable and testable as the project grows.
package server
