// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"fmt"
	"time"
)

// Error variables for the back-office API.
var (
	// ErrUnauthorized indicates the token was missing, expired or revoked (401/403).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials indicates the login itself was rejected.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrNotFound indicates the resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrServer indicates a 5xx response.
	ErrServer = errors.New("server error")

	// ErrResponseTooLarge indicates the body exceeded MaxResponseSize.
	ErrResponseTooLarge = errors.New("response too large")
)

// APIError is a non-2xx response. It unwraps to one of the sentinel errors
// when the status has one.
type APIError struct {
	Status  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error (HTTP %d)", e.Status)
	}
	return fmt.Sprintf("api error (HTTP %d): %s", e.Status, e.Message)
}

// Unwrap returns the matching sentinel, if any.
func (e *APIError) Unwrap() error { return e.Err }

// =============================================================================
// WIRE TYPES
// =============================================================================

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string    `json:"token"`
	IssuedAt time.Time `json:"issuedAt"`
	User     struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Role string `json:"role"`
	} `json:"user"`
}

// errorResponse is the body shape the API uses for failures. Both "message"
// and "error" are seen in the wild.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
