// Package api defines the JSON envelopes shared by every HTTP handler.
package api

// ErrorResponse is the single error body shape used across the API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}
