// Package models defines the API response and transcript event payloads.
package models

// StartResponse is returned by /api/start.
type StartResponse struct {
	SessionID string `json:"session_id"`
}

// TranscriptResponse is returned by /api/chunk and /api/finish. Language and
// text are always present, empty strings when the engine has nothing yet.
type TranscriptResponse struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// ErrorResponse is the structured error body for all failure responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TranscriptEvent is published to Kafka on every chunk (partial) and on
// finish (final), keyed by session id.
type TranscriptEvent struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
	Language  string `json:"language"`
	Text      string `json:"text"`
}
