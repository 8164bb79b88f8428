package models

import "time"

// WebSocket message types
const (
	EventSessionStarted = "session_started"
	EventReply          = "reply"
	EventSessionCleared = "session_cleared"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type SessionEvent struct {
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
}

type ReplyEvent struct {
	SessionID string    `json:"session_id"`
	Source    string    `json:"source"` // "canned" | "model"
	Status    string    `json:"status"`
	Response  string    `json:"response"`
	At        time.Time `json:"at"`
}

// API Error response
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
