package models

import "time"

const (
	TurnSourceCanned = "canned"
	TurnSourceModel  = "model"
)

// Turn is the metadata recorded for one /chat exchange. Message text is never kept.
type Turn struct {
	ID           int64     `json:"id"`
	SessionKey   string    `json:"session_key"`
	Source       string    `json:"source"`
	Status       string    `json:"status"`
	NewSession   bool      `json:"new_session"`
	Attempts     int       `json:"attempts"`
	LatencyMs    int64     `json:"latency_ms"`
	MessageChars int       `json:"message_chars"`
	ReplyChars   int       `json:"reply_chars"`
	CreatedAt    time.Time `json:"created_at"`
}
