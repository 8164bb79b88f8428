package models

const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusOK      = "ok"
)

// Roles used in persisted conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// ChatResponse is the reply from the chat endpoint.
type ChatResponse struct {
	Response string `json:"response"`
	Status   string `json:"status"`
}

type ClearChatRequest struct {
	SessionID string `json:"sessionId"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type ModelInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
	Status string      `json:"status"`
}
