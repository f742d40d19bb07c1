package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ParseHistory decodes a JSON array of messages. Any other JSON value,
// including null or an object, is rejected.
func ParseHistory(data []byte) ([]ChatMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("body must be a JSON array of messages")
	}

	var history []ChatMessage
	if err := json.Unmarshal(trimmed, &history); err != nil {
		return nil, fmt.Errorf("invalid message array: %w", err)
	}
	return history, nil
}
