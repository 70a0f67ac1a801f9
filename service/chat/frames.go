package chat

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Inbound websocket frames are discriminated by a "type" field. Unknown or
// malformed frames are dropped by the session, never fatal.
type FrameType string

const (
	FrameTyping FrameType = "typing"
)

type frameEnvelope struct {
	Type FrameType `json:"type"`
}

// ParseFrame extracts the frame type and the raw field map for a second,
// typed decode pass.
func ParseFrame(raw []byte) (FrameType, map[string]any, error) {
	var env frameEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, fmt.Errorf("unmarshal frame failed: %w", err)
	}
	if env.Type == "" {
		return "", nil, fmt.Errorf("frame missing type")
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", nil, fmt.Errorf("unmarshal frame fields failed: %w", err)
	}
	return env.Type, fields, nil
}

// DecodePayload maps loosely-typed frame fields onto T.
func DecodePayload[T any](fields map[string]any) (*T, error) {
	out := new(T)
	if err := mapstructure.Decode(fields, out); err != nil {
		return nil, fmt.Errorf("decode payload failed: %w", err)
	}
	return out, nil
}

type TypingPayload struct {
	IsTyping bool `mapstructure:"isTyping"`
}

// ---- outbound events ----

type TypingUser struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TypingEvent is the ephemeral typing-indicator payload. Field casing is
// fixed by the frontend contract.
type TypingEvent struct {
	Type     string     `json:"type"`
	ChatID   int64      `json:"chatId"`
	User     TypingUser `json:"user"`
	IsTyping bool       `json:"isTyping"`
}

func BuildTypingEvent(chatID int64, userID int64, name string, isTyping bool) *TypingEvent {
	return &TypingEvent{
		Type:     "typing_indicator",
		ChatID:   chatID,
		User:     TypingUser{ID: userID, Name: name},
		IsTyping: isTyping,
	}
}
