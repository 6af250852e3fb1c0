package queue

import "encoding/json"

// Message is the execution payload handed to the generation backend.
type Message struct {
	UsageID   string         `json:"usageId"`
	SessionID string         `json:"sessionId"`
	ModuleID  string         `json:"moduleId"`
	UserID    string         `json:"userId"`
	Credits   int            `json:"credits"`
	Payload   map[string]any `json:"payload,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
	EnqueuedAt string        `json:"enqueuedAt"`
	Version   int            `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
