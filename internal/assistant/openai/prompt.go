package openai

import (
	"encoding/json"
	"strings"

	"studio-backend/internal/assistant"
)

// Message is one chat turn sent to the provider.
type Message struct {
	Role    string
	Content string
}

const systemPrompt = `You are a configuration assistant for a content-generation module.
The user is describing a job to run. You are given the module's required fields and the
specification collected so far. Infer field values from the user's message where you can.

Respond with a single JSON object and nothing else:
{
  "message": "<your reply to the user>",
  "state": "collecting" | "awaiting_attachment" | "ready_for_confirmation",
  "missingField": "<name of the field still needed, if any>",
  "fields": {"<field>": "<value inferred from the conversation>"}
}

Report "ready_for_confirmation" only when every required field has a value.
Report "awaiting_attachment" when the missing field must be satisfied by a file upload.`

// BuildPrompt assembles the chat messages for one exchange: the system
// instructions, the serialized specification snapshot, and the user text.
func BuildPrompt(in assistant.Input) []Message {
	snapshot, err := json.Marshal(in.Snapshot)
	if err != nil {
		snapshot = []byte("{}")
	}

	var ctx strings.Builder
	ctx.WriteString("Current specification snapshot:\n")
	ctx.Write(snapshot)

	return []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "system", Content: ctx.String()},
		{Role: "user", Content: in.Message},
	}
}

func buildFixPrompt(raw []byte) []Message {
	return []Message{
		{Role: "system", Content: "The following output was supposed to be a single valid JSON object with keys message, state, missingField, fields. Return the corrected JSON object and nothing else."},
		{Role: "user", Content: string(raw)},
	}
}
