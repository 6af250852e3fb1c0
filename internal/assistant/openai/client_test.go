package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"studio-backend/internal/assistant"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient("test-key", "test-model")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.apiURL = srv.URL
	return c
}

func chatBody(content string) []byte {
	body := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
	raw, _ := json.Marshal(body)
	return raw
}

func TestConverseDecodesReply(t *testing.T) {
	reply := `{"message":"All set.","state":"ready_for_confirmation","fields":{"topic":"launch post"}}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing auth header, got %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ResponseFormat.Type != "json_object" {
			t.Errorf("expected json_object response format, got %q", req.ResponseFormat.Type)
		}
		// The full snapshot must travel with the message.
		found := false
		for _, m := range req.Messages {
			if strings.Contains(m.Content, `"moduleId":"social-composer"`) {
				found = true
			}
		}
		if !found {
			t.Errorf("expected snapshot in prompt messages")
		}
		w.Write(chatBody(reply))
	})

	out, err := c.Converse(context.Background(), assistant.Input{
		SessionID: "s-1",
		Message:   "write a launch post",
		Snapshot:  assistant.Snapshot{ModuleID: "social-composer"},
	})
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if out.State != assistant.StateReady {
		t.Fatalf("expected ready state, got %q", out.State)
	}
	if out.Fields["topic"] != "launch post" {
		t.Fatalf("expected inferred field, got %+v", out.Fields)
	}
}

func TestConverseFixesInvalidJSON(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write(chatBody(`not json {`))
			return
		}
		w.Write(chatBody(`{"message":"ok","state":"collecting","missingField":"tone"}`))
	})

	out, err := c.Converse(context.Background(), assistant.Input{Message: "hi"})
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one fix retry, got %d calls", calls)
	}
	if out.MissingField != "tone" {
		t.Fatalf("expected missingField tone, got %q", out.MissingField)
	}
}

func TestConverseUnknownStateFallsBackToCollecting(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatBody(`{"message":"ok","state":"confused"}`))
	})

	out, err := c.Converse(context.Background(), assistant.Input{Message: "hi"})
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if out.State != assistant.StateCollecting {
		t.Fatalf("expected fallback to collecting, got %q", out.State)
	}
}

func TestConverseProviderError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	})

	if _, err := c.Converse(context.Background(), assistant.Input{Message: "hi"}); err == nil {
		t.Fatalf("expected provider error")
	}
}
