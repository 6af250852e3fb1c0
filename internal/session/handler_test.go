package session

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"studio-backend/internal/assistant"
	"studio-backend/internal/shared/server/middleware"
)

func setupSessionRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := newTestService(t, &stubAssistant{reply: assistant.Reply{
		Message: "Got it.",
		State:   assistant.StateCollecting,
	}}, nil, testModule())
	handler := NewHandler(svc)

	router := gin.New()
	router.Use(middleware.Auth("dev"))
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	return router, svc
}

func addGuestHeader(req *http.Request) {
	req.Header.Set("X-Guest-Id", "test-guest")
}

func postJSON(t *testing.T, router *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	addGuestHeader(req)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestCreateSessionEndpoint(t *testing.T) {
	router, _ := setupSessionRouter(t)

	resp := postJSON(t, router, "/api/v1/sessions", map[string]string{"moduleId": "doc-generator"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var created Session
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == "" || created.State != StateCollecting {
		t.Fatalf("unexpected session: %+v", created)
	}
}

func TestCreateSessionUnknownModule(t *testing.T) {
	router, _ := setupSessionRouter(t)

	resp := postJSON(t, router, "/api/v1/sessions", map[string]string{"moduleId": "nope"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestPremiumOptionRejectedOverHTTP(t *testing.T) {
	router, _ := setupSessionRouter(t)

	resp := postJSON(t, router, "/api/v1/sessions", map[string]string{"moduleId": "doc-generator"})
	var created Session
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	resp = postJSON(t, router, "/api/v1/sessions/"+created.ID+"/options", map[string]string{"optionId": "doc-whitepaper"})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error.Code != "premium_required" {
		t.Fatalf("error code = %q, want premium_required", envelope.Error.Code)
	}
}

func TestConfirmNotReadyOverHTTP(t *testing.T) {
	router, _ := setupSessionRouter(t)

	resp := postJSON(t, router, "/api/v1/sessions", map[string]string{"moduleId": "doc-generator"})
	var created Session
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	resp = postJSON(t, router, "/api/v1/sessions/"+created.ID+"/confirm", map[string]string{})
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestQuoteEndpoint(t *testing.T) {
	router, _ := setupSessionRouter(t)

	resp := postJSON(t, router, "/api/v1/sessions", map[string]string{"moduleId": "doc-generator"})
	var created Session
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+created.ID+"/quote", nil)
	addGuestHeader(req)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var quote struct {
		Credits int `json:"credits"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&quote); err != nil {
		t.Fatalf("decode quote: %v", err)
	}
	if quote.Credits != 20 {
		t.Fatalf("credits = %d, want base 20", quote.Credits)
	}
}
