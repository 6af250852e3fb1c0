package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"studio-backend/internal/balance"
)

func setupMeRouter(svc *Service, balances *balance.Service, userID string, guest bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(svc, balances)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userId", userID)
		c.Set("isGuest", guest)
		c.Next()
	})
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)
	return router
}

func TestMeReturnsProfileWithCredits(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	if err := svc.UpsertFromAuth(context.Background(), User{
		ID:       "google:abc",
		Email:    "pat@example.com",
		FullName: "Pat Example",
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	balances := balance.NewService()
	if _, err := balances.Consume(context.Background(), "google:abc", 7); err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	router := setupMeRouter(svc, balances, "google:abc", false)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Plan    string `json:"plan"`
		Credits struct {
			Limit     int `json:"limit"`
			Used      int `json:"used"`
			Remaining int `json:"remaining"`
		} `json:"credits"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Email != "pat@example.com" {
		t.Fatalf("expected seeded email, got %q", body.Email)
	}
	if body.Credits.Used != 7 {
		t.Fatalf("expected 7 credits used, got %d", body.Credits.Used)
	}
	if body.Credits.Remaining != body.Credits.Limit-7 {
		t.Fatalf("remaining %d does not match limit %d minus used", body.Credits.Remaining, body.Credits.Limit)
	}
}

func TestMeRejectsGuest(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	router := setupMeRouter(svc, balance.NewService(), "guest:11111111-1111-1111-1111-111111111111", true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestMeUnknownUser(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	router := setupMeRouter(svc, nil, "google:missing", false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}
