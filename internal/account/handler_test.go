package account

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"studio-backend/internal/dispatch"
	"studio-backend/internal/session"
)

func setupClaimRouter(sessions session.Store, runs dispatch.RunsRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(NewService(sessions, runs))

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userId", "user-1")
		c.Set("isGuest", false)
		c.Next()
	})
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)
	return router
}

func TestClaimGuestMigratesData(t *testing.T) {
	sessions := session.NewMemoryStore()
	runs := dispatch.NewMemoryRepo()
	router := setupClaimRouter(sessions, runs)

	guestID := "11111111-1111-1111-1111-111111111111"
	guestUserID := "guest:" + guestID

	sess := session.Session{
		ID:        "sess-1",
		UserID:    guestUserID,
		ModuleID:  "doc-generator",
		State:     session.StateCollecting,
		Spec:      session.NewSpecification(),
		CreatedAt: time.Now().UTC(),
	}
	if err := sessions.Create(context.Background(), sess); err != nil {
		t.Fatalf("create session: %v", err)
	}
	run := dispatch.Run{
		ID:        "run-1",
		UserID:    guestUserID,
		SessionID: sess.ID,
		ModuleID:  "doc-generator",
		Credits:   20,
		Status:    dispatch.StatusCharged,
		CreatedAt: time.Now().UTC(),
	}
	if err := runs.Create(context.Background(), run); err != nil {
		t.Fatalf("create run: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/account/claim-guest", nil)
	req.Header.Set("X-Guest-Id", guestID)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	if _, err := sessions.Get(context.Background(), "user-1", "sess-1"); err != nil {
		t.Fatalf("session not migrated: %v", err)
	}
	migratedRuns, err := runs.ListByUser(context.Background(), "user-1", 10, 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(migratedRuns) != 1 {
		t.Fatalf("expected 1 migrated run, got %d", len(migratedRuns))
	}
}

func TestClaimGuestIdempotentAndIsolated(t *testing.T) {
	sessions := session.NewMemoryStore()
	runs := dispatch.NewMemoryRepo()
	router := setupClaimRouter(sessions, runs)

	guestID := "22222222-2222-2222-2222-222222222222"
	guestUserID := "guest:" + guestID

	sess := session.Session{
		ID:        "sess-2",
		UserID:    guestUserID,
		ModuleID:  "doc-generator",
		State:     session.StateCollecting,
		Spec:      session.NewSpecification(),
		CreatedAt: time.Now().UTC(),
	}
	if err := sessions.Create(context.Background(), sess); err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/account/claim-guest", nil)
	req.Header.Set("X-Guest-Id", guestID)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/account/claim-guest", nil)
	req2.Header.Set("X-Guest-Id", guestID)
	resp2 := httptest.NewRecorder()
	router.ServeHTTP(resp2, req2)
	if resp2.Code != http.StatusOK {
		t.Fatalf("expected status 200 on idempotent call, got %d", resp2.Code)
	}

	if _, err := sessions.Get(context.Background(), "user-2", "sess-2"); err == nil {
		t.Fatal("session should not be visible to other users")
	}
}

func TestClaimGuestRejectsGuestCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(NewService(session.NewMemoryStore(), dispatch.NewMemoryRepo()))

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userId", "guest:33333333-3333-3333-3333-333333333333")
		c.Set("isGuest", true)
		c.Next()
	})
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/account/claim-guest", nil)
	req.Header.Set("X-Guest-Id", "33333333-3333-3333-3333-333333333333")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}
