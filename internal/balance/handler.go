package balance

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studio-backend/internal/entitlement"
	"studio-backend/internal/shared/server/middleware"
	"studio-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the balance service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches balance routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/balance", h.getBalance)
}

// RegisterDevRoutes attaches dev-only balance management routes.
func (h *Handler) RegisterDevRoutes(rg *gin.RouterGroup) {
	rg.POST("/balance/reset", h.resetBalance)
	rg.POST("/balance/plan", h.setPlan)
}

func (h *Handler) getBalance(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	b, err := h.Svc.Get(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch balance", nil)
		return
	}

	ent := entitlement.ForPlan(b.Plan)
	respond.OK(c, gin.H{
		"plan":      b.Plan,
		"tier":      ent.Tier,
		"limit":     b.Limit,
		"used":      b.Used,
		"remaining": b.Remaining(),
		"resetsAt":  b.ResetsAt,
	})
}

func (h *Handler) resetBalance(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	b, err := h.Svc.Reset(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to reset balance", nil)
		return
	}
	respond.OK(c, b)
}

type setPlanRequest struct {
	Plan  string `json:"plan"`
	Limit int    `json:"limit"`
}

func (h *Handler) setPlan(c *gin.Context) {
	var req setPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Plan == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "plan is required", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)
	b, err := h.Svc.SetPlan(c.Request.Context(), userID, req.Plan, req.Limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to set plan", nil)
		return
	}
	respond.OK(c, b)
}
