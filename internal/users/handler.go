package users

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studio-backend/internal/balance"
	"studio-backend/internal/shared/server/middleware"
	"studio-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc      *Service
	Balances *balance.Service
}

func NewHandler(svc *Service, balances *balance.Service) *Handler {
	return &Handler{Svc: svc, Balances: balances}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
}

// me returns the profile plus the current plan and credit balance, so
// the UI can render the credit meter from a single call.
func (h *Handler) me(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	if middleware.IsGuest(c) {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "login required", nil)
		return
	}
	userID := middleware.UserIDFromContext(c)
	user, err := h.Svc.GetByID(c.Request.Context(), userID)
	if err != nil {
		if err == ErrNotFound {
			respond.Error(c, http.StatusNotFound, "not_found", "user not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load user", nil)
		return
	}

	response := gin.H{
		"id":          user.ID,
		"email":       user.Email,
		"fullName":    user.FullName,
		"pictureUrl":  user.PictureURL,
		"lastLoginAt": user.LastLoginAt,
	}
	if h.Balances != nil {
		if b, err := h.Balances.Get(c.Request.Context(), userID); err == nil {
			response["plan"] = b.Plan
			response["credits"] = gin.H{
				"limit":     b.Limit,
				"used":      b.Used,
				"remaining": b.Remaining(),
				"resetsAt":  b.ResetsAt,
			}
		}
	}
	respond.JSON(c, http.StatusOK, response)
}
