package dispatch

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"studio-backend/internal/shared/server/middleware"
	"studio-backend/internal/shared/server/respond"
)

// Handler exposes run history over HTTP.
type Handler struct {
	Runs RunsRepo
}

// NewHandler constructs a Handler.
func NewHandler(runs RunsRepo) *Handler {
	return &Handler{Runs: runs}
}

// RegisterRoutes attaches run routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/runs", h.listRuns)
	rg.GET("/runs/:id", h.getRun)
}

func (h *Handler) listRuns(c *gin.Context) {
	if middleware.IsGuest(c) {
		respond.Error(c, http.StatusUnauthorized, "login_required", "Login required to view run history", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0

	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}

	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	runs, err := h.Runs.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list runs", nil)
		return
	}

	resp := make([]gin.H, 0, len(runs))
	for _, r := range runs {
		resp = append(resp, gin.H{
			"usageId":   r.ID,
			"sessionId": r.SessionID,
			"moduleId":  r.ModuleID,
			"credits":   r.Credits,
			"status":    r.Status,
			"createdAt": r.CreatedAt,
		})
	}

	respond.JSON(c, http.StatusOK, gin.H{"runs": resp})
}

func (h *Handler) getRun(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	runID := c.Param("id")
	if runID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "run id is required", nil)
		return
	}

	run, err := h.Runs.GetByID(c.Request.Context(), userID, runID)
	if err != nil {
		switch {
		case errors.Is(err, ErrRunNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "run not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch run", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, run)
}
