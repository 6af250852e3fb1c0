package catalog

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studio-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the catalog service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches catalogue routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/modules", h.listModules)
	rg.GET("/modules/:id", h.getModule)
}

func (h *Handler) listModules(c *gin.Context) {
	modules, err := h.Svc.List(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list modules", nil)
		return
	}

	resp := make([]gin.H, 0, len(modules))
	for _, m := range modules {
		resp = append(resp, gin.H{
			"id":          m.ID,
			"name":        m.Name,
			"description": m.Description,
			"baseCost":    m.BaseCost,
		})
	}
	respond.OK(c, gin.H{"modules": resp})
}

func (h *Handler) getModule(c *gin.Context) {
	moduleID := c.Param("id")
	if moduleID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "module id is required", nil)
		return
	}

	module, err := h.Svc.Get(c.Request.Context(), moduleID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "module not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch module", nil)
		}
		return
	}

	respond.OK(c, module)
}
