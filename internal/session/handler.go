package session

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studio-backend/internal/attachments"
	"studio-backend/internal/catalog"
	"studio-backend/internal/dispatch"
	"studio-backend/internal/entitlement"
	"studio-backend/internal/pricing"
	"studio-backend/internal/shared/server/middleware"
	"studio-backend/internal/shared/server/respond"
)

const maxAttachmentUploadBytes = 512 << 20 // request ceiling; per-file limits come from the module policy

// Handler wires HTTP handlers to the session service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches session routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions", tagSession)
	sessions.POST("", h.create)
	sessions.GET("/:id", h.get)
	sessions.GET("/:id/quote", h.quote)
	sessions.PATCH("/:id/fields", h.editField)
	sessions.POST("/:id/options", h.selectOption)
	sessions.POST("/:id/flags", h.toggleFlag)
	sessions.POST("/:id/quantities", h.setQuantity)
	sessions.POST("/:id/messages", h.sendMessage)
	sessions.POST("/:id/attachments", h.attach)
	sessions.DELETE("/:id/attachments/:attId", h.removeAttachment)
	sessions.POST("/:id/confirm", h.confirm)
}

// tagSession exposes the session id to the request logger.
func tagSession(c *gin.Context) {
	if id := c.Param("id"); id != "" {
		c.Set("sessionId", id)
	}
	c.Next()
}

type createRequest struct {
	ModuleID string `json:"moduleId"`
}

func (h *Handler) create(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.ModuleID) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "moduleId is required", nil)
		return
	}

	sess, err := h.Svc.Create(c.Request.Context(), userID, req.ModuleID)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "module not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create session", nil)
		}
		return
	}

	respond.Created(c, sess)
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	sess, err := h.Svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to fetch session")
		return
	}
	respond.JSON(c, http.StatusOK, sess)
}

func (h *Handler) quote(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	q, err := h.Svc.Quote(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to compute quote")
		return
	}
	respond.JSON(c, http.StatusOK, q)
}

type fieldEditRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (h *Handler) editField(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req fieldEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "name is required", nil)
		return
	}

	sess, err := h.Svc.ApplyFieldEdit(c.Request.Context(), userID, c.Param("id"), req.Name, req.Value)
	if err != nil {
		h.fail(c, err, "failed to edit field")
		return
	}
	respond.JSON(c, http.StatusOK, sess)
}

type selectOptionRequest struct {
	OptionID string `json:"optionId"`
}

func (h *Handler) selectOption(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req selectOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.OptionID) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "optionId is required", nil)
		return
	}

	sess, err := h.Svc.SelectOption(c.Request.Context(), userID, c.Param("id"), req.OptionID)
	if err != nil {
		h.fail(c, err, "failed to select option")
		return
	}
	respond.JSON(c, http.StatusOK, sess)
}

type toggleFlagRequest struct {
	FlagID  string `json:"flagId"`
	Enabled bool   `json:"enabled"`
}

func (h *Handler) toggleFlag(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req toggleFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.FlagID) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "flagId is required", nil)
		return
	}

	sess, err := h.Svc.ToggleFlag(c.Request.Context(), userID, c.Param("id"), req.FlagID, req.Enabled)
	if err != nil {
		h.fail(c, err, "failed to toggle flag")
		return
	}
	respond.JSON(c, http.StatusOK, sess)
}

type setQuantityRequest struct {
	Field string `json:"field"`
	Value int    `json:"value"`
}

func (h *Handler) setQuantity(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Field) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "field is required", nil)
		return
	}

	sess, err := h.Svc.SetQuantity(c.Request.Context(), userID, c.Param("id"), req.Field, req.Value)
	if err != nil {
		h.fail(c, err, "failed to set quantity")
		return
	}
	respond.JSON(c, http.StatusOK, sess)
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

func (h *Handler) sendMessage(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "text is required", nil)
		return
	}

	sess, reply, err := h.Svc.SendMessage(c.Request.Context(), userID, c.Param("id"), req.Text)
	if err != nil {
		if errors.Is(err, ErrAssistantUnavailable) {
			respond.Error(c, http.StatusBadGateway, "assistant_unavailable", reply.Message, nil)
			return
		}
		h.fail(c, err, "failed to send message")
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"session": sess,
		"reply":   reply,
	})
}

func (h *Handler) attach(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAttachmentUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart form is required", nil)
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		if single := form.File["file"]; len(single) > 0 {
			headers = single
		}
	}
	if len(headers) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "at least one file is required", nil)
		return
	}

	uploads := make([]Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read "+fh.Filename, nil)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read "+fh.Filename, nil)
			return
		}
		uploads = append(uploads, Upload{
			Name:      fh.Filename,
			MediaType: fh.Header.Get("Content-Type"),
			Data:      data,
		})
	}

	sess, result, err := h.Svc.Attach(c.Request.Context(), userID, c.Param("id"), uploads)
	if err != nil {
		h.fail(c, err, "failed to upload attachments")
		return
	}

	outcomes := make([]gin.H, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		item := gin.H{"fileName": o.FileName}
		if o.Record != nil {
			item["record"] = o.Record
		}
		if o.Err != nil {
			item["error"] = attachmentErrorCode(o.Err)
		}
		outcomes = append(outcomes, item)
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"session":  sess,
		"accepted": result.Accepted,
		"outcomes": outcomes,
	})
}

func (h *Handler) removeAttachment(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	sess, err := h.Svc.RemoveAttachment(c.Request.Context(), userID, c.Param("id"), c.Param("attId"))
	if err != nil {
		h.fail(c, err, "failed to remove attachment")
		return
	}
	respond.JSON(c, http.StatusOK, sess)
}

func (h *Handler) confirm(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	requestID := middleware.RequestIDFromContext(c)

	sess, handle, err := h.Svc.Confirm(c.Request.Context(), userID, c.Param("id"), requestID)
	if err != nil {
		h.fail(c, err, "failed to confirm session")
		return
	}
	c.Set("usageId", handle.UsageID)
	c.Set("stateTransition", StateReadyForConfirmation+"->"+sess.State)

	respond.JSON(c, http.StatusAccepted, gin.H{
		"session": sess,
		"usageId": handle.UsageID,
	})
}

// fail maps service errors to the response envelope. Entitlement
// rejections carry an upgrade call-to-action so the UI can render a
// precise remedy.
func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
	case errors.Is(err, catalog.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "module not found", nil)
	case errors.Is(err, ErrAttachmentNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "attachment not found", nil)
	case errors.Is(err, ErrBusy):
		respond.Error(c, http.StatusConflict, "in_progress", ErrBusy.Error(), nil)
	case errors.Is(err, ErrCompleted):
		respond.Error(c, http.StatusConflict, "session_completed", "this session is complete; start a new one", nil)
	case errors.Is(err, ErrNotReady):
		respond.Error(c, http.StatusConflict, "not_ready", ErrNotReady.Error(), nil)
	case errors.Is(err, entitlement.ErrPremiumRequired):
		respond.Error(c, http.StatusForbidden, "premium_required", "Upgrade to premium to use this option.", nil)
	case errors.Is(err, entitlement.ErrFeatureDisabled):
		respond.Error(c, http.StatusForbidden, "feature_disabled", "This feature is not available on your plan.", nil)
	case errors.Is(err, entitlement.ErrOverCeiling):
		respond.Error(c, http.StatusForbidden, "over_ceiling", "Upgrade your plan to raise this limit.", nil)
	case errors.Is(err, pricing.ErrUnknownOption):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrUnknownField):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, dispatch.ErrUnauthenticated):
		respond.Error(c, http.StatusUnauthorized, "unauthenticated", "Please sign in again.", nil)
	case errors.Is(err, dispatch.ErrInsufficientBalance):
		respond.Error(c, http.StatusPaymentRequired, "insufficient_credits", "Not enough credits for this job. Upgrade your plan or wait for your reset.", nil)
	case errors.Is(err, dispatch.ErrEntitlementRevoked):
		respond.Error(c, http.StatusForbidden, "entitlement_revoked", "Part of this job is no longer included in your plan.", nil)
	case errors.Is(err, dispatch.ErrQueueUnavailable):
		respond.Error(c, http.StatusServiceUnavailable, "queue_unavailable", "The execution backend is unavailable; please retry.", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}

func attachmentErrorCode(err error) string {
	switch {
	case errors.Is(err, attachments.ErrUnsupportedType):
		return "unsupported_type"
	case errors.Is(err, attachments.ErrTooLarge):
		return "too_large"
	case errors.Is(err, attachments.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, attachments.ErrUnauthorized):
		return "unauthorized"
	default:
		return "transfer_failed"
	}
}
