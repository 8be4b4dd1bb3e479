package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-portal/internal/models"
	"github.com/noah-isme/uni-portal/pkg/response"
)

type auditLister interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error)
}

// AuditHandler exposes the audit trail to administrators.
type AuditHandler struct {
	service auditLister
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(service auditLister) *AuditHandler {
	return &AuditHandler{service: service}
}

// List godoc
// @Summary List audit logs
// @Tags Admin
// @Produce json
// @Param userId query string false "User ID"
// @Param action query string false "Action"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	filter := models.AuditFilter{
		UserID: c.Query("userId"),
		Action: c.Query("action"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "50")); err == nil {
		filter.PageSize = size
	}

	logs, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}
