package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-portal/internal/dto"
	"github.com/noah-isme/uni-portal/internal/middleware"
	"github.com/noah-isme/uni-portal/internal/models"
	"github.com/noah-isme/uni-portal/pkg/response"
)

type dashboardService interface {
	Build(ctx context.Context, user models.User) (*dto.DashboardResponse, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
	cookie  middleware.SessionCookie
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService, cookie middleware.SessionCookie) *DashboardHandler {
	return &DashboardHandler{service: service, cookie: cookie}
}

// Get godoc
// @Summary Role dashboard
// @Description Returns the student, instructor or admin dashboard for the signed-in user
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Get(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}

	view, cacheHit, err := h.service.Build(c.Request.Context(), session.User)
	if err != nil {
		middleware.Fail(c, h.cookie, err)
		return
	}

	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, view, nil, middleware.ResponseMeta(c))
}
