package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-portal/internal/middleware"
	"github.com/noah-isme/uni-portal/internal/models"
	appErrors "github.com/noah-isme/uni-portal/pkg/errors"
	"github.com/noah-isme/uni-portal/pkg/response"
)

type profileService interface {
	Get(ctx context.Context) (*models.User, error)
	Update(ctx context.Context, session *models.Session, req models.ProfileUpdateRequest) (*models.User, error)
}

// ProfileHandler serves the signed-in user's profile.
type ProfileHandler struct {
	service profileService
	cookie  middleware.SessionCookie
}

// NewProfileHandler constructs the handler.
func NewProfileHandler(service profileService, cookie middleware.SessionCookie) *ProfileHandler {
	return &ProfileHandler{service: service, cookie: cookie}
}

// Get godoc
// @Summary Get profile
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /profile [get]
func (h *ProfileHandler) Get(c *gin.Context) {
	user, err := h.service.Get(c.Request.Context())
	if err != nil {
		middleware.Fail(c, h.cookie, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Update godoc
// @Summary Update profile
// @Tags Profile
// @Accept json
// @Produce json
// @Param payload body models.ProfileUpdateRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /profile [put]
func (h *ProfileHandler) Update(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req models.ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid profile payload"))
		return
	}

	user, err := h.service.Update(c.Request.Context(), session, req)
	if err != nil {
		middleware.Fail(c, h.cookie, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}
