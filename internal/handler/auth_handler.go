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

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.Session, error)
	Refresh(ctx context.Context, session *models.Session) (*models.Session, error)
	Logout(ctx context.Context, session *models.Session) error
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authService
	cookie  middleware.SessionCookie
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService, cookie middleware.SessionCookie) *AuthHandler {
	return &AuthHandler{service: svc, cookie: cookie}
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate against the backend and start a cookie session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	session, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookie.Set(c, session.ID)
	response.JSON(c, http.StatusOK, gin.H{"user": session.User}, nil)
}

// Refresh godoc
// @Summary Refresh session tokens
// @Description Force a token refresh for the current session
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}

	refreshed, err := h.service.Refresh(c.Request.Context(), session)
	if err != nil {
		middleware.Fail(c, h.cookie, err)
		return
	}

	h.cookie.Set(c, refreshed.ID)
	response.JSON(c, http.StatusOK, gin.H{"user": refreshed.User}, nil)
}

// Logout godoc
// @Summary Logout
// @Description End the session and clear the cookie
// @Tags Authentication
// @Success 204
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}

	if err := h.service.Logout(c.Request.Context(), session); err != nil {
		response.Error(c, err)
		return
	}

	h.cookie.Clear(c)
	response.NoContent(c)
}

// Me godoc
// @Summary Current user
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"user": session.User}, nil)
}
