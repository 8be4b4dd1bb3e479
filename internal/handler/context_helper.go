package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-portal/internal/middleware"
	"github.com/noah-isme/uni-portal/internal/models"
	appErrors "github.com/noah-isme/uni-portal/pkg/errors"
	"github.com/noah-isme/uni-portal/pkg/response"
)

// sessionFromContext returns the session bound by the session middleware, writing a 401 when absent.
func sessionFromContext(c *gin.Context) (*models.Session, bool) {
	session := middleware.CurrentSession(c)
	if session == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return session, true
}
