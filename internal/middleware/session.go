package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-portal/internal/client"
	"github.com/noah-isme/uni-portal/internal/models"
	"github.com/noah-isme/uni-portal/internal/service"
	appErrors "github.com/noah-isme/uni-portal/pkg/errors"
	"github.com/noah-isme/uni-portal/pkg/response"
)

// ContextSessionKey is the gin context key storing the session credentials.
const ContextSessionKey = "portalSession"

type sessionLoader interface {
	Current(ctx context.Context, sessionID string) (*models.Session, error)
	Credentials(session *models.Session) *service.SessionCredentials
}

// SessionCookie describes the httpOnly cookie that carries the session identifier.
type SessionCookie struct {
	Name   string
	Domain string
	Secure bool
	TTL    time.Duration
}

// Set issues the cookie for sessionID.
func (sc SessionCookie) Set(c *gin.Context, sessionID string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sc.Name, sessionID, int(sc.TTL.Seconds()), "/", sc.Domain, sc.Secure, true)
}

// Clear expires the cookie.
func (sc SessionCookie) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sc.Name, "", -1, "/", sc.Domain, sc.Secure, true)
}

// Value reads the session identifier, or "" when absent.
func (sc SessionCookie) Value(c *gin.Context) string {
	value, err := c.Cookie(sc.Name)
	if err != nil {
		return ""
	}
	return value
}

// RequestMeta records caller details on the request context for the audit trail.
func RequestMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := service.WithRequestMeta(c.Request.Context(), service.RequestMeta{
			IP:        c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Session requires a live session and binds its credentials to the request context so the
// backend client can attach and refresh bearer tokens.
func Session(auth sessionLoader, cookie SessionCookie) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := auth.Current(c.Request.Context(), cookie.Value(c))
		if err != nil {
			Fail(c, cookie, err)
			c.Abort()
			return
		}

		creds := auth.Credentials(session)
		c.Set(ContextSessionKey, creds)
		c.Request = c.Request.WithContext(client.WithCredentials(c.Request.Context(), creds))
		c.Next()
	}
}

// CurrentSession returns the session bound by Session, reflecting any refresh done during the request.
func CurrentSession(c *gin.Context) *models.Session {
	value, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil
	}
	creds, ok := value.(*service.SessionCredentials)
	if !ok {
		return nil
	}
	return creds.Session()
}

// Fail writes err, clearing the session cookie first when the caller is no longer authenticated.
func Fail(c *gin.Context, cookie SessionCookie, err error) {
	if appErrors.FromError(err).Status == http.StatusUnauthorized {
		cookie.Clear(c)
	}
	response.Error(c, err)
}
