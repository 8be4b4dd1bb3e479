package handler

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-portal/internal/middleware"
	"github.com/noah-isme/uni-portal/internal/models"
	"github.com/noah-isme/uni-portal/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testCookie = middleware.SessionCookie{Name: "uni_session", TTL: time.Hour}

type responseEnvelope struct {
	Data       map[string]interface{} `json:"data"`
	Error      map[string]interface{} `json:"error"`
	Pagination map[string]interface{} `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func newContext(req *httptest.ResponseRecorder) *gin.Context {
	c, _ := gin.CreateTestContext(req)
	return c
}

func withSession(c *gin.Context, user models.User) *models.Session {
	session := &models.Session{ID: "sess-1", AccessToken: "access", RefreshToken: "refresh", User: user}
	c.Set(middleware.ContextSessionKey, new(service.AuthService).Credentials(session))
	return session
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}
