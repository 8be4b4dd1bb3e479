package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-portal/internal/models"
	appErrors "github.com/noah-isme/uni-portal/pkg/errors"
)

type fakeCredentials struct {
	mu         sync.Mutex
	token      string
	refreshed  string
	refreshErr error
	refreshes  int
	rejected   []string
}

func (f *fakeCredentials) AccessToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, nil
}

func (f *fakeCredentials) Refresh(_ context.Context, rejected string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	f.rejected = append(f.rejected, rejected)
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	f.token = f.refreshed
	return f.token, nil
}

type recordingObserver struct {
	endpoints []string
	statuses  []int
}

func (r *recordingObserver) ObserveBackendCall(endpoint string, status int, _ time.Duration) {
	r.endpoints = append(r.endpoints, endpoint)
	r.statuses = append(r.statuses, status)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClientAttachesBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/api/v1/courses/123", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"data": map[string]interface{}{"id": "123", "name": "Algorithms", "maxStudents": 2, "status": "ACTIVE"},
		})
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	c := New(srv.URL, time.Second, zap.NewNop(), WithObserver(obs))
	ctx := WithCredentials(context.Background(), &fakeCredentials{token: "access-1"})

	course, err := c.GetCourse(ctx, "123")
	require.NoError(t, err)
	assert.Equal(t, "Bearer access-1", gotAuth)
	assert.Equal(t, 2, course.MaxStudents)
	assert.Equal(t, []string{"courses.get"}, obs.endpoints)
	assert.Equal(t, []int{http.StatusOK}, obs.statuses)
}

func TestClientRefreshesOnceOnUnauthorized(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": []map[string]interface{}{
			{"id": "r1", "courseId": "123", "status": "ENROLLED"},
		}})
	}))
	defer srv.Close()

	creds := &fakeCredentials{token: "stale", refreshed: "fresh"}
	c := New(srv.URL, time.Second, zap.NewNop())

	regs, err := c.MyRegistrations(WithCredentials(context.Background(), creds))
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, models.RegistrationEnrolled, regs[0].Status)
	assert.Equal(t, 1, creds.refreshes)
	assert.Equal(t, []string{"stale"}, creds.rejected)
	assert.Equal(t, []string{"Bearer stale", "Bearer fresh"}, seen)
}

func TestClientSurfacesRefreshFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
	}))
	defer srv.Close()

	creds := &fakeCredentials{token: "stale", refreshErr: appErrors.Clone(appErrors.ErrSessionExpired, "")}
	c := New(srv.URL, time.Second, zap.NewNop())

	_, err := c.MyRegistrations(WithCredentials(context.Background(), creds))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrSessionExpired.Code))
}

func TestClientDoesNotLoopOnRepeatedUnauthorized(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "nope"})
	}))
	defer srv.Close()

	creds := &fakeCredentials{token: "stale", refreshed: "still-bad"}
	c := New(srv.URL, time.Second, zap.NewNop())

	_, err := c.MyRegistrations(WithCredentials(context.Background(), creds))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, creds.refreshes)
}

func TestClientRejectsMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": []map[string]interface{}{
			{"id": "r1", "courseId": "123", "status": "SOMETHING_ELSE"},
		}})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, zap.NewNop())
	_, err := c.MyRegistrations(WithCredentials(context.Background(), &fakeCredentials{token: "t"}))

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrBadGatewayPayload.Code))
}

func TestClientRejectsMissingData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"message": "ok"})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, zap.NewNop())
	_, err := c.GetCourse(WithCredentials(context.Background(), &fakeCredentials{token: "t"}), "1")

	assert.True(t, appErrors.HasCode(err, appErrors.ErrBadGatewayPayload.Code))
}

func TestClientMapsStatusCodes(t *testing.T) {
	cases := map[int]string{
		http.StatusNotFound:            appErrors.ErrNotFound.Code,
		http.StatusForbidden:           appErrors.ErrForbidden.Code,
		http.StatusConflict:            appErrors.ErrConflict.Code,
		http.StatusUnprocessableEntity: appErrors.ErrValidation.Code,
		http.StatusInternalServerError: appErrors.ErrBackendUnavailable.Code,
	}
	for status, code := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, status, map[string]string{"message": "backend says no"})
		}))
		c := New(srv.URL, time.Second, zap.NewNop())
		err := c.Drop(WithCredentials(context.Background(), &fakeCredentials{token: "t"}), "123")
		srv.Close()

		require.Error(t, err, status)
		assert.Equal(t, code, appErrors.FromError(err).Code, status)
	}
}

func TestClientRequiresCredentialsForProtectedCalls(t *testing.T) {
	c := New("http://127.0.0.1:0", time.Second, zap.NewNop())

	_, err := c.Profile(context.Background())

	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))
}

func TestClientRefreshTokenIsUnauthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refresh-1", body["refreshToken"])
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]interface{}{
			"accessToken":  "a2",
			"refreshToken": "r2",
			"user":         map[string]interface{}{"id": "u1", "email": "s@uni.edu", "role": "STUDENT"},
		}})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, zap.NewNop())
	tokens, err := c.RefreshToken(context.Background(), "refresh-1")

	require.NoError(t, err)
	assert.Equal(t, "a2", tokens.AccessToken)
	assert.Equal(t, models.RoleStudent, tokens.User.Role)
}

func TestClientListCoursesPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cs", r.URL.Query().Get("department"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"data":       []map[string]interface{}{{"id": "1", "name": "Intro"}},
			"pagination": map[string]int{"page": 2, "limit": 10, "total": 11},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, zap.NewNop())
	courses, page, err := c.ListCourses(WithCredentials(context.Background(), &fakeCredentials{token: "t"}), models.CourseFilter{Department: "cs", Page: 2, PageSize: 10})

	require.NoError(t, err)
	assert.Len(t, courses, 1)
	assert.Equal(t, 11, page.TotalCount)
	assert.Equal(t, 10, page.PageSize)
}
