package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/noah-isme/uni-portal/internal/models"
)

const apiRoot = "/api/v1"

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthTokens, error) {
	var tokens models.AuthTokens
	if _, err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     apiRoot + "/auth/login",
		endpoint: "auth.login",
		body:     loginBody{Email: email, Password: password},
	}, &tokens); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// RefreshToken exchanges a refresh token. It never carries a bearer token.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*models.AuthTokens, error) {
	var tokens models.AuthTokens
	if _, err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     apiRoot + "/auth/refresh",
		endpoint: "auth.refresh",
		body:     refreshBody{RefreshToken: refreshToken},
	}, &tokens); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Logout revokes the refresh token on the backend.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	_, err := c.do(ctx, call{
		method:   http.MethodPost,
		path:     apiRoot + "/auth/logout",
		endpoint: "auth.logout",
		body:     refreshBody{RefreshToken: refreshToken},
		auth:     true,
	}, nil)
	return err
}

// Profile returns the authenticated user's profile.
func (c *Client) Profile(ctx context.Context) (*models.User, error) {
	var user models.User
	if _, err := c.do(ctx, call{method: http.MethodGet, path: apiRoot + "/users/profile", endpoint: "users.profile", auth: true}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile saves editable profile fields.
func (c *Client) UpdateProfile(ctx context.Context, req models.ProfileUpdateRequest) (*models.User, error) {
	var user models.User
	if _, err := c.do(ctx, call{method: http.MethodPut, path: apiRoot + "/users/profile", endpoint: "users.profile.update", body: req, auth: true}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListCourses returns a catalog page.
func (c *Client) ListCourses(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	query := url.Values{}
	if filter.Search != "" {
		query.Set("search", filter.Search)
	}
	if filter.Department != "" {
		query.Set("department", filter.Department)
	}
	if filter.Status != "" {
		query.Set("status", string(filter.Status))
	}
	if filter.InstructorID != "" {
		query.Set("instructorId", filter.InstructorID)
	}
	if filter.Page > 0 {
		query.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.PageSize > 0 {
		query.Set("limit", strconv.Itoa(filter.PageSize))
	}

	var courses []models.Course
	page, err := c.do(ctx, call{method: http.MethodGet, path: apiRoot + "/courses", endpoint: "courses.list", query: query, auth: true}, &courses)
	if err != nil {
		return nil, nil, err
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: len(courses)}
	if page != nil {
		pagination = &models.Pagination{Page: page.Page, PageSize: page.Limit, TotalCount: page.Total}
	}
	return courses, pagination, nil
}

// GetCourse fetches one course. A missing course yields a NOT_FOUND error.
func (c *Client) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	if _, err := c.do(ctx, call{method: http.MethodGet, path: apiRoot + "/courses/" + url.PathEscape(id), endpoint: "courses.get", auth: true}, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// CreateCourse adds a catalog entry.
func (c *Client) CreateCourse(ctx context.Context, req models.CourseRequest) (*models.Course, error) {
	var course models.Course
	if _, err := c.do(ctx, call{method: http.MethodPost, path: apiRoot + "/courses", endpoint: "courses.create", body: req, auth: true}, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// UpdateCourse replaces a catalog entry.
func (c *Client) UpdateCourse(ctx context.Context, id string, req models.CourseRequest) (*models.Course, error) {
	var course models.Course
	if _, err := c.do(ctx, call{method: http.MethodPut, path: apiRoot + "/courses/" + url.PathEscape(id), endpoint: "courses.update", body: req, auth: true}, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// DeleteCourse removes a catalog entry.
func (c *Client) DeleteCourse(ctx context.Context, id string) error {
	_, err := c.do(ctx, call{method: http.MethodDelete, path: apiRoot + "/courses/" + url.PathEscape(id), endpoint: "courses.delete", auth: true}, nil)
	return err
}

// MyRegistrations lists the caller's registrations.
func (c *Client) MyRegistrations(ctx context.Context) ([]models.Registration, error) {
	var regs []models.Registration
	if _, err := c.do(ctx, call{method: http.MethodGet, path: apiRoot + "/registrations/my", endpoint: "registrations.my", auth: true}, &regs); err != nil {
		return nil, err
	}
	return normalizeRegistrations(regs), nil
}

// CourseRegistrations lists every registration on a course.
func (c *Client) CourseRegistrations(ctx context.Context, courseID string) ([]models.Registration, error) {
	var regs []models.Registration
	if _, err := c.do(ctx, call{method: http.MethodGet, path: apiRoot + "/registrations/course/" + url.PathEscape(courseID), endpoint: "registrations.course", auth: true}, &regs); err != nil {
		return nil, err
	}
	return normalizeRegistrations(regs), nil
}

// Enroll registers the caller on a course.
func (c *Client) Enroll(ctx context.Context, courseID string) (*models.Registration, error) {
	var reg models.Registration
	if _, err := c.do(ctx, call{method: http.MethodPost, path: apiRoot + "/registrations/enroll/" + url.PathEscape(courseID), endpoint: "registrations.enroll", auth: true}, &reg); err != nil {
		return nil, err
	}
	reg.CourseID = reg.CourseKey()
	return &reg, nil
}

// Drop withdraws the caller from a course.
func (c *Client) Drop(ctx context.Context, courseID string) error {
	_, err := c.do(ctx, call{method: http.MethodDelete, path: apiRoot + "/registrations/drop/" + url.PathEscape(courseID), endpoint: "registrations.drop", auth: true}, nil)
	return err
}

// normalizeRegistrations fills courseId from the embedded course for backends that only nest it.
func normalizeRegistrations(regs []models.Registration) []models.Registration {
	for i := range regs {
		regs[i].CourseID = regs[i].CourseKey()
	}
	return regs
}
