package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-portal/internal/middleware"
	"github.com/noah-isme/uni-portal/internal/models"
	appErrors "github.com/noah-isme/uni-portal/pkg/errors"
	"github.com/noah-isme/uni-portal/pkg/response"
)

type courseService interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, actorID string, req models.CourseRequest) (*models.Course, error)
	Update(ctx context.Context, actorID, id string, req models.CourseRequest) (*models.Course, error)
	Delete(ctx context.Context, actorID, id string) error
}

// CourseHandler exposes the course catalog.
type CourseHandler struct {
	service courseService
	cookie  middleware.SessionCookie
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(service courseService, cookie middleware.SessionCookie) *CourseHandler {
	return &CourseHandler{service: service, cookie: cookie}
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Param search query string false "Code or name search"
// @Param department query string false "Department"
// @Param status query string false "Course status"
// @Param instructorId query string false "Instructor ID"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	filter := models.CourseFilter{
		Search:       c.Query("search"),
		Department:   c.Query("department"),
		Status:       models.CourseStatus(c.Query("status")),
		InstructorID: c.Query("instructorId"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	size := c.Query("page_size")
	if size == "" {
		size = c.DefaultQuery("limit", "20")
	}
	if n, err := strconv.Atoi(size); err == nil {
		filter.PageSize = n
	}

	courses, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		middleware.Fail(c, h.cookie, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Get godoc
// @Summary Get course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Fail(c, h.cookie, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Create godoc
// @Summary Create course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body models.CourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	req, ok := bindCourseRequest(c)
	if !ok {
		return
	}

	course, err := h.service.Create(c.Request.Context(), session.User.ID.String(), req)
	if err != nil {
		middleware.Fail(c, h.cookie, err)
		return
	}
	response.Created(c, course)
}

// Update godoc
// @Summary Update course
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body models.CourseRequest true "Course payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	req, ok := bindCourseRequest(c)
	if !ok {
		return
	}

	course, err := h.service.Update(c.Request.Context(), session.User.ID.String(), c.Param("id"), req)
	if err != nil {
		middleware.Fail(c, h.cookie, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Delete godoc
// @Summary Delete course
// @Tags Courses
// @Param id path string true "Course ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), session.User.ID.String(), c.Param("id")); err != nil {
		middleware.Fail(c, h.cookie, err)
		return
	}
	response.NoContent(c)
}

func bindCourseRequest(c *gin.Context) (models.CourseRequest, bool) {
	var req models.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course payload"))
		return req, false
	}
	req.Status = models.CourseStatus(strings.ToUpper(string(req.Status)))
	return req, true
}
