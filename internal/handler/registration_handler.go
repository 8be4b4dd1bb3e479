package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-portal/internal/middleware"
	"github.com/noah-isme/uni-portal/internal/models"
	"github.com/noah-isme/uni-portal/internal/service"
	appErrors "github.com/noah-isme/uni-portal/pkg/errors"
	"github.com/noah-isme/uni-portal/pkg/export"
	"github.com/noah-isme/uni-portal/pkg/response"
)

type registrationService interface {
	My(ctx context.Context) ([]models.Registration, error)
	ForCourse(ctx context.Context, courseID string) ([]models.Registration, error)
	Validate(ctx context.Context, courseID string) (*models.EnrollmentValidation, error)
	Enroll(ctx context.Context, user models.User, courseID string) (*models.Registration, error)
	Drop(ctx context.Context, user models.User, courseID string) error
	Transcript(ctx context.Context, user models.User, format export.Format) (*export.Document, error)
}

// RegistrationHandler exposes enrollment endpoints.
type RegistrationHandler struct {
	service registrationService
	cookie  middleware.SessionCookie
}

// NewRegistrationHandler constructs the handler.
func NewRegistrationHandler(service registrationService, cookie middleware.SessionCookie) *RegistrationHandler {
	return &RegistrationHandler{service: service, cookie: cookie}
}

// My godoc
// @Summary My registrations
// @Tags Registrations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /registrations/my [get]
func (h *RegistrationHandler) My(c *gin.Context) {
	regs, err := h.service.My(c.Request.Context())
	if err != nil {
		middleware.Fail(c, h.cookie, err)
		return
	}
	response.JSON(c, http.StatusOK, regs, nil)
}

// ForCourse godoc
// @Summary Registrations of a course
// @Tags Registrations
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/course/{courseId} [get]
func (h *RegistrationHandler) ForCourse(c *gin.Context) {
	regs, err := h.service.ForCourse(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		middleware.Fail(c, h.cookie, err)
		return
	}
	response.JSON(c, http.StatusOK, regs, nil)
}

// Validate godoc
// @Summary Check enrollment eligibility
// @Tags Registrations
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/validate/{courseId} [get]
func (h *RegistrationHandler) Validate(c *gin.Context) {
	verdict, err := h.service.Validate(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		middleware.Fail(c, h.cookie, err)
		return
	}
	response.JSON(c, http.StatusOK, verdict, nil)
}

// Enroll godoc
// @Summary Enroll in a course
// @Description Validates eligibility first; a rejection returns 409 with the verdict as data
// @Tags Registrations
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /registrations/enroll/{courseId} [post]
func (h *RegistrationHandler) Enroll(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}

	reg, err := h.service.Enroll(c.Request.Context(), session.User, c.Param("courseId"))
	if err != nil {
		var rejected *service.EnrollmentRejectedError
		if errors.As(err, &rejected) {
			response.ErrorWithData(c, err, rejected.Validation)
			return
		}
		middleware.Fail(c, h.cookie, err)
		return
	}
	response.Created(c, reg)
}

// Drop godoc
// @Summary Drop a course
// @Tags Registrations
// @Param courseId path string true "Course ID"
// @Success 204
// @Failure 429 {object} response.Envelope
// @Router /registrations/drop/{courseId} [delete]
func (h *RegistrationHandler) Drop(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Drop(c.Request.Context(), session.User, c.Param("courseId")); err != nil {
		middleware.Fail(c, h.cookie, err)
		return
	}
	response.NoContent(c)
}

// Transcript godoc
// @Summary Download transcript
// @Tags Registrations
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /registrations/transcript [get]
func (h *RegistrationHandler) Transcript(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "format must be csv or pdf"))
		return
	}

	doc, err := h.service.Transcript(c.Request.Context(), session.User, format)
	if err != nil {
		middleware.Fail(c, h.cookie, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Content)
}
