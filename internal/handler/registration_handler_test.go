package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/uni-portal/internal/models"
	"github.com/noah-isme/uni-portal/internal/service"
	appErrors "github.com/noah-isme/uni-portal/pkg/errors"
	"github.com/noah-isme/uni-portal/pkg/export"
)

type fakeRegistrationSrv struct {
	enrollErr error
	format    export.Format
	dropped   string
}

func (f *fakeRegistrationSrv) My(context.Context) ([]models.Registration, error) {
	return []models.Registration{{ID: "r1", CourseID: "c1", Status: models.RegistrationEnrolled}}, nil
}

func (f *fakeRegistrationSrv) ForCourse(context.Context, string) ([]models.Registration, error) {
	return []models.Registration{}, nil
}

func (f *fakeRegistrationSrv) Validate(_ context.Context, courseID string) (*models.EnrollmentValidation, error) {
	verdict := models.NewEnrollmentValidation(courseID)
	verdict.CanEnroll = true
	return verdict, nil
}

func (f *fakeRegistrationSrv) Enroll(_ context.Context, _ models.User, courseID string) (*models.Registration, error) {
	if f.enrollErr != nil {
		return nil, f.enrollErr
	}
	return &models.Registration{ID: "r2", CourseID: models.ID(courseID), Status: models.RegistrationEnrolled}, nil
}

func (f *fakeRegistrationSrv) Drop(_ context.Context, _ models.User, courseID string) error {
	f.dropped = courseID
	return nil
}

func (f *fakeRegistrationSrv) Transcript(_ context.Context, _ models.User, format export.Format) (*export.Document, error) {
	f.format = format
	return &export.Document{Filename: "transcript-20260301." + string(format), ContentType: format.ContentType(), Content: []byte("Code,Name\n")}, nil
}

func newRegistrationContext(method, target, courseID string) (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c := newContext(rec)
	c.Request = httptest.NewRequest(method, target, nil)
	if courseID != "" {
		c.Params = gin.Params{{Key: "courseId", Value: courseID}}
	}
	withSession(c, models.User{ID: "u1", Role: models.RoleStudent})
	return c, rec
}

func TestRegistrationHandlerEnrollCreated(t *testing.T) {
	handler := NewRegistrationHandler(&fakeRegistrationSrv{}, testCookie)
	c, rec := newRegistrationContext(http.MethodPost, "/registrations/enroll/c9", "c9")

	handler.Enroll(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "c9", decodeEnvelope(t, rec).Data["courseId"])
}

func TestRegistrationHandlerEnrollRejectedCarriesVerdict(t *testing.T) {
	verdict := models.NewEnrollmentValidation("c9")
	verdict.Reject(models.ReasonCourseFull, models.ConflictCapacity)
	rejected := &service.EnrollmentRejectedError{
		Err:        appErrors.Clone(appErrors.ErrEnrollmentRejected, models.ReasonCourseFull),
		Validation: verdict,
	}
	handler := NewRegistrationHandler(&fakeRegistrationSrv{enrollErr: rejected}, testCookie)
	c, rec := newRegistrationContext(http.MethodPost, "/registrations/enroll/c9", "c9")

	handler.Enroll(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "ENROLLMENT_REJECTED", envelope.Error["code"])
	assert.Equal(t, false, envelope.Data["canEnroll"])
	assert.Equal(t, []interface{}{models.ReasonCourseFull}, envelope.Data["reasons"])
}

func TestRegistrationHandlerDrop(t *testing.T) {
	svc := &fakeRegistrationSrv{}
	handler := NewRegistrationHandler(svc, testCookie)
	c, rec := newRegistrationContext(http.MethodDelete, "/registrations/drop/c3", "c3")

	handler.Drop(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "c3", svc.dropped)
}

func TestRegistrationHandlerTranscriptFormats(t *testing.T) {
	svc := &fakeRegistrationSrv{}
	handler := NewRegistrationHandler(svc, testCookie)

	c, rec := newRegistrationContext(http.MethodGet, "/registrations/transcript?format=PDF", "")
	handler.Transcript(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.FormatPDF, svc.format)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "transcript-20260301.pdf")

	c, rec = newRegistrationContext(http.MethodGet, "/registrations/transcript?format=xlsx", "")
	handler.Transcript(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegistrationHandlerMyAndValidate(t *testing.T) {
	handler := NewRegistrationHandler(&fakeRegistrationSrv{}, testCookie)

	c, rec := newRegistrationContext(http.MethodGet, "/registrations/my", "")
	handler.My(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"r1"`)

	c, rec = newRegistrationContext(http.MethodGet, "/registrations/validate/c5", "c5")
	handler.Validate(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeEnvelope(t, rec).Data["canEnroll"])
}
