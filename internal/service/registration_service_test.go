package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-portal/internal/models"
	appErrors "github.com/noah-isme/uni-portal/pkg/errors"
	"github.com/noah-isme/uni-portal/pkg/export"
)

type fakeRegistrationBackend struct {
	mine       []models.Registration
	courseRegs []models.Registration
	courseErr  error
	enrolled   []string
	dropped    []string
	enrollErr  error
}

func (f *fakeRegistrationBackend) MyRegistrations(context.Context) ([]models.Registration, error) {
	return f.mine, nil
}

func (f *fakeRegistrationBackend) CourseRegistrations(context.Context, string) ([]models.Registration, error) {
	return f.courseRegs, f.courseErr
}

func (f *fakeRegistrationBackend) Enroll(_ context.Context, courseID string) (*models.Registration, error) {
	if f.enrollErr != nil {
		return nil, f.enrollErr
	}
	f.enrolled = append(f.enrolled, courseID)
	return &models.Registration{ID: models.ID("r-" + courseID), CourseID: models.ID(courseID), Status: models.RegistrationEnrolled}, nil
}

func (f *fakeRegistrationBackend) Drop(_ context.Context, courseID string) error {
	f.dropped = append(f.dropped, courseID)
	return nil
}

type stubChecker struct {
	verdict *models.EnrollmentValidation
	err     error
}

func (s stubChecker) Validate(context.Context, string) (*models.EnrollmentValidation, error) {
	return s.verdict, s.err
}

var testStudent = models.User{ID: "u1", Email: "ada@uni.edu", FirstName: "Ada", LastName: "Lovelace", Role: models.RoleStudent}

func TestRegistrationServiceEnrollAllowed(t *testing.T) {
	backend := &fakeRegistrationBackend{}
	verdict := models.NewEnrollmentValidation("123")
	verdict.CanEnroll = true
	dashboards := &fakeDashboards{}
	audit := &fakeAudit{}
	svc := NewRegistrationService(backend, stubChecker{verdict: verdict}, dashboards, audit, zap.NewNop())

	reg, err := svc.Enroll(context.Background(), testStudent, "123")
	require.NoError(t, err)
	assert.Equal(t, models.ID("123"), reg.CourseID)
	assert.Equal(t, []string{"123"}, backend.enrolled)
	assert.Equal(t, []string{"u1"}, dashboards.users)
	assert.Equal(t, []string{models.AuditActionEnroll}, audit.actions())
}

func TestRegistrationServiceEnrollRejected(t *testing.T) {
	backend := &fakeRegistrationBackend{}
	verdict := models.NewEnrollmentValidation("123")
	verdict.Reject(models.ReasonCourseFull, models.ConflictCapacity)
	audit := &fakeAudit{}
	svc := NewRegistrationService(backend, stubChecker{verdict: verdict}, nil, audit, zap.NewNop())

	_, err := svc.Enroll(context.Background(), testStudent, "123")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrEnrollmentRejected.Code))
	assert.Equal(t, 409, appErrors.FromError(err).Status)

	var rejected *EnrollmentRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, []string{models.ReasonCourseFull}, rejected.Validation.Reasons)
	assert.Empty(t, backend.enrolled)
	assert.Empty(t, audit.actions())
}

func TestRegistrationServiceEnrollPropagatesValidatorError(t *testing.T) {
	svc := NewRegistrationService(&fakeRegistrationBackend{}, stubChecker{err: appErrors.Clone(appErrors.ErrBackendUnavailable, "")}, nil, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), testStudent, "123")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrBackendUnavailable.Code))
}

func TestRegistrationServiceDrop(t *testing.T) {
	backend := &fakeRegistrationBackend{}
	audit := &fakeAudit{}
	svc := NewRegistrationService(backend, stubChecker{}, nil, audit, zap.NewNop())

	require.NoError(t, svc.Drop(context.Background(), testStudent, "123"))
	assert.Equal(t, []string{"123"}, backend.dropped)
	assert.Equal(t, []string{models.AuditActionDrop}, audit.actions())

	err := svc.Drop(context.Background(), testStudent, " ")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestRegistrationServiceForCourseNotFoundIsEmpty(t *testing.T) {
	backend := &fakeRegistrationBackend{courseErr: appErrors.Clone(appErrors.ErrNotFound, "")}
	svc := NewRegistrationService(backend, stubChecker{}, nil, nil, zap.NewNop())

	regs, err := svc.ForCourse(context.Background(), "123")
	require.NoError(t, err)
	assert.NotNil(t, regs)
	assert.Empty(t, regs)
}

func TestRegistrationServiceTranscriptCSV(t *testing.T) {
	backend := &fakeRegistrationBackend{mine: []models.Registration{
		{ID: "1", CourseID: "b", Status: models.RegistrationCompleted, Grade: "B", Course: &models.Course{ID: "b", Code: "CS201", Name: "Data", Credits: 3, Semester: "2025-2"}},
		{ID: "2", CourseID: "a", Status: models.RegistrationCompleted, Grade: "A", Course: &models.Course{ID: "a", Code: "CS101", Name: "Intro", Credits: 3, Semester: "2025-1"}},
		{ID: "3", CourseID: "c", Status: models.RegistrationEnrolled, Course: &models.Course{ID: "c", Code: "CS301", Name: "Current", Credits: 3}},
	}}
	svc := NewRegistrationService(backend, stubChecker{}, nil, nil, zap.NewNop())
	svc.now = func() time.Time { return fixedNow }

	doc, err := svc.Transcript(context.Background(), testStudent, export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "transcript-20260301.csv", doc.Filename)

	body := string(doc.Content)
	assert.Less(t, strings.Index(body, "CS101"), strings.Index(body, "CS201"))
	assert.NotContains(t, body, "CS301")
	assert.Contains(t, body, "GPA,3.50")
	assert.Contains(t, body, "Credits earned,6")
}
