package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-portal/internal/models"
	appErrors "github.com/noah-isme/uni-portal/pkg/errors"
	"github.com/noah-isme/uni-portal/pkg/export"
)

type registrationBackend interface {
	MyRegistrations(ctx context.Context) ([]models.Registration, error)
	CourseRegistrations(ctx context.Context, courseID string) ([]models.Registration, error)
	Enroll(ctx context.Context, courseID string) (*models.Registration, error)
	Drop(ctx context.Context, courseID string) error
}

type enrollmentChecker interface {
	Validate(ctx context.Context, courseID string) (*models.EnrollmentValidation, error)
}

// EnrollmentRejectedError carries the verdict that blocked an enrollment.
type EnrollmentRejectedError struct {
	Err        *appErrors.Error
	Validation *models.EnrollmentValidation
}

func (e *EnrollmentRejectedError) Error() string {
	return e.Err.Error()
}

// Unwrap exposes the typed error so errors.As and HasCode see ENROLLMENT_REJECTED.
func (e *EnrollmentRejectedError) Unwrap() error {
	return e.Err
}

// RegistrationService handles enrollment flows and transcripts.
type RegistrationService struct {
	backend    registrationBackend
	validator  enrollmentChecker
	dashboards dashboardInvalidator
	audit      auditRecorder
	logger     *zap.Logger
	now        func() time.Time
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(backend registrationBackend, validator enrollmentChecker, dashboards dashboardInvalidator, audit auditRecorder, logger *zap.Logger) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		backend:    backend,
		validator:  validator,
		dashboards: dashboards,
		audit:      audit,
		logger:     logger,
		now:        time.Now,
	}
}

// My lists the caller's registrations.
func (s *RegistrationService) My(ctx context.Context) ([]models.Registration, error) {
	regs, err := s.backend.MyRegistrations(ctx)
	if err != nil {
		return nil, err
	}
	if regs == nil {
		regs = []models.Registration{}
	}
	return regs, nil
}

// ForCourse lists registrations of a course. A course without registrations yields an empty list.
func (s *RegistrationService) ForCourse(ctx context.Context, courseID string) ([]models.Registration, error) {
	if strings.TrimSpace(courseID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course id is required")
	}
	regs, err := s.backend.CourseRegistrations(ctx, courseID)
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrNotFound.Code) {
			return []models.Registration{}, nil
		}
		return nil, err
	}
	if regs == nil {
		regs = []models.Registration{}
	}
	return regs, nil
}

// Validate reports whether the caller may enroll in courseID.
func (s *RegistrationService) Validate(ctx context.Context, courseID string) (*models.EnrollmentValidation, error) {
	return s.validator.Validate(ctx, courseID)
}

// Enroll validates eligibility and, when allowed, enrolls the caller.
func (s *RegistrationService) Enroll(ctx context.Context, user models.User, courseID string) (*models.Registration, error) {
	verdict, err := s.validator.Validate(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !verdict.CanEnroll {
		rejected := appErrors.Clone(appErrors.ErrEnrollmentRejected, strings.Join(verdict.Reasons, "; "))
		return nil, &EnrollmentRejectedError{Err: rejected, Validation: verdict}
	}

	reg, err := s.backend.Enroll(ctx, courseID)
	if err != nil {
		return nil, err
	}
	s.afterChange(ctx, user.ID.String(), models.AuditActionEnroll, courseID)
	return reg, nil
}

// Drop withdraws the caller from courseID.
func (s *RegistrationService) Drop(ctx context.Context, user models.User, courseID string) error {
	if strings.TrimSpace(courseID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "course id is required")
	}
	if err := s.backend.Drop(ctx, courseID); err != nil {
		return err
	}
	s.afterChange(ctx, user.ID.String(), models.AuditActionDrop, courseID)
	return nil
}

// Transcript renders the caller's graded history.
func (s *RegistrationService) Transcript(ctx context.Context, user models.User, format export.Format) (*export.Document, error) {
	regs, err := s.backend.MyRegistrations(ctx)
	if err != nil {
		return nil, err
	}

	graded := make([]models.Registration, 0, len(regs))
	for _, reg := range regs {
		if reg.Status == models.RegistrationCompleted || reg.Status == models.RegistrationFailed {
			graded = append(graded, reg)
		}
	}
	sort.SliceStable(graded, func(i, j int) bool {
		return registrationSortKey(graded[i]) < registrationSortKey(graded[j])
	})

	data := export.Dataset{
		Title: "Academic Transcript",
		Meta: [][2]string{
			{"Student", user.FullName()},
			{"Email", user.Email},
			{"Student number", user.StudentNumber},
			{"Issued", s.now().UTC().Format("2006-01-02")},
		},
		Headers: []string{"Semester", "Code", "Course", "Credits", "Status", "Grade", "Points"},
	}
	credits := 0
	for _, reg := range graded {
		row := map[string]string{
			"Status": string(reg.Status),
			"Grade":  reg.Grade,
		}
		if reg.Course != nil {
			row["Semester"] = reg.Course.Semester
			row["Code"] = reg.Course.Code
			row["Course"] = reg.Course.Name
			row["Credits"] = fmt.Sprintf("%d", reg.Course.Credits)
			if reg.Status == models.RegistrationCompleted {
				credits += reg.Course.Credits
			}
		} else {
			row["Code"] = reg.CourseID.String()
		}
		if points, ok := GradePoints(reg); ok {
			row["Points"] = fmt.Sprintf("%.2f", points)
		}
		data.Rows = append(data.Rows, row)
	}
	data.Summary = [][2]string{
		{"Credits earned", fmt.Sprintf("%d", credits)},
		{"GPA", fmt.Sprintf("%.2f", ComputeGPA(graded))},
	}

	doc, err := export.Render(format, data, "transcript-"+s.now().UTC().Format("20060102"))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render transcript")
	}
	return doc, nil
}

func (s *RegistrationService) afterChange(ctx context.Context, userID, action, courseID string) {
	if s.dashboards != nil {
		s.dashboards.InvalidateUser(ctx, userID)
	}
	if s.audit != nil {
		s.audit.Record(ctx, AuditEntry{UserID: userID, Action: action, Resource: "registration", ResourceID: courseID})
	}
}

func registrationSortKey(reg models.Registration) string {
	if reg.Course == nil {
		return reg.CourseID.String()
	}
	return reg.Course.Semester + "|" + reg.Course.Code
}
