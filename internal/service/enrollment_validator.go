package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/uni-portal/internal/models"
	appErrors "github.com/noah-isme/uni-portal/pkg/errors"
)

type enrollmentBackend interface {
	MyRegistrations(ctx context.Context) ([]models.Registration, error)
	GetCourse(ctx context.Context, id string) (*models.Course, error)
	CourseRegistrations(ctx context.Context, courseID string) ([]models.Registration, error)
}

// EnrollmentValidator computes whether the caller may enroll in a course.
type EnrollmentValidator struct {
	backend enrollmentBackend
	metrics *MetricsService
	logger  *zap.Logger
}

// NewEnrollmentValidator constructs an EnrollmentValidator.
func NewEnrollmentValidator(backend enrollmentBackend, metrics *MetricsService, logger *zap.Logger) *EnrollmentValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentValidator{backend: backend, metrics: metrics, logger: logger}
}

// Validate fetches the caller's registrations, the course and its registrations
// concurrently and derives the verdict. The result is never cached.
func (v *EnrollmentValidator) Validate(ctx context.Context, courseID string) (*models.EnrollmentValidation, error) {
	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "courseId is required")
	}

	var (
		mine       []models.Registration
		course     *models.Course
		courseRegs []models.Registration
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		regs, err := v.backend.MyRegistrations(gctx)
		if err != nil {
			return err
		}
		mine = regs
		return nil
	})
	g.Go(func() error {
		c, err := v.backend.GetCourse(gctx, courseID)
		if err != nil {
			if appErrors.HasCode(err, appErrors.ErrNotFound.Code) {
				return nil
			}
			return err
		}
		course = c
		return nil
	})
	g.Go(func() error {
		regs, err := v.backend.CourseRegistrations(gctx, courseID)
		if err != nil {
			if appErrors.HasCode(err, appErrors.ErrNotFound.Code) {
				return nil
			}
			return err
		}
		courseRegs = regs
		return nil
	})
	if err := g.Wait(); err != nil {
		v.logger.Warn("enrollment validation fetch failed", zap.String("course_id", courseID), zap.Error(err))
		return nil, err
	}

	result := evaluateEnrollment(courseID, course, mine, courseRegs)
	v.metrics.ObserveEnrollmentValidation(result.CanEnroll)
	return result, nil
}

func evaluateEnrollment(courseID string, course *models.Course, mine, courseRegs []models.Registration) *models.EnrollmentValidation {
	result := models.NewEnrollmentValidation(courseID)
	if course == nil {
		result.Reject(models.ReasonCourseNotFound, "")
		return result
	}

	for _, reg := range mine {
		if reg.CourseKey().String() == courseID && reg.HoldsSeat() {
			result.Reject(models.ReasonAlreadyEnrolled, models.ConflictDuplicate)
			break
		}
	}

	if course.MaxStudents > 0 && len(courseRegs) >= course.MaxStudents {
		result.Reject(models.ReasonCourseFull, models.ConflictCapacity)
	}

	if !course.IsActive() {
		result.Reject(models.ReasonCourseClosed, "")
	}

	result.CanEnroll = len(result.Reasons) == 0
	return result
}
