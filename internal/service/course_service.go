package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-portal/internal/models"
	appErrors "github.com/noah-isme/uni-portal/pkg/errors"
)

type courseBackend interface {
	ListCourses(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error)
	GetCourse(ctx context.Context, id string) (*models.Course, error)
	CreateCourse(ctx context.Context, req models.CourseRequest) (*models.Course, error)
	UpdateCourse(ctx context.Context, id string, req models.CourseRequest) (*models.Course, error)
	DeleteCourse(ctx context.Context, id string) error
}

type dashboardInvalidator interface {
	InvalidateUser(ctx context.Context, userID string)
	InvalidateAll(ctx context.Context)
}

// CourseService proxies the course catalog with caching and auditing.
type CourseService struct {
	backend    courseBackend
	cache      *CacheService
	dashboards dashboardInvalidator
	audit      auditRecorder
	validator  *validator.Validate
	logger     *zap.Logger
	cacheTTL   time.Duration
}

// NewCourseService constructs a CourseService.
func NewCourseService(backend courseBackend, cache *CacheService, dashboards dashboardInvalidator, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		backend:    backend,
		cache:      cache,
		dashboards: dashboards,
		audit:      audit,
		validator:  validate,
		logger:     logger,
		cacheTTL:   cacheTTL,
	}
}

type cachedCoursePage struct {
	Courses    []models.Course    `json:"courses"`
	Pagination *models.Pagination `json:"pagination"`
}

// List returns a page of the catalog.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Status = models.CourseStatus(strings.ToUpper(string(filter.Status)))

	key := catalogCacheKey(filter)
	var cached cachedCoursePage
	if s.cache.Get(ctx, key, &cached) {
		return cached.Courses, cached.Pagination, nil
	}

	courses, pagination, err := s.backend.ListCourses(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	if courses == nil {
		courses = []models.Course{}
	}
	s.cache.Set(ctx, key, cachedCoursePage{Courses: courses, Pagination: pagination}, s.cacheTTL)
	return courses, pagination, nil
}

// Get returns a course by id.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course id is required")
	}
	return s.backend.GetCourse(ctx, id)
}

// Create adds a course to the catalog.
func (s *CourseService) Create(ctx context.Context, actorID string, req models.CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.backend.CreateCourse(ctx, req)
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, actorID, models.AuditActionCourseCreate, course.ID.String(), map[string]string{"code": course.Code})
	return course, nil
}

// Update modifies a course.
func (s *CourseService) Update(ctx context.Context, actorID, id string, req models.CourseRequest) (*models.Course, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course id is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.backend.UpdateCourse(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, actorID, models.AuditActionCourseUpdate, id, req)
	return course, nil
}

// Delete removes a course.
func (s *CourseService) Delete(ctx context.Context, actorID, id string) error {
	if strings.TrimSpace(id) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "course id is required")
	}
	if err := s.backend.DeleteCourse(ctx, id); err != nil {
		return err
	}
	s.afterWrite(ctx, actorID, models.AuditActionCourseDelete, id, nil)
	return nil
}

func (s *CourseService) afterWrite(ctx context.Context, actorID, action, courseID string, details interface{}) {
	s.cache.Invalidate(ctx, cacheCatalogPrefix+"*")
	if s.dashboards != nil {
		s.dashboards.InvalidateAll(ctx)
	}
	if s.audit != nil {
		s.audit.Record(ctx, AuditEntry{UserID: actorID, Action: action, Resource: "course", ResourceID: courseID, Details: details})
	}
}

func catalogCacheKey(filter models.CourseFilter) string {
	return fmt.Sprintf("%slist:q=%s:d=%s:s=%s:i=%s:p=%d:l=%d", cacheCatalogPrefix,
		strings.ToLower(filter.Search), filter.Department, filter.Status, filter.InstructorID, filter.Page, filter.PageSize)
}
