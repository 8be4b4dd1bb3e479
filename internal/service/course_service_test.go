package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-portal/internal/models"
	appErrors "github.com/noah-isme/uni-portal/pkg/errors"
)

type fakeCourseBackend struct {
	courses   []models.Course
	listCalls int
	lastList  models.CourseFilter
	created   *models.CourseRequest
	deleted   []string
	err       error
}

func (f *fakeCourseBackend) ListCourses(_ context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	f.listCalls++
	f.lastList = filter
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.courses, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: len(f.courses)}, nil
}

func (f *fakeCourseBackend) GetCourse(_ context.Context, id string) (*models.Course, error) {
	for _, c := range f.courses {
		if c.ID.String() == id {
			course := c
			return &course, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
}

func (f *fakeCourseBackend) CreateCourse(_ context.Context, req models.CourseRequest) (*models.Course, error) {
	f.created = &req
	return &models.Course{ID: "new", Code: req.Code, Name: req.Name}, nil
}

func (f *fakeCourseBackend) UpdateCourse(_ context.Context, id string, req models.CourseRequest) (*models.Course, error) {
	return &models.Course{ID: models.ID(id), Code: req.Code, Name: req.Name}, nil
}

func (f *fakeCourseBackend) DeleteCourse(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeDashboards struct {
	users []string
	all   int
}

func (f *fakeDashboards) InvalidateUser(_ context.Context, userID string) {
	f.users = append(f.users, userID)
}

func (f *fakeDashboards) InvalidateAll(context.Context) {
	f.all++
}

func TestCourseServiceListNormalisesAndCaches(t *testing.T) {
	backend := &fakeCourseBackend{courses: []models.Course{{ID: "1", Code: "CS101", Name: "Intro"}}}
	cache := NewCacheService(newMemoryCache(), nil, time.Minute, zap.NewNop(), true)
	svc := NewCourseService(backend, cache, nil, nil, nil, zap.NewNop(), time.Minute)

	courses, page, err := svc.List(context.Background(), models.CourseFilter{Search: "  intro ", Status: "active"})
	require.NoError(t, err)
	assert.Len(t, courses, 1)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, "intro", backend.lastList.Search)
	assert.Equal(t, models.CourseStatusActive, backend.lastList.Status)
	assert.Equal(t, 1, backend.lastList.Page)
	assert.Equal(t, 20, backend.lastList.PageSize)

	_, _, err = svc.List(context.Background(), models.CourseFilter{Search: "intro", Status: "ACTIVE"})
	require.NoError(t, err)
	assert.Equal(t, 1, backend.listCalls)
}

func TestCourseServiceCreateValidates(t *testing.T) {
	backend := &fakeCourseBackend{}
	svc := NewCourseService(backend, nil, nil, nil, nil, zap.NewNop(), time.Minute)

	_, err := svc.Create(context.Background(), "prof", models.CourseRequest{Name: "No code"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
	assert.Nil(t, backend.created)
}

func TestCourseServiceWritesInvalidateAndAudit(t *testing.T) {
	backend := &fakeCourseBackend{courses: []models.Course{{ID: "1", Code: "CS101", Name: "Intro"}}}
	store := newMemoryCache()
	cache := NewCacheService(store, nil, time.Minute, zap.NewNop(), true)
	dashboards := &fakeDashboards{}
	audit := &fakeAudit{}
	svc := NewCourseService(backend, cache, dashboards, audit, nil, zap.NewNop(), time.Minute)

	_, _, err := svc.List(context.Background(), models.CourseFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, store.len())

	course, err := svc.Create(context.Background(), "prof", models.CourseRequest{Code: "CS102", Name: "Next", Credits: 3, MaxStudents: 30})
	require.NoError(t, err)
	assert.Equal(t, models.ID("new"), course.ID)
	assert.Zero(t, store.len())

	require.NoError(t, svc.Delete(context.Background(), "admin", "1"))
	assert.Equal(t, []string{"1"}, backend.deleted)
	assert.Equal(t, 2, dashboards.all)
	assert.Equal(t, []string{models.AuditActionCourseCreate, models.AuditActionCourseDelete}, audit.actions())
}

func TestCourseServiceGetNotFound(t *testing.T) {
	svc := NewCourseService(&fakeCourseBackend{}, nil, nil, nil, nil, zap.NewNop(), time.Minute)

	_, err := svc.Get(context.Background(), "missing")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestCourseServiceDeleteFailureSkipsAudit(t *testing.T) {
	backend := &fakeCourseBackend{err: appErrors.Clone(appErrors.ErrForbidden, "")}
	audit := &fakeAudit{}
	svc := NewCourseService(backend, nil, nil, audit, nil, zap.NewNop(), time.Minute)

	err := svc.Delete(context.Background(), "admin", "1")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))
	assert.Empty(t, audit.actions())
}
