package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/uni-portal/internal/dto"
	"github.com/noah-isme/uni-portal/internal/models"
	appErrors "github.com/noah-isme/uni-portal/pkg/errors"
)

const (
	dashboardPageSize   = 100
	dashboardMaxPages   = 50
	dashboardFetchLimit = 4
	unknownRoleMessage  = "Your account role does not have a dashboard. Contact an administrator."
)

var dashboardViews = map[models.UserRole]dto.DashboardView{
	models.RoleStudent:    dto.DashboardStudent,
	models.RoleInstructor: dto.DashboardInstructor,
	models.RoleAdmin:      dto.DashboardAdmin,
}

// SelectDashboard maps a role onto its dashboard, ignoring case. Unrecognised roles map to the unknown view.
func SelectDashboard(role models.UserRole) dto.DashboardView {
	if view, ok := dashboardViews[models.UserRole(strings.ToUpper(strings.TrimSpace(string(role))))]; ok {
		return view
	}
	return dto.DashboardUnknown
}

type dashboardBackend interface {
	MyRegistrations(ctx context.Context) ([]models.Registration, error)
	ListCourses(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error)
	CourseRegistrations(ctx context.Context, courseID string) ([]models.Registration, error)
}

// DashboardService composes role dashboards from backend data.
type DashboardService struct {
	backend  dashboardBackend
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(backend dashboardBackend, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{backend: backend, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Build returns the dashboard for user and whether it was served from cache.
func (s *DashboardService) Build(ctx context.Context, user models.User) (*dto.DashboardResponse, bool, error) {
	view := SelectDashboard(user.Role)
	if view == dto.DashboardUnknown {
		return &dto.DashboardResponse{View: view, User: user, Message: unknownRoleMessage}, false, nil
	}

	key := dashboardCacheKey(user.ID.String(), view)
	var cached dto.DashboardResponse
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	resp := &dto.DashboardResponse{View: view, User: user}
	var err error
	switch view {
	case dto.DashboardStudent:
		resp.Student, err = s.student(ctx)
	case dto.DashboardInstructor:
		resp.Instructor, err = s.instructor(ctx, user.ID.String())
	case dto.DashboardAdmin:
		resp.Admin, err = s.admin(ctx)
	}
	if err != nil {
		return nil, false, err
	}

	s.cache.Set(ctx, key, resp, s.cacheTTL)
	return resp, false, nil
}

// InvalidateUser drops cached dashboards for userID.
func (s *DashboardService) InvalidateUser(ctx context.Context, userID string) {
	s.cache.Invalidate(ctx, cacheDashboardPrefix+userID+":*")
}

// InvalidateAll drops every cached dashboard.
func (s *DashboardService) InvalidateAll(ctx context.Context) {
	s.cache.Invalidate(ctx, cacheDashboardPrefix+"*")
}

func dashboardCacheKey(userID string, view dto.DashboardView) string {
	return fmt.Sprintf("%s%s:%s", cacheDashboardPrefix, userID, view)
}

func (s *DashboardService) student(ctx context.Context) (*dto.StudentDashboard, error) {
	regs, err := s.backend.MyRegistrations(ctx)
	if err != nil {
		return nil, err
	}

	summary := &dto.StudentDashboard{
		Current:   []models.Registration{},
		Completed: []models.Registration{},
		GPA:       ComputeGPA(regs),
	}
	for _, reg := range regs {
		switch {
		case reg.HoldsSeat():
			summary.Current = append(summary.Current, reg)
			if reg.Status == models.RegistrationEnrolled {
				summary.CreditsInProgress += registrationCredits(reg)
			}
		case reg.Status == models.RegistrationCompleted || reg.Status == models.RegistrationFailed:
			summary.Completed = append(summary.Completed, reg)
			if reg.Status == models.RegistrationCompleted {
				summary.CreditsEarned += registrationCredits(reg)
			}
		}
	}
	return summary, nil
}

func registrationCredits(reg models.Registration) int {
	if reg.Course == nil {
		return 0
	}
	return reg.Course.Credits
}

func (s *DashboardService) instructor(ctx context.Context, instructorID string) (*dto.InstructorDashboard, error) {
	courses, err := s.allCourses(ctx, models.CourseFilter{InstructorID: instructorID})
	if err != nil {
		return nil, err
	}

	summaries := make([]dto.InstructorCourseSummary, len(courses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dashboardFetchLimit)
	for i, course := range courses {
		i, course := i, course
		g.Go(func() error {
			regs, err := s.backend.CourseRegistrations(gctx, course.ID.String())
			if err != nil && !appErrors.HasCode(err, appErrors.ErrNotFound.Code) {
				return err
			}
			summary := dto.InstructorCourseSummary{Course: course, Enrolled: len(regs)}
			if course.MaxStudents > 0 {
				left := course.MaxStudents - len(regs)
				if left < 0 {
					left = 0
				}
				summary.SeatsLeft = &left
				summary.AtCapacity = left == 0
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &dto.InstructorDashboard{Courses: summaries}
	for _, summary := range summaries {
		result.TotalStudents += summary.Enrolled
	}
	return result, nil
}

func (s *DashboardService) admin(ctx context.Context) (*dto.AdminDashboard, error) {
	courses, err := s.allCourses(ctx, models.CourseFilter{})
	if err != nil {
		return nil, err
	}
	result := &dto.AdminDashboard{TotalCourses: len(courses), ByStatus: map[models.CourseStatus]int{}}
	for _, course := range courses {
		status := models.CourseStatus(strings.ToUpper(string(course.Status)))
		if status == "" {
			status = models.CourseStatusActive
		}
		result.ByStatus[status]++
	}
	return result, nil
}

// allCourses walks the catalog pages until the reported total is reached.
func (s *DashboardService) allCourses(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	filter.PageSize = dashboardPageSize
	var all []models.Course
	for page := 1; page <= dashboardMaxPages; page++ {
		filter.Page = page
		courses, pagination, err := s.backend.ListCourses(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, courses...)
		if len(courses) == 0 || pagination == nil || len(all) >= pagination.TotalCount {
			break
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	return all, nil
}
