package dto

import "github.com/noah-isme/uni-portal/internal/models"

// DashboardView identifies which role dashboard a user is routed to.
type DashboardView string

const (
	DashboardStudent    DashboardView = "student"
	DashboardInstructor DashboardView = "instructor"
	DashboardAdmin      DashboardView = "admin"
	DashboardUnknown    DashboardView = "unknown"
)

// DashboardResponse is the role dashboard payload. Exactly one section is set for known views.
type DashboardResponse struct {
	View       DashboardView        `json:"view"`
	User       models.User          `json:"user"`
	Student    *StudentDashboard    `json:"student,omitempty"`
	Instructor *InstructorDashboard `json:"instructor,omitempty"`
	Admin      *AdminDashboard      `json:"admin,omitempty"`
	Message    string               `json:"message,omitempty"`
}

// StudentDashboard summarises a student's registrations.
type StudentDashboard struct {
	Current           []models.Registration `json:"current"`
	Completed         []models.Registration `json:"completed"`
	CreditsInProgress int                   `json:"creditsInProgress"`
	CreditsEarned     int                   `json:"creditsEarned"`
	GPA               float64               `json:"gpa"`
}

// InstructorDashboard lists courses taught with their enrolment counts.
type InstructorDashboard struct {
	Courses       []InstructorCourseSummary `json:"courses"`
	TotalStudents int                       `json:"totalStudents"`
}

// InstructorCourseSummary pairs a course with its seat usage.
type InstructorCourseSummary struct {
	Course     models.Course `json:"course"`
	Enrolled   int           `json:"enrolled"`
	SeatsLeft  *int          `json:"seatsLeft,omitempty"`
	AtCapacity bool          `json:"atCapacity"`
}

// AdminDashboard gives catalog totals.
type AdminDashboard struct {
	TotalCourses int                         `json:"totalCourses"`
	ByStatus     map[models.CourseStatus]int `json:"byStatus"`
}
