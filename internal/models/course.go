package models

import "strings"

// CourseStatus describes whether a course accepts enrollments.
type CourseStatus string

const (
	CourseStatusActive    CourseStatus = "ACTIVE"
	CourseStatusInactive  CourseStatus = "INACTIVE"
	CourseStatusCancelled CourseStatus = "CANCELLED"
	CourseStatusCompleted CourseStatus = "COMPLETED"
)

// Course is a catalog offering as exposed by the backend.
type Course struct {
	ID           ID           `json:"id" validate:"required"`
	Code         string       `json:"code"`
	Name         string       `json:"name" validate:"required"`
	Description  string       `json:"description,omitempty"`
	Credits      int          `json:"credits" validate:"gte=0"`
	MaxStudents  int          `json:"maxStudents" validate:"gte=0"`
	Status       CourseStatus `json:"status,omitempty"`
	InstructorID ID           `json:"instructorId,omitempty"`
	Department   string       `json:"department,omitempty"`
	Semester     string       `json:"semester,omitempty"`
	Schedule     string       `json:"schedule,omitempty"`
}

// IsActive treats an unset status as active.
func (c Course) IsActive() bool {
	if c.Status == "" {
		return true
	}
	return strings.EqualFold(string(c.Status), string(CourseStatusActive))
}

// CourseFilter narrows catalog listings.
type CourseFilter struct {
	Search       string
	Department   string
	Status       CourseStatus
	InstructorID string
	Page         int
	PageSize     int
}

// CourseRequest is the create/update payload for catalog entries.
type CourseRequest struct {
	Code         string       `json:"code" validate:"required,max=20"`
	Name         string       `json:"name" validate:"required,max=200"`
	Description  string       `json:"description,omitempty" validate:"max=2000"`
	Credits      int          `json:"credits" validate:"gte=0,lte=30"`
	MaxStudents  int          `json:"maxStudents" validate:"gte=0"`
	Status       CourseStatus `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE CANCELLED COMPLETED"`
	InstructorID string       `json:"instructorId,omitempty"`
	Department   string       `json:"department,omitempty"`
	Semester     string       `json:"semester,omitempty"`
	Schedule     string       `json:"schedule,omitempty"`
}
