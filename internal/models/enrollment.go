package models

// ConflictType classifies a blocking enrollment conflict.
type ConflictType string

const (
	ConflictDuplicate    ConflictType = "duplicate"
	ConflictCapacity     ConflictType = "capacity"
	ConflictSchedule     ConflictType = "schedule"
	ConflictPrerequisite ConflictType = "prerequisite"
)

// Enrollment verdict reasons.
const (
	ReasonCourseNotFound  = "Course not found"
	ReasonAlreadyEnrolled = "Already enrolled in this course"
	ReasonCourseFull      = "Course is at full capacity"
	ReasonCourseClosed    = "Course is not open for enrollment"
)

// EnrollmentConflict is a typed blocking condition.
type EnrollmentConflict struct {
	Type     ConflictType `json:"type"`
	Message  string       `json:"message"`
	CourseID string       `json:"courseId,omitempty"`
}

// PrerequisiteCheck records whether a prerequisite course is satisfied.
type PrerequisiteCheck struct {
	CourseID   string `json:"courseId"`
	CourseCode string `json:"courseCode,omitempty"`
	Satisfied  bool   `json:"satisfied"`
}

// EnrollmentValidation is the computed eligibility verdict for one course.
type EnrollmentValidation struct {
	CourseID      string               `json:"courseId"`
	CanEnroll     bool                 `json:"canEnroll"`
	Reasons       []string             `json:"reasons"`
	Warnings      []string             `json:"warnings"`
	Prerequisites []PrerequisiteCheck  `json:"prerequisites"`
	Conflicts     []EnrollmentConflict `json:"conflicts"`
}

// NewEnrollmentValidation returns a verdict with non-nil collections.
func NewEnrollmentValidation(courseID string) *EnrollmentValidation {
	return &EnrollmentValidation{
		CourseID:      courseID,
		Reasons:       []string{},
		Warnings:      []string{},
		Prerequisites: []PrerequisiteCheck{},
		Conflicts:     []EnrollmentConflict{},
	}
}

// Reject records a blocking reason and, when conflictType is set, a matching conflict.
func (v *EnrollmentValidation) Reject(reason string, conflictType ConflictType) {
	v.Reasons = append(v.Reasons, reason)
	if conflictType != "" {
		v.Conflicts = append(v.Conflicts, EnrollmentConflict{Type: conflictType, Message: reason, CourseID: v.CourseID})
	}
}
