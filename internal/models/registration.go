package models

import (
	"encoding/json"
	"strings"
	"time"
)

// RegistrationStatus is the lifecycle state of a registration.
type RegistrationStatus string

const (
	RegistrationEnrolled    RegistrationStatus = "ENROLLED"
	RegistrationCompleted   RegistrationStatus = "COMPLETED"
	RegistrationDropped     RegistrationStatus = "DROPPED"
	RegistrationPending     RegistrationStatus = "PENDING"
	RegistrationWithdrawn   RegistrationStatus = "WITHDRAWN"
	RegistrationFailed      RegistrationStatus = "FAILED"
	RegistrationTransferred RegistrationStatus = "TRANSFERRED"
)

// PaymentStatus tracks tuition payment for a registration.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentPartial   PaymentStatus = "PARTIAL"
	PaymentOverdue   PaymentStatus = "OVERDUE"
	PaymentRefunded  PaymentStatus = "REFUNDED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// UnmarshalJSON upper-cases the backend value so lowercase statuses validate.
func (s *RegistrationStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = RegistrationStatus(strings.ToUpper(strings.TrimSpace(raw)))
	return nil
}

// UnmarshalJSON upper-cases the backend value.
func (s *PaymentStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = PaymentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	return nil
}

// Registration links a user to a course.
type Registration struct {
	ID               ID                 `json:"id" validate:"required"`
	UserID           ID                 `json:"userId"`
	CourseID         ID                 `json:"courseId" validate:"required_without=Course"`
	Status           RegistrationStatus `json:"status" validate:"required,oneof=ENROLLED COMPLETED DROPPED PENDING WITHDRAWN FAILED TRANSFERRED"`
	PaymentStatus    PaymentStatus      `json:"paymentStatus,omitempty" validate:"omitempty,oneof=PENDING PAID PARTIAL OVERDUE REFUNDED CANCELLED"`
	Grade            string             `json:"grade,omitempty"`
	GradePoints      *float64           `json:"gradePoints,omitempty"`
	RegistrationDate *time.Time         `json:"registrationDate,omitempty"`
	Course           *Course            `json:"course,omitempty" validate:"-"`
}

// HoldsSeat reports whether the registration is an active or pending enrollment.
func (r Registration) HoldsSeat() bool {
	return r.Status == RegistrationEnrolled || r.Status == RegistrationPending
}

// CourseKey returns the course id, falling back to the embedded course when
// the backend omits courseId.
func (r Registration) CourseKey() ID {
	if r.CourseID == "" && r.Course != nil {
		return r.Course.ID
	}
	return r.CourseID
}
