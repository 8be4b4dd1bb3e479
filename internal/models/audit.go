package models

import (
	"encoding/json"
	"time"
)

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin         = "LOGIN"
	AuditActionLogout        = "LOGOUT"
	AuditActionRefreshFailed = "REFRESH_FAILED"
	AuditActionEnroll        = "ENROLL"
	AuditActionDrop          = "DROP"
	AuditActionCourseCreate  = "COURSE_CREATE"
	AuditActionCourseUpdate  = "COURSE_UPDATE"
	AuditActionCourseDelete  = "COURSE_DELETE"
	AuditActionProfileUpdate = "PROFILE_UPDATE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string          `db:"id" json:"id"`
	UserID     *string         `db:"user_id" json:"user_id,omitempty"`
	Action     string          `db:"action" json:"action"`
	Resource   string          `db:"resource" json:"resource"`
	ResourceID *string         `db:"resource_id" json:"resource_id,omitempty"`
	Details    json.RawMessage `db:"details" json:"details,omitempty"`
	IPAddress  string          `db:"ip_address" json:"ip_address"`
	UserAgent  string          `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// AuditFilter narrows audit listings.
type AuditFilter struct {
	UserID   string
	Action   string
	Page     int
	PageSize int
}
