package models

import (
	"encoding/json"
	"strings"
)

// UserRole represents the portal roles recognised by the dashboard selector and RBAC.
type UserRole string

const (
	RoleStudent    UserRole = "STUDENT"
	RoleInstructor UserRole = "INSTRUCTOR"
	RoleAdmin      UserRole = "ADMIN"
)

// UnmarshalJSON upper-cases the backend value so role checks match the constants.
func (r *UserRole) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = UserRole(strings.ToUpper(strings.TrimSpace(raw)))
	return nil
}

// User is the account record returned by the university backend.
type User struct {
	ID            ID       `json:"id" validate:"required"`
	Email         string   `json:"email" validate:"required,email"`
	FirstName     string   `json:"firstName"`
	LastName      string   `json:"lastName"`
	Role          UserRole `json:"role" validate:"required"`
	Department    string   `json:"department,omitempty"`
	Phone         string   `json:"phone,omitempty"`
	StudentNumber string   `json:"studentNumber,omitempty"`
}

// FullName joins the first and last name.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// ProfileUpdateRequest carries editable profile fields.
type ProfileUpdateRequest struct {
	FirstName  string `json:"firstName" validate:"required,max=100"`
	LastName   string `json:"lastName" validate:"required,max=100"`
	Phone      string `json:"phone,omitempty" validate:"omitempty,max=30"`
	Department string `json:"department,omitempty" validate:"omitempty,max=120"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
