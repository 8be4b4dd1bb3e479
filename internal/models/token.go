package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Stored value keys, kept compatible with the browser-side names.
const (
	StorageKeyAccessToken  = "uni_access_token"
	StorageKeyRefreshToken = "uni_refresh_token"
	StorageKeyUserData     = "uni_user_data"
)

// TokenPayload is the decoded middle segment of a bearer token.
type TokenPayload struct {
	Subject   string           `json:"sub"`
	IssuedAt  *jwt.NumericDate `json:"iat,omitempty"`
	ExpiresAt *jwt.NumericDate `json:"exp,omitempty"`
	Role      UserRole         `json:"role,omitempty"`
	Email     string           `json:"email,omitempty"`
}

// AuthTokens is the backend response to login and refresh.
type AuthTokens struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken" validate:"required"`
	User         *User  `json:"user,omitempty"`
}

// LoginRequest holds portal credentials.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// StoredValue is the envelope persisted for each session key.
type StoredValue struct {
	Value     string `json:"value"`
	Timestamp int64  `json:"timestamp"`
	ExpiresAt *int64 `json:"expiresAt,omitempty"`
}

// NewStoredValue stamps value with now and an optional expiry.
func NewStoredValue(value string, now time.Time, expiresAt *time.Time) StoredValue {
	sv := StoredValue{Value: value, Timestamp: now.UnixMilli()}
	if expiresAt != nil {
		ms := expiresAt.UnixMilli()
		sv.ExpiresAt = &ms
	}
	return sv
}

// Expired reports whether the envelope carries an expiry at or before now.
func (s StoredValue) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && *s.ExpiresAt <= now.UnixMilli()
}
