package models

import "time"

// Session is the server-side credential state behind one portal cookie.
type Session struct {
	ID           string    `json:"id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	User         User      `json:"user"`
	CreatedAt    time.Time `json:"createdAt"`
}
