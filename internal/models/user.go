package models

import "time"

type User struct {
	ID           int32      `json:"id"`
	Utorid       string     `json:"utorid"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Points       int32      `json:"points"`
	Verified     bool       `json:"verified"`
	Suspicious   bool       `json:"suspicious"`
	Role         Role       `json:"role"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

type ResetToken struct {
	ID        int32
	Token     string
	UserID    int32
	ExpiresAt time.Time
}
