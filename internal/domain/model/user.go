package model

import (
	"time"
)

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"

	AuthProviderPassword  = "password"
	AuthProviderFederated = "federated"
)

func IsValidRole(role string) bool {
	switch role {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID             string    `json:"id"`
	ExternalAuthID *string   `json:"external_auth_id,omitempty"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	HashedPassword string    `json:"-"` // Not exposed
	AuthProvider   string    `json:"auth_provider"`
	Role           string    `json:"role"`
	Grade          string    `json:"grade"`
	Subjects       []string  `json:"subjects"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsStaff reports whether the user may author content and bypass purchase checks.
func (u *User) IsStaff() bool {
	return u.Role == RoleAdmin || u.Role == RoleTeacher
}
