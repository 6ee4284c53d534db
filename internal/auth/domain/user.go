package domain

import "time"

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string // argon2 encoded
	Role         Role
	IsActive     bool
	IsVerified   bool
	MFAEnabled   *time.Time // when MFA was enabled, nil = disabled
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MFAOn reports whether the user has an enabled second factor.
func (u *User) MFAOn() bool {
	return u.MFAEnabled != nil
}
