package users

import (
	"time"
)

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        string
	FirstName    string
	LastName     string
	IsStaff      bool
	IsActive     bool
	DateJoined   time.Time
	LastLogin    *time.Time
}

// RegisterInput is the body of POST /auth/users.
type RegisterInput struct {
	Username  *string `json:"username" validate:"required,notblank,max=150,username"`
	Password  *string `json:"password" validate:"required,notblank,max=72"`
	Email     *string `json:"email" validate:"omitempty,email,max=254"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
}

// UpdateInput holds the profile fields a user may change directly. The
// username and password have their own endpoints.
type UpdateInput struct {
	Email     *string `json:"email" validate:"omitempty,email,max=254"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
}

func updateInputFrom(u *User) UpdateInput {
	return UpdateInput{Email: &u.Email, FirstName: &u.FirstName, LastName: &u.LastName}
}

func (in *UpdateInput) apply(u *User) {
	u.Email = deref(in.Email)
	u.FirstName = deref(in.FirstName)
	u.LastName = deref(in.LastName)
}

type SetPasswordInput struct {
	NewPassword     *string `json:"new_password" validate:"required,notblank,max=72"`
	CurrentPassword *string `json:"current_password" validate:"required"`
}

type SetUsernameInput struct {
	NewUsername     *string `json:"new_username" validate:"required,notblank,max=150,username"`
	CurrentPassword *string `json:"current_password" validate:"required"`
}

type DeleteInput struct {
	CurrentPassword *string `json:"current_password" validate:"required"`
}

type LoginInput struct {
	Username *string `json:"username" validate:"required,notblank"`
	Password *string `json:"password" validate:"required,notblank"`
}

type RefreshInput struct {
	Refresh *string `json:"refresh" validate:"required,notblank"`
}

type VerifyInput struct {
	Token *string `json:"token" validate:"required,notblank"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

const (
	usernameConstraint = "app_user_username_key"

	msgUsernameTaken     = "A user with that username already exists."
	msgInvalidPassword   = "Invalid password."
	msgNoActiveAccount   = "No active account found with the given credentials"
	msgNoActiveForToken  = "No active account found for the given token."
	msgTokenInvalid      = "Token is invalid or expired"
	msgPasswordTooShort  = "This password is too short. It must contain at least 8 characters."
	msgPasswordNumeric   = "This password is entirely numeric."
	msgPasswordLikeUser  = "The password is too similar to the username."
	msgPasswordTooCommon = "This password is too common."
	minPasswordLength    = 8
)
