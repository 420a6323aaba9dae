package auth

import "errors"

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUserNotFound         = errors.New("user not found")
	ErrUsernameAlreadyTaken = errors.New("username already taken")
	ErrTooManyAttempts      = errors.New("too many login attempts")
	ErrInvalidRole          = errors.New("invalid role")
)
