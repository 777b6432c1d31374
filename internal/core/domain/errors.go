package domain

import "errors"

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskNotOwned = errors.New("task not owned by caller")
	ErrInvalidTask  = errors.New("invalid task")

	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token expired")
	ErrWrongTokenKind = errors.New("wrong token kind")
	ErrCSRFMismatch   = errors.New("csrf token mismatch")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidSignUp      = errors.New("invalid sign up data")
	ErrRefreshTokenReused = errors.New("refresh token reused")
	ErrUserNotFound       = errors.New("user not found")

	ErrInternal = errors.New("internal server error")
)
