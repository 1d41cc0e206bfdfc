package models

import "errors"

// Application-wide standard errors
var (
	// Common Resource/DB Errors
	ErrNotFound        = errors.New("resource not found") // General not found
	ErrStoryNotFound   = errors.New("story not found")
	ErrSegmentNotFound = errors.New("segment not found")

	// User & Authentication Errors
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("unauthorized") // Authentication required or failed
	ErrForbidden          = errors.New("forbidden")    // Authenticated, but lacks permission

	// Token Errors
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")

	// Credit Ledger Errors
	ErrInsufficientCredits = errors.New("insufficient credits")

	// Story Lifecycle Errors
	ErrStoryBusy            = errors.New("story has an operation in progress")
	ErrGenerationInProgress = errors.New("segment generation is already in progress for this story")
	ErrEmptyScript          = errors.New("story script is empty")
	ErrPromptMissing        = errors.New("segment has no generation prompt")

	// General Request/Server Errors
	ErrInternalServer = errors.New("internal server error")
	ErrInvalidInput   = errors.New("invalid input data")
)
