package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrUnauthorized       = fmt.Errorf("not authenticated")
	ErrInvalidCredentials = fmt.Errorf("invalid email or password")
	ErrTokenExpired       = fmt.Errorf("access token expired")
	ErrForbidden          = fmt.Errorf("insufficient permissions")

	// Persistence errors
	ErrNotFound = fmt.Errorf("not found")
	ErrConflict = fmt.Errorf("conflict")

	// Domain errors
	ErrInvalidTransition = fmt.Errorf("invalid status transition")
	ErrUploadRejected    = fmt.Errorf("upload rejected")

	// External service errors
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrTimeout            = fmt.Errorf("operation timed out")
	ErrRateLimited        = fmt.Errorf("rate limit exceeded")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")

	ErrMethodNotAllowed = fmt.Errorf("method not allowed")
)
