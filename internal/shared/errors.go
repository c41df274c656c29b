package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Store errors
	ErrStoreUnreadable = fmt.Errorf("user store unreadable")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrAuthPending      = fmt.Errorf("authorization already pending")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// VK API errors
	ErrRateLimited = fmt.Errorf("rate limited")
	ErrNotFound    = fmt.Errorf("not found")
	ErrAPIRequest  = fmt.Errorf("API request failed")

	// Dispatch errors
	ErrUnexpectedCommand = fmt.Errorf("unexpected command")
)
