package model

import "errors"

// Common errors used across the application
var (
	// Link store errors
	ErrLinkNotFound = errors.New("link not found")
)
