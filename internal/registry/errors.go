package registry

import "errors"

// Common registry error types
var (
	ErrRegistryDuplicate = errors.New("registry already exists")
	ErrRegistryNotFound  = errors.New("registry not found")
	ErrRegistryDisabled  = errors.New("registry disabled")
	ErrStaleDelta        = errors.New("stale delta")
	ErrInvalidConfig     = errors.New("invalid registry config")
)
