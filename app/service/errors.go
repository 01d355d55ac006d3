package service

import "errors"

var (
	ErrConfirmationNotFound = errors.New("confirmation not found")
	ErrAlreadyInFlight      = errors.New("confirmation already in flight on another instance")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInvalidPackage       = errors.New("invalid package")
	ErrOriginNotAllowed     = errors.New("origin not allowed")
	ErrUnauthorized         = errors.New("not authenticated")
	ErrUpstream             = errors.New("backend request failed")
	ErrNotFound             = errors.New("not found")
)
