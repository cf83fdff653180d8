package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound         = errors.New("entity not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotCancelable    = errors.New("job is not cancelable")
	ErrJobUnknown       = errors.New("job unknown to backend")
	ErrTransportClosed  = errors.New("transport is not open")
	ErrCancelRejected   = errors.New("backend rejected cancellation")
	ErrStoreUnavailable = errors.New("message store unavailable")
)
