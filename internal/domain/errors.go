package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrNotAllowed            = errors.New("operation not allowed")
	ErrNotAuthorised         = errors.New("payment not authorised")
	ErrDuplicateNotification = errors.New("duplicate notification")
	ErrProviderUnavailable   = errors.New("provider unavailable")
)
