package errors

import "errors"

var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidRecord = errors.New("invalid record")
	ErrInvalidInput  = errors.New("invalid input")
	ErrTransient     = errors.New("transient store error")
	ErrFatal         = errors.New("fatal store error")
)

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
