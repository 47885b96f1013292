package app

import "errors"

// ValidationError is a client mistake reported back verbatim with HTTP 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) *ValidationError { return &ValidationError{Message: msg} }

var (
	// ErrUnauthenticated covers missing, unknown and expired tokens as well
	// as bad credentials; callers cannot tell which.
	ErrUnauthenticated = errors.New("Unauthorized")
	// ErrNotFound also hides nodes the requester may not see.
	ErrNotFound = errors.New("Not found")
)

var (
	ErrMissingEmail       = invalid("Missing email")
	ErrMissingPassword    = invalid("Missing password")
	ErrAlreadyExists      = invalid("Already exist")
	ErrMissingName        = invalid("Missing name")
	ErrMissingType        = invalid("Missing type")
	ErrMissingData        = invalid("Missing data")
	ErrInvalidData        = invalid("Invalid data")
	ErrParentNotFound     = invalid("Parent not found")
	ErrParentNotFolder    = invalid("Parent is not a folder")
	ErrFolderHasNoContent = invalid("A folder doesn't have content")
	ErrInvalidParent      = invalid("Invalid parentId")
)

// IsValidation reports whether err should be answered with 400.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
