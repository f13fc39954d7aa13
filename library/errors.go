package library

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound     = errors.New("record not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNoUser             = errors.New("no signed-in user")

	ErrDuplicateBook     = errors.New("a book with the same title and author already exists")
	ErrDuplicateBorrower = errors.New("a borrower with the same name already exists")
)

// genericFailure is what users see for store and network failures.
const genericFailure = "An error occurred. Please try again."

// ValidationError reports a missing or malformed form field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// BulkDeleteError is returned when a sequential batch delete stops early.
type BulkDeleteError struct {
	ID  string
	Err error
}

func (e *BulkDeleteError) Error() string {
	return fmt.Sprintf("delete %s: %v", e.ID, e.Err)
}

func (e *BulkDeleteError) Unwrap() error { return e.Err }

// UserMessage maps err to the text shown to the user. Validation and
// duplicate errors are shown verbatim; anything else is a generic failure.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	for _, known := range []error{ErrDuplicateBook, ErrDuplicateBorrower, ErrEmailTaken, ErrInvalidCredentials, ErrNoUser} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return genericFailure
}
