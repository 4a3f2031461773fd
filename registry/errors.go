package registry

import (
	"errors"
	"fmt"
)

// ListingError means the suite tree of a test file could not be obtained.
type ListingError struct {
	File    string
	Timeout bool
	Err     error
}

func (e *ListingError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("listing tests in %s timed out: %v", e.File, e.Err)
	}
	return fmt.Sprintf("failed to list tests in %s: %v", e.File, e.Err)
}

func (e *ListingError) Unwrap() error {
	return e.Err
}

// IsListingTimeout reports whether err is a listing that ran out of time.
func IsListingTimeout(err error) bool {
	var le *ListingError
	return errors.As(err, &le) && le.Timeout
}
