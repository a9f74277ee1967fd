package synapse

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailure is matched by every FetchError
	ErrFetchFailure = errors.New("synapse fetch failed")

	// ErrNoRows is returned when a table query matches nothing
	ErrNoRows = errors.New("query returned no rows")

	// ErrNotLoggedIn is returned when the client is used before Login
	ErrNotLoggedIn = errors.New("synapse client is not logged in")

	// ErrNoCredentials is returned when no auth token can be found
	ErrNoCredentials = errors.New("no synapse auth token found")
)

// FetchError is a failed call to the Synapse API. StatusCode is 0 when no
// response was received.
type FetchError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("synapse %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("synapse %s failed: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrFetchFailure) true for any FetchError
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailure
}
