package browser

import (
	"errors"
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// ErrNotOpen is returned by any operation that needs an active page when
// the browser has not been opened (or every tab was closed).
var ErrNotOpen = errors.New("browser is not open")

// NodeNotFoundError means a hid does not map to a known selector; the
// caller must take a fresh snapshot first.
type NodeNotFoundError struct {
	Hid string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node %q not found, refresh the snapshot first", e.Hid)
}

// NavigationError wraps a driver failure while navigating.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// IsTimeout reports whether an in-page action or wait exceeded its budget.
func IsTimeout(err error) bool {
	return errors.Is(err, playwright.ErrTimeout)
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("playwright: %w", err)
}
