package adapter

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse is returned when a store response violates the
// ResultSet shape (row widths that differ from the column count).
var ErrMalformedResponse = errors.New("malformed store response")

// UnknownStoreError is returned when an unknown store type is requested.
type UnknownStoreError struct {
	Type      string
	Available []string
}

func (e *UnknownStoreError) Error() string {
	return fmt.Sprintf("unknown store type %q\nAvailable stores: %v\nHint: Check store.type in sqlgate.yaml", e.Type, e.Available)
}
