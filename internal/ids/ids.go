// Package ids generates the violation and sequence identifiers the
// pipeline hands out, backed by github.com/gofrs/uuid/v5 the way
// EchoTools-nevrcap generates its entity ids.
package ids

import "github.com/gofrs/uuid/v5"

// NewViolationID returns a new random violation id.
func NewViolationID() string {
	return uuid.Must(uuid.NewV4()).String()
}

// NewSequenceID returns a new random sequence id.
func NewSequenceID() string {
	return uuid.Must(uuid.NewV4()).String()
}
