// Package id generates identifiers for bills and other persisted records.
package id

import (
	"github.com/google/uuid"
)

// ID is the identifier type used by all entities.
type ID = uuid.UUID

// New returns a time-ordered UUIDv7, falling back to v4.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// NewString is New rendered as text.
func NewString() string {
	return New().String()
}

// Parse validates and converts s.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// Valid reports whether s is a well-formed UUID.
func Valid(s string) bool {
	return uuid.Validate(s) == nil
}

// IsNil checks for the zero UUID.
func IsNil(v ID) bool {
	return v == uuid.Nil
}
