package utils

import "github.com/google/uuid"

// NewID returns a new random unique identifier.
func NewID() string {
	return uuid.NewString()
}
