// Package uuid provides ID generation helpers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates UUID v7 strings, used as worker claimant identities.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUID7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// New returns a UUID7 string, falling back to a random UUID when the
// time-based generator fails.
func (g Generator) New() string {
	id, err := g.NewID()
	if err != nil {
		return uuid.NewString()
	}
	return id
}
