package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific identifier types
type (
	RunID ID

	// Label is a classification term an entity may carry (e.g. a GO term id).
	Label string

	// Entity is a member of a sample or background population (e.g. a gene).
	Entity string
)

// SpeciesID keys background populations by organism.
type SpeciesID int

// String conversions for domain IDs
func (id RunID) String() string { return ID(id).String() }
func (l Label) String() string  { return string(l) }
func (e Entity) String() string { return string(e) }

// NewRunID creates a time-ordered run identifier
func NewRunID() RunID { return RunID(NewID()) }

// ParseLabel parses and normalizes a label
func ParseLabel(s string) (Label, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("label cannot be empty")
	}
	return Label(s), nil
}

// ParseEntity parses and normalizes an entity identifier
func ParseEntity(s string) (Entity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("entity cannot be empty")
	}
	return Entity(s), nil
}
