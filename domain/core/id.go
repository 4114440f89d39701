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

// SessionID identifies one editor session.
type SessionID ID

func (id SessionID) String() string { return ID(id).String() }

// NewSessionID creates a fresh editor session identifier.
func NewSessionID() SessionID { return SessionID(NewID()) }

// ParseSessionID parses a string into SessionID
func ParseSessionID(s string) (SessionID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("session ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("invalid session ID %q: %w", s, err)
	}
	return SessionID(s), nil
}

// LatentPrefix marks node ids that were generated for latent confounders.
const LatentPrefix = "latent_"

// NewLatentID generates an id for a latent node. Attribute names never carry
// the prefix, so the id cannot collide with a dataset column.
func NewLatentID() string {
	id := uuid.New()
	return LatentPrefix + strings.ReplaceAll(id.String(), "-", "")[:12]
}

// IsLatentID reports whether id was produced by NewLatentID.
func IsLatentID(id string) bool {
	return strings.HasPrefix(id, LatentPrefix)
}
