package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound        = errors.New("resource not found")
	ErrNodeNotFound    = fmt.Errorf("%w: node", ErrNotFound)
	ErrEdgeNotFound    = fmt.Errorf("%w: edge", ErrNotFound)
	ErrSessionNotFound = fmt.Errorf("%w: session", ErrNotFound)
	ErrGraphNotFound   = fmt.Errorf("%w: saved graph", ErrNotFound)

	// Graph mutation errors
	ErrNodeExists       = errors.New("node already exists")
	ErrDanglingEdge     = errors.New("edge references a missing node")
	ErrNotLatent        = errors.New("node is not a latent variable")
	ErrUnknownAttribute = errors.New("attribute is not part of the dataset")

	// Estimation gating errors
	ErrBusy          = errors.New("an estimation request is already in flight")
	ErrGraphHasCycle = errors.New("graph contains a cycle")
	ErrNoFocus       = errors.New("no node is focused")
	ErrEmptyGraph    = errors.New("graph has no observed nodes")
)

// NewNodeNotFoundError wraps ErrNodeNotFound with the offending id.
func NewNodeNotFoundError(id string) error {
	return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
}

// NewEdgeNotFoundError wraps ErrEdgeNotFound with the offending index.
func NewEdgeNotFoundError(index int) error {
	return fmt.Errorf("%w: index %d", ErrEdgeNotFound, index)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsGatingError reports whether err means estimation was refused before any
// network call was made.
func IsGatingError(err error) bool {
	return errors.Is(err, ErrBusy) ||
		errors.Is(err, ErrGraphHasCycle) ||
		errors.Is(err, ErrNoFocus) ||
		errors.Is(err, ErrEmptyGraph)
}
