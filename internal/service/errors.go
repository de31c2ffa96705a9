package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors surfaced to the transport layer
var (
	// ErrDeviceNotFound is returned by device-scoped queries for unknown devices
	ErrDeviceNotFound = errors.New("device not found")
	// ErrInvalidDeviceKey is returned when a presented device key does not verify
	ErrInvalidDeviceKey = errors.New("invalid device key")
	// ErrDeviceDisabled is returned when a disabled device attempts ingestion
	ErrDeviceDisabled = errors.New("device disabled")
)

// ValidationError carries field-level detail for rejected ingestion payloads.
// It is deterministic for a given payload and never worth retrying unchanged.
type ValidationError struct {
	Fields map[string]string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
