package core

import (
	"errors"
	"fmt"
)

// The engine never recovers from any of these. They are returned up to the
// frame loop, which logs them through LogFatal.
var (
	// A fixed-capacity arena or queue would be exceeded.
	ErrCapacityExhausted = errors.New("capacity exhausted")
	// The caller broke a structural rule (ownership, binding order, ...).
	ErrInvariantViolation = errors.New("invariant violation")
	// An allocation handle does not belong to the pool it was returned to.
	ErrStaleAllocation = fmt.Errorf("stale allocation: %w", ErrInvariantViolation)
	// An enum combination has no defined mapping.
	ErrNotSupported = errors.New("not supported")
	// A file could not be read or decoded.
	ErrExternalResource = errors.New("external resource")
	// A Vulkan call returned a non-success result.
	ErrVulkan = errors.New("vulkan call failed")
)
