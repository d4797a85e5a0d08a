package core

import "github.com/google/uuid"

// NewID generates a new unique identifier (UUIDv4) used for function calls,
// request correlation and in-process memory ids.
func NewID() string { return uuid.NewString() }
