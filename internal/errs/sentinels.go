// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across repo/service/transport layers.
var (
	// ErrNotFound indicates the requested entity does not exist or is not visible to the caller.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict indicates optimistic concurrency failure (base rev mismatch).
	ErrVersionConflict = errors.New("version conflict")

	// ErrUnauthorized indicates a missing or invalid access token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller's role does not permit the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited indicates the caller exceeded its request budget.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., member already added).
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation marks malformed input; wrap it with details.
	ErrValidation = errors.New("validation")

	// ErrUnsupportedType indicates an uploaded document type with no extractor.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrNoText indicates a document yielded no extractable text.
	ErrNoText = errors.New("no text extracted")
)

// ErrLastOwner refuses removing or demoting a list's only owner.
var ErrLastOwner = fmt.Errorf("last owner: %w", ErrForbidden)
