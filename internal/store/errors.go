package store

import (
	"errors"

	dErrors "zonecore/pkg/domain-errors"
	"zonecore/pkg/sentinel"
)

// Store-level sentinels stay consistent across the in-memory and PostgreSQL
// implementations so services translate them uniformly.
var (
	ErrNotFound        = sentinel.ErrNotFound
	ErrConflict        = sentinel.ErrConflict
	ErrVersionMismatch = sentinel.ErrVersionMismatch
)

// Translate maps store sentinels onto coded domain errors so engines don't
// repeat the mapping. The object name feeds the caller-facing message.
func Translate(err error, object string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, object+" does not exist")
	case errors.Is(err, ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeAlreadyExists, object+" already exists")
	case errors.Is(err, ErrVersionMismatch):
		return dErrors.Wrap(err, dErrors.CodeConcurrent, object+" was modified concurrently; re-read and retry")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "store failure")
	}
}
