package catalog

import "errors"

// ErrNotFound is returned when a requested uuid/entity/storage/entry row
// does not exist (or is soft-deleted and the caller did not ask to see
// soft-deleted rows).
var ErrNotFound = errors.New("catalog: record not found")

// ErrStillNotImplemented is returned by assignTo for argument
// combinations that do not match one of the five documented branches.
var ErrStillNotImplemented = errors.New("catalog: assignment not implemented for this combination")

// ErrDefaultEntity is returned when a caller attempts to reassign a
// job's default entity into another entity.
var ErrDefaultEntity = errors.New("catalog: cannot reassign the default entity")

// ErrLocked is returned when pruning is attempted against an entity
// with a nonzero lock count.
var ErrLocked = errors.New("catalog: entity is locked")
