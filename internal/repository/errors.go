// Package repository defines the storage contracts of the API together with
// the sentinel errors shared by every driver (mongorepo, mysqlrepo,
// memrepo). Services translate these sentinels into envelope errors.
package repository

import "errors"

// ErrNotFound is returned when no record matches the given id or key.
// Malformed ids (for example a non-hex Mongo id) also yield ErrNotFound.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when a create or update would duplicate the
// unique email of another user.
var ErrEmailExists = errors.New("email already exists")
