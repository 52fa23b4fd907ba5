package objstore

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a StoreError.
type ErrorCode int

const (
	// ErrNotFound indicates a name does not exist in a directory.
	ErrNotFound ErrorCode = iota + 1

	// ErrStaleHandle indicates the object behind an id no longer exists.
	ErrStaleHandle

	// ErrAlreadyExists indicates the target name is taken.
	ErrAlreadyExists

	// ErrNotEmpty indicates a directory still has children.
	ErrNotEmpty

	// ErrIsDirectory indicates the operation is not valid on a directory.
	ErrIsDirectory

	// ErrNotDirectory indicates the operation requires a directory.
	ErrNotDirectory

	// ErrInvalidArgument indicates a malformed request.
	ErrInvalidArgument

	// ErrReadOnly indicates the store refuses mutations.
	ErrReadOnly

	// ErrNameTooLong indicates a component exceeds the name limit.
	ErrNameTooLong

	// ErrNotSupported indicates the store cannot perform the operation.
	ErrNotSupported

	// ErrIOError indicates the backend failed.
	ErrIOError
)

// String returns a human-readable name for the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "NotFound"
	case ErrStaleHandle:
		return "StaleHandle"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrNotEmpty:
		return "NotEmpty"
	case ErrIsDirectory:
		return "IsDirectory"
	case ErrNotDirectory:
		return "NotDirectory"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrReadOnly:
		return "ReadOnly"
	case ErrNameTooLong:
		return "NameTooLong"
	case ErrNotSupported:
		return "NotSupported"
	case ErrIOError:
		return "IOError"
	default:
		return fmt.Sprintf("Unknown(%d)", c)
	}
}

// StoreError is the error type returned by every Store method.
type StoreError struct {
	Code    ErrorCode
	Message string
	Name    string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s (name: %s)", e.Code, e.Message, e.Name)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrNodeNotFound is returned by a Backend when no node is stored under an id.
var ErrNodeNotFound = errors.New("objstore: node not found")

// ============================================================================
// Factory Functions
// ============================================================================

// NewNotFoundError reports a missing directory entry.
func NewNotFoundError(name string) *StoreError {
	return &StoreError{Code: ErrNotFound, Message: "no such entry", Name: name}
}

// NewStaleError reports an id whose object has been removed.
func NewStaleError(id uint64) *StoreError {
	return &StoreError{Code: ErrStaleHandle, Message: fmt.Sprintf("object %d no longer exists", id)}
}

// NewExistsError reports a name collision.
func NewExistsError(name string) *StoreError {
	return &StoreError{Code: ErrAlreadyExists, Message: "already exists", Name: name}
}

// NewNotEmptyError reports removal of a populated directory.
func NewNotEmptyError(name string) *StoreError {
	return &StoreError{Code: ErrNotEmpty, Message: "directory not empty", Name: name}
}

// NewIsDirError reports a directory where a non-directory was required.
func NewIsDirError(name string) *StoreError {
	return &StoreError{Code: ErrIsDirectory, Message: "is a directory", Name: name}
}

// NewNotDirError reports a non-directory where a directory was required.
func NewNotDirError(name string) *StoreError {
	return &StoreError{Code: ErrNotDirectory, Message: "not a directory", Name: name}
}

// NewInvalidError reports a malformed request.
func NewInvalidError(message string) *StoreError {
	return &StoreError{Code: ErrInvalidArgument, Message: message}
}

// NewReadOnlyError reports a mutation against a read-only store.
func NewReadOnlyError() *StoreError {
	return &StoreError{Code: ErrReadOnly, Message: "store is read-only"}
}

// NewIOError wraps a backend failure.
func NewIOError(err error) *StoreError {
	return &StoreError{Code: ErrIOError, Message: err.Error()}
}

// IsNotFound reports whether err is a NotFound StoreError.
func IsNotFound(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Code == ErrNotFound
}
