package application

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrUserNotFound = errors.New("user not found")
	// ErrWrongPassword rejects an update whose current password does not verify.
	ErrWrongPassword = errors.New("can't update the user: wrong password")
	// ErrInvalidCredentials rejects a delete or a token grant whose password does not verify.
	ErrInvalidCredentials = errors.New("credentials are incorrect")
	ErrInvalidClient      = errors.New("invalid client credentials")
	ErrUnsupportedGrant   = errors.New("unsupported grant type")
)

// Store operations reported by PersistenceError.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpShow   = "show"
	OpList   = "list"
)

// ValidationError carries per-field messages keyed by JSON field name.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

// PersistenceError hides a store failure behind a generic message.
// Err is kept for logging and errors.Is, never for clients.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	switch e.Op {
	case OpShow:
		return "can't load the user"
	case OpList:
		return "can't list the users"
	default:
		return "can't " + e.Op + " the user"
	}
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsRead reports whether the failed operation was a read.
func (e *PersistenceError) IsRead() bool { return e.Op == OpShow || e.Op == OpList }

// domainError reports whether err is already one of the package's typed errors.
func domainError(err error) bool {
	var ve *ValidationError
	var pe *PersistenceError
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrWrongPassword) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrInvalidClient) ||
		errors.Is(err, ErrUnsupportedGrant) ||
		errors.As(err, &ve) ||
		errors.As(err, &pe)
}
