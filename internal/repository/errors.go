// Package repository holds the MySQL-backed stores and the error values
// they share.  These sentinel values let higher layers such as handlers and
// the token service tell failure scenarios apart without looking at SQL
// errors.  For example, ErrNotFound means the row does not exist, while
// ErrUsernameExists and ErrEmailExists signal a unique-key violation on
// registration.
package repository

import "errors"

// ErrNotFound is returned when a row addressed by id, username or email
// does not exist.  Handlers translate it into an HTTP 404 (or 401 when the
// row is the authenticated identity).
var ErrNotFound = errors.New("not found")

// ErrConflict is the parent of every unique-key violation.  errors.Is on
// ErrUsernameExists or ErrEmailExists also matches ErrConflict.
var ErrConflict = errors.New("conflict")

var (
	ErrUsernameExists = &conflictError{msg: "username already exists"}
	ErrEmailExists    = &conflictError{msg: "email already exists"}
)

type conflictError struct{ msg string }

func (e *conflictError) Error() string        { return e.msg }
func (e *conflictError) Is(target error) bool { return target == ErrConflict }
