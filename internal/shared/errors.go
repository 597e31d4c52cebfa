package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthenticated indicates a missing, malformed or expired credential.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the principal lacks a required permission.
	ErrForbidden = errors.New("forbidden")
	// ErrDuplicate indicates a uniqueness conflict such as a taken email.
	ErrDuplicate = errors.New("duplicate entry")
)
