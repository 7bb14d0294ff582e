package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnsupportedFileType is returned for uploads that are neither .py nor .ipynb.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrMalformedNotebook is returned when notebook JSON cannot be decoded.
	ErrMalformedNotebook = errors.New("malformed notebook")
	// ErrBackend marks a failed or rejected call to the grading backend.
	ErrBackend = errors.New("grading backend failure")
	// ErrSuperseded is returned when a newer upload replaced the one being committed.
	ErrSuperseded = errors.New("superseded by a newer upload")
)
