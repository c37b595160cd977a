package safejson

import "errors"

var (
	// ErrInternal marks a broken ancestor bookkeeping invariant. It is raised
	// with panic and never returned.
	ErrInternal = errors.New("safejson: internal invariant violated")

	// ErrNotPlaceholder indicates a string that is not a path placeholder.
	ErrNotPlaceholder = errors.New("safejson: not a circular placeholder")

	// ErrNotFound indicates a placeholder path that does not exist in the document.
	ErrNotFound = errors.New("safejson: placeholder target not found")

	// ErrDecode indicates a document that could not be decoded.
	ErrDecode = errors.New("safejson: invalid document")
)
