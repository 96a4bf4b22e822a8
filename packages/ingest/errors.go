package ingest

import "errors"

var (
	// ErrIncompleteResponse marks a body that ended before its declared
	// length or failed mid-read.
	ErrIncompleteResponse = errors.New("incomplete response")
	// ErrDownloadCancelled marks a body read stopped by the user. Callers
	// should not style it as a failure.
	ErrDownloadCancelled = errors.New("download cancelled")

	errTooLarge = errors.New("response exceeds download limit")
)
