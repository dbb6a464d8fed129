package index

import "errors"

var (
	// ErrUnknownManifest is returned by Apply when asked to remove an id the
	// index does not hold.
	ErrUnknownManifest = errors.New("manifest not in index")
	// ErrDuplicateManifest is returned when a document id is already indexed.
	ErrDuplicateManifest = errors.New("manifest already in index")
)
