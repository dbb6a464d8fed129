package manifest

import (
	"errors"
	"fmt"
)

// ErrUnterminatedFrontMatter is wrapped by ParseError when the opening ---
// line has no matching closing line.
var ErrUnterminatedFrontMatter = errors.New("front matter has no closing --- line")

// ValidationError records a front-matter problem that does not prevent
// indexing: a missing required field, an unknown key, a duplicated key.
type ValidationError struct {
	Path   string `json:"path"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: field %q: %s", e.Path, e.Field, e.Reason)
}

// ParseError marks a manifest file that could not be parsed at all.
// The file is skipped and the scan continues.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse manifest %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConflictError records a manifest excluded because a more specific file
// declared the same id.
type ConflictError struct {
	ID     string
	Winner string
	Loser  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("duplicate manifest id %q: %s wins over %s", e.ID, e.Winner, e.Loser)
}
