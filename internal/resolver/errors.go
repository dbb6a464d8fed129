package resolver

import "fmt"

// InternalError is a failure of the resolver itself, as opposed to a query
// that matched nothing. The CLI exits with status 1 on it.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

func internal(op string, err error) error {
	return &InternalError{Op: op, Err: err}
}
