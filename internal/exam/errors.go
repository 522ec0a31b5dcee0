package exam

import (
	"errors"
	"fmt"
)

// Kind classifies generation failures for callers.
type Kind string

const (
	// KindConfiguration covers malformed requests and a missing toolchain.
	KindConfiguration Kind = "configuration"
	// KindPipeline means the toolchain is installed but no variation compiled.
	KindPipeline Kind = "pipeline"
	// KindPersistence covers failed reads or writes against the store.
	KindPersistence Kind = "persistence"
	// KindNotFound means a referenced config or subject does not exist.
	KindNotFound Kind = "not_found"
	// KindCanceled means the request context ended before packaging.
	KindCanceled Kind = "canceled"
)

// Error is the only error type returned by Generator.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
