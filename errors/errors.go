// Package errors builds formatted errors that keep track of the errors they wrap.
package errors

import (
	stderrors "errors"
	"fmt"
)

type err struct {
	msg  string
	args []interface{}
}

func (err err) Error() string {
	return fmt.Sprintf(err.msg, err.args...)
}

// Unwrap returns every error present in args, so that Is and As can match
// both a Kind and the underlying cause.
func (err err) Unwrap() []error {
	var errs []error
	for _, arg := range err.args {
		if wrapped, ok := arg.(error); ok {
			errs = append(errs, wrapped)
		}
	}
	return errs
}

// New returns an error formatted like fmt.Sprintf(msg, args...).
func New(msg string, args ...interface{}) error {
	return err{msg, args}
}

// Kind is a sentinel error that classifies other errors.
type Kind string

func (k Kind) Error() string {
	return string(k)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}
