// Package failure holds the error taxonomy shared by the export, validate and
// restore pipelines. Callers match on the sentinels with errors.Is.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownType      = errors.New("unknown type")
	ErrOperation        = errors.New("operation failed")
	ErrPermissionDenied = errors.New("permission denied")
	ErrConfiguration    = errors.New("configuration error")
)

// Error is a classified failure. Kind is one of the sentinels above.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString(e.Kind.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.Kind }

// Operation classifies err as an OperationFailure raised while doing op.
func Operation(op string, err error) error {
	return &Error{Kind: ErrOperation, Op: op, Err: err}
}

// Operationf builds an OperationFailure from a message.
func Operationf(op, format string, args ...any) error {
	return &Error{Kind: ErrOperation, Op: op, Err: fmt.Errorf(format, args...)}
}

// PermissionDenied marks a backend-originated error as an authorization problem.
// A nil err yields nil.
func PermissionDenied(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPermissionDenied) {
		return err
	}
	return &Error{Kind: ErrPermissionDenied, Err: err}
}

// Configuration reports an invalid option, name or chain layout.
func Configuration(format string, args ...any) error {
	return &Error{Kind: ErrConfiguration, Err: fmt.Errorf(format, args...)}
}

// Normalizer maps a backend error onto the taxonomy. Errors it does not
// recognise are returned unchanged.
type Normalizer interface {
	NormalizeError(err error) error
}

// NormalizerFunc adapts a plain function to Normalizer.
type NormalizerFunc func(err error) error

func (f NormalizerFunc) NormalizeError(err error) error { return f(err) }

// Normalize runs err through n when both are non-nil.
func Normalize(n Normalizer, err error) error {
	if err == nil || n == nil {
		return err
	}
	return n.NormalizeError(err)
}
