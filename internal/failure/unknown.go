package failure

import "fmt"

// UnknownTypeError is returned when no resolver tier recognises a native type.
// It carries the native tuple so the caller can report it verbatim.
type UnknownTypeError struct {
	Code   int
	Name   string
	Size   int
	Scale  int
	Schema string
	Table  string
	Column string
}

func (e *UnknownTypeError) Error() string {
	msg := fmt.Sprintf("unknown type %q (code %d, size %d, scale %d)", e.Name, e.Code, e.Size, e.Scale)
	if e.Column != "" {
		msg = fmt.Sprintf("%s.%s.%s: %s", e.Schema, e.Table, e.Column, msg)
	}
	return msg
}

func (e *UnknownTypeError) Is(target error) bool { return target == ErrUnknownType }
