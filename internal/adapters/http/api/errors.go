package api

import (
	"errors"
	"strings"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
)

// opError carries the handler op that failed and the error kind.
type opError struct {
	op   string
	kind error
	err  error
}

func (e *opError) Error() string {
	var b strings.Builder
	b.WriteString(e.op)
	if e.kind != nil {
		b.WriteString(": ")
		b.WriteString(e.kind.Error())
	}
	if e.err != nil {
		b.WriteString(": ")
		b.WriteString(e.err.Error())
	}
	return b.String()
}

func (e *opError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.kind != nil {
		errs = append(errs, e.kind)
	}
	if e.err != nil {
		errs = append(errs, e.err)
	}
	return errs
}

// Wrap annotates err with op.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &opError{op: op, err: err}
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &opError{op: op, kind: kind}
}

// WrapKind annotates err with op and kind.
func WrapKind(op string, kind, err error) error {
	return &opError{op: op, kind: kind, err: err}
}
