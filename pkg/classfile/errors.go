package classfile

import (
	"errors"
	"fmt"
)

// Sentinel errors. Match with errors.Is; the concrete error returned by the
// parser is usually an *Error wrapping one of these.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotAClassFile      = errors.New("not a class file")
	ErrUnknownConstantTag = errors.New("unknown constant pool tag")
	ErrMalformedStructure = errors.New("malformed class structure")
	ErrTruncatedInput     = errors.New("truncated input")
)

// Error describes a failure at a byte offset of the class file.
type Error struct {
	Kind   error  // one of the sentinel errors above
	Offset int    // offset into the class file where the problem was detected
	Msg    string // human readable detail
	Err    error  // underlying cause, if any
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%v at offset %d", e.Kind, e.Offset)
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, offset int, format string, args ...any) *Error {
	return &Error{Kind: kind, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

// malformed converts a cursor short read into ErrMalformedStructure, leaving
// other errors untouched.
func malformed(err error, offset int, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTruncatedInput) {
		return &Error{Kind: ErrMalformedStructure, Offset: offset, Msg: what + " extends past end of file", Err: err}
	}
	return err
}
