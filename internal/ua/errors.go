// Package ua implements the OPC UA binary encoding: the wire primitives,
// the built-in types (NodeId, Variant, DataValue, ...) and the service
// request/response structures the dispatcher and subscription engine
// exchange.
package ua

import "fmt"

// EncodingError is the error type returned by every Decode and, rarely,
// Encode call in this package.
type EncodingError struct {
	Kind EncodingErrorKind
	Msg  string
}

func (e *EncodingError) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// EncodingErrorKind enumerates the codec failure modes from OPC UA Part 6.
type EncodingErrorKind int

const (
	UnexpectedEOF EncodingErrorKind = iota
	InvalidEncoding
	UnsupportedEncoding
	DecodedLengthExceedsLimit
)

func (k EncodingErrorKind) String() string {
	switch k {
	case UnexpectedEOF:
		return "unexpected EOF"
	case InvalidEncoding:
		return "invalid encoding"
	case UnsupportedEncoding:
		return "unsupported encoding"
	case DecodedLengthExceedsLimit:
		return "decoded length exceeds limit"
	default:
		return "unknown encoding error"
	}
}

func errEOF(msg string) error         { return &EncodingError{Kind: UnexpectedEOF, Msg: msg} }
func errInvalid(msg string) error     { return &EncodingError{Kind: InvalidEncoding, Msg: msg} }
func errUnsupported(msg string) error { return &EncodingError{Kind: UnsupportedEncoding, Msg: msg} }
func errLengthExceeded(msg string) error {
	return &EncodingError{Kind: DecodedLengthExceedsLimit, Msg: msg}
}

// IsKind reports whether err is an *EncodingError of the given kind.
func IsKind(err error, kind EncodingErrorKind) bool {
	ee, ok := err.(*EncodingError)
	return ok && ee.Kind == kind
}
