package protocol

import (
	"errors"
	"fmt"
)

// ParseErrType enumerates the ways an inbound frame can be rejected.
type ParseErrType uint32

const (
	// Malformed means the buffer is too short or structurally wrong.
	Malformed ParseErrType = iota
	// UnknownEvent means the event byte is not a known event code.
	UnknownEvent
	// DecryptionFailed means a sealed body could not be authenticated.
	DecryptionFailed
	// FieldParse means a payload field could not be sliced or converted.
	FieldParse
)

func (t ParseErrType) String() string {
	switch t {
	case Malformed:
		return "Malformed"
	case UnknownEvent:
		return "Unknown Event"
	case DecryptionFailed:
		return "Decryption Failed"
	case FieldParse:
		return "Field Parse"
	}
	return "Unknown"
}

// ParseError is returned by every decoding path. Frames failing with a
// ParseError are dropped without a reply.
type ParseError struct {
	errType ParseErrType
	event   EventCode
	msg     string
}

// NewParseError ...
func NewParseError(errType ParseErrType, event EventCode, format string, args ...interface{}) ParseError {
	return ParseError{
		errType: errType,
		event:   event,
		msg:     fmt.Sprintf(format, args...),
	}
}

// Error ...
func (e ParseError) Error() string {
	return fmt.Sprintf("%s, %s, %s", e.event, e.errType, e.msg)
}

// Type returns the kind of the error.
func (e ParseError) Type() ParseErrType {
	return e.errType
}

func (e ParseError) withEvent(event EventCode) ParseError {
	e.event = event
	return e
}

// IsParse checks that an error is a ParseError of the given kind. Wrapped
// errors are unwrapped.
func IsParse(err error, t ParseErrType) bool {
	var parseErr ParseError
	return errors.As(err, &parseErr) && parseErr.errType == t
}
