package protocol

import "fmt"

// StatusCode qualifies a response.
type StatusCode uint8

const (
	// Ok means the request succeeded.
	Ok StatusCode = iota
	// NoPeer means the hole puncher had nobody to introduce.
	NoPeer
	// NotFound means the requested item does not exist.
	NotFound
)

func (s StatusCode) String() string {
	switch s {
	case Ok:
		return "Ok"
	case NoPeer:
		return "NoPeer"
	case NotFound:
		return "NotFound"
	default:
		return fmt.Sprintf("StatusCode(%d)", uint8(s))
	}
}
