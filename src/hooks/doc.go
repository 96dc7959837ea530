// Package hooks routes inbound protocol messages to the handlers registered
// for their event code.
//
// A Table maps every event code to an ordered list of handlers. Handlers are
// invoked one after the other in registration order; an error or a panic in
// one handler is logged and does not prevent the next one from running.
// Events without handlers are ignored, and NotAValidEvent is never looked up.
//
// Handlers receive the caller's state value and a Message, which gives them
// the raw envelope, the source address and a Sender to answer with.
package hooks
