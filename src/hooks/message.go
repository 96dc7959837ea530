package hooks

import (
	"github.com/lholznagel/carina/src/protocol"
)

// Sender is the outbound capability handed to handlers. Implementations pick
// the protocol version and key material for the target.
type Sender interface {
	Send(target string, event protocol.EventCode, status protocol.StatusCode, p protocol.Payload) error
}

// Message is an inbound event as seen by a handler.
type Message struct {
	Envelope *protocol.Envelope
	Source   string
	Sender   Sender
}

// Event returns the event code of the message.
func (m *Message) Event() protocol.EventCode {
	return m.Envelope.Event
}

// Status returns the status code of the message.
func (m *Message) Status() protocol.StatusCode {
	return m.Envelope.Status
}

// Decode decodes the payload into p.
func (m *Message) Decode(p protocol.Payload) error {
	return m.Envelope.Unmarshal(p)
}

// Reply sends an event back to the source of the message.
func (m *Message) Reply(event protocol.EventCode, status protocol.StatusCode, p protocol.Payload) error {
	return m.Sender.Send(m.Source, event, status, p)
}
