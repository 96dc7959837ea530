package protocol

import (
	"fmt"

	"github.com/ugorji/go/codec"
)

// Protocol versions. Version 1 is the legacy fixed-offset layout; version 2
// frames start with VersionMarker and carry self-describing msgpack bodies.
const (
	LegacyVersion uint8 = 1
	Version2      uint8 = 2

	// VersionMarker opens a versioned frame. It is not a valid event code, so
	// legacy nodes drop versioned frames as NotAValidEvent.
	VersionMarker byte = 0xFE
)

var msgpackHandle = &codec.MsgpackHandle{}

// Header is the decoded prefix of a frame.
type Header struct {
	Version uint8
	Event   EventCode
	Status  StatusCode
	size    int
}

// Envelope is one protocol message with a plaintext payload. It is not
// modified after construction.
type Envelope struct {
	Version uint8
	Event   EventCode
	Status  StatusCode
	Payload []byte
}

// ReadHeader parses the frame header. For unknown event codes it returns a
// header with Event set to NotAValidEvent together with an UnknownEvent
// error.
func ReadHeader(data []byte) (Header, error) {
	if len(data) == 0 {
		return Header{Event: NotAValidEvent}, NewParseError(Malformed, NotAValidEvent, "empty frame")
	}

	if data[0] == VersionMarker {
		if len(data) < 4 {
			return Header{Event: NotAValidEvent}, NewParseError(Malformed, NotAValidEvent,
				"versioned header needs 4 bytes, have %d", len(data))
		}
		if data[1] != Version2 {
			return Header{Event: NotAValidEvent}, NewParseError(Malformed, NotAValidEvent,
				"unsupported protocol version %d", data[1])
		}
		ev := AsEnum(data[2])
		h := Header{Version: Version2, Event: ev, Status: StatusCode(data[3]), size: 4}
		if ev == NotAValidEvent {
			return h, NewParseError(UnknownEvent, ev, "event byte %d", data[2])
		}
		return h, nil
	}

	ev := AsEnum(data[0])
	if ev == NotAValidEvent {
		return Header{Version: LegacyVersion, Event: ev}, NewParseError(UnknownEvent, ev, "event byte %d", data[0])
	}
	h := Header{Version: LegacyVersion, Event: ev, Status: Ok, size: 1}
	if ev.HasStatus() {
		if len(data) < 2 {
			return h, NewParseError(Malformed, ev, "missing status byte")
		}
		h.Status = StatusCode(data[1])
		h.size = 2
	}
	return h, nil
}

// NewEnvelope marshals p with the layout of the given protocol version.
func NewEnvelope(version uint8, event EventCode, status StatusCode, p Payload) (*Envelope, error) {
	if p == nil {
		p = &EmptyPayload{}
	}

	var (
		body []byte
		err  error
	)
	switch version {
	case LegacyVersion:
		body, err = p.MarshalLegacy()
	case Version2:
		err = codec.NewEncoderBytes(&body, msgpackHandle).Encode(p)
	default:
		err = fmt.Errorf("unsupported protocol version %d", version)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", event, err)
	}

	return &Envelope{
		Version: version,
		Event:   event,
		Status:  status,
		Payload: body,
	}, nil
}

// Marshal produces the wire bytes. Sealed events need keys.
func (e *Envelope) Marshal(keys *Keys) ([]byte, error) {
	var out []byte
	if e.Version == Version2 {
		out = append(out, VersionMarker, Version2, e.Event.AsNumber(), byte(e.Status))
	} else {
		out = append(out, e.Event.AsNumber())
		if e.Event.HasStatus() {
			out = append(out, byte(e.Status))
		}
	}

	body := e.Payload
	if e.Event.Sealed() {
		sealed, err := Seal(body, keys)
		if err != nil {
			return nil, fmt.Errorf("sealing %s: %w", e.Event, err)
		}
		body = sealed
	}

	return append(out, body...), nil
}

// Encode builds and marshals an envelope in one step.
func Encode(version uint8, event EventCode, status StatusCode, p Payload, keys *Keys) ([]byte, error) {
	env, err := NewEnvelope(version, event, status, p)
	if err != nil {
		return nil, err
	}
	return env.Marshal(keys)
}

// Unpack parses the header and, for sealed events, opens the body with keys.
func Unpack(data []byte, keys *Keys) (*Envelope, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}

	body := append([]byte(nil), data[h.size:]...)
	if h.Event.Sealed() {
		body, err = Open(body, keys)
		if err != nil {
			if pe, ok := err.(ParseError); ok {
				return nil, pe.withEvent(h.Event)
			}
			return nil, err
		}
	}

	return &Envelope{
		Version: h.Version,
		Event:   h.Event,
		Status:  h.Status,
		Payload: body,
	}, nil
}

// Decode unpacks data and decodes its payload into p.
func Decode(data []byte, p Payload, keys *Keys) (*Envelope, error) {
	env, err := Unpack(data, keys)
	if err != nil {
		return nil, err
	}
	if err := env.Unmarshal(p); err != nil {
		return nil, err
	}
	return env, nil
}

// Unmarshal decodes the payload into p using the envelope's version.
func (e *Envelope) Unmarshal(p Payload) error {
	var err error
	if e.Version == Version2 {
		err = decodeMsgpack(e.Payload, p)
	} else {
		err = p.UnmarshalLegacy(e.Payload)
	}
	if err == nil {
		return nil
	}
	if pe, ok := err.(ParseError); ok {
		return pe.withEvent(e.Event)
	}
	return NewParseError(FieldParse, e.Event, "%v", err)
}

func decodeMsgpack(data []byte, p Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("msgpack: %v", r)
		}
	}()
	return codec.NewDecoderBytes(data, msgpackHandle).Decode(p)
}
