package hooks

import (
	"errors"
	"testing"

	"github.com/lholznagel/carina/src/common"
	"github.com/lholznagel/carina/src/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	target string
	event  protocol.EventCode
}

type recordingSender struct {
	sent []sent
}

func (r *recordingSender) Send(target string, event protocol.EventCode, status protocol.StatusCode, p protocol.Payload) error {
	r.sent = append(r.sent, sent{target, event})
	return nil
}

type trace struct {
	calls []string
}

func message(t *testing.T, data []byte, sender Sender) *Message {
	env, err := protocol.Unpack(data, nil)
	require.NoError(t, err)
	return &Message{Envelope: env, Source: "10.0.0.9:3000", Sender: sender}
}

func TestDispatchOrder(t *testing.T) {
	table := NewTable[*trace](common.NewTestEntry(t, "hooks"))

	table.RegisterFunc(protocol.GetPeers, func(s *trace, m *Message) error {
		s.calls = append(s.calls, "first")
		return errors.New("boom")
	})
	table.RegisterFunc(protocol.GetPeers, func(s *trace, m *Message) error {
		s.calls = append(s.calls, "second")
		panic("worse")
	})
	table.RegisterFunc(protocol.GetPeers, func(s *trace, m *Message) error {
		s.calls = append(s.calls, "third")
		return m.Reply(protocol.GetPeersAck, protocol.Ok, &protocol.PeerListPayload{})
	})

	sender := &recordingSender{}
	state := &trace{}
	n := table.Dispatch(state, message(t, []byte{byte(protocol.GetPeers), 0}, sender))

	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"first", "second", "third"}, state.calls)
	assert.Equal(t, []sent{{"10.0.0.9:3000", protocol.GetPeersAck}}, sender.sent)
}

func TestDispatchWithoutHandlers(t *testing.T) {
	table := NewTable[*trace](common.NewTestEntry(t, "hooks"))
	table.RegisterFunc(protocol.Register, func(s *trace, m *Message) error {
		s.calls = append(s.calls, "register")
		return nil
	})

	sender := &recordingSender{}
	state := &trace{}
	n := table.Dispatch(state, message(t, []byte{byte(protocol.GetPeers), 0}, sender))

	assert.Zero(t, n)
	assert.Empty(t, state.calls)
	assert.Empty(t, sender.sent)
}

func TestNotAValidEventIsDropped(t *testing.T) {
	table := NewTable[*trace](common.NewTestEntry(t, "hooks"))
	table.RegisterFunc(protocol.NotAValidEvent, func(s *trace, m *Message) error {
		s.calls = append(s.calls, "invalid")
		return nil
	})
	assert.Zero(t, table.Len(protocol.NotAValidEvent))

	h, err := protocol.ReadHeader([]byte{200})
	require.True(t, protocol.IsParse(err, protocol.UnknownEvent))

	sender := &recordingSender{}
	state := &trace{}
	msg := &Message{
		Envelope: &protocol.Envelope{Event: h.Event},
		Source:   "10.0.0.9:3000",
		Sender:   sender,
	}

	assert.Zero(t, table.Dispatch(state, msg))
	assert.Empty(t, state.calls)
	assert.Empty(t, sender.sent)
}
