package hooks

import (
	"fmt"
	"sync"

	"github.com/lholznagel/carina/src/protocol"
	"github.com/sirupsen/logrus"
)

// Handler processes one inbound message against the shared state S.
type Handler[S any] interface {
	Handle(state S, msg *Message) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc[S any] func(state S, msg *Message) error

// Handle implements Handler.
func (f HandlerFunc[S]) Handle(state S, msg *Message) error {
	return f(state, msg)
}

// Table is the event dispatch table.
type Table[S any] struct {
	sync.RWMutex
	handlers map[protocol.EventCode][]Handler[S]
	logger   *logrus.Entry
}

// NewTable ...
func NewTable[S any](logger *logrus.Entry) *Table[S] {
	return &Table[S]{
		handlers: make(map[protocol.EventCode][]Handler[S]),
		logger:   logger,
	}
}

// Register appends h to the handlers of event. Registering for
// NotAValidEvent is refused.
func (t *Table[S]) Register(event protocol.EventCode, h Handler[S]) {
	if event == protocol.NotAValidEvent {
		t.logger.Warn("Refusing handler for NotAValidEvent")
		return
	}

	t.Lock()
	defer t.Unlock()
	t.handlers[event] = append(t.handlers[event], h)
}

// RegisterFunc is Register for plain functions.
func (t *Table[S]) RegisterFunc(event protocol.EventCode, f func(state S, msg *Message) error) {
	t.Register(event, HandlerFunc[S](f))
}

// Len returns the number of handlers registered for event.
func (t *Table[S]) Len(event protocol.EventCode) int {
	t.RLock()
	defer t.RUnlock()
	return len(t.handlers[event])
}

// Dispatch runs every handler registered for the message's event and returns
// how many were invoked.
func (t *Table[S]) Dispatch(state S, msg *Message) int {
	event := msg.Event()
	if event == protocol.NotAValidEvent {
		return 0
	}

	t.RLock()
	handlers := t.handlers[event]
	t.RUnlock()

	if len(handlers) == 0 {
		t.logger.WithField("event", event).Debug("No handler, ignoring")
		return 0
	}

	for i, h := range handlers {
		if err := t.invoke(h, state, msg); err != nil {
			t.logger.WithError(err).WithFields(logrus.Fields{
				"event":   event,
				"source":  msg.Source,
				"handler": i,
			}).Error("Handler failed")
		}
	}

	return len(handlers)
}

func (t *Table[S]) invoke(h Handler[S], state S, msg *Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(state, msg)
}
