package client

import (
	"testing"

	"github.com/consultly/collab/internal/protocol"
	"github.com/stretchr/testify/assert"
)

func TestDispatcherRegistrationOrder(t *testing.T) {
	d := NewDispatcher()

	var calls []string
	d.On(protocol.TypeNewMessage, func(protocol.Payload) { calls = append(calls, "first") })
	d.On(protocol.TypeNewMessage, func(protocol.Payload) { calls = append(calls, "second") })
	d.On(protocol.TypeUserJoined, func(protocol.Payload) { calls = append(calls, "other") })

	d.emit(&protocol.NewMessage{})

	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestDispatcherOff(t *testing.T) {
	d := NewDispatcher()

	var calls []string
	first := d.On(protocol.TypeNewMessage, func(protocol.Payload) { calls = append(calls, "first") })
	d.On(protocol.TypeNewMessage, func(protocol.Payload) { calls = append(calls, "second") })

	d.Off(first)
	d.emit(&protocol.NewMessage{})
	assert.Equal(t, []string{"second"}, calls)

	// Removing an already-removed subscription is a no-op.
	d.Off(first)
	d.emit(&protocol.NewMessage{})
	assert.Equal(t, []string{"second", "second"}, calls)
}

func TestDispatcherSameFunctionTwice(t *testing.T) {
	d := NewDispatcher()

	count := 0
	fn := func(protocol.Payload) { count++ }
	sub1 := d.On(protocol.TypeNewMessage, fn)
	sub2 := d.On(protocol.TypeNewMessage, fn)
	assert.NotEqual(t, sub1, sub2)

	d.emit(&protocol.NewMessage{})
	assert.Equal(t, 2, count)

	// Each subscription is independent even when the handler is shared.
	d.Off(sub1)
	d.emit(&protocol.NewMessage{})
	assert.Equal(t, 3, count)
}

func TestDispatcherReset(t *testing.T) {
	d := NewDispatcher()

	count := 0
	d.On(protocol.TypeNewMessage, func(protocol.Payload) { count++ })
	d.On(protocol.TypeUserLeft, func(protocol.Payload) { count++ })

	d.Reset()
	d.emit(&protocol.NewMessage{})
	d.emit(&protocol.UserLeft{})
	assert.Equal(t, 0, count)
}

func TestDispatcherEmitNoHandlers(t *testing.T) {
	d := NewDispatcher()
	// Emitting with nothing registered must not panic.
	d.emit(&protocol.NewMessage{})
}
