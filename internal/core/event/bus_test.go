package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDeliversAfterSwap(t *testing.T) {
	b := NewBus()
	var got []NodeAdded
	Subscribe(b, func(e NodeAdded) { got = append(got, e) })

	Emit(b, NodeAdded{X: 1, Y: 2})
	Emit(b, NodeAdded{X: 3, Y: 4})
	assert.Equal(t, 2, b.Pending())

	b.DispatchAll()
	assert.Empty(t, got, "back buffer must not be visible before swap")

	b.SwapBuffers()
	assert.Equal(t, 0, b.Pending())
	b.DispatchAll()
	assert.Equal(t, []NodeAdded{{X: 1, Y: 2}, {X: 3, Y: 4}}, got)
}

func TestBusRoutesByType(t *testing.T) {
	b := NewBus()
	added, removed := 0, 0
	Subscribe(b, func(NodeAdded) { added++ })
	Subscribe(b, func(PartitionRemoved) { removed++ })

	Emit(b, NodeAdded{})
	Emit(b, PartitionRemoved{Key: 7})
	Emit(b, PartitionRemoved{Key: 8})
	b.SwapBuffers()
	b.DispatchAll()

	assert.Equal(t, 1, added)
	assert.Equal(t, 2, removed)
}

func TestBusSecondSwapClearsFront(t *testing.T) {
	b := NewBus()
	n := 0
	Subscribe(b, func(Refreshed) { n++ })

	Emit(b, Refreshed{Nodes: 1})
	b.SwapBuffers()
	b.DispatchAll()
	b.SwapBuffers()
	b.DispatchAll()

	assert.Equal(t, 1, n)
}

func TestEmitNilBus(t *testing.T) {
	assert.NotPanics(t, func() { Emit[NodeAdded](nil, NodeAdded{}) })
}
