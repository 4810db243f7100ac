package grid

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/l1jgo/gridmap/internal/core/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRoot(t *testing.T, s Settings) *Root {
	t.Helper()
	r, err := NewRoot(&s, zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestNewRootNilSettings(t *testing.T) {
	r, err := NewRoot(nil, nil)
	assert.Nil(t, r)
	assert.ErrorIs(t, err, ErrNilSettings)
}

func TestRootLifecycle(t *testing.T) {
	r := newTestRoot(t, settings(3, 3))
	assert.Equal(t, StateInvalid, r.State())
	assert.Nil(t, r.Map())

	require.NoError(t, r.Preload())
	assert.Equal(t, StatePreloaded, r.State())
	require.NotNil(t, r.Map())
	assert.Equal(t, 0, r.Map().NodeCount())

	require.NoError(t, r.Refresh())
	assert.Equal(t, StateInitialized, r.State())
	assert.Equal(t, 9, r.Map().NodeCount())

	// Preload again keeps Info, swaps in an empty Map, never regresses
	info := r.Info()
	require.NoError(t, r.Preload())
	assert.Same(t, info, r.Info())
	assert.Equal(t, StateInitialized, r.State())
	assert.Equal(t, 0, r.Map().NodeCount())
}

func TestRootRefreshFromInvalidPreloads(t *testing.T) {
	r := newTestRoot(t, settings(2, 3))
	require.NoError(t, r.Refresh())
	assert.Equal(t, StateInitialized, r.State())
	assert.Equal(t, 6, r.Map().NodeCount())
}

func TestRootRefreshUpdatesGeometry(t *testing.T) {
	r := newTestRoot(t, settings(3, 3))
	require.NoError(t, r.Refresh())
	n := r.Map().GetNodeByKey(Key{X: 0, Y: 0})

	r.Info().SetAlignment(BottomLeft)
	r.Info().SetParent(Transform{Position: mgl64.Vec3{5, 0, 5}, Rotation: mgl64.QuatIdent()})
	require.NoError(t, r.Refresh())

	assert.Same(t, n, r.Map().GetNodeByKey(Key{X: 0, Y: 0}))
	assertVec3(t, mgl64.Vec3{5, 0, 5}, n.Position())
	assert.Equal(t, Key{}, n.Coordinate())
}

func TestRootDispatchVisitsEachNodeOnce(t *testing.T) {
	r := newTestRoot(t, settings(4, 4))
	r.Dispatch(VisitorFunc(func(*Node) { t.Fatal("dispatch before preload") }))
	require.NoError(t, r.Refresh())

	count := 0
	seen := make(map[*Node]bool)
	r.Dispatch(VisitorFunc(func(n *Node) {
		count++
		seen[n] = true
		n.Enabled = n.Key().X != n.Key().Y
	}))
	assert.Equal(t, 16, count)
	assert.Len(t, seen, 16)
	assert.Len(t, r.Map().GetDisabledNodes(), 4)
}

func TestRootReentrantRefreshFails(t *testing.T) {
	r := newTestRoot(t, settings(2, 2))
	var inner error
	calls := 0
	event.Subscribe(r.Events(), func(event.Refreshed) {
		calls++
		inner = r.Refresh()
	})

	require.NoError(t, r.Refresh())
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, inner, ErrRefreshInProgress)
}

func TestRootPublishesPopulationEvents(t *testing.T) {
	s := settings(4, 4)
	s.PartitionSize = 2
	r := newTestRoot(t, s)

	var added, evicted, created, removed int
	var last event.Refreshed
	bus := r.Events()
	event.Subscribe(bus, func(event.NodeAdded) { added++ })
	event.Subscribe(bus, func(event.NodeEvicted) { evicted++ })
	event.Subscribe(bus, func(event.PartitionCreated) { created++ })
	event.Subscribe(bus, func(event.PartitionRemoved) { removed++ })
	event.Subscribe(bus, func(e event.Refreshed) { last = e })

	require.NoError(t, r.Refresh())
	assert.Equal(t, 16, added)
	assert.Equal(t, 4, created)
	assert.Equal(t, event.Refreshed{Nodes: 16, Partitions: 4, Changed: true}, last)

	r.Info().SetBounds(NewRect(2, 2))
	require.NoError(t, r.Refresh())
	assert.Equal(t, 12, evicted)
	assert.Equal(t, 3, removed)
	assert.Equal(t, 16, added, "no re-delivery of earlier events")

	require.NoError(t, r.Refresh())
	assert.Equal(t, event.Refreshed{Nodes: 4, Partitions: 1, Changed: false}, last)
}

func TestRootSetSearch(t *testing.T) {
	r := newTestRoot(t, settings(3, 3))
	r.SetSearch(SearchOptions{Strategy: SearchExact})
	require.NoError(t, r.Refresh())
	assert.Equal(t, SearchExact, r.Map().Search().Strategy)

	r.SetSearch(SearchOptions{Strategy: SearchApproximate, CorrectionHops: 2})
	assert.Equal(t, 2, r.Map().Search().CorrectionHops)
}

func TestRootSettingsWithoutSearch(t *testing.T) {
	r := newTestRoot(t, Settings{
		Bounds:        NewRect(5, 5),
		Alignment:     MiddleCenter,
		PartitionSize: 4,
		NodeSize:      mgl64.Vec2{1, 1},
	})
	require.NoError(t, r.Refresh())

	m := r.Map()
	assert.Equal(t, SearchOptions{Strategy: SearchApproximate, CorrectionHops: DefaultCorrectionHops}, m.Search())
	for _, n := range m.GetAllNodes() {
		assert.Same(t, n, m.GetClosestNodeToPosition(n.Position()), "key %v", n.Key())
	}
}
