package grid

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bruteForceClosest(m *Map, pos mgl64.Vec3) (*Node, float64) {
	var best *Node
	bestD := math.Inf(1)
	for _, n := range m.GetAllNodes() {
		if d := n.distanceSq(pos); d < bestD {
			best, bestD = n, d
		}
	}
	return best, bestD
}

func TestGetNodeByKeyAndCoordinate(t *testing.T) {
	m := newTestMap(t, settings(3, 3))

	n := m.GetNodeByKey(Key{X: 2, Y: 0})
	require.NotNil(t, n)
	assert.Equal(t, Key{X: 1, Y: -1}, n.Coordinate())
	assert.Same(t, n, m.GetNodeByCoordinate(Key{X: 1, Y: -1}))

	assert.Nil(t, m.GetNodeByKey(Key{X: 3, Y: 0}))
	assert.Nil(t, m.GetNodeByCoordinate(Key{X: 2, Y: 0}))
}

func TestGetNodeNeighbors(t *testing.T) {
	m := newTestMap(t, settings(3, 3))

	assert.Len(t, m.GetNodeNeighbors(Key{X: 1, Y: 1}), 8)
	assert.Len(t, m.GetNodeNeighbors(Key{X: 0, Y: 0}), 3, "corner, no wraparound")
	assert.Len(t, m.GetNodeNeighbors(Key{X: 1, Y: 0}), 5)

	m.GetNodeByKey(Key{X: 0, Y: 1}).Enabled = false
	got := m.GetNodeNeighbors(Key{X: 0, Y: 0})
	assert.Len(t, got, 2)
	for _, n := range got {
		assert.True(t, n.Enabled)
	}
}

func TestNeighborSymmetry(t *testing.T) {
	m := newTestMap(t, settings(6, 5))
	rng := rand.New(rand.NewSource(3))
	for _, n := range m.GetAllNodes() {
		n.Enabled = rng.Intn(4) != 0
	}

	for _, a := range m.GetEnabledNodes() {
		for _, b := range m.GetNodeNeighbors(a.Key()) {
			assert.Contains(t, m.GetNodeNeighbors(b.Key()), a, "%v -> %v", a.Key(), b.Key())
		}
	}
}

func TestClosestNodeEmptyMap(t *testing.T) {
	m, err := NewMap(NewInfo(settings(3, 3)), nil)
	require.NoError(t, err)

	assert.Nil(t, m.GetClosestNodeToPosition(mgl64.Vec3{}))
	assert.Nil(t, m.GetClosestPartitionToPosition(mgl64.Vec3{}))
}

func TestClosestNodeAtNodePositionIsSelf(t *testing.T) {
	// includes bounds that leave small remainder partitions at the far edge
	for w := int32(2); w <= 20; w++ {
		for p := int32(2); p <= 10; p++ {
			for _, strategy := range []SearchStrategy{SearchApproximate, SearchExact} {
				s := settings(w, w)
				s.PartitionSize = p
				m := newTestMap(t, s)
				m.SetSearch(SearchOptions{Strategy: strategy})

				for _, n := range m.GetAllNodes() {
					if !assert.Same(t, n, m.GetClosestNodeToPosition(n.Position()),
						"%dx%d p=%d %s key %v", w, w, p, strategy, n.Key()) {
						break
					}
				}
			}
		}
	}
}

func TestClosestNodeNonSquareRemainders(t *testing.T) {
	for _, c := range []struct{ w, h, p int32 }{{9, 4, 8}, {17, 3, 8}, {6, 11, 5}, {13, 13, 4}} {
		s := settings(c.w, c.h)
		s.PartitionSize = c.p
		s.NodeSize = mgl64.Vec2{2, 0.5}
		s.NodeSpacing = mgl64.Vec2{0.25, 1}
		m := newTestMap(t, s)

		for _, n := range m.GetAllNodes() {
			assert.Same(t, n, m.GetClosestNodeToPosition(n.Position()),
				"%dx%d p=%d key %v", c.w, c.h, c.p, n.Key())
		}
	}
}

func TestClosestNodeAlwaysReturnsWhenPopulated(t *testing.T) {
	s := settings(1, 1)
	m := newTestMap(t, s)
	n := m.GetClosestNodeToPosition(mgl64.Vec3{1e6, -5, 1e6})
	require.NotNil(t, n)
	assert.Equal(t, Key{}, n.Key())
}

func TestClosestNodeExactMatchesBruteForce(t *testing.T) {
	s := settings(23, 17)
	s.PartitionSize = 5
	s.NodeSize = mgl64.Vec2{1.5, 0.75}
	s.NodeSpacing = mgl64.Vec2{0.3, 1.2}
	s.NodeBonding = mgl64.Vec2{0.5, -0.25}
	s.Parent = &Transform{
		Position: mgl64.Vec3{4, -1, 2},
		Rotation: mgl64.AnglesToQuat(0.2, 1.1, -0.3, mgl64.XYZ),
	}
	m := newTestMap(t, s)
	m.RefreshNodes()
	m.SetSearch(SearchOptions{Strategy: SearchExact})

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 300; i++ {
		pos := mgl64.Vec3{
			rng.Float64()*60 - 30,
			rng.Float64()*10 - 5,
			rng.Float64()*60 - 30,
		}
		_, want := bruteForceClosest(m, pos)
		got := m.GetClosestNodeToPosition(pos)
		require.NotNil(t, got)
		assert.InDelta(t, want, got.distanceSq(pos), 1e-9)
	}
}

func TestClosestNodeApproximateNearBorders(t *testing.T) {
	s := settings(12, 12)
	s.PartitionSize = 4
	m := newTestMap(t, s)

	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 200; i++ {
		// stay inside the grid footprint where partitions are compact
		pos := mgl64.Vec3{rng.Float64()*10 - 5, 0, rng.Float64()*10 - 5}
		_, want := bruteForceClosest(m, pos)
		got := m.GetClosestNodeToPosition(pos)
		require.NotNil(t, got)
		assert.InDelta(t, want, got.distanceSq(pos), 1e-9, "pos %v", pos)
	}
}

func TestClosestNodeNoCorrection(t *testing.T) {
	s := settings(5, 5)
	s.PartitionSize = 4
	m := newTestMap(t, s)
	m.SetSearch(SearchOptions{Strategy: SearchApproximate, CorrectionHops: -3})
	assert.Equal(t, NoCorrection, m.Search().CorrectionHops)

	// node (3,3) sits in the big partition, but the lone (4,4) partition
	// has the nearer centre; without correction the search stops there
	target := m.GetNodeByKey(Key{X: 3, Y: 3})
	got := m.GetClosestNodeToPosition(target.Position())
	assert.Equal(t, Key{X: 4, Y: 4}, got.Key())

	m.SetSearch(SearchOptions{Strategy: SearchApproximate, CorrectionHops: 1})
	assert.Same(t, target, m.GetClosestNodeToPosition(target.Position()))

	m.SetSearch(SearchOptions{Strategy: SearchApproximate})
	assert.Equal(t, DefaultCorrectionHops, m.Search().CorrectionHops)
	assert.Same(t, target, m.GetClosestNodeToPosition(target.Position()))
}

func TestClosestNodeHopCap(t *testing.T) {
	s := settings(9, 9)
	s.PartitionSize = 8
	m := newTestMap(t, s)

	// the x=8 column partition has the nearest centre, so the walk starts
	// at (8,0) and needs two steps to reach (6,0)
	target := m.GetNodeByKey(Key{X: 6, Y: 0})

	m.SetSearch(SearchOptions{Strategy: SearchApproximate, CorrectionHops: NoCorrection})
	assert.Equal(t, Key{X: 8, Y: 0}, m.GetClosestNodeToPosition(target.Position()).Key())

	m.SetSearch(SearchOptions{Strategy: SearchApproximate, CorrectionHops: 1})
	assert.Equal(t, Key{X: 7, Y: 0}, m.GetClosestNodeToPosition(target.Position()).Key())

	m.SetSearch(SearchOptions{Strategy: SearchApproximate})
	assert.Same(t, target, m.GetClosestNodeToPosition(target.Position()))
}

func TestClosestPartitionTieGoesToFirst(t *testing.T) {
	s := settings(4, 2)
	s.PartitionSize = 2
	s.Alignment = BottomLeft
	m := newTestMap(t, s)
	parts := m.GetAllPartitions()
	require.Len(t, parts, 2)

	// exactly between the two centres (0.5, 0.5) and (2.5, 0.5)
	got := m.GetClosestPartitionToPosition(mgl64.Vec3{1.5, 0, 0.5})
	assert.Same(t, parts[0], got)
}

func TestPartitionGeometry(t *testing.T) {
	s := settings(5, 5)
	s.PartitionSize = 2
	s.Alignment = BottomLeft
	m := newTestMap(t, s)

	p := m.GetPartitionForNode(Key{X: 4, Y: 1})
	require.NotNil(t, p)
	assert.Equal(t, Key{X: 2, Y: 0}, p.Cell())
	assert.Equal(t, []Key{{X: 4, Y: 0}, {X: 4, Y: 1}}, p.ChildKeys())
	assertVec3(t, mgl64.Vec3{4, 0, 0.5}, p.Center())
	assertVec3(t, mgl64.Vec3{0, 0, 1}, p.Dimensions())
	assert.Equal(t, Key{X: 4, Y: 0}, p.CenterKey())

	lo, hi := p.Bounds()
	assertVec3(t, mgl64.Vec3{4, 0, 0}, lo)
	assertVec3(t, mgl64.Vec3{4, 0, 1}, hi)

	nodes := p.ChildNodes()
	require.Len(t, nodes, 2)
	assert.Same(t, m.GetNodeByKey(Key{X: 4, Y: 0}), nodes[0])
	assert.True(t, p.Has(Key{X: 4, Y: 1}))
	assert.False(t, p.Has(Key{X: 3, Y: 1}))
}
