package grid

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// GetNodeByKey returns the node at k, or nil if k is not populated.
func (m *Map) GetNodeByKey(k Key) *Node {
	n, _ := m.nodes.Get(k)
	return n
}

// GetNodeByCoordinate converts c to a key and looks it up.
func (m *Map) GetNodeByCoordinate(c Key) *Node {
	return m.GetNodeByKey(m.info.ConvertCoordinateToKey(c))
}

// GetAllNodes returns the cached node list in row-major order. The slice is
// shared; callers must not modify it.
func (m *Map) GetAllNodes() []*Node {
	return m.nodeCache
}

func (m *Map) NodeCount() int { return m.nodes.Len() }

func (m *Map) GetEnabledNodes() []*Node {
	return m.filterNodes(true)
}

func (m *Map) GetDisabledNodes() []*Node {
	return m.filterNodes(false)
}

func (m *Map) filterNodes(enabled bool) []*Node {
	var result []*Node
	for _, n := range m.nodeCache {
		if n.Enabled == enabled {
			result = append(result, n)
		}
	}
	return result
}

// GetNodeNeighbors returns the enabled nodes among the 8 keys around k.
// The grid does not wrap.
func (m *Map) GetNodeNeighbors(k Key) []*Node {
	result := make([]*Node, 0, len(neighborOffsets))
	for _, off := range neighborOffsets {
		if n := m.GetNodeByKey(k.Add(off)); n != nil && n.Enabled {
			result = append(result, n)
		}
	}
	return result
}

// GetAllPartitions returns the cached partition list ordered by cell. The
// slice is shared; callers must not modify it.
func (m *Map) GetAllPartitions() []*Partition {
	return m.partitionCache
}

func (m *Map) PartitionCount() int { return m.partitions.Len() }

// GetPartition returns the partition for pk, or nil if none exists.
func (m *Map) GetPartition(pk PartitionKey) *Partition {
	p, _ := m.partitions.Get(pk)
	return p
}

// GetPartitionForNode returns the partition holding the node at k, or nil
// if k is not populated.
func (m *Map) GetPartitionForNode(k Key) *Partition {
	n := m.GetNodeByKey(k)
	if n == nil {
		return nil
	}
	return m.GetPartition(n.partitionKey)
}

// GetClosestPartitionToPosition scans partition centres linearly. Ties go to
// the first partition in cache order. Returns nil on an empty Map.
func (m *Map) GetClosestPartitionToPosition(pos mgl64.Vec3) *Partition {
	var best *Partition
	bestD := math.Inf(1)
	for _, p := range m.partitionCache {
		d := p.Center().Sub(pos)
		if dd := d.Dot(d); dd < bestD {
			best, bestD = p, dd
		}
	}
	return best
}

// GetClosestNodeToPosition returns the node nearest to pos according to the
// configured SearchStrategy, or nil only when the Map has no nodes. Disabled
// nodes are candidates like any other.
//
// SearchApproximate picks the partition whose centre is nearest, then its
// nearest member, then walks to the closest of the 8 neighbours while that
// improves the distance (at most CorrectionHops steps when positive). On an
// unbonded lattice the walk always ends at the true nearest node. Bonding
// stagger can leave it in a local minimum; use SearchExact where that
// matters.
func (m *Map) GetClosestNodeToPosition(pos mgl64.Vec3) *Node {
	if len(m.nodeCache) == 0 {
		return nil
	}
	if m.search.Strategy == SearchExact {
		return m.closestExact(pos)
	}
	return m.closestApproximate(pos)
}

func (m *Map) closestApproximate(pos mgl64.Vec3) *Node {
	// broad phase
	p := m.GetClosestPartitionToPosition(pos)
	if p == nil {
		return nil
	}

	// narrow phase
	var best *Node
	bestD := math.Inf(1)
	p.children.Each(func(k Key) {
		n := m.GetNodeByKey(k)
		if n == nil {
			return
		}
		if d := n.distanceSq(pos); d < bestD || (d == bestD && best != nil && n.key.less(best.key)) {
			best, bestD = n, d
		}
	})
	if best == nil {
		return nil
	}

	// neighbour correction across partition borders; every step strictly
	// lowers the distance, so the node count bounds the walk
	limit := m.search.CorrectionHops
	switch {
	case limit < 0:
		return best
	case limit == 0 || limit > len(m.nodeCache):
		limit = len(m.nodeCache)
	}
	for hop := 0; hop < limit; hop++ {
		next, nextD := best, bestD
		for _, off := range neighborOffsets {
			n := m.GetNodeByKey(best.key.Add(off))
			if n == nil {
				continue
			}
			if d := n.distanceSq(pos); d < nextD {
				next, nextD = n, d
			}
		}
		if next == best {
			break
		}
		best, bestD = next, nextD
	}
	return best
}

// closestExact visits partitions by increasing bounding-box distance and
// stops once the next box is farther than the best node found.
func (m *Map) closestExact(pos mgl64.Vec3) *Node {
	type candidate struct {
		p *Partition
		d float64
	}
	cands := make([]candidate, 0, len(m.partitionCache))
	for _, p := range m.partitionCache {
		cands = append(cands, candidate{p: p, d: p.boxDistanceSq(pos)})
	}
	sort.SliceStable(cands, func(a, b int) bool { return cands[a].d < cands[b].d })

	var best *Node
	bestD := math.Inf(1)
	for _, c := range cands {
		if c.d > bestD {
			break
		}
		c.p.children.Each(func(k Key) {
			n := m.GetNodeByKey(k)
			if n == nil {
				return
			}
			if d := n.distanceSq(pos); d < bestD || (d == bestD && best != nil && n.key.less(best.key)) {
				best, bestD = n, d
			}
		})
	}
	return best
}
