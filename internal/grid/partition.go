package grid

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/zyedidia/generic/mapset"
)

// Partition buckets the nodes whose keys fall into one
// partitionSize x partitionSize cell. It stores member keys, not nodes; the
// owning Map resolves them. Geometry is computed lazily and cached until
// membership or node layout changes.
type Partition struct {
	key      PartitionKey
	cell     Key
	children mapset.Set[Key]
	owner    *Map

	// layout version the cached geometry was computed at; 0 = stale
	version    uint64
	min        mgl64.Vec3
	max        mgl64.Vec3
	minKey     Key
	maxKey     Key
	center     mgl64.Vec3
	dimensions mgl64.Vec3
	centerKey  Key
}

func newPartition(key PartitionKey, cell Key, owner *Map) *Partition {
	return &Partition{
		key:      key,
		cell:     cell,
		children: mapset.New[Key](),
		owner:    owner,
	}
}

func (p *Partition) Key() PartitionKey { return p.key }

// Cell is floor(key / partitionSize) shared by all members.
func (p *Partition) Cell() Key { return p.cell }

func (p *Partition) Len() int { return p.children.Size() }

func (p *Partition) Has(k Key) bool { return p.children.Has(k) }

// ChildKeys returns member keys in row-major order.
func (p *Partition) ChildKeys() []Key {
	keys := make([]Key, 0, p.children.Size())
	p.children.Each(func(k Key) {
		keys = append(keys, k)
	})
	sort.Slice(keys, func(a, b int) bool { return keys[a].less(keys[b]) })
	return keys
}

// ChildNodes resolves members through the owning Map, row-major.
func (p *Partition) ChildNodes() []*Node {
	keys := p.ChildKeys()
	nodes := make([]*Node, 0, len(keys))
	for _, k := range keys {
		if n := p.owner.GetNodeByKey(k); n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Center is the midpoint of the member positions' bounding box.
func (p *Partition) Center() mgl64.Vec3 {
	p.ensureGeometry()
	return p.center
}

// Dimensions is the extent of the member positions' bounding box.
func (p *Partition) Dimensions() mgl64.Vec3 {
	p.ensureGeometry()
	return p.dimensions
}

// CenterKey is the midpoint of the member keys' bounding box, floored.
func (p *Partition) CenterKey() Key {
	p.ensureGeometry()
	return p.centerKey
}

// Bounds returns the world-space bounding box of member positions.
func (p *Partition) Bounds() (lo, hi mgl64.Vec3) {
	p.ensureGeometry()
	return p.min, p.max
}

func (p *Partition) add(k Key) {
	p.children.Put(k)
	p.version = 0
}

func (p *Partition) remove(k Key) {
	p.children.Remove(k)
	p.version = 0
}

func (p *Partition) ensureGeometry() {
	if p.version != 0 && p.version == p.owner.layoutVersion {
		return
	}
	p.recompute()
	p.version = p.owner.layoutVersion
}

func (p *Partition) recompute() {
	inf := math.Inf(1)
	lo := mgl64.Vec3{inf, inf, inf}
	hi := mgl64.Vec3{-inf, -inf, -inf}
	minKey := Key{X: math.MaxInt32, Y: math.MaxInt32}
	maxKey := Key{X: math.MinInt32, Y: math.MinInt32}
	found := false

	p.children.Each(func(k Key) {
		n := p.owner.GetNodeByKey(k)
		if n == nil {
			return
		}
		found = true
		for j := 0; j < 3; j++ {
			lo[j] = math.Min(lo[j], n.position[j])
			hi[j] = math.Max(hi[j], n.position[j])
		}
		if k.X < minKey.X {
			minKey.X = k.X
		}
		if k.Y < minKey.Y {
			minKey.Y = k.Y
		}
		if k.X > maxKey.X {
			maxKey.X = k.X
		}
		if k.Y > maxKey.Y {
			maxKey.Y = k.Y
		}
	})

	if !found {
		p.min, p.max = mgl64.Vec3{}, mgl64.Vec3{}
		p.minKey, p.maxKey = Key{}, Key{}
		p.center, p.dimensions, p.centerKey = mgl64.Vec3{}, mgl64.Vec3{}, Key{}
		return
	}
	p.min, p.max = lo, hi
	p.minKey, p.maxKey = minKey, maxKey
	p.center = lo.Add(hi).Mul(0.5)
	p.dimensions = hi.Sub(lo)
	p.centerKey = Key{
		X: floorDiv(minKey.X+maxKey.X, 2),
		Y: floorDiv(minKey.Y+maxKey.Y, 2),
	}
}

// boxDistanceSq is the squared distance from pos to the member bounding box;
// no member can be closer than this.
func (p *Partition) boxDistanceSq(pos mgl64.Vec3) float64 {
	p.ensureGeometry()
	d := 0.0
	for j := 0; j < 3; j++ {
		var v float64
		switch {
		case pos[j] < p.min[j]:
			v = p.min[j] - pos[j]
		case pos[j] > p.max[j]:
			v = pos[j] - p.max[j]
		}
		d += v * v
	}
	return d
}
