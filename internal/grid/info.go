package grid

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Clamp ranges enforced by Validate.
const (
	MinNodeSize    = 0.01
	MaxNodeSize    = 1000.0
	MinNodeSpacing = -0.5
	MaxNodeSpacing = 10.0
	MinNodeBonding = -1.0
	MaxNodeBonding = 1.0

	MaxBoundsSize    int32 = 4096
	MaxPartitionSize int32 = 1024

	minSpacingMultiplier = 0.5
)

// PartitionKey identifies a partition. It is a bijective hash of the
// partition cell, so distinct cells never share a key.
type PartitionKey uint64

// Info holds the grid configuration and everything derived from it. Every
// setter re-validates; reads never observe an out-of-range value.
// Accessed only from the owning goroutine, no locks.
type Info struct {
	bounds        Rect
	alignment     Alignment
	partitionSize int32
	nodeSize      mgl64.Vec2
	nodeSpacing   mgl64.Vec2
	nodeBonding   mgl64.Vec2
	parent        *Transform

	originKey      Key
	originPosition mgl64.Vec3
	originRotation mgl64.Quat
}

// NewInfo builds a validated Info from s. Out-of-range values are clamped.
func NewInfo(s Settings) *Info {
	i := &Info{
		bounds:        s.Bounds,
		alignment:     s.Alignment,
		partitionSize: s.PartitionSize,
		nodeSize:      s.NodeSize,
		nodeSpacing:   s.NodeSpacing,
		nodeBonding:   s.NodeBonding,
	}
	if s.Parent != nil {
		p := *s.Parent
		i.parent = &p
	}
	i.Validate()
	return i
}

// Settings returns the current configuration as a value. Search options are
// not part of Info and come back zeroed.
func (i *Info) Settings() Settings {
	s := Settings{
		Bounds:        i.bounds,
		Alignment:     i.alignment,
		PartitionSize: i.partitionSize,
		NodeSize:      i.nodeSize,
		NodeSpacing:   i.nodeSpacing,
		NodeBonding:   i.nodeBonding,
	}
	if i.parent != nil {
		p := *i.parent
		s.Parent = &p
	}
	return s
}

// Validate clamps every field into range and recomputes derived values.
// Idempotent.
func (i *Info) Validate() {
	// The key-space always starts at zero.
	i.bounds.Min = Key{}
	i.bounds.Size.X = clampInt(i.bounds.Size.X, 1, MaxBoundsSize)
	i.bounds.Size.Y = clampInt(i.bounds.Size.Y, 1, MaxBoundsSize)

	if !i.alignment.Valid() {
		i.alignment = MiddleCenter
	}
	i.partitionSize = clampInt(i.partitionSize, 1, MaxPartitionSize)

	i.nodeSize = clampVec2(i.nodeSize, MinNodeSize, MaxNodeSize)
	i.nodeSpacing = clampVec2(i.nodeSpacing, MinNodeSpacing, MaxNodeSpacing)
	i.nodeBonding = clampVec2(i.nodeBonding, MinNodeBonding, MaxNodeBonding)

	i.originKey = CalculateOriginKey(i.TerminalKey(), i.alignment)

	if i.parent == nil {
		i.originPosition = mgl64.Vec3{}
		i.originRotation = mgl64.QuatIdent()
		return
	}
	i.parent.Position = sanitizeVec3(i.parent.Position)
	i.parent.Rotation = i.parent.Rotation.Normalize()
	i.originPosition = i.parent.Position
	i.originRotation = i.parent.Rotation
}

func (i *Info) SetBounds(r Rect) {
	i.bounds = r
	i.Validate()
}

func (i *Info) SetAlignment(a Alignment) {
	i.alignment = a
	i.Validate()
}

func (i *Info) SetPartitionSize(size int32) {
	i.partitionSize = size
	i.Validate()
}

func (i *Info) SetNodeSize(v mgl64.Vec2) {
	i.nodeSize = v
	i.Validate()
}

func (i *Info) SetNodeSpacing(v mgl64.Vec2) {
	i.nodeSpacing = v
	i.Validate()
}

func (i *Info) SetNodeBonding(v mgl64.Vec2) {
	i.nodeBonding = v
	i.Validate()
}

func (i *Info) SetParent(t Transform) {
	i.parent = &t
	i.Validate()
}

func (i *Info) ClearParent() {
	i.parent = nil
	i.Validate()
}

func (i *Info) Bounds() Rect                    { return i.bounds }
func (i *Info) Alignment() Alignment            { return i.alignment }
func (i *Info) PartitionSize() int32            { return i.partitionSize }
func (i *Info) NodeSize() mgl64.Vec2            { return i.nodeSize }
func (i *Info) NodeSpacing() mgl64.Vec2         { return i.nodeSpacing }
func (i *Info) NodeBonding() mgl64.Vec2         { return i.nodeBonding }
func (i *Info) OriginKey() Key                  { return i.originKey }
func (i *Info) OriginWorldPosition() mgl64.Vec3 { return i.originPosition }
func (i *Info) OriginWorldRotation() mgl64.Quat { return i.originRotation }

// Parent returns the parent transform and whether one is set.
func (i *Info) Parent() (Transform, bool) {
	if i.parent == nil {
		return IdentityTransform(), false
	}
	return *i.parent, true
}

// TerminalKey is the exclusive upper key: bounds.Size.
func (i *Info) TerminalKey() Key { return i.bounds.Size }

// NodeCount is the number of keys inside bounds.
func (i *Info) NodeCount() int { return i.bounds.Area() }

// SpacingMultiplier is max(spacing+1, 0.5) per axis.
func (i *Info) SpacingMultiplier() mgl64.Vec2 {
	return mgl64.Vec2{
		math.Max(i.nodeSpacing[0]+1, minSpacingMultiplier),
		math.Max(i.nodeSpacing[1]+1, minSpacingMultiplier),
	}
}

// step is the distance between adjacent key centres, before bonding.
func (i *Info) step() mgl64.Vec2 {
	mul := i.SpacingMultiplier()
	return mgl64.Vec2{i.nodeSize[0] * mul[0], i.nodeSize[1] * mul[1]}
}

// WorldDimensions is the local-plane extent covered by all nodes, including
// node footprints and the bonding stagger.
func (i *Info) WorldDimensions() mgl64.Vec2 {
	step := i.step()
	t := i.TerminalKey()
	w := float64(t.X-1)*step[0] + i.nodeSize[0]
	h := float64(t.Y-1)*step[1] + i.nodeSize[1]
	if t.Y > 1 {
		w += math.Abs(i.nodeBonding[0]) * i.nodeSize[0]
	}
	if t.X > 1 {
		h += math.Abs(i.nodeBonding[1]) * i.nodeSize[1]
	}
	return mgl64.Vec2{w, h}
}

func (i *Info) IsKeyInBounds(k Key) bool {
	t := i.TerminalKey()
	return k.X >= 0 && k.X < t.X && k.Y >= 0 && k.Y < t.Y
}

func (i *Info) IsCoordinateInBounds(c Key) bool {
	return i.IsKeyInBounds(i.ConvertCoordinateToKey(c))
}

func (i *Info) ConvertKeyToCoordinate(k Key) Key { return k.Sub(i.originKey) }
func (i *Info) ConvertCoordinateToKey(c Key) Key { return c.Add(i.originKey) }

// PartitionCellFor returns floor(key / partitionSize) per axis.
func (i *Info) PartitionCellFor(k Key) Key {
	return Key{
		X: floorDiv(k.X, i.partitionSize),
		Y: floorDiv(k.Y, i.partitionSize),
	}
}

// PartitionKeyFor returns the partition key a node key belongs to.
func (i *Info) PartitionKeyFor(k Key) PartitionKey {
	return HashPartitionCell(i.PartitionCellFor(k))
}

// HashPartitionCell mixes a cell into a PartitionKey. Both 32-bit halves are
// packed into one word and run through two multiply/xor-shift rounds; every
// step is invertible, so the mapping is collision free and negative cells
// hash the same way on every run.
func HashPartitionCell(cell Key) PartitionKey {
	h := uint64(uint32(cell.X))<<32 | uint64(uint32(cell.Y))
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return PartitionKey(h)
}

// LocalPosition returns the node centre on the grid plane before rotation
// and translation.
func (i *Info) LocalPosition(k Key) mgl64.Vec2 {
	step := i.step()
	x := float64(k.X) * step[0]
	y := float64(k.Y) * step[1]

	// brick / honeycomb stagger on alternating rows and columns
	if k.Y%2 == 0 {
		x += i.nodeBonding[0] * i.nodeSize[0]
	}
	if k.X%2 == 0 {
		y += i.nodeBonding[1] * i.nodeSize[1]
	}

	x -= float64(i.originKey.X) * step[0]
	y -= float64(i.originKey.Y) * step[1]
	return mgl64.Vec2{x, y}
}

// CalculateNodePosition maps a key to its world position. The local plane
// (x, y) is lifted to (x, 0, y), rotated by the origin rotation and then
// translated by the origin position.
func (i *Info) CalculateNodePosition(k Key) mgl64.Vec3 {
	return i.LocalToWorld(i.LocalPosition(k))
}

func (i *Info) LocalToWorld(local mgl64.Vec2) mgl64.Vec3 {
	lifted := mgl64.Vec3{local[0], 0, local[1]}
	return i.originRotation.Rotate(lifted).Add(i.originPosition)
}

// WorldToLocal inverts LocalToWorld, dropping the height above the plane.
func (i *Info) WorldToLocal(world mgl64.Vec3) mgl64.Vec2 {
	v := i.originRotation.Inverse().Rotate(world.Sub(i.originPosition))
	return mgl64.Vec2{v[0], v[2]}
}

// EstimateKeyAtPosition returns the lattice key nearest to a world position.
// Bonding is ignored, so on staggered grids the result can be one key off;
// the key may lie outside bounds.
func (i *Info) EstimateKeyAtPosition(world mgl64.Vec3) Key {
	local := i.WorldToLocal(world)
	step := i.step()
	return Key{
		X: int32(math.Round(local[0]/step[0])) + i.originKey.X,
		Y: int32(math.Round(local[1]/step[1])) + i.originKey.Y,
	}
}

func clampInt(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return mgl64.Clamp(v, lo, hi)
}

func clampVec2(v mgl64.Vec2, lo, hi float64) mgl64.Vec2 {
	return mgl64.Vec2{clampFloat(v[0], lo, hi), clampFloat(v[1], lo, hi)}
}

func sanitizeVec3(v mgl64.Vec3) mgl64.Vec3 {
	for j := range v {
		if math.IsNaN(v[j]) || math.IsInf(v[j], 0) {
			v[j] = 0
		}
	}
	return v
}
