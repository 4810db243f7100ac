package grid

import "fmt"

// Key is an integer 2D grid index. Depending on context it is either a key
// (absolute index inside bounds) or a coordinate (relative to the origin key).
type Key struct {
	X int32
	Y int32
}

func (k Key) Add(o Key) Key { return Key{X: k.X + o.X, Y: k.Y + o.Y} }
func (k Key) Sub(o Key) Key { return Key{X: k.X - o.X, Y: k.Y - o.Y} }

func (k Key) String() string {
	return fmt.Sprintf("(%d,%d)", k.X, k.Y)
}

// less orders keys row-major (Y, then X).
func (k Key) less(o Key) bool {
	if k.Y != o.Y {
		return k.Y < o.Y
	}
	return k.X < o.X
}

// Rect is an integer rectangle. Size is exclusive: a Rect covers
// [Min, Min+Size).
type Rect struct {
	Min  Key
	Size Key
}

func NewRect(width, height int32) Rect {
	return Rect{Size: Key{X: width, Y: height}}
}

// Max returns the exclusive upper corner.
func (r Rect) Max() Key { return r.Min.Add(r.Size) }

func (r Rect) Contains(k Key) bool {
	hi := r.Max()
	return k.X >= r.Min.X && k.X < hi.X && k.Y >= r.Min.Y && k.Y < hi.Y
}

// Area returns the number of keys covered.
func (r Rect) Area() int {
	if r.Size.X <= 0 || r.Size.Y <= 0 {
		return 0
	}
	return int(r.Size.X) * int(r.Size.Y)
}

// floorDiv divides rounding toward negative infinity, so -1/4 == -1.
func floorDiv(v, d int32) int32 {
	q := v / d
	if v%d != 0 && v < 0 {
		q--
	}
	return q
}

// neighborOffsets lists the 8-neighbourhood clockwise from north.
var neighborOffsets = [8]Key{
	{X: 0, Y: 1},
	{X: 1, Y: 1},
	{X: 1, Y: 0},
	{X: 1, Y: -1},
	{X: 0, Y: -1},
	{X: -1, Y: -1},
	{X: -1, Y: 0},
	{X: -1, Y: 1},
}
