package grid

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Node is one grid cell. Everything except Enabled is derived from Info and
// owned by the Map; Enabled is the only field callers may change.
type Node struct {
	key          Key
	coordinate   Key
	position     mgl64.Vec3
	dimensions   mgl64.Vec2
	partitionKey PartitionKey

	// Enabled is independent of population: toggling it never invalidates
	// Map caches.
	Enabled bool
}

func newNode(key Key, info *Info) *Node {
	n := &Node{
		key:          key,
		partitionKey: info.PartitionKeyFor(key),
		Enabled:      true,
	}
	n.Refresh(info)
	return n
}

// Refresh re-pulls coordinate, position and dimensions from info. Identity
// and partition membership are unchanged.
func (n *Node) Refresh(info *Info) {
	n.coordinate = info.ConvertKeyToCoordinate(n.key)
	n.position = info.CalculateNodePosition(n.key)
	n.dimensions = info.NodeSize()
}

func (n *Node) Key() Key                   { return n.key }
func (n *Node) Coordinate() Key            { return n.coordinate }
func (n *Node) Position() mgl64.Vec3       { return n.position }
func (n *Node) Dimensions() mgl64.Vec2     { return n.dimensions }
func (n *Node) PartitionKey() PartitionKey { return n.partitionKey }

// Accept hands the node to v.
func (n *Node) Accept(v Visitor) {
	v.VisitNode(n)
}

func (n *Node) distanceSq(p mgl64.Vec3) float64 {
	d := n.position.Sub(p)
	return d.Dot(d)
}

func (n *Node) String() string {
	return fmt.Sprintf("node%s pos=(%.3f,%.3f,%.3f) enabled=%t",
		n.key, n.position[0], n.position[1], n.position[2], n.Enabled)
}
