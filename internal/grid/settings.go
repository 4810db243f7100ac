package grid

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform is the parent placement of a grid in world space.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// IdentityTransform places the grid at the world origin, unrotated.
func IdentityTransform() Transform {
	return Transform{Rotation: mgl64.QuatIdent()}
}

// TransformFromEuler builds a transform from a position and XYZ Euler
// angles in degrees.
func TransformFromEuler(position, degrees mgl64.Vec3) Transform {
	rot := mgl64.AnglesToQuat(
		mgl64.DegToRad(degrees[0]),
		mgl64.DegToRad(degrees[1]),
		mgl64.DegToRad(degrees[2]),
		mgl64.XYZ,
	)
	return Transform{Position: position, Rotation: rot}
}

// SearchStrategy selects the nearest-node algorithm.
type SearchStrategy uint8

const (
	// SearchApproximate is the partition broad phase followed by a scan of
	// the winning partition and neighbour correction. Cheap, not exact.
	SearchApproximate SearchStrategy = iota
	// SearchExact visits partitions in order of bounding-box distance and
	// stops once no remaining box can hold a closer node.
	SearchExact
)

func (s SearchStrategy) String() string {
	switch s {
	case SearchApproximate:
		return "approximate"
	case SearchExact:
		return "exact"
	}
	return fmt.Sprintf("search(%d)", uint8(s))
}

func (s SearchStrategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SearchStrategy) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "approximate", "approx":
		*s = SearchApproximate
	case "exact":
		*s = SearchExact
	default:
		return fmt.Errorf("unknown search strategy %q", string(text))
	}
	return nil
}

// SearchOptions configures Map.GetClosestNodeToPosition.
type SearchOptions struct {
	Strategy SearchStrategy
	// CorrectionHops caps how many times the approximate search may step
	// to a closer neighbour of its current best node. Zero climbs until no
	// neighbour is closer; NoCorrection skips the step.
	CorrectionHops int
}

const (
	// DefaultCorrectionHops climbs until no neighbour is closer, bounded by
	// the node count. It is the zero value.
	DefaultCorrectionHops = 0
	// NoCorrection stops at the nearest member of the broad-phase partition.
	NoCorrection = -1
)

// Settings is the plain configuration value a grid is built from.
type Settings struct {
	Bounds        Rect
	Alignment     Alignment
	PartitionSize int32
	NodeSize      mgl64.Vec2
	NodeSpacing   mgl64.Vec2
	NodeBonding   mgl64.Vec2
	// Parent is optional; nil means world origin and identity rotation.
	Parent *Transform
	Search SearchOptions
}

// DefaultSettings returns a 10x10 centred grid of unit nodes.
func DefaultSettings() Settings {
	return Settings{
		Bounds:        NewRect(10, 10),
		Alignment:     MiddleCenter,
		PartitionSize: 8,
		NodeSize:      mgl64.Vec2{1, 1},
		Search: SearchOptions{
			Strategy:       SearchApproximate,
			CorrectionHops: DefaultCorrectionHops,
		},
	}
}
