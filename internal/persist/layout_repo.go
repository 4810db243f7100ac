package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jackc/pgx/v5"
	"github.com/l1jgo/gridmap/internal/grid"
)

// NodeState is the persisted enabled flag of one node.
type NodeState struct {
	X       int32
	Y       int32
	Enabled bool
}

type LayoutRepo struct {
	db *DB
}

func NewLayoutRepo(db *DB) *LayoutRepo {
	return &LayoutRepo{db: db}
}

// SaveSettings upserts the settings stored under name.
func (r *LayoutRepo) SaveSettings(ctx context.Context, name string, s grid.Settings) error {
	parent := grid.IdentityTransform()
	hasParent := s.Parent != nil
	if hasParent {
		parent = *s.Parent
	}
	pos, rot := parent.Position, parent.Rotation

	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO grid_layouts (name, width, height, alignment, partition_size,
		        node_size_x, node_size_y, node_spacing_x, node_spacing_y,
		        node_bonding_x, node_bonding_y, has_parent,
		        parent_pos_x, parent_pos_y, parent_pos_z,
		        parent_rot_w, parent_rot_x, parent_rot_y, parent_rot_z,
		        search_strategy, correction_hops, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		         $13, $14, $15, $16, $17, $18, $19, $20, $21, NOW())
		 ON CONFLICT (name) DO UPDATE SET
		        width = EXCLUDED.width, height = EXCLUDED.height,
		        alignment = EXCLUDED.alignment, partition_size = EXCLUDED.partition_size,
		        node_size_x = EXCLUDED.node_size_x, node_size_y = EXCLUDED.node_size_y,
		        node_spacing_x = EXCLUDED.node_spacing_x, node_spacing_y = EXCLUDED.node_spacing_y,
		        node_bonding_x = EXCLUDED.node_bonding_x, node_bonding_y = EXCLUDED.node_bonding_y,
		        has_parent = EXCLUDED.has_parent,
		        parent_pos_x = EXCLUDED.parent_pos_x, parent_pos_y = EXCLUDED.parent_pos_y,
		        parent_pos_z = EXCLUDED.parent_pos_z,
		        parent_rot_w = EXCLUDED.parent_rot_w, parent_rot_x = EXCLUDED.parent_rot_x,
		        parent_rot_y = EXCLUDED.parent_rot_y, parent_rot_z = EXCLUDED.parent_rot_z,
		        search_strategy = EXCLUDED.search_strategy,
		        correction_hops = EXCLUDED.correction_hops,
		        updated_at = NOW()`,
		name, s.Bounds.Size.X, s.Bounds.Size.Y, s.Alignment.String(), s.PartitionSize,
		s.NodeSize.X(), s.NodeSize.Y(), s.NodeSpacing.X(), s.NodeSpacing.Y(),
		s.NodeBonding.X(), s.NodeBonding.Y(), hasParent,
		pos.X(), pos.Y(), pos.Z(),
		rot.W, rot.V.X(), rot.V.Y(), rot.V.Z(),
		s.Search.Strategy.String(), s.Search.CorrectionHops,
	)
	if err != nil {
		return fmt.Errorf("save layout %s: %w", name, err)
	}
	return nil
}

// LoadSettings returns the settings stored under name, or nil if not found.
func (r *LayoutRepo) LoadSettings(ctx context.Context, name string) (*grid.Settings, error) {
	var (
		s                   grid.Settings
		w, h                int32
		alignment, strategy string
		hasParent           bool
		px, py, pz          float64
		rw, rx, ry, rz      float64
	)
	err := r.db.Pool.QueryRow(ctx,
		`SELECT width, height, alignment, partition_size,
		        node_size_x, node_size_y, node_spacing_x, node_spacing_y,
		        node_bonding_x, node_bonding_y, has_parent,
		        parent_pos_x, parent_pos_y, parent_pos_z,
		        parent_rot_w, parent_rot_x, parent_rot_y, parent_rot_z,
		        search_strategy, correction_hops
		 FROM grid_layouts WHERE name = $1`, name,
	).Scan(&w, &h, &alignment, &s.PartitionSize,
		&s.NodeSize[0], &s.NodeSize[1], &s.NodeSpacing[0], &s.NodeSpacing[1],
		&s.NodeBonding[0], &s.NodeBonding[1], &hasParent,
		&px, &py, &pz, &rw, &rx, &ry, &rz,
		&strategy, &s.Search.CorrectionHops,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load layout %s: %w", name, err)
	}

	s.Bounds = grid.NewRect(w, h)
	if s.Alignment, err = grid.ParseAlignment(alignment); err != nil {
		return nil, fmt.Errorf("load layout %s: %w", name, err)
	}
	if err := s.Search.Strategy.UnmarshalText([]byte(strategy)); err != nil {
		return nil, fmt.Errorf("load layout %s: %w", name, err)
	}
	if hasParent {
		s.Parent = &grid.Transform{
			Position: mgl64.Vec3{px, py, pz},
			Rotation: mgl64.Quat{W: rw, V: mgl64.Vec3{rx, ry, rz}}.Normalize(),
		}
	}
	return &s, nil
}

// SaveNodeStates replaces every stored node state of a layout in one
// transaction, streaming the rows with COPY. The layout row must already
// exist.
func (r *LayoutRepo) SaveNodeStates(ctx context.Context, name string, states []NodeState) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("node states begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM grid_node_states WHERE layout_name = $1`, name,
	); err != nil {
		return fmt.Errorf("node states clear: %w", err)
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"grid_node_states"},
		nodeStateColumns,
		nodeStateRows(name, states),
	); err != nil {
		return fmt.Errorf("node states copy: %w", err)
	}

	return tx.Commit(ctx)
}

var nodeStateColumns = []string{"layout_name", "x", "y", "enabled"}

// nodeStateRows feeds states to COPY in nodeStateColumns order.
func nodeStateRows(name string, states []NodeState) pgx.CopyFromSource {
	return pgx.CopyFromSlice(len(states), func(i int) ([]any, error) {
		s := states[i]
		return []any{name, s.X, s.Y, s.Enabled}, nil
	})
}

func (r *LayoutRepo) LoadNodeStates(ctx context.Context, name string) ([]NodeState, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT x, y, enabled FROM grid_node_states
		 WHERE layout_name = $1
		 ORDER BY y, x`, name,
	)
	if err != nil {
		return nil, fmt.Errorf("query node states %s: %w", name, err)
	}
	defer rows.Close()

	var result []NodeState
	for rows.Next() {
		var s NodeState
		if err := rows.Scan(&s.X, &s.Y, &s.Enabled); err != nil {
			return nil, fmt.Errorf("scan node state %s: %w", name, err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read node states %s: %w", name, err)
	}
	return result, nil
}

// CollectNodeStates snapshots the enabled flag of every node in m, in the
// map's cache order.
func CollectNodeStates(m *grid.Map) []NodeState {
	nodes := m.GetAllNodes()
	states := make([]NodeState, 0, len(nodes))
	for _, n := range nodes {
		k := n.Key()
		states = append(states, NodeState{X: k.X, Y: k.Y, Enabled: n.Enabled})
	}
	return states
}

// ApplyNodeStates writes stored flags onto the matching nodes of m. States
// for keys the map no longer holds are skipped. Returns the number applied.
func ApplyNodeStates(m *grid.Map, states []NodeState) int {
	applied := 0
	for _, s := range states {
		n := m.GetNodeByKey(grid.Key{X: s.X, Y: s.Y})
		if n == nil {
			continue
		}
		n.Enabled = s.Enabled
		applied++
	}
	return applied
}
