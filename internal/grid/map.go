package grid

import (
	"sort"

	"github.com/l1jgo/gridmap/internal/core/arena"
	"github.com/l1jgo/gridmap/internal/core/event"
	"go.uber.org/zap"
)

// Map owns the node and partition population of one grid. It reconciles the
// key-space described by Info with the nodes it already holds and answers
// spatial queries from cached lists.
// Accessed only from the owning goroutine, no locks.
type Map struct {
	info *Info
	log  *zap.Logger
	bus  *event.Bus

	nodes      *arena.PtrStore[Key, Node]
	partitions *arena.PtrStore[PartitionKey, Partition]

	// cached row-major lists, rebuilt only when dirty
	nodeCache      []*Node
	partitionCache []*Partition
	dirty          bool
	refreshing     bool

	// bumped whenever node positions may have moved; partitions compare
	// against it to decide if their geometry is stale
	layoutVersion uint64

	search SearchOptions
}

// NewMap creates an empty Map over info. Call Refresh to populate it.
func NewMap(info *Info, log *zap.Logger) (*Map, error) {
	if info == nil {
		return nil, ErrNilInfo
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Map{
		info:          info,
		log:           log,
		nodes:         arena.NewPtrStore[Key, Node](info.NodeCount()),
		partitions:    arena.NewPtrStore[PartitionKey, Partition](0),
		layoutVersion: 1,
		search: SearchOptions{
			Strategy:       SearchApproximate,
			CorrectionHops: DefaultCorrectionHops,
		},
	}, nil
}

// SetEventBus routes population events emitted during Refresh to bus.
func (m *Map) SetEventBus(bus *event.Bus) { m.bus = bus }

// SetSearch selects the nearest-node strategy. Any negative hop count is
// stored as NoCorrection.
func (m *Map) SetSearch(opts SearchOptions) {
	if opts.CorrectionHops < 0 {
		opts.CorrectionHops = NoCorrection
	}
	m.search = opts
}

func (m *Map) Search() SearchOptions { return m.search }
func (m *Map) Info() *Info           { return m.info }

// Dirty reports whether cached lists are pending a rebuild. Outside of
// Refresh it is always false.
func (m *Map) Dirty() bool { return m.dirty }

// RefreshStats summarises what one Refresh changed.
type RefreshStats struct {
	Evicted           int
	Moved             int
	Added             int
	PartitionsCreated int
	PartitionsRemoved int
}

func (s RefreshStats) Changed() bool {
	return s.Evicted+s.Moved+s.Added+s.PartitionsCreated+s.PartitionsRemoved > 0
}

// Refresh reconciles the population with the current Info:
//  1. evict nodes whose key left bounds (and re-home nodes whose partition
//     key changed),
//  2. drop empty partitions,
//  3. create nodes for every in-bounds key that has none,
//  4. rebuild cached lists if anything above changed.
//
// Safe to call repeatedly; with no configuration change it is a no-op.
// Must not be called from a callback dispatched by Refresh.
func (m *Map) Refresh() (RefreshStats, error) {
	if m.refreshing {
		return RefreshStats{}, ErrRefreshInProgress
	}
	m.refreshing = true
	defer func() { m.refreshing = false }()

	var stats RefreshStats
	m.evict(&stats)
	m.prune(&stats)
	m.populate(&stats)

	if m.dirty {
		m.rebuildCaches()
	}

	if stats.Changed() {
		m.log.Debug("grid map refreshed",
			zap.Int("evicted", stats.Evicted),
			zap.Int("moved", stats.Moved),
			zap.Int("added", stats.Added),
			zap.Int("partitions_created", stats.PartitionsCreated),
			zap.Int("partitions_removed", stats.PartitionsRemoved),
			zap.Int("nodes", len(m.nodeCache)),
			zap.Int("partitions", len(m.partitionCache)),
		)
	}
	return stats, nil
}

func (m *Map) evict(stats *RefreshStats) {
	for _, k := range m.nodes.Keys() {
		n, _ := m.nodes.Get(k)
		if !m.info.IsKeyInBounds(k) {
			m.detach(n)
			m.nodes.Remove(k)
			m.dirty = true
			stats.Evicted++
			event.Emit(m.bus, event.NodeEvicted{X: k.X, Y: k.Y})
			continue
		}
		// partition size changed under this node
		if pk := m.info.PartitionKeyFor(k); pk != n.partitionKey {
			m.detach(n)
			n.partitionKey = pk
			if m.attach(n) {
				stats.PartitionsCreated++
			}
			m.dirty = true
			stats.Moved++
		}
	}
}

func (m *Map) prune(stats *RefreshStats) {
	for _, pk := range m.partitions.Keys() {
		p, _ := m.partitions.Get(pk)
		if p.Len() > 0 {
			continue
		}
		m.partitions.Remove(pk)
		m.dirty = true
		stats.PartitionsRemoved++
		event.Emit(m.bus, event.PartitionRemoved{Key: uint64(pk)})
	}
}

func (m *Map) populate(stats *RefreshStats) {
	t := m.info.TerminalKey()
	for y := int32(0); y < t.Y; y++ {
		for x := int32(0); x < t.X; x++ {
			k := Key{X: x, Y: y}
			if m.nodes.Has(k) {
				continue
			}
			n := newNode(k, m.info)
			m.nodes.Set(k, n)
			if m.attach(n) {
				stats.PartitionsCreated++
			}
			m.dirty = true
			stats.Added++
			event.Emit(m.bus, event.NodeAdded{X: x, Y: y})
		}
	}
}

// attach adds n to the partition for its partition key and reports whether
// that partition had to be created.
func (m *Map) attach(n *Node) bool {
	p, ok := m.partitions.Get(n.partitionKey)
	if !ok {
		p = newPartition(n.partitionKey, m.info.PartitionCellFor(n.key), m)
		m.partitions.Set(n.partitionKey, p)
		event.Emit(m.bus, event.PartitionCreated{Key: uint64(n.partitionKey)})
	}
	p.add(n.key)
	return !ok
}

func (m *Map) detach(n *Node) {
	if p, ok := m.partitions.Get(n.partitionKey); ok {
		p.remove(n.key)
	}
}

func (m *Map) rebuildCaches() {
	nodes := make([]*Node, 0, m.nodes.Len())
	m.nodes.Each(func(_ Key, n *Node) {
		nodes = append(nodes, n)
	})
	sort.Slice(nodes, func(a, b int) bool { return nodes[a].key.less(nodes[b].key) })

	parts := make([]*Partition, 0, m.partitions.Len())
	m.partitions.Each(func(_ PartitionKey, p *Partition) {
		parts = append(parts, p)
	})
	sort.Slice(parts, func(a, b int) bool { return parts[a].cell.less(parts[b].cell) })

	m.nodeCache = nodes
	m.partitionCache = parts
	m.dirty = false
}

// invalidateLayout marks every partition's cached geometry stale. Called
// after node positions are re-derived.
func (m *Map) invalidateLayout() {
	m.layoutVersion++
}

// RefreshNodes re-derives every node's geometry from Info and invalidates
// partition geometry. Root does this after each Refresh; standalone Map
// users call it after changing node size, spacing, bonding, alignment or
// the parent transform.
func (m *Map) RefreshNodes() {
	m.ForEachNode(updateVisitor{info: m.info})
	m.invalidateLayout()
}

// ForEachNode visits every cached node exactly once in row-major order.
func (m *Map) ForEachNode(v Visitor) {
	for _, n := range m.nodeCache {
		n.Accept(v)
	}
}
