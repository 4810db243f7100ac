package grid

import (
	"fmt"

	"github.com/l1jgo/gridmap/internal/core/event"
	"go.uber.org/zap"
)

// State is the Root lifecycle stage. It only ever moves forward.
type State uint8

const (
	StateInvalid State = iota
	StatePreloaded
	StateInitialized
)

func (s State) String() string {
	switch s {
	case StateInvalid:
		return "invalid"
	case StatePreloaded:
		return "preloaded"
	case StateInitialized:
		return "initialized"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Root owns one Info and one Map and drives the Preload → Refresh lifecycle.
// Accessed only from the owning goroutine, no locks.
type Root struct {
	settings Settings
	info     *Info
	m        *Map
	bus      *event.Bus
	log      *zap.Logger

	state      State
	refreshing bool
}

// NewRoot creates a Root in StateInvalid. settings is copied.
func NewRoot(settings *Settings, log *zap.Logger) (*Root, error) {
	if settings == nil {
		return nil, ErrNilSettings
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Root{
		settings: *settings,
		bus:      event.NewBus(),
		log:      log,
	}, nil
}

func (r *Root) State() State { return r.state }

// Info returns the grid configuration, nil before Preload. Mutate it through
// its setters, then call Refresh.
func (r *Root) Info() *Info { return r.info }

// Map returns the node population, nil before Preload.
func (r *Root) Map() *Map { return r.m }

// Events returns the bus population events are published on after every
// Refresh.
func (r *Root) Events() *event.Bus { return r.bus }

// Preload builds Info (first call only) and a fresh, empty Map.
func (r *Root) Preload() error {
	if r.info == nil {
		r.info = NewInfo(r.settings)
	}
	m, err := NewMap(r.info, r.log)
	if err != nil {
		return fmt.Errorf("preload grid map: %w", err)
	}
	m.SetEventBus(r.bus)
	m.SetSearch(r.settings.Search)
	r.m = m

	if r.state < StatePreloaded {
		r.state = StatePreloaded
	}
	r.log.Debug("grid preloaded",
		zap.Int32("width", r.info.TerminalKey().X),
		zap.Int32("height", r.info.TerminalKey().Y),
		zap.Stringer("alignment", r.info.Alignment()),
		zap.Int32("partition_size", r.info.PartitionSize()),
	)
	return nil
}

// Refresh reconciles the Map with Info, re-derives node geometry through the
// update visitor and publishes population events. From StateInvalid it
// preloads first. Calling Refresh from any callback it dispatches returns
// ErrRefreshInProgress.
func (r *Root) Refresh() error {
	if r.refreshing {
		return ErrRefreshInProgress
	}
	r.refreshing = true
	defer func() { r.refreshing = false }()

	if r.state == StateInvalid {
		if err := r.Preload(); err != nil {
			return err
		}
	}

	stats, err := r.m.Refresh()
	if err != nil {
		return fmt.Errorf("refresh grid map: %w", err)
	}
	r.m.RefreshNodes()
	r.state = StateInitialized

	event.Emit(r.bus, event.Refreshed{
		Nodes:      r.m.NodeCount(),
		Partitions: r.m.PartitionCount(),
		Changed:    stats.Changed(),
	})
	r.bus.SwapBuffers()
	r.bus.DispatchAll()
	return nil
}

// SetSearch changes the nearest-node strategy, now and for future Preloads.
func (r *Root) SetSearch(opts SearchOptions) {
	r.settings.Search = opts
	if r.m != nil {
		r.m.SetSearch(opts)
	}
}

// Dispatch visits every node currently cached, once each, in row-major
// order. Before Preload it does nothing.
func (r *Root) Dispatch(v Visitor) {
	if r.m == nil {
		return
	}
	r.m.ForEachNode(v)
}
