package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/l1jgo/gridmap/internal/grid"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ruleFunc is the global a rule script defines to decide node state.
const ruleFunc = "node_enabled"

// Engine wraps a single gopher-lua VM for node rules.
// Single-goroutine access only, same as the Map it visits.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
// A missing directory yields an engine with no rules.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	e.registerHelpers()

	if scriptsDir != "" {
		if err := e.loadDir(scriptsDir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load rule scripts: %w", err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// registerHelpers exposes small math helpers that rule scripts tend to need.
func (e *Engine) registerHelpers() {
	helpers := e.vm.NewTable()
	helpers.RawSetString("manhattan", e.vm.NewFunction(func(L *lua.LState) int {
		dx := L.CheckInt(1) - L.CheckInt(3)
		dy := L.CheckInt(2) - L.CheckInt(4)
		L.Push(lua.LNumber(abs(dx) + abs(dy)))
		return 1
	}))
	helpers.RawSetString("chebyshev", e.vm.NewFunction(func(L *lua.LState) int {
		dx := abs(L.CheckInt(1) - L.CheckInt(3))
		dy := abs(L.CheckInt(2) - L.CheckInt(4))
		L.Push(lua.LNumber(max(dx, dy)))
		return 1
	}))
	e.vm.SetGlobal("grid", helpers)
}

// LoadString runs an inline chunk, typically a rule definition.
func (e *Engine) LoadString(src string) error {
	if err := e.vm.DoString(src); err != nil {
		return fmt.Errorf("load lua chunk: %w", err)
	}
	return nil
}

// HasRule reports whether node_enabled is defined.
func (e *Engine) HasRule() bool {
	return e.vm.GetGlobal(ruleFunc).Type() == lua.LTFunction
}

// RuleVisitor returns a visitor that sets each node's Enabled flag from the
// Lua node_enabled(node) result. A nil result leaves the node unchanged, as
// does a Lua error. Without a rule the visitor does nothing.
func (e *Engine) RuleVisitor() grid.Visitor {
	return grid.VisitorFunc(func(n *grid.Node) {
		fn := e.vm.GetGlobal(ruleFunc)
		if fn.Type() != lua.LTFunction {
			return
		}

		if err := e.vm.CallByParam(lua.P{
			Fn:      fn,
			NRet:    1,
			Protect: true,
		}, e.nodeTable(n)); err != nil {
			e.log.Error("lua node_enabled error",
				zap.Stringer("node", n),
				zap.Error(err),
			)
			return
		}

		result := e.vm.Get(-1)
		e.vm.Pop(1)
		if result == lua.LNil {
			return
		}
		n.Enabled = lua.LVAsBool(result)
	})
}

// nodeTable packs the read-only view of a node handed to rule scripts.
func (e *Engine) nodeTable(n *grid.Node) *lua.LTable {
	k, c, p := n.Key(), n.Coordinate(), n.Position()
	t := e.vm.NewTable()
	t.RawSetString("key_x", lua.LNumber(k.X))
	t.RawSetString("key_y", lua.LNumber(k.Y))
	t.RawSetString("coord_x", lua.LNumber(c.X))
	t.RawSetString("coord_y", lua.LNumber(c.Y))
	t.RawSetString("x", lua.LNumber(p.X()))
	t.RawSetString("y", lua.LNumber(p.Y()))
	t.RawSetString("z", lua.LNumber(p.Z()))
	t.RawSetString("partition", lua.LString(strconv.FormatUint(uint64(n.PartitionKey()), 16)))
	t.RawSetString("enabled", lua.LBool(n.Enabled))
	return t
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
