package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/l1jgo/gridmap/internal/config"
	"github.com/l1jgo/gridmap/internal/core/event"
	"github.com/l1jgo/gridmap/internal/data"
	"github.com/l1jgo/gridmap/internal/grid"
	"github.com/l1jgo/gridmap/internal/persist"
	"github.com/l1jgo/gridmap/internal/scripting"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Display helpers ────────────────────────────────────────────────

func printBanner(layout string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              gridmap  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      spatial grid · partition index       \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mlayout:\033[0m %s\n\n", layout)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, value string) {
	dotsLen := 42 - len(label) - len(value)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), value)
}

func printCount(label string, count int) {
	printStat(label, fmt.Sprintf("%d", count))
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

// ── Main flow ──────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/gridmap.toml"
	if p := os.Getenv("GRIDMAP_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Data.Layout)

	// 3. Resolve settings: [grid] unless a named layout overrides it
	printSection("data")
	settings := cfg.Settings()
	var layout *data.Layout
	if cfg.Data.LayoutPath != "" {
		layouts, err := data.LoadLayoutTable(cfg.Data.LayoutPath, cfg.Data.MaskDir)
		if err != nil {
			return fmt.Errorf("load layouts: %w", err)
		}
		printCount("layouts", layouts.Count())

		layout = layouts.Get(cfg.Data.Layout)
		if layout == nil {
			return fmt.Errorf("layout %q not found in %s", cfg.Data.Layout, cfg.Data.LayoutPath)
		}
		parent := settings.Parent
		settings = layout.Settings()
		settings.Parent = parent
		settings.Search.CorrectionHops = cfg.Search.CorrectionHops
	} else {
		printOK("using [grid] settings")
	}

	// 4. Build and refresh the grid
	printSection("grid")
	root, err := grid.NewRoot(&settings, log)
	if err != nil {
		return fmt.Errorf("create grid root: %w", err)
	}
	if err := root.Preload(); err != nil {
		return fmt.Errorf("preload grid: %w", err)
	}

	var added, created int
	event.Subscribe(root.Events(), func(event.NodeAdded) { added++ })
	event.Subscribe(root.Events(), func(event.PartitionCreated) { created++ })
	event.Subscribe(root.Events(), func(e event.Refreshed) {
		log.Info("grid refreshed",
			zap.Int("nodes", e.Nodes),
			zap.Int("partitions", e.Partitions),
			zap.Bool("changed", e.Changed),
		)
	})

	start := time.Now()
	if err := root.Refresh(); err != nil {
		return fmt.Errorf("refresh grid: %w", err)
	}
	m := root.Map()
	info := root.Info()
	printCount("nodes added", added)
	printCount("partitions created", created)
	printStat("refresh time", time.Since(start).Round(time.Microsecond).String())

	// 5. Enabled state: mask, then rules
	if layout != nil && layout.HasMask() {
		printCount("masked nodes", layout.ApplyMask(m))
	}

	if cfg.Scripting.Enabled {
		engine, err := scripting.NewEngine(cfg.Scripting.ScriptsDir, log)
		if err != nil {
			return fmt.Errorf("init lua engine: %w", err)
		}
		defer engine.Close()
		if engine.HasRule() {
			root.Dispatch(engine.RuleVisitor())
			printOK("lua node rules applied")
		} else {
			log.Warn("no node_enabled rule defined", zap.String("dir", cfg.Scripting.ScriptsDir))
		}
	}

	// 6. Persistence: restore saved node states, or seed them on first run
	if cfg.Database.Enabled {
		printSection("database")
		if err := syncDatabase(cfg, settings, m, log); err != nil {
			return err
		}
	}

	// 7. Summary
	printSection("summary")
	terminal := info.TerminalKey()
	printStat("bounds", fmt.Sprintf("%dx%d", terminal.X, terminal.Y))
	printStat("alignment", info.Alignment().String())
	printStat("search", m.Search().Strategy.String())
	printCount("nodes", m.NodeCount())
	printCount("enabled", len(m.GetEnabledNodes()))
	printCount("disabled", len(m.GetDisabledNodes()))
	printCount("partitions", m.PartitionCount())
	dims := info.WorldDimensions()
	printStat("world size", fmt.Sprintf("%.2f x %.2f", dims.X(), dims.Y()))

	probe(m, "origin", info.OriginWorldPosition())
	far := info.CalculateNodePosition(grid.Key{X: terminal.X - 1, Y: terminal.Y - 1})
	probe(m, "far corner", far.Add(mgl64.Vec3{0.25, 0, 0.25}))
	return nil
}

func probe(m *grid.Map, label string, pos mgl64.Vec3) {
	n := m.GetClosestNodeToPosition(pos)
	if n == nil {
		printStat("nearest to "+label, "none")
		return
	}
	printStat("nearest to "+label, n.String())
}

func syncDatabase(cfg *config.Config, settings grid.Settings, m *grid.Map, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK("PostgreSQL connected")

	if err := persist.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printOK("migrations applied")

	repo := persist.NewLayoutRepo(db)
	name := cfg.Data.Layout

	stored, err := repo.LoadSettings(ctx, name)
	if err != nil {
		return err
	}
	if stored != nil && stored.Bounds != settings.Bounds {
		log.Warn("stored layout bounds differ, states outside the grid are skipped",
			zap.String("layout", name),
			zap.Stringer("stored", stored.Bounds.Size),
			zap.Stringer("current", settings.Bounds.Size),
		)
	}
	if err := repo.SaveSettings(ctx, name, settings); err != nil {
		return err
	}

	states, err := repo.LoadNodeStates(ctx, name)
	if err != nil {
		return fmt.Errorf("load node states: %w", err)
	}
	if len(states) > 0 {
		printCount("node states restored", persist.ApplyNodeStates(m, states))
		return nil
	}

	states = persist.CollectNodeStates(m)
	if err := repo.SaveNodeStates(ctx, name, states); err != nil {
		return fmt.Errorf("save node states: %w", err)
	}
	printCount("node states saved", len(states))
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
