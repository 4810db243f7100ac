package data

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/l1jgo/gridmap/internal/grid"
	"gopkg.in/yaml.v3"
)

// Layout is one named grid preset loaded from layouts.yaml.
type Layout struct {
	Name          string              `yaml:"name"`
	Width         int32               `yaml:"width"`
	Height        int32               `yaml:"height"`
	Alignment     grid.Alignment      `yaml:"alignment"`
	PartitionSize int32               `yaml:"partition_size"`
	NodeSize      [2]float64          `yaml:"node_size"`
	NodeSpacing   [2]float64          `yaml:"node_spacing"`
	NodeBonding   [2]float64          `yaml:"node_bonding"`
	Search        grid.SearchStrategy `yaml:"search"`
	Masked        bool                `yaml:"masked"` // load {name}.txt from the mask dir

	// mask[x*height+y] == false means the node starts disabled
	mask []bool
}

// LayoutTable provides named layout lookups.
type LayoutTable struct {
	layouts map[string]*Layout
}

type layoutListFile struct {
	Layouts []Layout `yaml:"layouts"`
}

// LoadLayoutTable loads layout presets from YAML and, for masked layouts,
// enabled masks from text files.
// yamlPath: path to layouts.yaml
// maskDir: directory containing {name}.txt mask files
func LoadLayoutTable(yamlPath, maskDir string) (*LayoutTable, error) {
	raw, err := os.ReadFile(yamlPath)
	if err != nil {
		return nil, fmt.Errorf("read layout list %s: %w", yamlPath, err)
	}
	var file layoutListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse layout list: %w", err)
	}

	table := &LayoutTable{
		layouts: make(map[string]*Layout, len(file.Layouts)),
	}
	for i := range file.Layouts {
		l := &file.Layouts[i]
		if l.Name == "" || l.Width <= 0 || l.Height <= 0 {
			continue
		}
		if l.Masked {
			mask, err := loadMaskFile(maskDir, l.Name, int(l.Width), int(l.Height))
			if err != nil {
				return nil, fmt.Errorf("load mask %s: %w", l.Name, err)
			}
			l.mask = mask
		}
		table.layouts[l.Name] = l
	}
	return table, nil
}

// loadMaskFile reads a CSV mask: each line is a row (Y), each value a
// column (X). Zero disables the node; anything else, or a missing value,
// leaves it enabled. Lines starting with '#' are comments.
func loadMaskFile(dir, name string, xSize, ySize int) ([]bool, error) {
	path := filepath.Join(dir, name+".txt")
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mask := make([]bool, xSize*ySize)
	for i := range mask {
		mask[i] = true
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	y := 0
	for scanner.Scan() && y < ySize {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		x := 0
		for _, tok := range strings.Split(line, ",") {
			if x >= xSize {
				break
			}
			val, err := strconv.Atoi(strings.TrimSpace(tok))
			if err != nil {
				val = 1
			}
			mask[x*ySize+y] = val != 0
			x++
		}
		y++
	}
	return mask, scanner.Err()
}

// Count returns the number of layouts loaded.
func (t *LayoutTable) Count() int {
	return len(t.layouts)
}

// Get returns the layout with the given name, or nil if not found.
func (t *LayoutTable) Get(name string) *Layout {
	return t.layouts[name]
}

// Settings converts the layout into grid settings.
func (l *Layout) Settings() grid.Settings {
	return grid.Settings{
		Bounds:        grid.NewRect(l.Width, l.Height),
		Alignment:     l.Alignment,
		PartitionSize: l.PartitionSize,
		NodeSize:      mgl64.Vec2(l.NodeSize),
		NodeSpacing:   mgl64.Vec2(l.NodeSpacing),
		NodeBonding:   mgl64.Vec2(l.NodeBonding),
		Search: grid.SearchOptions{
			Strategy:       l.Search,
			CorrectionHops: grid.DefaultCorrectionHops,
		},
	}
}

// HasMask reports whether an enabled mask was loaded.
func (l *Layout) HasMask() bool {
	return l.mask != nil
}

// Enabled reports the mask value at k. Keys outside the layout, or layouts
// without a mask, are enabled.
func (l *Layout) Enabled(k grid.Key) bool {
	if l.mask == nil || k.X < 0 || k.X >= l.Width || k.Y < 0 || k.Y >= l.Height {
		return true
	}
	return l.mask[int(k.X)*int(l.Height)+int(k.Y)]
}

// ApplyMask writes the mask into every node of m and returns how many nodes
// ended up disabled.
func (l *Layout) ApplyMask(m *grid.Map) int {
	disabled := 0
	m.ForEachNode(grid.VisitorFunc(func(n *grid.Node) {
		n.Enabled = l.Enabled(n.Key())
		if !n.Enabled {
			disabled++
		}
	}))
	return disabled
}
