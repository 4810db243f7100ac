package grid

import (
	"fmt"
	"strings"
)

// Alignment names the anchor of the key rectangle that lands on the origin
// world position.
type Alignment uint8

const (
	BottomLeft Alignment = iota
	BottomCenter
	BottomRight
	MiddleLeft
	MiddleCenter
	MiddleRight
	TopLeft
	TopCenter
	TopRight
)

var alignmentNames = [...]string{
	BottomLeft:   "bottom_left",
	BottomCenter: "bottom_center",
	BottomRight:  "bottom_right",
	MiddleLeft:   "middle_left",
	MiddleCenter: "middle_center",
	MiddleRight:  "middle_right",
	TopLeft:      "top_left",
	TopCenter:    "top_center",
	TopRight:     "top_right",
}

// axisAnchor selects 0, half or full terminal along one axis.
type axisAnchor uint8

const (
	anchorStart axisAnchor = iota
	anchorMiddle
	anchorEnd
)

func (a Alignment) Valid() bool { return int(a) < len(alignmentNames) }

func (a Alignment) String() string {
	if !a.Valid() {
		return fmt.Sprintf("alignment(%d)", uint8(a))
	}
	return alignmentNames[a]
}

// anchors returns the (x, y) axis anchors. Rows of the enum are bottom,
// middle, top; columns are left, center, right.
func (a Alignment) anchors() (axisAnchor, axisAnchor) {
	return axisAnchor(a % 3), axisAnchor(a / 3)
}

func (a Alignment) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid alignment %d", uint8(a))
	}
	return []byte(a.String()), nil
}

func (a *Alignment) UnmarshalText(text []byte) error {
	v, err := ParseAlignment(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ParseAlignment accepts snake_case, kebab-case or CamelCase names.
func ParseAlignment(s string) (Alignment, error) {
	norm := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	for i, name := range alignmentNames {
		if strings.ReplaceAll(name, "_", "") == norm {
			return Alignment(i), nil
		}
	}
	return 0, fmt.Errorf("unknown alignment %q", s)
}

func anchorValue(terminal int32, a axisAnchor) int32 {
	switch a {
	case anchorMiddle:
		return floorDiv(terminal, 2)
	case anchorEnd:
		return terminal
	}
	return 0
}

// CalculateOriginKey returns the key that maps onto the alignment anchor.
// Each axis picks one of 0, floor(terminal/2) or terminal.
func CalculateOriginKey(terminal Key, alignment Alignment) Key {
	ax, ay := alignment.anchors()
	return Key{
		X: anchorValue(terminal.X, ax),
		Y: anchorValue(terminal.Y, ay),
	}
}
