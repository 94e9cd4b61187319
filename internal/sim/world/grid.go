package world

import "fmt"

// ZoneID is a palette index into the zone catalog. Zero is reserved for
// "not yet assigned"; catalog entries start at 1.
type ZoneID uint16

const Unassigned ZoneID = 0

// NoVariant marks a zone without a content variant (empty or undecorated).
const NoVariant = -1

type Role uint8

const (
	RoleUnset Role = iota
	RoleMandatory
	RoleUnique
	RoleFiller
	RoleEmpty
)

func (r Role) String() string {
	switch r {
	case RoleUnset:
		return "UNSET"
	case RoleMandatory:
		return "MANDATORY"
	case RoleUnique:
		return "UNIQUE"
	case RoleFiller:
		return "FILLER"
	case RoleEmpty:
		return "EMPTY"
	default:
		return "UNKNOWN"
	}
}

// ParseRole is the inverse of Role.String.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "UNSET":
		return RoleUnset, true
	case "MANDATORY":
		return RoleMandatory, true
	case "UNIQUE":
		return RoleUnique, true
	case "FILLER":
		return RoleFiller, true
	case "EMPTY":
		return RoleEmpty, true
	}
	return RoleUnset, false
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	v, ok := ParseRole(string(b))
	if !ok {
		return fmt.Errorf("unknown role %q", b)
	}
	*r = v
	return nil
}

type Pos struct {
	Row int
	Col int
}

type Cell struct {
	Pos     Pos
	Zone    ZoneID
	Role    Role
	Variant int

	// Growth bookkeeping; not published.
	pressure map[ZoneID]float64
	justSet  bool
	setPass  int
}

func (c *Cell) Assigned() bool { return c.Zone != Unassigned }

// neighborOffsets are the 8-connected offsets as (dRow, dCol).
var neighborOffsets = [8][2]int{
	{0, 1}, {0, -1}, {1, 0}, {1, 1}, {1, -1}, {-1, 0}, {-1, 1}, {-1, -1},
}

// Grid is exclusively owned by one generation run.
type Grid struct {
	length int
	width  int
	cells  []Cell
}

func NewGrid(length, width int) *Grid {
	g := &Grid{
		length: length,
		width:  width,
		cells:  make([]Cell, length*width),
	}
	for r := 0; r < length; r++ {
		for c := 0; c < width; c++ {
			g.cells[r*width+c] = Cell{Pos: Pos{Row: r, Col: c}, Variant: NoVariant}
		}
	}
	return g
}

func (g *Grid) Length() int { return g.length }
func (g *Grid) Width() int  { return g.width }
func (g *Grid) Size() int   { return len(g.cells) }

func (g *Grid) InBounds(row, col int) bool {
	return row >= 0 && row < g.length && col >= 0 && col < g.width
}

// At returns nil for out-of-range positions.
func (g *Grid) At(row, col int) *Cell {
	if !g.InBounds(row, col) {
		return nil
	}
	return &g.cells[row*g.width+col]
}

// Index returns the raster index of the cell at (row, col).
func (g *Grid) Index(row, col int) int { return row*g.width + col }

// Neighbors appends the in-bounds 8-connected neighbors of (row, col) to dst.
func (g *Grid) Neighbors(dst []*Cell, row, col int) []*Cell {
	for _, off := range neighborOffsets {
		if n := g.At(row+off[0], col+off[1]); n != nil {
			dst = append(dst, n)
		}
	}
	return dst
}

// Cells returns the backing slice in raster order.
func (g *Grid) Cells() []Cell { return g.cells }

// assign sets the zone type of an unset cell. It reports false and leaves the
// cell untouched when the cell already carries a zone type.
func (g *Grid) assign(c *Cell, zone ZoneID, pass int) bool {
	if c.Assigned() {
		return false
	}
	c.Zone = zone
	c.justSet = true
	c.setPass = pass
	c.pressure = nil
	return true
}
