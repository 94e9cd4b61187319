package world

// ringCells returns the perimeter of the rectangle inset by ring from every
// edge, in raster order. It returns nil once the inset rectangle is empty.
func ringCells(g *Grid, ring int) []*Cell {
	top, bottom := ring, g.length-1-ring
	left, right := ring, g.width-1-ring
	if top > bottom || left > right {
		return nil
	}
	var out []*Cell
	for r := top; r <= bottom; r++ {
		for c := left; c <= right; c++ {
			if r == top || r == bottom || c == left || c == right {
				out = append(out, g.At(r, c))
			}
		}
	}
	return out
}

// applyContinentFilter erodes the outer rings of the grid: each ring cell
// becomes RoleEmpty with probability strength. Zone types are kept.
func applyContinentFilter(g *Grid, iterations int, strength float64, rng RNG) int {
	emptied := 0
	for ring := 0; ring < iterations; ring++ {
		for _, c := range ringCells(g, ring) {
			if strength >= rng.Float64() {
				c.Role = RoleEmpty
				emptied++
			}
		}
	}
	return emptied
}
