package world

import "fmt"

// seedZones places one cell of every catalog zone type at a random unset position.
func seedZones(g *Grid, catalog []ZoneType, rng RNG) error {
	if len(catalog) == 0 {
		return configErr("seed", ErrNoZoneTypes, "need at least one zone type")
	}
	if len(catalog) > g.Size() {
		return configErr("seed", ErrCatalogTooLarge, "%d zone types for %d cells", len(catalog), g.Size())
	}
	for _, zt := range catalog {
		for {
			c := g.At(rng.IntN(g.length), rng.IntN(g.width))
			if g.assign(c, zt.ID, 0) {
				c.justSet = false
				break
			}
		}
	}
	return nil
}

// growZones expands every assigned zone into its unset neighbors, one ring per
// pass, until every cell carries a zone type. It returns the number of passes.
func growZones(g *Grid, catalog []ZoneType, p Params, rng RNG) (int, error) {
	if len(catalog) == 0 {
		return 0, configErr("grow", ErrNoZoneTypes, "need at least one zone type")
	}
	priority := make(map[ZoneID]float64, len(catalog))
	for _, zt := range catalog {
		priority[zt.ID] = zt.Priority
	}

	finished := 0
	for i := range g.cells {
		if g.cells[i].Assigned() {
			finished++
		}
	}
	if finished == 0 {
		return 0, configErr("grow", ErrNoZoneTypes, "grid has no seeded cells")
	}

	var nbuf []*Cell
	pass := 0
	for finished < g.Size() {
		pass++
		touched := false
		for i := range g.cells {
			src := &g.cells[i]
			// Cells committed during this pass start growing on the next one.
			if !src.Assigned() || src.setPass >= pass {
				continue
			}
			nbuf = g.Neighbors(nbuf[:0], src.Pos.Row, src.Pos.Col)
			for _, n := range nbuf {
				if n.justSet {
					n.justSet = false
					continue
				}
				if n.Assigned() {
					continue
				}
				touched = true
				if addPressure(n, src.Zone, priority[src.Zone], p, rng) {
					g.assign(n, src.Zone, pass)
					finished++
				}
			}
		}
		if !touched {
			return pass, fmt.Errorf("grow: no progress on pass %d (%d/%d cells set)", pass, finished, g.Size())
		}
		for i := range g.cells {
			g.cells[i].justSet = false
		}
	}
	return pass, nil
}

// addPressure adds one adjacency event of conversion pressure toward zone and
// reports whether the cell should commit to it.
func addPressure(c *Cell, zone ZoneID, priority float64, p Params, rng RNG) bool {
	amt := p.GrowthIncrement * priority
	if p.GrowthJitter > 0 {
		amt *= 1 - p.GrowthJitter*rng.Float64()
	}
	if c.pressure == nil {
		c.pressure = make(map[ZoneID]float64, 2)
	}
	c.pressure[zone] += amt
	return c.pressure[zone] >= p.GrowthThreshold
}
