package world

const (
	tierSameType  = 1
	tierAdjacent  = 2
	tierExhausted = 3
)

type mandatoryStats struct {
	Placed  int
	PerTier [3]int
}

// assignMandatory places every mandatory variant of every zone type exactly once.
// Zone types are visited in catalog order so a fixed seed gives a fixed layout.
func assignMandatory(g *Grid, catalog []ZoneType, lib Library, rng RNG) (mandatoryStats, error) {
	var st mandatoryStats
	var cand []int
	seen := make([]bool, g.Size())

	for _, zt := range catalog {
		n, ok := lib.count(zt.ID)
		if !ok {
			continue
		}
		queue := make([]int, n)
		for i := range queue {
			queue[i] = i
		}
		for len(queue) > 0 {
			var tier int
			cand, tier = mandatoryCandidates(g, zt.ID, cand[:0], seen)
			if len(cand) == 0 {
				return st, &ConfigError{
					Phase: "mandatory",
					Zone:  zt.Name,
					Tier:  tierExhausted,
					Err:   ErrGridTooSmall,
				}
			}
			c := &g.cells[cand[rng.IntN(len(cand))]]

			qi := rng.IntN(len(queue))
			c.Zone = zt.ID
			c.Role = RoleMandatory
			c.Variant = queue[qi]
			queue = append(queue[:qi], queue[qi+1:]...)

			st.Placed++
			st.PerTier[tier-1]++
		}
	}
	return st, nil
}

// mandatoryCandidates collects raster indices for the first tier that yields any.
func mandatoryCandidates(g *Grid, zone ZoneID, dst []int, seen []bool) ([]int, int) {
	for i := range g.cells {
		c := &g.cells[i]
		if c.Zone == zone && c.Role == RoleUnset {
			dst = append(dst, i)
		}
	}
	if len(dst) > 0 {
		return dst, tierSameType
	}

	// No free cell of this type is left, so anchor on every cell of the type
	// and take a neighbor that does not already hold mandatory content.
	clear(seen)
	var nbuf []*Cell
	for i := range g.cells {
		c := &g.cells[i]
		if c.Zone != zone {
			continue
		}
		nbuf = g.Neighbors(nbuf[:0], c.Pos.Row, c.Pos.Col)
		for _, n := range nbuf {
			idx := g.Index(n.Pos.Row, n.Pos.Col)
			if seen[idx] || n.Role == RoleMandatory {
				continue
			}
			seen[idx] = true
			dst = append(dst, idx)
		}
	}
	if len(dst) > 0 {
		return dst, tierAdjacent
	}

	for i := range g.cells {
		switch g.cells[i].Role {
		case RoleUnset, RoleEmpty, RoleFiller:
			dst = append(dst, i)
		}
	}
	return dst, tierExhausted
}
