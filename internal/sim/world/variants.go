package world

type variantStats struct {
	Unique int
	Filler int
	Bare   int // filler cells without a variant
}

// resolveVariants gives every remaining RoleUnset cell a terminal role. Unique
// variants are drawn without replacement per zone type; filler variants repeat.
func resolveVariants(g *Grid, catalog []ZoneType, filler, unique Library, uniqueChance float64, rng RNG) variantStats {
	var st variantStats

	pools := make(map[ZoneID][]int, len(unique))
	for _, zt := range catalog {
		n, ok := unique.count(zt.ID)
		if !ok {
			continue
		}
		pool := make([]int, n)
		for i := range pool {
			pool[i] = i
		}
		pools[zt.ID] = pool
	}

	for i := range g.cells {
		c := &g.cells[i]
		if c.Role != RoleUnset {
			continue
		}
		if pool := pools[c.Zone]; len(pool) > 0 && rng.Float64() < uniqueChance {
			pi := rng.IntN(len(pool))
			c.Role = RoleUnique
			c.Variant = pool[pi]
			pools[c.Zone] = append(pool[:pi], pool[pi+1:]...)
			st.Unique++
			continue
		}
		c.Role = RoleFiller
		if n, ok := filler.count(c.Zone); ok {
			c.Variant = rng.IntN(n)
		} else {
			c.Variant = NoVariant
			st.Bare++
		}
		st.Filler++
	}
	return st
}
