package world

import (
	"errors"
	"testing"
)

func fillZone(g *Grid, z ZoneID) {
	for i := range g.cells {
		g.cells[i].Zone = z
	}
}

func TestAssignMandatory_PrefersSameType(t *testing.T) {
	g := NewGrid(4, 4)
	fillZone(g, 1)
	for r := 0; r < 4; r++ {
		g.At(r, 3).Zone = 2
	}
	st, err := assignMandatory(g, testCatalog("A", "B"), Library{2: 3}, NewRNG(11))
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if st.Placed != 3 || st.PerTier[0] != 3 {
		t.Fatalf("stats=%+v want 3 same-type placements", st)
	}
	for _, c := range g.Cells() {
		if c.Role == RoleMandatory && c.Pos.Col != 3 {
			t.Fatalf("mandatory B placed outside B column at %+v", c.Pos)
		}
	}
}

func TestAssignMandatory_FallsBackToAdjacent(t *testing.T) {
	g := NewGrid(3, 3)
	fillZone(g, 1)
	center := g.At(1, 1)
	center.Zone = 2
	center.Role = RoleEmpty

	st, err := assignMandatory(g, testCatalog("A", "B"), Library{2: 2}, NewRNG(4))
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if st.PerTier[1] == 0 {
		t.Fatalf("stats=%+v want adjacency-tier placements", st)
	}
	variants := map[int]bool{}
	for _, c := range g.Cells() {
		if c.Role != RoleMandatory {
			continue
		}
		if c.Zone != 2 {
			t.Fatalf("mandatory cell %+v zone=%d want 2", c.Pos, c.Zone)
		}
		variants[c.Variant] = true
	}
	if len(variants) != 2 {
		t.Fatalf("variants=%v want 2 distinct", variants)
	}
}

func TestAssignMandatory_ExhaustionTierFailsLoudly(t *testing.T) {
	g := NewGrid(1, 2)
	for i := range g.cells {
		g.cells[i].Zone = 1
		g.cells[i].Role = RoleMandatory
		g.cells[i].Variant = i
	}
	_, err := assignMandatory(g, testCatalog("A", "B"), Library{2: 1}, NewRNG(1))
	if !errors.Is(err, ErrGridTooSmall) {
		t.Fatalf("err=%v want ErrGridTooSmall", err)
	}
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Zone != "B" || ce.Tier != tierExhausted {
		t.Fatalf("config error=%+v want zone B tier 3", ce)
	}
}

func TestAssignMandatory_ExhaustionTierUsesFreeCells(t *testing.T) {
	g := NewGrid(1, 3)
	g.cells[0].Zone, g.cells[0].Role = 1, RoleMandatory
	g.cells[1].Zone, g.cells[1].Role = 1, RoleMandatory
	g.cells[2].Zone, g.cells[2].Role = 1, RoleFiller

	st, err := assignMandatory(g, testCatalog("A", "B"), Library{2: 1}, NewRNG(1))
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if st.PerTier[2] != 1 {
		t.Fatalf("stats=%+v want one exhaustion-tier placement", st)
	}
	if c := g.At(0, 2); c.Zone != 2 || c.Role != RoleMandatory || c.Variant != 0 {
		t.Fatalf("cell=%+v want zone 2 mandatory variant 0", c)
	}
}
