package world

import (
	"errors"
	"testing"
)

func TestSeedZones_OneCellPerType(t *testing.T) {
	g := NewGrid(6, 7)
	cat := testCatalog("A", "B", "C", "D")
	if err := seedZones(g, cat, NewRNG(5)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	counts := map[ZoneID]int{}
	for _, c := range g.Cells() {
		if c.Assigned() {
			counts[c.Zone]++
		}
	}
	if len(counts) != 4 {
		t.Fatalf("seeded types=%v want 4", counts)
	}
	for z, n := range counts {
		if n != 1 {
			t.Fatalf("zone %d seeded %d times", z, n)
		}
	}
}

func TestSeedZones_FillsEveryCellWhenCatalogMatchesGrid(t *testing.T) {
	g := NewGrid(2, 2)
	if err := seedZones(g, testCatalog("A", "B", "C", "D"), NewRNG(1)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	for _, c := range g.Cells() {
		if !c.Assigned() {
			t.Fatalf("cell %+v left unset", c.Pos)
		}
	}
}

func TestSeedZones_CatalogTooLargeLeavesGridUntouched(t *testing.T) {
	g := NewGrid(2, 2)
	err := seedZones(g, testCatalog("A", "B", "C", "D", "E"), NewRNG(1))
	if !errors.Is(err, ErrCatalogTooLarge) {
		t.Fatalf("err=%v want ErrCatalogTooLarge", err)
	}
	for _, c := range g.Cells() {
		if c.Assigned() {
			t.Fatalf("cell %+v mutated before error", c.Pos)
		}
	}
}

func TestGrowZones_RejectsEmptyCatalog(t *testing.T) {
	_, err := growZones(NewGrid(3, 3), nil, DefaultParams(), NewRNG(1))
	if !errors.Is(err, ErrNoZoneTypes) {
		t.Fatalf("err=%v want ErrNoZoneTypes", err)
	}
}

func TestGrowZones_CoversGridAndKeepsSeeds(t *testing.T) {
	for _, tc := range []struct {
		name string
		cat  []ZoneType
		p    Params
	}{
		{"defaults", testCatalog("A", "B", "C"), DefaultParams()},
		{"threshold_and_priority", []ZoneType{
			{ID: 1, Name: "A", Priority: 3},
			{ID: 2, Name: "B", Priority: 1},
			{ID: 3, Name: "C", Priority: 0.5},
		}, Params{UniqueChance: 0.75, GrowthThreshold: 3, GrowthIncrement: 1, GrowthJitter: 0.4}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGrid(15, 11)
			rng := NewRNG(99)
			if err := seedZones(g, tc.cat, rng); err != nil {
				t.Fatalf("seed: %v", err)
			}
			seeds := map[int]ZoneID{}
			for i, c := range g.Cells() {
				if c.Assigned() {
					seeds[i] = c.Zone
				}
			}
			passes, err := growZones(g, tc.cat, tc.p, rng)
			if err != nil {
				t.Fatalf("grow: %v", err)
			}
			if passes <= 0 {
				t.Fatalf("passes=%d want > 0", passes)
			}
			for i, c := range g.Cells() {
				if !c.Assigned() {
					t.Fatalf("cell %+v unset after growth", c.Pos)
				}
				if c.pressure != nil {
					t.Fatalf("cell %+v kept pressure after commit", c.Pos)
				}
				if z, ok := seeds[i]; ok && c.Zone != z {
					t.Fatalf("seed cell %+v changed zone %d -> %d", c.Pos, z, c.Zone)
				}
			}
		})
	}
}

func TestGrowZones_OneRingPerPass(t *testing.T) {
	g := NewGrid(9, 9)
	cat := testCatalog("A")
	g.assign(g.At(4, 4), 1, 0)
	passes, err := growZones(g, cat, DefaultParams(), NewRNG(1))
	if err != nil {
		t.Fatalf("grow: %v", err)
	}
	// A single center seed with threshold == increment reaches the corners in 4 rings.
	if passes != 4 {
		t.Fatalf("passes=%d want 4", passes)
	}
	for _, c := range g.Cells() {
		want := max(abs(c.Pos.Row-4), abs(c.Pos.Col-4))
		if c.setPass != want {
			t.Fatalf("cell %+v set on pass %d want %d", c.Pos, c.setPass, want)
		}
	}
}

func TestAssign_RejectsSecondWrite(t *testing.T) {
	g := NewGrid(1, 1)
	c := g.At(0, 0)
	if !g.assign(c, 1, 0) {
		t.Fatalf("first assign rejected")
	}
	if g.assign(c, 2, 1) {
		t.Fatalf("second assign accepted")
	}
	if c.Zone != 1 {
		t.Fatalf("zone=%d want 1", c.Zone)
	}
}

func TestNeighbors_SkipsOutOfBounds(t *testing.T) {
	g := NewGrid(3, 4)
	if n := len(g.Neighbors(nil, 0, 0)); n != 3 {
		t.Fatalf("corner neighbors=%d want 3", n)
	}
	if n := len(g.Neighbors(nil, 0, 1)); n != 5 {
		t.Fatalf("edge neighbors=%d want 5", n)
	}
	if n := len(g.Neighbors(nil, 1, 1)); n != 8 {
		t.Fatalf("inner neighbors=%d want 8", n)
	}
	if g.At(-1, 0) != nil || g.At(0, 4) != nil {
		t.Fatalf("At should return nil out of range")
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
