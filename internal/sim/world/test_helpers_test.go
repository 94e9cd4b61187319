package world

import (
	"context"
	"testing"
)

func testCatalog(names ...string) []ZoneType {
	out := make([]ZoneType, 0, len(names))
	for i, n := range names {
		out = append(out, ZoneType{ID: ZoneID(i + 1), Name: n, Priority: 1})
	}
	return out
}

func flatParams() Params {
	p := DefaultParams()
	p.ContinentIterations = 0
	return p
}

func mustGenerate(t *testing.T, req Request) *World {
	t.Helper()
	w, err := Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return w
}

// checkCoverage fails unless every zone is typed and has a terminal role.
func checkCoverage(t *testing.T, w *World) {
	t.Helper()
	if len(w.Zones) != w.Length*w.Width {
		t.Fatalf("zones=%d want %d", len(w.Zones), w.Length*w.Width)
	}
	for _, z := range w.Zones {
		if z.ZoneType == "" {
			t.Fatalf("zone %d,%d has no zone type", z.Row, z.Col)
		}
		if z.Role == RoleUnset {
			t.Fatalf("zone %d,%d has no role", z.Row, z.Col)
		}
	}
}

// ringOf is the distance of (row, col) from the nearest grid edge.
func ringOf(g *Grid, row, col int) int {
	return min(row, col, g.length-1-row, g.width-1-col)
}
