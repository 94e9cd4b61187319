package world

import (
	"strings"
	"testing"
)

func TestRenderText_Shape(t *testing.T) {
	w := &World{
		Length: 2, Width: 3,
		Zones: []Zone{
			{0, 0, "forest", RoleFiller, 0},
			{0, 1, "forest", RoleMandatory, 1},
			{0, 2, "desert", RoleEmpty, NoVariant},
			{1, 0, "desert", RoleUnique, 2},
			{1, 1, "desert", RoleFiller, NoVariant},
			{1, 2, "Forest", RoleFiller, 0},
		},
	}
	got := RenderText(w)
	want := "fF~\n*df\n"
	if got != want {
		t.Fatalf("render=%q want %q", got, want)
	}
	if strings.Count(got, "\n") != w.Length {
		t.Fatalf("rows=%d want %d", strings.Count(got, "\n"), w.Length)
	}
}

func TestRenderText_NonASCIIZoneNames(t *testing.T) {
	w := &World{
		Length: 1, Width: 3,
		Zones: []Zone{
			{0, 0, "Ödland", RoleFiller, NoVariant},
			{0, 1, "ödland", RoleMandatory, 0},
			{0, 2, "Équateur", RoleFiller, NoVariant},
		},
	}
	if got, want := RenderText(w), "öÖé\n"; got != want {
		t.Fatalf("render=%q want %q", got, want)
	}
}
