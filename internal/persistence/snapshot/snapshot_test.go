package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"zonegrid.ai/internal/sim/world"
)

func testWorld(t *testing.T, seed int64) *world.World {
	t.Helper()
	w, err := world.Generate(context.Background(), world.Request{
		ID:     "w_test",
		Seed:   seed,
		Length: 8,
		Width:  7,
		Catalog: []world.ZoneType{
			{ID: 1, Name: "PLAINS", Priority: 1},
			{ID: 2, Name: "FOREST", Priority: 0.8},
			{ID: 3, Name: "DESERT", Priority: 0.6},
		},
		Mandatory: world.Library{1: 2, 2: 1},
		Filler:    world.Library{1: 3, 3: 2},
		Unique:    world.Library{2: 2},
		Params:    world.DefaultParams(),
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return w
}

func TestSnapshotRoundTrip(t *testing.T) {
	w := testWorld(t, 42)
	p := world.DefaultParams()
	path := Path(t.TempDir(), 1)

	if err := WriteSnapshot(path, FromWorld(w, 1, p, "cat")); err != nil {
		t.Fatalf("write: %v", err)
	}
	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if h.WorldID != "w_test" || h.Generation != 1 || h.Digest != w.Digest {
		t.Fatalf("header=%+v", h)
	}

	snap, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if snap.Params() != p {
		t.Fatalf("params=%+v want %+v", snap.Params(), p)
	}
	if snap.CatalogDigest != "cat" {
		t.Fatalf("catalog digest=%q", snap.CatalogDigest)
	}
	got, err := snap.World()
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	if got.Digest != w.Digest {
		t.Fatalf("digest=%s want %s", got.Digest, w.Digest)
	}
	for i := range w.Zones {
		if got.Zones[i] != w.Zones[i] {
			t.Fatalf("zone %d: got %+v want %+v", i, got.Zones[i], w.Zones[i])
		}
	}
	if got.Stats.GrowthPasses != w.Stats.GrowthPasses {
		t.Fatalf("stats not carried")
	}
}

func TestSnapshotWorldDetectsTamper(t *testing.T) {
	w := testWorld(t, 7)
	snap := FromWorld(w, 1, world.DefaultParams(), "")
	snap.Seed++
	if _, err := snap.World(); err == nil {
		t.Fatalf("expected digest mismatch")
	}

	snap = FromWorld(w, 1, world.DefaultParams(), "")
	snap.Variants = snap.Variants[:1]
	if _, err := snap.World(); err == nil {
		t.Fatalf("expected variants length error")
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if p, gen := Latest(dir); p != "" || gen != 0 {
		t.Fatalf("empty dir: %q %d", p, gen)
	}
	w := testWorld(t, 5)
	for _, gen := range []int{1, 3, 2} {
		if err := WriteSnapshot(Path(dir, gen), FromWorld(w, gen, world.DefaultParams(), "")); err != nil {
			t.Fatalf("write gen %d: %v", gen, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "snapshots", "notes.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	p, gen := Latest(dir)
	if gen != 3 || p != Path(dir, 3) {
		t.Fatalf("latest=%q gen=%d", p, gen)
	}
}

func TestLatest_SkipsTornWrites(t *testing.T) {
	dir := t.TempDir()
	w := testWorld(t, 9)
	live := Path(dir, 1)
	if err := WriteSnapshot(live, FromWorld(w, 1, world.DefaultParams(), "")); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(live)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		path string
		data []byte
	}{
		{"truncated next generation", Path(dir, 2), b[:len(b)/2]},
		{"leftover temp file", Path(dir, 3) + ".tmp", b},
		{"empty file", Path(dir, 4), nil},
	}
	for _, tc := range cases {
		if err := os.WriteFile(tc.path, tc.data, 0o644); err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		p, gen := Latest(dir)
		if gen != 1 || p != live {
			t.Fatalf("%s: latest=%q gen=%d, want the live generation", tc.name, p, gen)
		}
	}
}

func TestWriteSnapshot_ReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := Path(dir, 1)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("torn"), 0o644); err != nil {
		t.Fatal(err)
	}
	w := testWorld(t, 11)
	if err := WriteSnapshot(path, FromWorld(w, 1, world.DefaultParams(), "")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
	snap, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if snap.Header.Digest != w.Digest {
		t.Fatalf("digest=%s want %s", snap.Header.Digest, w.Digest)
	}
}
