package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_RepoTuning(t *testing.T) {
	tune, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tune.Length != 16 || tune.Width != 16 {
		t.Fatalf("dims=%dx%d want 16x16", tune.Length, tune.Width)
	}
	if tune.Growth.Threshold != 2 || tune.Growth.Jitter != 0.25 {
		t.Fatalf("growth=%+v", tune.Growth)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("length: 4\ncontinent:\n  strength: 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tune, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := Defaults()
	if tune.Length != 4 || tune.Width != def.Width {
		t.Fatalf("dims=%dx%d", tune.Length, tune.Width)
	}
	if tune.Continent.Strength != 1 || tune.Continent.Iterations != def.Continent.Iterations {
		t.Fatalf("continent=%+v", tune.Continent)
	}
	if tune.UniqueChance != 0.75 {
		t.Fatalf("unique_chance=%v want 0.75", tune.UniqueChance)
	}
	if got := tune.Params(); got.GrowthThreshold != def.Growth.Threshold {
		t.Fatalf("params=%+v", got)
	}
}

func TestValidate(t *testing.T) {
	cases := []func(*Tuning){
		func(t *Tuning) { t.Length = 0 },
		func(t *Tuning) { t.UniqueChance = 1.5 },
		func(t *Tuning) { t.Continent.Iterations = -1 },
		func(t *Tuning) { t.Continent.Strength = -0.1 },
		func(t *Tuning) { t.Growth.Increment = 0 },
		func(t *Tuning) { t.Growth.Jitter = 1 },
	}
	for i, mut := range cases {
		tune := Defaults()
		mut(&tune)
		if err := tune.Validate(); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}
