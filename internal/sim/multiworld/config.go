package multiworld

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"zonegrid.ai/internal/sim/tuning"
)

// Config names the worlds a deployment generates. Each world starts from the
// shared tuning.yaml and applies its own overrides.
type Config struct {
	DefaultWorldID string      `yaml:"default_world_id"`
	Worlds         []WorldSpec `yaml:"worlds"`
}

type WorldSpec struct {
	ID         string `yaml:"id"`
	SeedOffset int64  `yaml:"seed_offset"`

	// Zero keeps the shared tuning value.
	Length int `yaml:"length,omitempty"`
	Width  int `yaml:"width,omitempty"`

	UniqueChance *float64          `yaml:"unique_chance,omitempty"`
	Continent    *tuning.Continent `yaml:"continent,omitempty"`
	Growth       *tuning.Growth    `yaml:"growth,omitempty"`
}

var worldIDRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	cfg = Config{}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("worlds.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("worlds.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		DefaultWorldID: "world_1",
		Worlds:         []WorldSpec{{ID: "world_1"}},
	}
}

// Single returns a config holding just one world with no overrides.
func Single(id string) Config {
	cfg := Config{DefaultWorldID: id, Worlds: []WorldSpec{{ID: id}}}
	cfg.Normalize()
	return cfg
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	for i := range c.Worlds {
		c.Worlds[i].ID = strings.TrimSpace(c.Worlds[i].ID)
	}
	c.DefaultWorldID = strings.TrimSpace(c.DefaultWorldID)
	if c.DefaultWorldID == "" && len(c.Worlds) > 0 {
		c.DefaultWorldID = c.Worlds[0].ID
	}
}

func (c Config) Validate() error {
	c.Normalize()
	if len(c.Worlds) == 0 {
		return fmt.Errorf("worlds must not be empty")
	}
	seen := map[string]bool{}
	for _, w := range c.Worlds {
		if w.ID == "" {
			return fmt.Errorf("world id must not be empty")
		}
		// World ids become directory names under <data>/worlds.
		if !worldIDRe.MatchString(w.ID) {
			return fmt.Errorf("world id %q must match %s", w.ID, worldIDRe)
		}
		if seen[w.ID] {
			return fmt.Errorf("duplicate world id: %s", w.ID)
		}
		seen[w.ID] = true
		if w.Length < 0 || w.Width < 0 {
			return fmt.Errorf("world %s length/width must be >= 0", w.ID)
		}
	}
	if !seen[c.DefaultWorldID] {
		return fmt.Errorf("default_world_id %q not found in worlds", c.DefaultWorldID)
	}
	return nil
}

func (c Config) Spec(id string) (WorldSpec, bool) {
	for _, w := range c.Worlds {
		if w.ID == id {
			return w, true
		}
	}
	return WorldSpec{}, false
}

// Apply layers the world's overrides on top of the shared tuning.
func (w WorldSpec) Apply(t tuning.Tuning) tuning.Tuning {
	t.Seed += w.SeedOffset
	if w.Length > 0 {
		t.Length = w.Length
	}
	if w.Width > 0 {
		t.Width = w.Width
	}
	if w.UniqueChance != nil {
		t.UniqueChance = *w.UniqueChance
	}
	if w.Continent != nil {
		t.Continent = *w.Continent
	}
	if w.Growth != nil {
		t.Growth = *w.Growth
	}
	return t
}
