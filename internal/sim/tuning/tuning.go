package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"zonegrid.ai/internal/sim/world"
)

type Tuning struct {
	Length       int     `yaml:"length" json:"length"`
	Width        int     `yaml:"width" json:"width"`
	Seed         int64   `yaml:"seed" json:"seed"`
	UniqueChance float64 `yaml:"unique_chance" json:"unique_chance"`

	Continent Continent `yaml:"continent" json:"continent"`
	Growth    Growth    `yaml:"growth" json:"growth"`
}

type Continent struct {
	Iterations int     `yaml:"iterations" json:"iterations"`
	Strength   float64 `yaml:"strength" json:"strength"`
}

type Growth struct {
	Threshold float64 `yaml:"threshold" json:"threshold"`
	Increment float64 `yaml:"increment" json:"increment"`
	Jitter    float64 `yaml:"jitter" json:"jitter"`
}

func Defaults() Tuning {
	p := world.DefaultParams()
	return Tuning{
		Length:       10,
		Width:        10,
		Seed:         1337,
		UniqueChance: p.UniqueChance,
		Continent: Continent{
			Iterations: p.ContinentIterations,
			Strength:   p.ContinentStrength,
		},
		Growth: Growth{
			Threshold: p.GrowthThreshold,
			Increment: p.GrowthIncrement,
			Jitter:    p.GrowthJitter,
		},
	}
}

// Load reads path over Defaults(). Fields missing from the file keep their defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.Length <= 0 || t.Width <= 0 {
		return fmt.Errorf("length/width must be > 0 (got %dx%d)", t.Length, t.Width)
	}
	if t.UniqueChance < 0 || t.UniqueChance > 1 {
		return fmt.Errorf("unique_chance must be in [0,1]")
	}
	if t.Continent.Iterations < 0 {
		return fmt.Errorf("continent.iterations must be >= 0")
	}
	if t.Continent.Strength < 0 || t.Continent.Strength > 1 {
		return fmt.Errorf("continent.strength must be in [0,1]")
	}
	if t.Growth.Threshold <= 0 || t.Growth.Increment <= 0 {
		return fmt.Errorf("growth.threshold and growth.increment must be > 0")
	}
	if t.Growth.Jitter < 0 || t.Growth.Jitter >= 1 {
		return fmt.Errorf("growth.jitter must be in [0,1)")
	}
	return nil
}

func (t Tuning) Params() world.Params {
	return world.Params{
		UniqueChance:        t.UniqueChance,
		ContinentIterations: t.Continent.Iterations,
		ContinentStrength:   t.Continent.Strength,
		GrowthThreshold:     t.Growth.Threshold,
		GrowthIncrement:     t.Growth.Increment,
		GrowthJitter:        t.Growth.Jitter,
	}
}
