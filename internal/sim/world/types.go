package world

import (
	"fmt"
	"log"
)

// ZoneType is supplied by the catalog and never mutated here.
type ZoneType struct {
	ID       ZoneID
	Name     string
	Priority float64
}

// Library maps a zone type to the number of content variants it declares.
// Descriptor payloads stay with the caller; only the count matters here.
type Library map[ZoneID]int

func (l Library) count(z ZoneID) (int, bool) {
	n, ok := l[z]
	if !ok || n <= 0 {
		return 0, false
	}
	return n, true
}

type Params struct {
	UniqueChance float64

	ContinentIterations int
	ContinentStrength   float64

	// Pressure needed for a cell to commit to a zone type, and the pressure
	// added per adjacency event (scaled by the source type's priority).
	GrowthThreshold float64
	GrowthIncrement float64
	// GrowthJitter in [0,1) randomly shrinks each increment by up to this fraction.
	GrowthJitter float64
}

// MaxPassesPerRing bounds the growth passes a single adjacency may need to
// commit a cell. Slower configurations are rejected before growth starts.
const MaxPassesPerRing = 64

// passesPerRing is the worst-case number of passes for one source of the given
// priority to commit a neighbour.
func (p Params) passesPerRing(priority float64) float64 {
	return p.GrowthThreshold / (p.GrowthIncrement * priority * (1 - p.GrowthJitter))
}

func DefaultParams() Params {
	return Params{
		UniqueChance:        0.75,
		ContinentIterations: 1,
		ContinentStrength:   0.5,
		GrowthThreshold:     1.0,
		GrowthIncrement:     1.0,
		GrowthJitter:        0,
	}
}

func (p Params) validate() error {
	if p.UniqueChance < 0 || p.UniqueChance > 1 {
		return fmt.Errorf("unique_chance %v not in [0,1]", p.UniqueChance)
	}
	if p.ContinentIterations < 0 {
		return fmt.Errorf("continent iterations %d < 0", p.ContinentIterations)
	}
	if p.ContinentStrength < 0 || p.ContinentStrength > 1 {
		return fmt.Errorf("continent strength %v not in [0,1]", p.ContinentStrength)
	}
	if p.GrowthThreshold <= 0 {
		return fmt.Errorf("growth threshold %v must be > 0", p.GrowthThreshold)
	}
	if p.GrowthIncrement <= 0 {
		return fmt.Errorf("growth increment %v must be > 0", p.GrowthIncrement)
	}
	if p.GrowthJitter < 0 || p.GrowthJitter >= 1 {
		return fmt.Errorf("growth jitter %v not in [0,1)", p.GrowthJitter)
	}
	return nil
}

type Request struct {
	ID     string
	Seed   int64
	Length int
	Width  int

	// Catalog order drives seeding and mandatory placement order.
	Catalog []ZoneType

	Mandatory Library
	Filler    Library
	Unique    Library

	Params Params

	// Optional. RNG defaults to NewRNG(Seed).
	RNG     RNG
	Logger  *log.Logger
	Metrics *Metrics
	Events  EventSink
}

// EventSink receives one entry per completed phase.
type EventSink interface {
	WriteGen(e GenLogEntry) error
}

type GenLogEntry struct {
	WorldID string         `json:"world_id"`
	Phase   string         `json:"phase"`
	Fields  map[string]int `json:"fields,omitempty"`
}
