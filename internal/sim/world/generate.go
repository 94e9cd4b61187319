package world

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Zone is one published cell.
type Zone struct {
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	ZoneType string `json:"zone_type"`
	Role     Role   `json:"role"`
	Variant  int    `json:"variant"`
}

// HasVariant reports whether the zone carries a content variant index.
func (z Zone) HasVariant() bool { return z.Variant != NoVariant }

// World is the published result of a generation run. It is never mutated;
// regeneration produces a new World.
type World struct {
	ID     string `json:"world_id"`
	Seed   int64  `json:"seed"`
	Length int    `json:"length"`
	Width  int    `json:"width"`

	// Palette[i] names ZoneID i+1.
	Palette []string `json:"palette"`
	Zones   []Zone   `json:"zones"`

	Digest string `json:"digest"`
	Stats  Stats  `json:"stats"`
}

// ZoneAt returns the zone at (row, col); ok is false when out of range.
func (w *World) ZoneAt(row, col int) (Zone, bool) {
	if row < 0 || row >= w.Length || col < 0 || col >= w.Width {
		return Zone{}, false
	}
	return w.Zones[row*w.Width+col], true
}

// Generate runs the full pipeline: seed, grow, shape, place mandatory
// content, resolve variants. Cancellation is honored between phases only.
func Generate(ctx context.Context, req Request) (*World, error) {
	w, err := generate(ctx, req)
	var st Stats
	if w != nil {
		st = w.Stats
	}
	req.Metrics.observeRun(err, st)
	if err != nil {
		logf(req.Logger, "generate %s failed: %v", req.ID, err)
		return nil, err
	}
	logf(req.Logger, "generated %s %dx%d seed=%d digest=%s", w.ID, w.Length, w.Width, w.Seed, w.Digest[:12])
	return w, nil
}

func generate(ctx context.Context, req Request) (*World, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	rng := req.RNG
	if rng == nil {
		rng = NewRNG(req.Seed)
	}
	p := req.Params
	g := NewGrid(req.Length, req.Width)
	var st Stats

	phase := func(name string, fields map[string]int, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		t0 := time.Now()
		if err := fn(); err != nil {
			return err
		}
		req.Metrics.observePhase(name, t0)
		if req.Events != nil {
			if err := req.Events.WriteGen(GenLogEntry{WorldID: req.ID, Phase: name, Fields: fields}); err != nil {
				logf(req.Logger, "gen log: %v", err)
			}
		}
		return nil
	}

	if err := phase("seed", map[string]int{"zone_types": len(req.Catalog)}, func() error {
		return seedZones(g, req.Catalog, rng)
	}); err != nil {
		return nil, err
	}

	growFields := map[string]int{}
	if err := phase("grow", growFields, func() error {
		n, err := growZones(g, req.Catalog, p, rng)
		st.GrowthPasses = n
		growFields["passes"] = n
		return err
	}); err != nil {
		return nil, err
	}
	logf(req.Logger, "grow: %d cells covered in %d passes", g.Size(), st.GrowthPasses)

	shapeFields := map[string]int{"iterations": p.ContinentIterations}
	if err := phase("shape", shapeFields, func() error {
		st.Eroded = applyContinentFilter(g, p.ContinentIterations, p.ContinentStrength, rng)
		shapeFields["eroded"] = st.Eroded
		return nil
	}); err != nil {
		return nil, err
	}

	mandFields := map[string]int{}
	if err := phase("mandatory", mandFields, func() error {
		ms, err := assignMandatory(g, req.Catalog, req.Mandatory, rng)
		st.MandatoryPerTier = ms.PerTier
		mandFields["placed"] = ms.Placed
		mandFields["tier_adjacent"] = ms.PerTier[1]
		mandFields["tier_exhausted"] = ms.PerTier[2]
		return err
	}); err != nil {
		return nil, err
	}
	if n := st.MandatoryPerTier[2]; n > 0 {
		logf(req.Logger, "mandatory: %d placements fell back to any free cell", n)
	}

	resolveFields := map[string]int{}
	if err := phase("resolve", resolveFields, func() error {
		vs := resolveVariants(g, req.Catalog, req.Filler, req.Unique, p.UniqueChance, rng)
		st.BareFiller = vs.Bare
		resolveFields["unique"] = vs.Unique
		resolveFields["filler"] = vs.Filler
		return nil
	}); err != nil {
		return nil, err
	}

	w := flatten(req, g)
	st.Roles, st.Zones = countZones(w.Zones)
	w.Stats = st
	w.Digest = Digest(w)
	return w, nil
}

func validateRequest(req Request) error {
	if req.Length <= 0 || req.Width <= 0 {
		return configErr("validate", ErrInvalidParams, "grid %dx%d must be positive", req.Length, req.Width)
	}
	if err := req.Params.validate(); err != nil {
		return configErr("validate", ErrInvalidParams, "%v", err)
	}
	if len(req.Catalog) == 0 {
		return configErr("validate", ErrNoZoneTypes, "need at least one zone type")
	}
	size := req.Length * req.Width
	if len(req.Catalog) > size {
		return configErr("validate", ErrCatalogTooLarge, "%d zone types for %d cells", len(req.Catalog), size)
	}
	known := make(map[ZoneID]bool, len(req.Catalog))
	for _, zt := range req.Catalog {
		if zt.ID == Unassigned || int(zt.ID) > len(req.Catalog) {
			return configErr("validate", ErrInvalidParams, "zone %q has id %d outside 1..%d", zt.Name, zt.ID, len(req.Catalog))
		}
		if known[zt.ID] {
			return configErr("validate", ErrInvalidParams, "duplicate zone id %d (%s)", zt.ID, zt.Name)
		}
		if zt.Priority <= 0 {
			return &ConfigError{Phase: "validate", Zone: zt.Name, Err: fmt.Errorf("%w: priority %v must be > 0", ErrInvalidParams, zt.Priority)}
		}
		if n := req.Params.passesPerRing(zt.Priority); n > MaxPassesPerRing {
			return &ConfigError{Phase: "validate", Zone: zt.Name, Err: fmt.Errorf("%w: priority %v needs %.0f growth passes per ring (max %d)", ErrInvalidParams, zt.Priority, n, MaxPassesPerRing)}
		}
		known[zt.ID] = true
	}
	libs := []struct {
		name string
		lib  Library
	}{{"mandatory", req.Mandatory}, {"filler", req.Filler}, {"unique", req.Unique}}
	for _, l := range libs {
		for id := range l.lib {
			if !known[id] {
				return configErr("validate", ErrInvalidParams, "%s library references unknown zone id %d", l.name, id)
			}
		}
	}
	total := 0
	for _, zt := range req.Catalog {
		if n, ok := req.Mandatory.count(zt.ID); ok {
			total += n
		}
	}
	if total > size {
		return configErr("validate", ErrGridTooSmall, "%d mandatory zones for %d cells", total, size)
	}
	return nil
}

func flatten(req Request, g *Grid) *World {
	palette := make([]string, len(req.Catalog))
	for _, zt := range req.Catalog {
		palette[zt.ID-1] = zt.Name
	}
	w := &World{
		ID:      req.ID,
		Seed:    req.Seed,
		Length:  g.Length(),
		Width:   g.Width(),
		Palette: palette,
		Zones:   make([]Zone, 0, g.Size()),
	}
	for _, c := range g.Cells() {
		w.Zones = append(w.Zones, Zone{
			Row:      c.Pos.Row,
			Col:      c.Pos.Col,
			ZoneType: palette[c.Zone-1],
			Role:     c.Role,
			Variant:  c.Variant,
		})
	}
	return w
}

func logf(l *log.Logger, format string, args ...any) {
	if l != nil {
		l.Printf(format, args...)
	}
}
