package multiworld

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"zonegrid.ai/internal/persistence/archive"
	persistlog "zonegrid.ai/internal/persistence/log"
	"zonegrid.ai/internal/persistence/snapshot"
	"zonegrid.ai/internal/sim/catalogs"
	"zonegrid.ai/internal/sim/tuning"
	"zonegrid.ai/internal/sim/world"
)

// Index is the read-model the manager reports to. *indexdb.SQLiteIndex
// satisfies it, including as a nil pointer.
type Index interface {
	world.EventSink
	RecordWorld(path string, snap snapshot.SnapshotV1)
	RecordArchive(worldID string, gen int, path string)
}

type Options struct {
	DataDir  string
	Tuning   tuning.Tuning
	Catalogs *catalogs.Catalogs

	// Optional.
	Index   Index
	Metrics *world.Metrics
	Logger  *log.Logger
}

// Result is one generation of one world, as persisted.
type Result struct {
	World        *world.World
	Generation   int
	SnapshotPath string
	Params       world.Params
	RunID        string
}

// Manager runs the generation pipeline for the configured worlds and owns
// their on-disk layout under <data>/worlds/<id>.
type Manager struct {
	cfg  Config
	opts Options

	// One generation per world at a time.
	locks map[string]*sync.Mutex
}

func NewManager(cfg Config, opts Options) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Catalogs == nil {
		return nil, fmt.Errorf("multiworld: nil catalogs")
	}
	if opts.DataDir == "" {
		return nil, fmt.Errorf("multiworld: empty data dir")
	}
	cfg.Normalize()
	m := &Manager{cfg: cfg, opts: opts, locks: map[string]*sync.Mutex{}}
	for _, w := range cfg.Worlds {
		if err := w.Apply(opts.Tuning).Validate(); err != nil {
			return nil, fmt.Errorf("world %s: %w", w.ID, err)
		}
		m.locks[w.ID] = &sync.Mutex{}
	}
	return m, nil
}

func (m *Manager) Config() Config { return m.cfg }

func (m *Manager) DefaultWorldID() string { return m.cfg.DefaultWorldID }

func (m *Manager) WorldDir(id string) string {
	return filepath.Join(m.opts.DataDir, "worlds", id)
}

// Tuning returns the effective tuning for a world.
func (m *Manager) Tuning(id string) (tuning.Tuning, bool) {
	spec, ok := m.cfg.Spec(id)
	if !ok {
		return tuning.Tuning{}, false
	}
	return spec.Apply(m.opts.Tuning), true
}

// Generate runs the pipeline for worldID and persists the result as the next
// generation. seed overrides the configured seed when non-nil. The previous
// generation is archived only after the new one is safely on disk.
func (m *Manager) Generate(ctx context.Context, worldID string, seed *int64) (*Result, error) {
	t, ok := m.Tuning(worldID)
	if !ok {
		return nil, fmt.Errorf("unknown world: %s", worldID)
	}
	if seed != nil {
		t.Seed = *seed
	}

	lk := m.locks[worldID]
	lk.Lock()
	defer lk.Unlock()

	worldDir := m.WorldDir(worldID)
	prevPath, prevGen := snapshot.Latest(worldDir)
	gen := prevGen + 1
	runID := uuid.NewString()

	genLog := persistlog.NewGenLogger(worldDir, gen)
	defer genLog.Close()
	runLog := persistlog.NewRunLogger(worldDir)
	defer runLog.Close()

	cats := m.opts.Catalogs
	params := t.Params()
	req := world.Request{
		ID:        worldID,
		Seed:      t.Seed,
		Length:    t.Length,
		Width:     t.Width,
		Catalog:   cats.ZoneTypes(),
		Mandatory: cats.Counts(cats.Mandatory),
		Filler:    cats.Counts(cats.Filler),
		Unique:    cats.Counts(cats.Unique),
		Params:    params,
		Logger:    m.opts.Logger,
		Metrics:   m.opts.Metrics,
		Events:    fanout{genLog, m.opts.Index},
	}

	w, err := world.Generate(ctx, req)
	rec := persistlog.RunRecord{RunID: runID, WorldID: worldID, Generation: gen, Seed: t.Seed}
	if err != nil {
		rec.Error = err.Error()
		m.writeRun(runLog, rec)
		return nil, err
	}
	rec.Digest = w.Digest
	rec.Stats = w.Stats

	snap := snapshot.FromWorld(w, gen, params, cats.Digest())
	path := snapshot.Path(worldDir, gen)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		rec.Error = err.Error()
		m.writeRun(runLog, rec)
		return nil, fmt.Errorf("write snapshot: %w", err)
	}
	if m.opts.Index != nil {
		m.opts.Index.RecordWorld(path, snap)
	}

	if prevPath != "" {
		if err := m.archive(worldDir, prevPath); err != nil {
			// The new generation is live either way.
			m.logf("archive %s: %v", filepath.Base(prevPath), err)
		}
	}
	m.writeRun(runLog, rec)

	return &Result{World: w, Generation: gen, SnapshotPath: path, Params: params, RunID: runID}, nil
}

// Latest loads the newest persisted generation of worldID. It returns nil,
// nil when the world has never been generated.
func (m *Manager) Latest(worldID string) (*Result, error) {
	if _, ok := m.cfg.Spec(worldID); !ok {
		return nil, fmt.Errorf("unknown world: %s", worldID)
	}
	path, gen := snapshot.Latest(m.WorldDir(worldID))
	if path == "" {
		return nil, nil
	}
	return LoadSnapshot(path, gen)
}

// LoadSnapshot reads a snapshot file into a Result.
func LoadSnapshot(path string, gen int) (*Result, error) {
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	w, err := snap.World()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if snap.Header.Generation > 0 {
		gen = snap.Header.Generation
	}
	return &Result{World: w, Generation: gen, SnapshotPath: path, Params: snap.Params()}, nil
}

func (m *Manager) archive(worldDir, prevPath string) error {
	prev, err := snapshot.ReadSnapshot(prevPath)
	if err != nil {
		return err
	}
	dst, err := archive.ArchiveGeneration(worldDir, prevPath, prev)
	if err != nil {
		return err
	}
	if m.opts.Index != nil {
		m.opts.Index.RecordArchive(prev.Header.WorldID, prev.Header.Generation, dst)
	}
	m.logf("archived %s gen=%d to %s", prev.Header.WorldID, prev.Header.Generation, dst)
	return nil
}

func (m *Manager) writeRun(l *persistlog.RunLogger, rec persistlog.RunRecord) {
	if err := l.WriteRun(rec); err != nil {
		m.logf("run log: %v", err)
	}
}

func (m *Manager) logf(format string, args ...any) {
	if m.opts.Logger != nil {
		m.opts.Logger.Printf(format, args...)
	}
}

// fanout forwards phase events to the gen log and the index.
type fanout struct {
	a world.EventSink
	b world.EventSink
}

func (f fanout) WriteGen(e world.GenLogEntry) error {
	var err error
	if f.a != nil {
		err = f.a.WriteGen(e)
	}
	if f.b != nil {
		_ = f.b.WriteGen(e)
	}
	return err
}
