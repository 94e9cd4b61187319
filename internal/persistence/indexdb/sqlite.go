package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"zonegrid.ai/internal/persistence/snapshot"
	"zonegrid.ai/internal/sim/catalogs"
	"zonegrid.ai/internal/sim/tuning"
	"zonegrid.ai/internal/sim/world"
)

// SQLiteIndex is a queryable secondary index over generated worlds. Snapshots
// and JSONL logs stay the source of truth; writes are queued and applied by a
// single writer goroutine.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropWorld   atomic.Uint64
	dropPhase   atomic.Uint64
	dropArchive atomic.Uint64
}

type reqKind int

const (
	reqWorld reqKind = iota + 1
	reqPhase
	reqArchive
)

type req struct {
	kind reqKind

	world   WorldRow
	phase   phaseRow
	archive archiveRow
}

// WorldRow is one generation of one world.
type WorldRow struct {
	WorldID       string
	Generation    int
	Seed          int64
	Length        int
	Width         int
	Digest        string
	CatalogDigest string
	SnapshotPath  string
	Mandatory     int
	Unique        int
	Filler        int
	Empty         int
	RecordedAt    string
}

type phaseRow struct {
	WorldID string
	Phase   string
	Fields  string
}

type archiveRow struct {
	WorldID    string
	Generation int
	Path       string
	RecordedAt string
}

type QueueStats struct {
	QueueDepth       int    `json:"queue_depth"`
	QueueCapacity    int    `json:"queue_capacity"`
	DropWorldTotal   uint64 `json:"drop_world_total"`
	DropPhaseTotal   uint64 `json:"drop_phase_total"`
	DropArchiveTotal uint64 `json:"drop_archive_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS worlds (
			world_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			length INTEGER NOT NULL,
			width INTEGER NOT NULL,
			digest TEXT NOT NULL,
			catalog_digest TEXT NOT NULL,
			snapshot_path TEXT NOT NULL,
			mandatory INTEGER NOT NULL,
			uniq INTEGER NOT NULL,
			filler INTEGER NOT NULL,
			empty INTEGER NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (world_id, generation)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_worlds_digest ON worlds(digest);`,
		`CREATE TABLE IF NOT EXISTS phases (
			world_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			phase TEXT NOT NULL,
			fields_json TEXT NOT NULL,
			PRIMARY KEY (world_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS archives (
			world_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			path TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (world_id, generation)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the queue and closes the database.
func (s *SQLiteIndex) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() QueueStats {
	if s == nil {
		return QueueStats{}
	}
	return QueueStats{
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
		DropWorldTotal:   s.dropWorld.Load(),
		DropPhaseTotal:   s.dropPhase.Load(),
		DropArchiveTotal: s.dropArchive.Load(),
	}
}

// RecordWorld queues a world row built from a written snapshot.
func (s *SQLiteIndex) RecordWorld(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := WorldRow{
		WorldID:       snap.Header.WorldID,
		Generation:    snap.Header.Generation,
		Seed:          snap.Seed,
		Length:        snap.Length,
		Width:         snap.Width,
		Digest:        snap.Header.Digest,
		CatalogDigest: snap.CatalogDigest,
		SnapshotPath:  path,
		Mandatory:     snap.Stats.Roles[world.RoleMandatory.String()],
		Unique:        snap.Stats.Roles[world.RoleUnique.String()],
		Filler:        snap.Stats.Roles[world.RoleFiller.String()],
		Empty:         snap.Stats.Roles[world.RoleEmpty.String()],
		RecordedAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqWorld, world: r}:
	default:
		s.dropWorld.Add(1)
	}
}

// WriteGen indexes one pipeline phase. It implements world.EventSink.
func (s *SQLiteIndex) WriteGen(e world.GenLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	b, _ := json.Marshal(e.Fields)
	select {
	case s.ch <- req{kind: reqPhase, phase: phaseRow{WorldID: e.WorldID, Phase: e.Phase, Fields: string(b)}}:
	default:
		s.dropPhase.Add(1)
	}
	return nil
}

// RecordArchive notes that a generation's snapshot was moved to path.
func (s *SQLiteIndex) RecordArchive(worldID string, gen int, path string) {
	if s == nil || s.closed.Load() {
		return
	}
	if worldID == "" || gen <= 0 || path == "" {
		return
	}
	r := archiveRow{
		WorldID:    worldID,
		Generation: gen,
		Path:       path,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqArchive, archive: r}:
	default:
		s.dropArchive.Add(1)
	}
}

// UpsertCatalogs stores the catalogs and tuning a generation ran against.
// It runs synchronously so callers can rely on the rows being present.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, _ := json.Marshal(cats.Zones.Defs); len(b) > 0 {
		rows = append(rows, kv{name: "zones", digest: cats.Zones.Digest, json: b})
	}
	for _, l := range []catalogs.Library{cats.Mandatory, cats.Filler, cats.Unique} {
		b, _ := json.Marshal(l.ByZone)
		rows = append(rows, kv{name: "library_" + l.Kind, digest: l.Digest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListWorlds returns every indexed generation, newest first. An empty worldID
// lists all worlds.
func (s *SQLiteIndex) ListWorlds(ctx context.Context, worldID string) ([]WorldRow, error) {
	q := `SELECT world_id,generation,seed,length,width,digest,catalog_digest,snapshot_path,mandatory,uniq,filler,empty,recorded_at
		FROM worlds`
	var args []any
	if worldID != "" {
		q += ` WHERE world_id=?`
		args = append(args, worldID)
	}
	q += ` ORDER BY recorded_at DESC, generation DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WorldRow
	for rows.Next() {
		var r WorldRow
		if err := rows.Scan(&r.WorldID, &r.Generation, &r.Seed, &r.Length, &r.Width, &r.Digest, &r.CatalogDigest,
			&r.SnapshotPath, &r.Mandatory, &r.Unique, &r.Filler, &r.Empty, &r.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertWorld, _ := s.db.Prepare(`INSERT OR REPLACE INTO worlds(world_id,generation,seed,length,width,digest,catalog_digest,snapshot_path,mandatory,uniq,filler,empty,recorded_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertPhase, _ := s.db.Prepare(`INSERT INTO phases(world_id,seq,phase,fields_json) VALUES(?,(SELECT COALESCE(MAX(seq),0)+1 FROM phases WHERE world_id=?),?,?)`)
	insertArchive, _ := s.db.Prepare(`INSERT OR REPLACE INTO archives(world_id,generation,path,recorded_at) VALUES(?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertWorld, insertPhase, insertArchive} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqWorld:
			w := r.world
			exec(insertWorld, w.WorldID, w.Generation, w.Seed, w.Length, w.Width, w.Digest, w.CatalogDigest,
				w.SnapshotPath, w.Mandatory, w.Unique, w.Filler, w.Empty, w.RecordedAt)
		case reqPhase:
			p := r.phase
			exec(insertPhase, p.WorldID, p.WorldID, p.Phase, p.Fields)
		case reqArchive:
			a := r.archive
			exec(insertArchive, a.WorldID, a.Generation, a.Path, a.RecordedAt)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
