package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"zonegrid.ai/internal/persistence/indexdb"
	"zonegrid.ai/internal/sim/catalogs"
	"zonegrid.ai/internal/sim/multiworld"
	"zonegrid.ai/internal/sim/tuning"
	"zonegrid.ai/internal/sim/world"
)

func main() {
	var (
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		worldsPath = flag.String("worlds", "", "path to worlds.yaml (default: <configs>/worlds.yaml if present)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		worldID    = flag.String("world", "", "world id to generate, or \"all\" (default: default_world_id)")
		seedFlag   = flag.String("seed", "", "seed override (default: tuning seed + world seed_offset)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite world index")
		render     = flag.Bool("render", true, "print an ASCII map of each generated world")
		exportPath = flag.String("export", "", "write the generated world as JSON to this path (single world only)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[worldgen] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	wcfg, err := multiworld.Load(resolveWorldsPath(*worldsPath, *configDir))
	if err != nil {
		logger.Fatalf("load worlds config: %v", err)
	}

	var seed *int64
	if s := strings.TrimSpace(*seedFlag); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -seed:", err)
			os.Exit(2)
		}
		seed = &v
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "worlds.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(cats, tune); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
	}

	opts := multiworld.Options{
		DataDir:  *dataDir,
		Tuning:   tune,
		Catalogs: cats,
		Logger:   logger,
	}
	if idx != nil {
		opts.Index = idx
	}
	mgr, err := multiworld.NewManager(wcfg, opts)
	if err != nil {
		logger.Fatalf("worlds: %v", err)
	}

	ids := []string{strings.TrimSpace(*worldID)}
	switch ids[0] {
	case "":
		ids[0] = mgr.DefaultWorldID()
	case "all":
		ids = ids[:0]
		for _, w := range wcfg.Worlds {
			ids = append(ids, w.ID)
		}
	}
	if *exportPath != "" && len(ids) != 1 {
		fmt.Fprintln(os.Stderr, "-export needs a single -world")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	failed := 0
	for _, id := range ids {
		res, err := mgr.Generate(ctx, id, seed)
		if err != nil {
			logger.Printf("world %s: %v", id, err)
			failed++
			continue
		}
		w := res.World
		logger.Printf("world %s gen=%d seed=%d snapshot=%s", id, res.Generation, w.Seed, res.SnapshotPath)
		logger.Printf("world %s roles=%v passes=%d eroded=%d mandatory_tiers=%v bare_filler=%d",
			id, w.Stats.Roles, w.Stats.GrowthPasses, w.Stats.Eroded, w.Stats.MandatoryPerTier, w.Stats.BareFiller)
		if *render {
			fmt.Print(world.RenderText(w))
		}
		if *exportPath != "" {
			if err := exportWorld(*exportPath, w); err != nil {
				logger.Fatalf("export: %v", err)
			}
			logger.Printf("exported %s", *exportPath)
		}
	}
	if failed > 0 {
		// os.Exit skips deferred calls.
		idx.Close()
		os.Exit(1)
	}
}

func resolveWorldsPath(flagPath, configDir string) string {
	if p := strings.TrimSpace(flagPath); p != "" {
		return p
	}
	p := filepath.Join(configDir, "worlds.yaml")
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

func exportWorld(path string, w *world.World) error {
	b, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
