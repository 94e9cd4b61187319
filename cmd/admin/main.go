package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"zonegrid.ai/internal/persistence/archive"
	persistlog "zonegrid.ai/internal/persistence/log"
	"zonegrid.ai/internal/persistence/snapshot"
	"zonegrid.ai/internal/sim/catalogs"
	"zonegrid.ai/internal/sim/multiworld"
	"zonegrid.ai/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "show":
			showCmd(os.Args[2:])
			return
		case "history":
			historyCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "regenerate":
			regenerateCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints one line per world: id, live generation, archived generations.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		worldDir := filepath.Join(base, e.Name())
		path, gen := snapshot.Latest(worldDir)
		metas, _ := archive.List(worldDir)
		digest := "-"
		if path != "" {
			if h, err := snapshot.ReadHeader(path); err == nil && len(h.Digest) >= 12 {
				digest = h.Digest[:12]
			}
		}
		fmt.Printf("%s\tgen=%d\tdigest=%s\tarchived=%d\n", e.Name(), gen, digest, len(metas))
	}
}

func showCmd(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to the live generation)")
	configDir := fs.String("configs", "", "config directory; when set, print the content variant of each placed zone")
	asJSON := fs.Bool("json", false, "print the world as JSON instead of a map")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -snapshot")
			os.Exit(2)
		}
		path, _ = snapshot.Latest(filepath.Join(*dataDir, "worlds", *worldID))
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found; run worldgen first")
		os.Exit(2)
	}

	res, err := multiworld.LoadSnapshot(path, 0)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load:", err)
		os.Exit(1)
	}
	w := res.World
	if *asJSON {
		printJSON(w)
		return
	}

	fmt.Printf("world=%s gen=%d seed=%d size=%dx%d digest=%s\n", w.ID, res.Generation, w.Seed, w.Length, w.Width, w.Digest)
	fmt.Print(world.RenderText(w))
	printCounts("roles", w.Stats.Roles)
	printCounts("zones", w.Stats.Zones)

	if dir := strings.TrimSpace(*configDir); dir != "" {
		cats, err := catalogs.Load(dir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "catalogs:", err)
			os.Exit(1)
		}
		fmt.Printf("catalog zones: %s\n", strings.Join(cats.ZoneNames(), " "))
		for _, z := range w.Zones {
			if z.Role != world.RoleMandatory && z.Role != world.RoleUnique {
				continue
			}
			v, ok := cats.Variant(z)
			if !ok {
				continue
			}
			fmt.Printf("%d,%d\t%s\t%s\t%s\n", z.Row, z.Col, z.ZoneType, z.Role, v.Prefab)
		}
	}
}

func historyCmd(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	phases := fs.Bool("phases", false, "print per-phase events instead of runs")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	worldDir := filepath.Join(*dataDir, "worlds", *worldID)

	if *phases {
		recs, err := persistlog.ReadGenRecords(worldDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
		for _, r := range recs {
			printJSON(r)
		}
		return
	}

	recs, err := persistlog.ReadRunRecords(worldDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, r := range recs {
		printJSON(r)
	}
	metas, err := archive.List(worldDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "archives:", err)
		os.Exit(1)
	}
	for _, m := range metas {
		printJSON(m)
	}
}

func printCounts(label string, m map[string]int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	fmt.Printf("%s: %s\n", label, strings.Join(parts, " "))
}
