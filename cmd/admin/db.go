package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id filter (optional)")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/worlds.sqlite)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "worlds"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "worlds.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()
	if *limit <= 0 {
		*limit = 20
	}
	id := strings.TrimSpace(*worldID)

	var (
		query string
		qargs []any
	)
	switch q {
	case "worlds":
		query = `SELECT world_id,generation,seed,length,width,digest,catalog_digest,snapshot_path,mandatory,uniq,filler,empty,recorded_at FROM worlds`
		if id != "" {
			query += ` WHERE world_id=?`
			qargs = append(qargs, id)
		}
		query += ` ORDER BY recorded_at DESC LIMIT ?`
	case "phases":
		query = `SELECT world_id,seq,phase,fields_json FROM phases`
		if id != "" {
			query += ` WHERE world_id=?`
			qargs = append(qargs, id)
		}
		query += ` ORDER BY world_id, seq DESC LIMIT ?`
	case "archives":
		query = `SELECT world_id,generation,path,recorded_at FROM archives`
		if id != "" {
			query += ` WHERE world_id=?`
			qargs = append(qargs, id)
		}
		query += ` ORDER BY world_id, generation DESC LIMIT ?`
	case "catalogs":
		query = `SELECT name,digest,updated_at FROM catalogs ORDER BY name LIMIT ?`
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-db PATH] [-world WORLD] worlds|phases|archives|catalogs")
		os.Exit(2)
	}
	qargs = append(qargs, *limit)

	if err := printRows(context.Background(), db, query, qargs...); err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
}

// printRows prints each result row as a JSON object keyed by column name.
func printRows(ctx context.Context, db *sql.DB, query string, args ...any) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		obj := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				vals[i] = string(b)
			}
			obj[c] = vals[i]
		}
		printJSON(obj)
	}
	return rows.Err()
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
