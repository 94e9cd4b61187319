package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"zonegrid.ai/internal/persistence/indexdb"
	"zonegrid.ai/internal/sim/multiworld"
	"zonegrid.ai/internal/transport/observer"
)

// app serves every configured world. Each world has its own observer server
// so subscribers only receive regenerations of the world they asked for.
type app struct {
	mgr *multiworld.Manager
	idx *indexdb.SQLiteIndex
	log *log.Logger

	observers map[string]*observer.Server
}

func newApp(mgr *multiworld.Manager, idx *indexdb.SQLiteIndex, logger *log.Logger) *app {
	a := &app{mgr: mgr, idx: idx, log: logger, observers: map[string]*observer.Server{}}
	for _, w := range mgr.Config().Worlds {
		a.observers[w.ID] = observer.NewServer(logger)
	}
	return a
}

// loadWorlds publishes the live generation of each world, generating the
// first one when allowed.
func (a *app) loadWorlds(ctx context.Context, generateIfMissing bool) error {
	for _, w := range a.mgr.Config().Worlds {
		res, err := a.mgr.Latest(w.ID)
		if err != nil {
			return fmt.Errorf("world %s: %w", w.ID, err)
		}
		if res == nil {
			if !generateIfMissing {
				a.log.Printf("world %s: no snapshot yet", w.ID)
				continue
			}
			res, err = a.mgr.Generate(ctx, w.ID, nil)
			if err != nil {
				return fmt.Errorf("world %s: %w", w.ID, err)
			}
			a.log.Printf("world %s: generated gen=%d", w.ID, res.Generation)
		} else {
			a.log.Printf("world %s: loaded gen=%d digest=%s", w.ID, res.Generation, res.World.Digest)
		}
		a.publish(w.ID, res)
	}
	return nil
}

func (a *app) publish(worldID string, res *multiworld.Result) {
	if o := a.observers[worldID]; o != nil {
		o.Publish(&observer.Published{World: res.World, Generation: res.Generation, Params: res.Params})
	}
}

func (a *app) routes(mux *http.ServeMux) {
	mux.HandleFunc("/admin/v1/state", a.handleState)
	mux.HandleFunc("/admin/v1/regenerate", a.handleRegenerate)
	mux.HandleFunc("/admin/v1/observer/bootstrap", a.observerHandler(func(o *observer.Server) http.HandlerFunc { return o.BootstrapHandler() }))
	mux.HandleFunc("/admin/v1/observer/ws", a.observerHandler(func(o *observer.Server) http.HandlerFunc { return o.WSHandler() }))
}

// resolveWorld maps the optional ?world= query to a configured world id.
func (a *app) resolveWorld(r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.URL.Query().Get("world"))
	if id == "" {
		id = a.mgr.DefaultWorldID()
	}
	_, ok := a.observers[id]
	return id, ok
}

type worldState struct {
	WorldID     string         `json:"world_id"`
	Generation  int            `json:"generation"`
	Seed        int64          `json:"seed,omitempty"`
	Length      int            `json:"length,omitempty"`
	Width       int            `json:"width,omitempty"`
	Digest      string         `json:"digest,omitempty"`
	Roles       map[string]int `json:"roles,omitempty"`
	Subscribers int            `json:"subscribers"`
}

type stateResponse struct {
	DefaultWorldID string              `json:"default_world_id"`
	Worlds         []worldState        `json:"worlds"`
	Index          *indexdb.QueueStats `json:"index,omitempty"`
}

func (a *app) handleState(rw http.ResponseWriter, r *http.Request) {
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	resp := stateResponse{DefaultWorldID: a.mgr.DefaultWorldID()}
	for _, spec := range a.mgr.Config().Worlds {
		o := a.observers[spec.ID]
		st := worldState{WorldID: spec.ID, Subscribers: o.Subscribers()}
		if p := o.Current(); p != nil {
			st.Generation = p.Generation
			st.Seed = p.World.Seed
			st.Length = p.World.Length
			st.Width = p.World.Width
			st.Digest = p.World.Digest
			st.Roles = p.World.Stats.Roles
		}
		resp.Worlds = append(resp.Worlds, st)
	}
	if a.idx != nil {
		qs := a.idx.Stats()
		resp.Index = &qs
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(resp)
}

func (a *app) handleRegenerate(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	id, ok := a.resolveWorld(r)
	if !ok {
		http.Error(rw, "unknown world", http.StatusNotFound)
		return
	}
	var seed *int64
	if s := strings.TrimSpace(r.URL.Query().Get("seed")); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			http.Error(rw, "bad seed", http.StatusBadRequest)
			return
		}
		seed = &v
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	res, err := a.mgr.Generate(ctx, id, seed)
	rw.Header().Set("Content-Type", "application/json")
	if err != nil {
		a.log.Printf("regenerate %s: %v", id, err)
		rw.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "world_id": id, "error": err.Error()})
		return
	}
	a.publish(id, res)
	_ = json.NewEncoder(rw).Encode(map[string]any{
		"ok":         true,
		"world_id":   id,
		"generation": res.Generation,
		"seed":       res.World.Seed,
		"digest":     res.World.Digest,
		"run_id":     res.RunID,
	})
}

func (a *app) observerHandler(pick func(*observer.Server) http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		id, ok := a.resolveWorld(r)
		if !ok {
			http.Error(rw, "unknown world", http.StatusNotFound)
			return
		}
		pick(a.observers[id])(rw, r)
	}
}
