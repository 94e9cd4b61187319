package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"zonegrid.ai/internal/sim/encoding"
	"zonegrid.ai/internal/sim/world"
)

const Version = 1

type Header struct {
	Version    int    `json:"version"`
	WorldID    string `json:"world_id"`
	Generation int    `json:"generation"`
	Digest     string `json:"digest"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed   int64 `json:"seed"`
	Length int   `json:"length"`
	Width  int   `json:"width"`

	// Generation parameters (captured so a world can be regenerated exactly).
	UniqueChance        float64 `json:"unique_chance"`
	ContinentIterations int     `json:"continent_iterations"`
	ContinentStrength   float64 `json:"continent_strength"`
	GrowthThreshold     float64 `json:"growth_threshold"`
	GrowthIncrement     float64 `json:"growth_increment"`
	GrowthJitter        float64 `json:"growth_jitter,omitempty"`

	CatalogDigest string `json:"catalog_digest,omitempty"`

	Palette  []string `json:"palette"`
	Zones    string   `json:"zones_rle"`
	Roles    string   `json:"roles_rle"`
	Variants []int32  `json:"variants"`

	Stats world.Stats `json:"stats"`
}

// FromWorld captures a generated world together with the parameters that produced it.
func FromWorld(w *world.World, gen int, p world.Params, catalogDigest string) SnapshotV1 {
	index := make(map[string]uint16, len(w.Palette))
	for i, name := range w.Palette {
		index[name] = uint16(i + 1)
	}
	zones := make([]uint16, len(w.Zones))
	roles := make([]uint16, len(w.Zones))
	variants := make([]int32, len(w.Zones))
	for i, z := range w.Zones {
		zones[i] = index[z.ZoneType]
		roles[i] = uint16(z.Role)
		variants[i] = int32(z.Variant)
	}
	return SnapshotV1{
		Header: Header{
			Version:    Version,
			WorldID:    w.ID,
			Generation: gen,
			Digest:     w.Digest,
		},
		Seed:                w.Seed,
		Length:              w.Length,
		Width:               w.Width,
		UniqueChance:        p.UniqueChance,
		ContinentIterations: p.ContinentIterations,
		ContinentStrength:   p.ContinentStrength,
		GrowthThreshold:     p.GrowthThreshold,
		GrowthIncrement:     p.GrowthIncrement,
		GrowthJitter:        p.GrowthJitter,
		CatalogDigest:       catalogDigest,
		Palette:             append([]string(nil), w.Palette...),
		Zones:               encoding.EncodeRLE(zones),
		Roles:               encoding.EncodeRLE(roles),
		Variants:            variants,
		Stats:               w.Stats,
	}
}

func (s SnapshotV1) Params() world.Params {
	return world.Params{
		UniqueChance:        s.UniqueChance,
		ContinentIterations: s.ContinentIterations,
		ContinentStrength:   s.ContinentStrength,
		GrowthThreshold:     s.GrowthThreshold,
		GrowthIncrement:     s.GrowthIncrement,
		GrowthJitter:        s.GrowthJitter,
	}
}

// World rebuilds the published world and checks it against the header digest.
func (s SnapshotV1) World() (*world.World, error) {
	n := s.Length * s.Width
	if s.Length <= 0 || s.Width <= 0 {
		return nil, fmt.Errorf("snapshot: bad dimensions %dx%d", s.Length, s.Width)
	}
	zones, err := encoding.DecodeRLE(s.Zones, n)
	if err != nil {
		return nil, fmt.Errorf("snapshot zones: %w", err)
	}
	roles, err := encoding.DecodeRLE(s.Roles, n)
	if err != nil {
		return nil, fmt.Errorf("snapshot roles: %w", err)
	}
	if len(s.Variants) != n {
		return nil, fmt.Errorf("snapshot variants: have %d want %d", len(s.Variants), n)
	}

	w := &world.World{
		ID:      s.Header.WorldID,
		Seed:    s.Seed,
		Length:  s.Length,
		Width:   s.Width,
		Palette: append([]string(nil), s.Palette...),
		Zones:   make([]world.Zone, n),
		Stats:   s.Stats,
	}
	for i := 0; i < n; i++ {
		id := int(zones[i])
		if id < 1 || id > len(s.Palette) {
			return nil, fmt.Errorf("snapshot: zone %d has palette id %d", i, id)
		}
		w.Zones[i] = world.Zone{
			Row:      i / s.Width,
			Col:      i % s.Width,
			ZoneType: s.Palette[id-1],
			Role:     world.Role(roles[i]),
			Variant:  int(s.Variants[i]),
		}
	}
	w.Digest = world.Digest(w)
	if s.Header.Digest != "" && w.Digest != s.Header.Digest {
		return nil, fmt.Errorf("snapshot: digest mismatch (header %s, content %s)", s.Header.Digest, w.Digest)
	}
	return w, nil
}

// Path returns the snapshot file for a world generation.
func Path(worldDir string, gen int) string {
	return filepath.Join(worldDir, "snapshots", fmt.Sprintf("gen_%04d.snap.zst", gen))
}

// Latest returns the newest readable snapshot in worldDir and its generation,
// or ("", 0). Files that fail to decode are skipped so a torn write never hides
// the generation before it.
func Latest(worldDir string) (string, int) {
	entries, err := os.ReadDir(filepath.Join(worldDir, "snapshots"))
	if err != nil {
		return "", 0
	}
	type cand struct {
		gen  int
		path string
	}
	var cands []cand
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "gen_") || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		gen, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "gen_"), ".snap.zst"))
		if err != nil {
			continue
		}
		cands = append(cands, cand{gen: gen, path: filepath.Join(worldDir, "snapshots", name)})
	}
	if len(cands) == 0 {
		return "", 0
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].gen > cands[j].gen })
	for _, c := range cands {
		if _, err := ReadSnapshot(c.path); err == nil {
			return c.path, c.gen
		}
	}
	return "", 0
}

// WriteSnapshot writes snap to path+".tmp" and renames it into place once the
// file is synced. Readers never see a partial snapshot at path.
func WriteSnapshot(path string, snap SnapshotV1) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := encodeSnapshot(enc, snap); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func encodeSnapshot(enc *zstd.Encoder, snap SnapshotV1) error {
	bw := bufio.NewWriterSize(enc, 64*1024)
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return bw.Flush()
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// The gob payload repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}
