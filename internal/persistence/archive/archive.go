package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"zonegrid.ai/internal/persistence/snapshot"
)

type GenerationMeta struct {
	WorldID       string `json:"world_id"`
	Generation    int    `json:"generation"`
	Seed          int64  `json:"seed"`
	Length        int    `json:"length"`
	Width         int    `json:"width"`
	Digest        string `json:"digest"`
	CatalogDigest string `json:"catalog_digest,omitempty"`
	Snapshot      string `json:"snapshot"`
	ArchivedAt    string `json:"archived_at"`
}

// Dir returns `worldDir/archives/gen_<NNN>/`.
func Dir(worldDir string, gen int) string {
	return filepath.Join(worldDir, "archives", fmt.Sprintf("gen_%03d", gen))
}

// ArchiveGeneration moves a superseded snapshot into its archive directory
// and writes meta.json next to it. The live snapshots dir keeps only the
// current generation.
func ArchiveGeneration(worldDir, snapshotPath string, snap snapshot.SnapshotV1) (string, error) {
	gen := snap.Header.Generation
	if gen <= 0 {
		return "", fmt.Errorf("archive: generation %d", gen)
	}
	archiveDir := Dir(worldDir, gen)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", err
	}

	meta := GenerationMeta{
		WorldID:       snap.Header.WorldID,
		Generation:    gen,
		Seed:          snap.Seed,
		Length:        snap.Length,
		Width:         snap.Width,
		Digest:        snap.Header.Digest,
		CatalogDigest: snap.CatalogDigest,
		Snapshot:      filepath.Base(dst),
		ArchivedAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644); err != nil {
		return "", err
	}
	if err := os.Remove(snapshotPath); err != nil {
		return "", err
	}
	return dst, nil
}

// List reads every archive meta.json under worldDir, oldest generation first.
func List(worldDir string) ([]GenerationMeta, error) {
	paths, err := filepath.Glob(filepath.Join(worldDir, "archives", "gen_*", "meta.json"))
	if err != nil {
		return nil, err
	}
	out := make([]GenerationMeta, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		var m GenerationMeta
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Generation < out[j].Generation })
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
