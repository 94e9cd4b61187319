package log

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"zonegrid.ai/internal/sim/world"
)

func TestGenLoggerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewGenLogger(dir, 3)
	phases := []string{"seed", "grow", "shape", "mandatory", "resolve"}
	for i, p := range phases {
		if err := l.WriteGen(world.GenLogEntry{WorldID: "w1", Phase: p, Fields: map[string]int{"n": i}}); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	recs, err := ReadGenRecords(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(recs) != len(phases) {
		t.Fatalf("records=%d want %d", len(recs), len(phases))
	}
	for i, r := range recs {
		if r.Phase != phases[i] || r.WorldID != "w1" || r.Generation != 3 || r.Fields["n"] != i {
			t.Fatalf("record %d mismatch: %+v", i, r)
		}
	}
}

func TestJSONLZstdWriter_ReopenAppends(t *testing.T) {
	dir := t.TempDir()
	for run := 0; run < 2; run++ {
		l := NewRunLogger(dir)
		if err := l.WriteRun(RunRecord{RunID: "r", WorldID: "w1", Generation: run + 1}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := l.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	recs, err := ReadRunRecords(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(recs) != 2 || recs[0].Generation != 1 || recs[1].Generation != 2 {
		t.Fatalf("records=%+v", recs)
	}
	if recs[0].TS.IsZero() {
		t.Fatalf("expected timestamp to be filled")
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "gen")
	now := time.Date(2024, 5, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	if err := w.Write(GenRecord{Phase: "seed"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(GenRecord{Phase: "grow"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, name := range []string{"gen-2024-05-01-10.jsonl.zst", "gen-2024-05-01-11.jsonl.zst"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}

func TestReadRecords_Missing(t *testing.T) {
	recs, err := ReadGenRecords(t.TempDir())
	if err != nil || len(recs) != 0 {
		t.Fatalf("recs=%v err=%v", recs, err)
	}
}
