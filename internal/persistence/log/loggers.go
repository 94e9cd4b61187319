package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"zonegrid.ai/internal/sim/world"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files under baseDir.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	// Appending starts a new zstd frame; readers handle concatenated frames.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 32*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// GenRecord is one generation phase as written to disk.
type GenRecord struct {
	TS         time.Time      `json:"ts"`
	WorldID    string         `json:"world_id"`
	Generation int            `json:"generation"`
	Phase      string         `json:"phase"`
	Fields     map[string]int `json:"fields,omitempty"`
}

// GenLogger records pipeline phases for one world generation. It implements
// world.EventSink.
type GenLogger struct {
	w   *JSONLZstdWriter
	gen int
}

func NewGenLogger(worldDir string, gen int) *GenLogger {
	return &GenLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "events"), "gen"), gen: gen}
}

func (l *GenLogger) WriteGen(e world.GenLogEntry) error {
	return l.w.Write(GenRecord{
		TS:         l.w.now().UTC(),
		WorldID:    e.WorldID,
		Generation: l.gen,
		Phase:      e.Phase,
		Fields:     e.Fields,
	})
}

func (l *GenLogger) Close() error { return l.w.Close() }

// RunRecord summarizes a finished generation.
type RunRecord struct {
	TS         time.Time   `json:"ts"`
	RunID      string      `json:"run_id"`
	WorldID    string      `json:"world_id"`
	Generation int         `json:"generation"`
	Seed       int64       `json:"seed"`
	Digest     string      `json:"digest,omitempty"`
	Error      string      `json:"error,omitempty"`
	Stats      world.Stats `json:"stats"`
}

// RunLogger keeps a history of generation runs, including failed ones.
type RunLogger struct{ w *JSONLZstdWriter }

func NewRunLogger(worldDir string) *RunLogger {
	return &RunLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "runs"), "runs")}
}

func (l *RunLogger) WriteRun(r RunRecord) error {
	if r.TS.IsZero() {
		r.TS = l.w.now().UTC()
	}
	return l.w.Write(r)
}

func (l *RunLogger) Close() error { return l.w.Close() }

// ReadGenRecords decodes every gen log under worldDir/events in file order.
func ReadGenRecords(worldDir string) ([]GenRecord, error) {
	var out []GenRecord
	err := readJSONL(filepath.Join(worldDir, "events"), "gen-", func(dec *json.Decoder) error {
		var r GenRecord
		if err := dec.Decode(&r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

// ReadRunRecords decodes every run log under worldDir/runs in file order.
func ReadRunRecords(worldDir string) ([]RunRecord, error) {
	var out []RunRecord
	err := readJSONL(filepath.Join(worldDir, "runs"), "runs-", func(dec *json.Decoder) error {
		var r RunRecord
		if err := dec.Decode(&r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

func readJSONL(dir, prefix string, decodeOne func(*json.Decoder) error) error {
	paths, err := filepath.Glob(filepath.Join(dir, prefix+"*.jsonl.zst"))
	if err != nil {
		return err
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := readOne(p, decodeOne); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
	}
	return nil
}

func readOne(path string, decodeOne func(*json.Decoder) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer zr.Close()

	dec := json.NewDecoder(bufio.NewReader(zr))
	for {
		if err := decodeOne(dec); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}
