// Package log writes append-only, hourly rotated JSONL.zst streams.
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"legioncraft.ai/internal/sim/registry"
)

const hourLayout = "2006-01-02-15"

// JSONLZstdWriter appends one JSON document per line to
// <dir>/<prefix>-YYYY-MM-DD-HH.jsonl.zst, opening a new file whenever the
// record's hour changes.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{baseDir: baseDir, prefix: prefix}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Write appends v to the file for the hour containing at.
func (w *JSONLZstdWriter) Write(at time.Time, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	hour := at.UTC().Format(hourLayout)
	if hour != w.curHour || w.w == nil {
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
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.PathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
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
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err error
	if w.w != nil {
		err = w.w.Flush()
	}
	if w.enc != nil {
		err = errors.Join(err, w.enc.Close())
		w.enc = nil
	}
	if w.f != nil {
		err = errors.Join(err, w.f.Close())
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err
}

func (w *JSONLZstdWriter) PathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// ReadJSONL decodes every line of a .jsonl.zst file into a fresh T. A file
// that was appended to across restarts holds several zstd frames; the
// decoder reads them back to back.
func ReadJSONL[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []T
	jd := json.NewDecoder(dec)
	for {
		var v T
		if err := jd.Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, v)
	}
}

// LifecycleLogger is a registry.Recorder writing the legion audit trail.
type LifecycleLogger struct{ w *JSONLZstdWriter }

func NewLifecycleLogger(dataDir string) *LifecycleLogger {
	return &LifecycleLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "lifecycle"), "lifecycle")}
}

func (l *LifecycleLogger) RecordLifecycle(ev registry.LifecycleEvent) error {
	return l.w.Write(ev.At, ev)
}

func (l *LifecycleLogger) Close() error { return l.w.Close() }

// StatusLogger writes a registry status line every N ticks.
type StatusLogger struct {
	w     *JSONLZstdWriter
	every uint64
}

type StatusEntry struct {
	Tick  uint64         `json:"tick"`
	At    time.Time      `json:"at"`
	Stats registry.Stats `json:"stats"`
}

func NewStatusLogger(dataDir string, everyTicks int) *StatusLogger {
	if everyTicks <= 0 {
		everyTicks = 1
	}
	return &StatusLogger{
		w:     NewJSONLZstdWriter(filepath.Join(dataDir, "status"), "status"),
		every: uint64(everyTicks),
	}
}

func (l *StatusLogger) WriteStatus(st registry.Status) error {
	if st.Tick%l.every != 0 {
		return nil
	}
	at := time.UnixMilli(st.At).UTC()
	return l.w.Write(at, StatusEntry{Tick: st.Tick, At: at, Stats: st.Stats})
}

func (l *StatusLogger) Close() error { return l.w.Close() }
