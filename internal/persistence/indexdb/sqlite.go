// Package indexdb keeps a queryable SQLite index of legion history. The
// JSONL lifecycle log stays the source of truth; the index may drop writes
// when it falls behind.
package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"legioncraft.ai/internal/persistence/snapshot"
	"legioncraft.ai/internal/sim/registry"
)

const schemaVersion = "1"

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropLifecycle atomic.Uint64
	dropSnapshot  atomic.Uint64
	writeErrors   atomic.Uint64
}

type reqKind int

const (
	reqLifecycle reqKind = iota + 1
	reqSnapshot
	reqSync
)

type req struct {
	kind reqKind

	ev       registry.LifecycleEvent
	snapshot snapshotRow
	done     chan struct{}
}

type snapshotRow struct {
	Tick     uint64
	Path     string
	Legions  int
	Warnings int
	Agents   int
	SavedAt  time.Time
}

type Stats struct {
	QueueDepth         int    `json:"queue_depth"`
	QueueCapacity      int    `json:"queue_capacity"`
	DropLifecycleTotal uint64 `json:"drop_lifecycle_total"`
	DropSnapshotTotal  uint64 `json:"drop_snapshot_total"`
	WriteErrorTotal    uint64 `json:"write_error_total"`
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
		ch: make(chan req, 65536),
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
		`CREATE TABLE IF NOT EXISTS legions (
			id INTEGER PRIMARY KEY,
			target TEXT NOT NULL,
			anchor_x INTEGER NOT NULL,
			anchor_y INTEGER NOT NULL,
			anchor_z INTEGER NOT NULL,
			created_tick INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			requested INTEGER NOT NULL,
			spawned INTEGER NOT NULL,
			retired_tick INTEGER,
			retired_at TEXT,
			retire_reason TEXT,
			kills INTEGER NOT NULL DEFAULT 0,
			deaths INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_legions_target ON legions(target, created_tick);`,
		`CREATE TABLE IF NOT EXISTS transitions (
			legion_id INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			at TEXT NOT NULL,
			from_state TEXT NOT NULL,
			to_state TEXT NOT NULL,
			size INTEGER NOT NULL,
			PRIMARY KEY (legion_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS warnings (
			actor TEXT NOT NULL,
			issued_tick INTEGER NOT NULL,
			issued_at TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			outcome TEXT NOT NULL DEFAULT 'pending',
			reason TEXT,
			resolved_tick INTEGER,
			legion_id INTEGER,
			PRIMARY KEY (actor, issued_tick)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_warnings_outcome ON warnings(outcome);`,
		`CREATE TABLE IF NOT EXISTS failures (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			actor TEXT NOT NULL,
			legion_id INTEGER,
			requested INTEGER NOT NULL,
			spawned INTEGER NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			legions INTEGER NOT NULL,
			warnings INTEGER NOT NULL,
			agents INTEGER NOT NULL,
			saved_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version',?)`, schemaVersion)
	return err
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordLifecycle queues ev for indexing. It never blocks and never fails;
// when the queue is full the event is dropped and counted.
func (s *SQLiteIndex) RecordLifecycle(ev registry.LifecycleEvent) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqLifecycle, ev: ev}:
	default:
		s.dropLifecycle.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:     snap.Header.Tick,
		Path:     path,
		Legions:  len(snap.Registry.Legions),
		Warnings: len(snap.Registry.Warnings),
		Agents:   len(snap.World.Agents),
		SavedAt:  snap.Header.SavedAt,
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// Sync waits until everything queued before it is committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqSync, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:         len(s.ch),
		QueueCapacity:      cap(s.ch),
		DropLifecycleTotal: s.dropLifecycle.Load(),
		DropSnapshotTotal:  s.dropSnapshot.Load(),
		WriteErrorTotal:    s.writeErrors.Load(),
	}
}

func ts(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastFailureTick uint64
		failureSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.writeErrors.Add(1)
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
		if err := tx.Commit(); err != nil {
			s.writeErrors.Add(1)
		}
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
		s.writeErrors.Add(1)
	}
	exec := func(query string, args ...any) bool {
		if _, err := tx.Exec(query, args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqLifecycle:
			ev := r.ev
			switch ev.Kind {
			case registry.WarningIssued:
				var p [3]int
				if ev.Pos != nil {
					p = [3]int{ev.Pos.X, ev.Pos.Y, ev.Pos.Z}
				}
				exec(`INSERT OR REPLACE INTO warnings(actor,issued_tick,issued_at,x,y,z,outcome) VALUES(?,?,?,?,?,?,'pending')`,
					string(ev.Actor), int64(ev.Tick), ts(ev.At), p[0], p[1], p[2])

			case registry.WarningDropped:
				exec(`UPDATE warnings SET outcome='dropped', reason=?, resolved_tick=? WHERE actor=? AND outcome='pending'`,
					ev.Reason, int64(ev.Tick), string(ev.Actor))

			case registry.LegionCreated:
				var p [3]int
				if ev.Pos != nil {
					p = [3]int{ev.Pos.X, ev.Pos.Y, ev.Pos.Z}
				}
				if !exec(`INSERT OR REPLACE INTO legions(id,target,anchor_x,anchor_y,anchor_z,created_tick,created_at,requested,spawned) VALUES(?,?,?,?,?,?,?,?,?)`,
					ev.Legion, string(ev.Actor), p[0], p[1], p[2], int64(ev.Tick), ts(ev.At), ev.Requested, ev.Size) {
					continue
				}
				exec(`UPDATE warnings SET outcome='spawned', resolved_tick=?, legion_id=? WHERE actor=? AND outcome='pending'`,
					int64(ev.Tick), ev.Legion, string(ev.Actor))

			case registry.SpawnAborted, registry.PlacementFailed:
				if ev.Tick != lastFailureTick {
					lastFailureTick = ev.Tick
					failureSeq = 0
				}
				seq := failureSeq
				failureSeq++
				var legionID any
				if ev.Legion != 0 {
					legionID = ev.Legion
				}
				exec(`INSERT OR REPLACE INTO failures(tick,seq,kind,actor,legion_id,requested,spawned) VALUES(?,?,?,?,?,?,?)`,
					int64(ev.Tick), seq, string(ev.Kind), string(ev.Actor), legionID, ev.Requested, ev.Size)

			case registry.StateChanged:
				exec(`INSERT OR REPLACE INTO transitions(legion_id,tick,at,from_state,to_state,size) VALUES(?,?,?,?,?,?)`,
					ev.Legion, int64(ev.Tick), ts(ev.At), ev.From, ev.To, ev.Size)

			case registry.LegionRetired:
				exec(`UPDATE legions SET retired_tick=?, retired_at=?, retire_reason=?, kills=?, deaths=? WHERE id=?`,
					int64(ev.Tick), ts(ev.At), ev.Reason, ev.Kills, ev.Deaths, ev.Legion)
			}

		case reqSnapshot:
			sn := r.snapshot
			exec(`INSERT OR REPLACE INTO snapshots(tick,path,legions,warnings,agents,saved_at) VALUES(?,?,?,?,?,?)`,
				int64(sn.Tick), sn.Path, sn.Legions, sn.Warnings, sn.Agents, ts(sn.SavedAt))
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
