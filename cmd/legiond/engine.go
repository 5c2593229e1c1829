package main

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"legioncraft.ai/internal/persistence/snapshot"
	"legioncraft.ai/internal/sim/catalogs"
	"legioncraft.ai/internal/sim/host"
	"legioncraft.ai/internal/sim/registry"
	"legioncraft.ai/internal/sim/tuning"
	"legioncraft.ai/internal/sim/world"
)

type engineConfig struct {
	Tuning    tuning.Tuning
	ConfigDir string
	Clock     host.Clock
	Rand      host.RandomSource
	Notify    host.NotificationSink
	Recorders []registry.Recorder
	Logger    *zap.Logger
	// AfterTick runs on the tick goroutine once the world has stepped.
	AfterTick func(registry.Status)
}

// engine is the synthetic world and the registry driving it. The world
// steps on the registry's goroutine right after each registry tick.
type engine struct {
	tuning tuning.Tuning
	world  *world.World
	reg    *registry.Registry
}

func newEngine(cfg engineConfig) (*engine, error) {
	blocks, err := catalogs.Load(cfg.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("load block catalog: %w", err)
	}
	e := &engine{tuning: cfg.Tuning}
	e.world = world.New(world.ConfigFrom(cfg.Tuning.World), blocks, cfg.Logger)
	e.reg = registry.New(registry.Config{
		Tuning:    cfg.Tuning,
		Host:      e.world,
		Notify:    cfg.Notify,
		Clock:     cfg.Clock,
		Rand:      cfg.Rand,
		Logger:    cfg.Logger,
		Recorders: cfg.Recorders,
		AfterTick: func(st registry.Status) {
			e.world.Step()
			if cfg.AfterTick != nil {
				cfg.AfterTick(st)
			}
		},
	})
	e.world.SetEventSink(e.reg.Enqueue)
	return e, nil
}

// snapshot must run on the tick goroutine, or after it stopped.
func (e *engine) snapshot(st registry.Status) snapshot.SnapshotV1 {
	return snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			Tick:    st.Tick,
			Seed:    e.tuning.World.Seed,
			SavedAt: timeOf(st),
		},
		Registry: e.reg.Export(),
		World:    e.world.Export(),
	}
}

// resume restores the newest snapshot in dir. It reports false when there
// is none.
func (e *engine) resume(dir string, log *zap.Logger) (bool, error) {
	path, err := snapshot.Latest(dir)
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	if snap.Header.Seed != e.tuning.World.Seed {
		log.Warn("snapshot seed differs from config; terrain will not match",
			zap.Int64("snapshot_seed", snap.Header.Seed),
			zap.Int64("config_seed", e.tuning.World.Seed),
		)
	}
	e.world.Import(snap.World)
	e.reg.Import(snap.Registry)
	log.Info("resumed from snapshot",
		zap.String("path", path),
		zap.Uint64("tick", snap.Header.Tick),
		zap.Int("legions", len(snap.Registry.Legions)),
	)
	return true, nil
}
