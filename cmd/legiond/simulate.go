package main

import (
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	plog "legioncraft.ai/internal/persistence/log"
	"legioncraft.ai/internal/sim/host"
	"legioncraft.ai/internal/sim/registry"
)

type simulateFlags struct {
	ticks      int
	seed       int64
	forceSpawn bool
	size       int
	record     bool
}

// tally counts lifecycle events in memory for the summary.
type tally struct {
	retired map[string]int
	dropped map[string]int
	kills   int
	deaths  int
}

func newTally() *tally {
	return &tally{
		retired: map[string]int{},
		dropped: map[string]int{},
	}
}

func (t *tally) RecordLifecycle(ev registry.LifecycleEvent) error {
	switch ev.Kind {
	case registry.LegionRetired:
		t.retired[ev.Reason]++
		t.kills += ev.Kills
		t.deaths += ev.Deaths
	case registry.WarningDropped:
		t.dropped[ev.Reason]++
	}
	return nil
}

func (a *app) simulateCmd() *cobra.Command {
	f := &simulateFlags{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the engine headless for a fixed number of ticks",
		Long: `Runs the registry and the synthetic world on a manual clock, as fast as
possible, and prints a summary. The same seed and config always produce
the same run.

Example:
  legiond simulate --ticks 4800 --seed 7 --force-spawn`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.simulate(cmd.OutOrStdout(), f)
		},
	}
	cmd.Flags().IntVar(&f.ticks, "ticks", 2400, "ticks to run")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "world and registry seed (0 keeps the configured world seed)")
	cmd.Flags().BoolVar(&f.forceSpawn, "force-spawn", false, "spawn a legion against every actor before the first tick")
	cmd.Flags().IntVar(&f.size, "size", 0, "legion size for --force-spawn (0 rolls one)")
	cmd.Flags().BoolVar(&f.record, "record", false, "also write the lifecycle log under --data")
	return cmd
}

func (a *app) simulate(out io.Writer, f *simulateFlags) error {
	tu, err := a.loadTuning()
	if err != nil {
		return err
	}
	if f.seed != 0 {
		tu.World.Seed = f.seed
	}

	t := newTally()
	recorders := []registry.Recorder{t}
	if f.record {
		lifecycle := plog.NewLifecycleLogger(a.dataDir)
		defer lifecycle.Close()
		recorders = append(recorders, lifecycle)
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := host.NewManualClock(start)
	e, err := newEngine(engineConfig{
		Tuning:    tu,
		ConfigDir: a.configDir(),
		Clock:     clock,
		Rand:      rand.New(rand.NewSource(tu.World.Seed)),
		Recorders: recorders,
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}

	if f.forceSpawn {
		for _, actor := range e.world.PresentActors() {
			id, err := e.reg.ForceSpawn(actor, f.size)
			if err != nil {
				a.logger.Info("force spawn failed", zap.String("actor", string(actor)), zap.Error(err))
				continue
			}
			a.logger.Debug("force spawned", zap.String("actor", string(actor)), zap.Int("legion", id))
		}
	}

	step := e.reg.Settings().TickInterval
	began := time.Now()
	peak := 0
	for i := 0; i < f.ticks; i++ {
		clock.Advance(step)
		e.reg.Tick()
		if n := e.reg.Stats().Legions; n > peak {
			peak = n
		}
	}
	elapsed := time.Since(began)

	st := e.reg.Stats()
	actors, agents := e.world.Counts()
	fmt.Fprintf(out, "simulated %s ticks (%s of game time) in %s\n",
		humanize.Comma(int64(f.ticks)),
		strings.TrimSpace(humanize.RelTime(start, clock.Now(), "", "")),
		elapsed.Round(time.Millisecond),
	)
	fmt.Fprintf(out, "legions: %s created, %s retired, %s aborted, %s live (peak %d)\n",
		humanize.Comma(int64(st.Created)),
		humanize.Comma(int64(st.Retired)),
		humanize.Comma(int64(st.Aborted)),
		humanize.Comma(int64(st.Legions)),
		peak,
	)
	fmt.Fprintf(out, "warnings: %s issued, %s dropped; placement failures: %s\n",
		humanize.Comma(int64(st.WarningsIssued)),
		humanize.Comma(int64(st.WarningsDropped)),
		humanize.Comma(int64(st.PlacementFailed)),
	)
	fmt.Fprintf(out, "combat: %s kills, %s deaths; world has %d actors and %d agents\n",
		humanize.Comma(int64(t.kills)),
		humanize.Comma(int64(t.deaths)),
		actors, agents,
	)
	writeCounts(out, "retired by reason", t.retired)
	writeCounts(out, "warnings dropped by reason", t.dropped)
	if st.Violations > 0 {
		fmt.Fprintf(out, "invariant violations: %d\n", st.Violations)
	}
	return nil
}

func writeCounts(out io.Writer, title string, m map[string]int) {
	if len(m) == 0 {
		return
	}
	fmt.Fprintf(out, "%s:\n", title)
	for _, k := range sortedKeys(m) {
		fmt.Fprintf(out, "  %-20s %s\n", k, humanize.Comma(int64(m[k])))
	}
}
