package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"legioncraft.ai/internal/persistence/indexdb"
	plog "legioncraft.ai/internal/persistence/log"
	"legioncraft.ai/internal/persistence/snapshot"
	"legioncraft.ai/internal/sim/host"
	"legioncraft.ai/internal/sim/registry"
	"legioncraft.ai/internal/transport/observer"
)

type serveFlags struct {
	addr          string
	fresh         bool
	keepSnapshots int
	statusEvery   int
	disableIndex  bool
}

func (a *app) serveCmd() *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine against the synthetic world in real time",
		Long: `Runs the registry tick loop, the synthetic world, the observer stream and
the local admin endpoints until interrupted.

State is snapshotted every snapshot_every_ticks and on shutdown, and the
newest snapshot is restored on start unless --fresh is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.addr, "addr", "127.0.0.1:8080", "HTTP listen address")
	cmd.Flags().BoolVar(&f.fresh, "fresh", false, "ignore existing snapshots")
	cmd.Flags().IntVar(&f.keepSnapshots, "keep-snapshots", 5, "snapshots to keep on disk")
	cmd.Flags().IntVar(&f.statusEvery, "status-every", 20, "write a status line every N ticks")
	cmd.Flags().BoolVar(&f.disableIndex, "no-index", false, "do not maintain the SQLite history index")
	return cmd
}

func (a *app) serve(parent context.Context, f *serveFlags) error {
	log := a.logger
	tu, err := a.loadTuning()
	if err != nil {
		return err
	}

	lifecycle := plog.NewLifecycleLogger(a.dataDir)
	defer lifecycle.Close()
	status := plog.NewStatusLogger(a.dataDir, f.statusEvery)
	defer status.Close()
	recorders := []registry.Recorder{lifecycle}

	var index *indexdb.SQLiteIndex
	if !f.disableIndex {
		index, err = indexdb.OpenSQLite(a.indexPath())
		if err != nil {
			return err
		}
		defer func() {
			if err := index.Close(); err != nil {
				log.Warn("close index", zap.Error(err))
			}
		}()
		recorders = append(recorders, index)
	}

	hub := observer.NewHub(log)
	snaps := make(chan snapshot.SnapshotV1, 1)

	var e *engine
	e, err = newEngine(engineConfig{
		Tuning:    tu,
		ConfigDir: a.configDir(),
		Clock:     host.SystemClock{},
		Notify:    hub,
		Recorders: recorders,
		Logger:    log,
		AfterTick: func(st registry.Status) {
			hub.Publish(st)
			if err := status.WriteStatus(st); err != nil {
				log.Warn("status log", zap.Error(err))
			}
			if every := uint64(tu.SnapshotEveryTicks); every > 0 && st.Tick%every == 0 {
				select {
				case snaps <- e.snapshot(st):
				default:
					log.Warn("snapshot writer busy; skipping", zap.Uint64("tick", st.Tick))
				}
			}
		},
	})
	if err != nil {
		return err
	}
	if !f.fresh {
		if _, err := e.resume(a.snapshotDir(), log); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for snap := range snaps {
			a.writeSnapshot(snap, index, f.keepSnapshots)
		}
	}()

	ctx, cancel := signalContext(parent)
	defer cancel()

	mux := http.NewServeMux()
	observer.NewServer(hub, e.reg, log).Register(mux)
	srv := &http.Server{
		Addr:              f.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", f.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
	}()

	log.Info("registry running",
		zap.Duration("tick", e.reg.Settings().TickInterval),
		zap.Bool("development", tu.DevelopmentMode),
		zap.Bool("night_only", tu.NightOnly),
	)
	_ = e.reg.Run(ctx)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)

	close(snaps)
	wg.Wait()
	// The tick loop has stopped, so state can be read directly.
	a.writeSnapshot(e.snapshot(e.reg.Status()), index, f.keepSnapshots)
	log.Info("stopped", zap.Uint64("tick", e.reg.CurrentTick()))

	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}

func (a *app) writeSnapshot(snap snapshot.SnapshotV1, index *indexdb.SQLiteIndex, keep int) {
	path := snapshot.PathFor(a.snapshotDir(), snap.Header.Tick)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		a.logger.Error("write snapshot", zap.String("path", path), zap.Error(err))
		return
	}
	index.RecordSnapshot(path, snap)
	if err := snapshot.Prune(a.snapshotDir(), keep); err != nil {
		a.logger.Warn("prune snapshots", zap.Error(err))
	}
	a.logger.Info("snapshot written", zap.String("path", path), zap.Uint64("tick", snap.Header.Tick))
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func timeOf(st registry.Status) time.Time { return time.UnixMilli(st.At).UTC() }
