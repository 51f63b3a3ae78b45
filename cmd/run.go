package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dailysync/internal/daemon"
	"dailysync/internal/db"
	"dailysync/internal/executor"
	"dailysync/internal/logger"
	"dailysync/internal/pipeline"
	"dailysync/internal/repository"
	"dailysync/internal/scheduler"
	"dailysync/internal/settings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runVisible bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the daemon using the saved jobs",
	RunE:  runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger.InitWithFile(debug, cfg.LogPath)
	defer logger.Sync()

	if err := db.Init(cfg.DBPath); err != nil {
		return err
	}

	defer func() {
		_ = db.Close()
	}()

	ignore, err := pipeline.NewFilter(cfg.Ignore)
	if err != nil {
		return err
	}

	store := settings.NewStore(cfg.SettingsPath)
	jobs, err := store.Load()
	if err != nil {
		return err
	}

	visible := cfg.StartVisible
	if cmd.Flags().Changed("visible") {
		visible = runVisible
	}

	hub := daemon.NewHub()
	manager := daemon.NewJobManager(daemon.Options{
		Executor: executor.Options{
			Workers:     cfg.CopyWorkers,
			CopyTimeout: cfg.CopyTimeout,
			Ignore:      ignore,
		},
		Scheduler: scheduler.Config{
			Interval: cfg.TickInterval,
			Now:      time.Now,
		},
		NotificationsEnabled: cfg.NotificationsEnabled,
		Visible:              visible,
		Settings:             store,
		History:              repository.NewRunRepository(),
		Events:               hub,
	})
	manager.Load(jobs)

	if len(jobs) == 0 {
		logger.Log.Info("no jobs configured, use 'dailysync job add <src> <dst>' to add one")
	}

	watcher, err := settings.NewWatcher(store, manager.Load)
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		logger.Log.Warn("settings hot reload disabled",
			zap.Error(err))
	}

	defer func(w *settings.Watcher) {
		_ = w.Stop()
	}(watcher)

	manager.Start()

	srv := daemon.NewServer(manager, hub, cfg.DaemonPort)
	srv.Start()

	logger.Log.Info("dailysync daemon started",
		zap.Int("jobs", len(jobs)),
		zap.Int("port", cfg.DaemonPort),
		zap.String("settings", store.Path()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Log.Info("shutting down",
			zap.String("signal", sig.String()))
	case <-srv.StopCh():
		logger.Log.Info("stop requested via API")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := manager.Stop(ctx); err != nil {
		logger.Log.Warn("shutdown interrupted active runs",
			zap.Error(err))
	}
	return srv.Stop(ctx)
}

func init() {
	runCmd.Flags().BoolVar(&runVisible, "visible", false, "start with notifications shown immediately")
	rootCmd.AddCommand(runCmd)
}
