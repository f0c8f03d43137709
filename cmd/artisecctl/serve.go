package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mmcdole/artisec/pkg/authorization"
	"github.com/mmcdole/artisec/pkg/cache"
	"github.com/mmcdole/artisec/pkg/config"
	"github.com/mmcdole/artisec/pkg/grantfile"
	"github.com/mmcdole/artisec/pkg/logging"
	"github.com/mmcdole/artisec/pkg/status"
)

// cacheMetrics adapts a controller cache's hit/miss counters to
// status.MetricsProvider: a permission check is any Get against the
// controller cache, hit or miss.
type cacheMetrics struct {
	controllers *cache.Cache[string, *authorization.AccessController]
	startedAt   time.Time
}

func (m *cacheMetrics) GetPermissionChecks() int64 {
	stats := m.controllers.Stats()
	return stats.Hits + stats.MissNotFound + stats.MissExpired + stats.MissSoftRef
}

func (m *cacheMetrics) GetStartTime() time.Time {
	return m.startedAt
}

func newServeCommand() *cobra.Command {
	var (
		configPath string
		statusDir  string
		heartbeat  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run as a long-lived process, reloading grants on SIGHUP and writing status files until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, statusDir, heartbeat)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the engine's YAML configuration file")
	cmd.Flags().StringVar(&statusDir, "status-dir", "", "directory to write last_start/last_stop/running status files to")
	cmd.Flags().DurationVar(&heartbeat, "heartbeat", 30*time.Second, "interval between running-file updates")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("status-dir")

	return cmd
}

func runServe(configPath, statusDir string, heartbeat time.Duration) error {
	fs := afero.NewOsFs()
	cfg, err := config.Load(fs, configPath)
	if err != nil {
		return err
	}

	if err := logging.Initialize(cfg.AuditLogPath, filepath.Join(statusDir, "artisecctl.log"), loggingLevel(cfg.Debug)); err != nil {
		return err
	}
	defer logging.App.Close()

	source, err := grantfile.Load(fs, cfg.GrantsFilePath, logging.Audit)
	if err != nil {
		return err
	}

	controllers := newControllerCache(cfg)
	mgr := authorization.NewManager(source, nil, controllers)
	mgr.SetDisabled(cfg.Disabled)

	writer, err := status.New(statusDir, heartbeat, version)
	if err != nil {
		return err
	}
	writer.SetMetricsProvider(&cacheMetrics{controllers: controllers, startedAt: time.Now()})

	if err := writer.WriteStartFile(); err != nil {
		return err
	}
	writer.StartHeartbeat()

	startedAt := time.Now()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	logging.App.Info("artisecctl serve started", "config", configPath, "grants", cfg.GrantsFilePath)

	for s := range sig {
		if s == syscall.SIGHUP {
			if err := source.Reload(); err != nil {
				logging.App.Error("failed to reload grants", "error", err)
				continue
			}
			if reloaded, err := config.Load(fs, configPath); err != nil {
				logging.App.Error("failed to reload config", "error", err)
			} else {
				mgr.SetDisabled(reloaded.Disabled)
			}
			logging.App.Info("reloaded grants, invalidating cached controllers", "authorizationDisabled", mgr.Disabled())
			mgr.InvalidateAll()
			continue
		}
		break
	}

	writer.Stop()
	return writer.WriteStopFile("signal received", time.Since(startedAt))
}
