package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/modrt/modrt/internal/config"
	"github.com/modrt/modrt/internal/engine"
	"github.com/modrt/modrt/internal/metrics"
	"github.com/modrt/modrt/internal/module"
	"github.com/modrt/modrt/internal/persist"
	"github.com/modrt/modrt/internal/scripting"
)

func newRunCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var profileMode string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Discover modules, load the startup list and run the frame loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			switch profileMode {
			case "":
			case "cpu":
				defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
			case "mem":
				defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
			default:
				return fmt.Errorf("unknown profile mode %q", profileMode)
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVar(&profileMode, "profile", "", "write a cpu or mem profile to the working directory")
	return cmd
}

func loaders(log *zap.Logger) module.Loaders {
	return module.Loaders{
		"go":  builtinCatalog(),
		"lua": scripting.NewLoader(log.Named("lua")),
	}
}

func run(cfg *config.Config) error {
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	infos, err := module.Discover(cfg.Modules.Dir)
	if err != nil {
		return fmt.Errorf("discover modules: %w", err)
	}
	graph, err := module.BuildGraph(infos)
	if err != nil {
		return fmt.Errorf("module graph: %w", err)
	}
	log.Info("modules discovered", zap.String("dir", cfg.Modules.Dir), zap.Int("count", graph.Len()))

	eng := engine.New(graph, loaders(log), log)

	if cfg.Database.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err := persist.Open(ctx, cfg.Database, log.Named("db"))
		cancel()
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		sub := persist.NewSubcontext(persist.NewModuleRepo(db), log.Named("persist"))
		if err := eng.AddSubcontext(sub, persist.PriorityPersistence); err != nil {
			return err
		}
	}
	if cfg.Metrics.Enabled {
		sub, err := metrics.New(cfg.Metrics, log.Named("metrics"))
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		if err := eng.AddSubcontext(sub, metrics.PriorityMetrics); err != nil {
			return err
		}
	}

	startup, err := engine.ReadStartupList(cfg.Modules.StartupList)
	if err != nil {
		return err
	}
	if err := eng.Initialize(startup); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer eng.Shutdown()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)

	interval := cfg.Runtime.FrameInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("frame loop started", zap.Duration("interval", interval), zap.Int("startup", len(startup)))
	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			if err := eng.Frame(now.Sub(last)); err != nil {
				return err
			}
			last = now
			if cfg.Runtime.MaxFrames > 0 && eng.FrameCount() >= uint64(cfg.Runtime.MaxFrames) {
				log.Info("frame limit reached", zap.Uint64("frames", eng.FrameCount()))
				return nil
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			return nil
		}
	}
}
