package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HerbHall/routeforge/internal/config"
	"github.com/HerbHall/routeforge/internal/loader"
	"github.com/HerbHall/routeforge/internal/manifest"
	"github.com/HerbHall/routeforge/internal/registry"
	"github.com/HerbHall/routeforge/internal/server"
	"github.com/HerbHall/routeforge/internal/version"
	"go.uber.org/zap"
)

func main() {
	// Subcommand dispatch (before flag.Parse).
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Println(version.Info())
		return
	}

	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration (before logger, so log level/format can be configured).
	viperCfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("RouteForge starting", zap.String("version", version.Short()))

	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	manifestPath := viperCfg.GetString("plugins.manifest")
	store := manifest.NewStore(manifestPath, logger.Named("manifest"))
	ld := loader.New(logger.Named("loader"))

	reg := registry.New(store, &openerAdapter{ld}, registry.Options{
		Namespaced: viperCfg.GetBool("plugins.namespaced"),
		Strict:     viperCfg.GetBool("plugins.strict"),
	}, logger.Named("registry"))

	table, err := reg.Load()
	if err != nil {
		logger.Fatal("failed to load plugins", zap.Error(err))
	}
	logger.Info("plugins loaded",
		zap.String("manifest", manifestPath),
		zap.Int("routes", table.Len()),
	)

	addr := viperCfg.GetString("server.host") + ":" + viperCfg.GetString("server.port")
	mountPath := viperCfg.GetString("server.mount_path")
	srv := server.New(addr, mountPath, reg, logger.Named("server"), nil)
	srv.SwapTable(table)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reload := func() {
		next, err := reg.Load()
		if err != nil {
			logger.Error("reload failed, keeping current routes", zap.Error(err))
			return
		}
		srv.SwapTable(next)
		logger.Info("routes reloaded", zap.Int("routes", next.Len()))
	}

	// Watch the manifest for changes when enabled.
	if viperCfg.GetBool("plugins.watch") {
		debounce := viperCfg.GetDuration("plugins.watch_debounce")
		go func() {
			if err := manifest.Watch(ctx, manifestPath, debounce, logger.Named("watch"), reload); err != nil {
				logger.Error("manifest watcher stopped", zap.Error(err))
			}
		}()
	}

	// SIGHUP triggers a reload regardless of the watch setting.
	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hupCh:
				logger.Info("received SIGHUP, reloading plugins")
				reload()
			}
		}
	}()

	// Start server in background
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("RouteForge ready", zap.String("addr", addr), zap.String("mount", mountPath))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("RouteForge stopped")
}

// openerAdapter adapts loader.Loader to the registry.Opener interface.
// Lives in the composition root to avoid coupling registry -> loader.
type openerAdapter struct {
	loader *loader.Loader
}

func (a *openerAdapter) Open(path string) (registry.Library, error) {
	lib, err := a.loader.Open(path)
	if err != nil {
		return nil, err
	}
	return lib, nil
}
