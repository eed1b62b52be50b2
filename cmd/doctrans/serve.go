package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/transtools/doctrans/internal/checkpoint"
	"github.com/transtools/doctrans/internal/config"
	"github.com/transtools/doctrans/internal/formats"
	"github.com/transtools/doctrans/internal/httpapi"
	"github.com/transtools/doctrans/internal/jobs"
	"github.com/transtools/doctrans/internal/service"
	"github.com/transtools/doctrans/pkg/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP job service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// settingsBridge adapts the checkpoint store's settings table to the API
// surface.
type settingsBridge struct {
	store *checkpoint.Store
}

func (b *settingsBridge) GetRuntimeSettings(ctx context.Context) (config.RuntimeSettings, bool, error) {
	return config.LoadRuntimeSettings(ctx, b.store)
}

func (b *settingsBridge) UpdateRuntimeSettings(ctx context.Context, next config.RuntimeSettings) error {
	return config.SaveRuntimeSettings(ctx, b.store, next)
}

func runServe(cmd *cobra.Command, args []string) error {
	bootCfg, err := config.NewFromEnv()
	if err != nil {
		return err
	}

	store, err := checkpoint.NewStore(bootCfg.Service.DBPath)
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	defer store.Close()

	// overlay persisted runtime settings on top of the static config
	opts := []config.Option{}
	if settings, found, err := config.LoadRuntimeSettings(cmd.Context(), store); err != nil {
		log.Warn("Failed to load runtime settings: %v", err)
	} else if found {
		opts = append(opts, config.WithRuntimeSettings(settings))
	}
	cfg, err := config.NewFromEnv(opts...)
	if err != nil {
		return err
	}

	registry := formats.DefaultRegistry()
	pipeline := service.NewPipeline(cfg, registry, store)

	queue := jobs.NewQueue(cfg.Service.QueueWorkers, store)
	queue.Start(pipeline.Executor(queue))
	defer queue.Stop()

	retention := checkpoint.NewRetention(store, time.Duration(cfg.Service.RetentionTTLHours)*time.Hour)
	if err := retention.Start(cfg.Service.RetentionCron); err != nil {
		return err
	}
	defer retention.Stop()

	server := httpapi.NewServer(queue, registry, httpapi.WithSettingsStore(&settingsBridge{store: store}))

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening on %s", cfg.Service.HTTPAddr)
		if err := server.ListenAndServe(cfg.Service.HTTPAddr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("Received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
