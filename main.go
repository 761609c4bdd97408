package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/isdelr/ender-world-manager/internal/api"
	"github.com/isdelr/ender-world-manager/internal/config"
	"github.com/isdelr/ender-world-manager/internal/docker"
	"github.com/isdelr/ender-world-manager/internal/logger"
	"github.com/isdelr/ender-world-manager/internal/monitoring"
	"github.com/isdelr/ender-world-manager/internal/properties"
	"github.com/isdelr/ender-world-manager/internal/rcon"
	"github.com/isdelr/ender-world-manager/internal/services"
	"github.com/isdelr/ender-world-manager/internal/websocket"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

// app holds the wired services shared by every command.
type app struct {
	cfg      *config.Config
	hub      *websocket.Hub
	props    *properties.Store
	docker   *docker.Client
	events   *services.EventService
	worlds   *services.WorldService
	backups  *services.BackupService
	sync     *services.SyncService
	status   *services.StatusService
	restarts *docker.ContainerRestarter
}

func newApp(cfg *config.Config) *app {
	a := &app{cfg: cfg, hub: websocket.NewHub()}

	console := rcon.NewClient(cfg.RconHost, cfg.RconPort, cfg.RconPassword, cfg.RconTimeout)
	a.props = properties.NewStore(filepath.Join(cfg.DataRoot, "server.properties"))
	a.events = services.NewEventService(a.hub)
	locks := services.NewWorldLocker()

	var restarter services.Restarter
	if cfg.GameContainer != "" {
		dockerClient, err := docker.New()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Docker client, container restart fallback disabled")
		} else {
			a.docker = dockerClient
			a.restarts = docker.NewContainerRestarter(dockerClient, cfg.GameContainer)
			restarter = a.restarts
		}
	}

	a.worlds = services.NewWorldService(cfg.DataRoot, a.props, console, restarter, locks, a.events)
	a.backups = services.NewBackupService(services.BackupOptions{
		DataRoot:    cfg.DataRoot,
		BackupDir:   cfg.BackupPath,
		SettleDelay: cfg.SaveSettleDelay,
		Timeout:     cfg.BackupTimeout,
	}, console, services.NewTarGzArchiver(), locks, a.events)

	var backend services.SyncBackend
	switch cfg.SyncBackend {
	case "s3":
		backend = services.NewS3Backend(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.RcloneRemoteDir, cfg.S3UseSSL)
	default:
		backend = services.NewRcloneBackend(cfg.RcloneBinary, cfg.RcloneConfigPath, cfg.RcloneRemote, cfg.RcloneRemoteDir, services.ExecRunner{})
	}
	a.sync = services.NewSyncService(backend, a.backups, a.events, cfg.SyncTimeout)
	a.status = services.NewStatusService(cfg.DataRoot, console, a.props, a.sync)
	return a
}

func (a *app) close() {
	if a.docker != nil {
		a.docker.Close()
	}
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg
	if err := os.MkdirAll(cfg.BackupPath, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	if _, err := os.Stat(cfg.DataRoot); err != nil {
		log.Warn().Err(err).Str("path", cfg.DataRoot).Msg("Data directory not accessible, world listing will be empty")
	}
	if a.restarts != nil {
		if state, err := a.restarts.State(ctx); err != nil {
			log.Warn().Err(err).Str("container", cfg.GameContainer).Msg("Could not inspect game server container")
		} else {
			log.Info().Str("container", cfg.GameContainer).Str("state", state).Msg("Game server container found")
		}
	}

	go a.hub.Run()
	defer a.hub.Stop()

	poller := monitoring.NewStatusPoller(a.status, a.worlds, a.events, a.hub, cfg.StatusPollInterval)
	go poller.Run()
	defer poller.Stop()

	if cfg.BackupSchedule != "" {
		scheduler := monitoring.NewScheduler(monitoring.SchedulerOptions{
			Spec:       cfg.BackupSchedule,
			Retention:  cfg.BackupRetention,
			AutoUpload: cfg.BackupAutoUpload,
		}, a.worlds, a.backups, a.sync, a.events)
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	router := api.NewRouter(api.Services{
		Worlds:     a.worlds,
		Backups:    a.backups,
		Sync:       a.sync,
		Status:     a.status,
		Events:     a.events,
		Properties: a.props,
		Hub:        a.hub,
	}, cfg.CORSOrigins)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("rcon", cfg.RconAddr()).Str("data", cfg.DataRoot).Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("ListenAndServe(): %w", err)
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exiting")
	return nil
}

func runBackup(ctx context.Context, a *app, world string, upload bool) error {
	if world == "" {
		world = a.worlds.ActiveWorld()
	}
	result, err := a.backups.CreateBackup(ctx, world)
	if err != nil {
		return errors.New(services.UserMessage(err))
	}
	fmt.Printf("%s (%.2f MB)\n", result.Filename, result.SizeMB)

	if a.cfg.BackupRetention > 0 {
		if _, err := a.backups.PruneBackups(world, a.cfg.BackupRetention); err != nil {
			log.Warn().Err(err).Msg("Failed to prune old backups")
		}
	}
	if upload {
		msg, err := a.sync.Upload(ctx, result.Filename)
		if err != nil {
			return errors.New(services.UserMessage(err))
		}
		fmt.Println(msg)
	}
	return nil
}

func listWorlds(a *app) error {
	worlds, err := a.worlds.ListWorlds()
	if err != nil {
		return errors.New(services.UserMessage(err))
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(worlds)
}

func main() {
	var a *app
	cmd := &cli.Command{
		Name:  "world-manager",
		Usage: "Manage worlds, backups and remote sync of a Minecraft server",
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := config.Load()
			if err != nil {
				return ctx, err
			}
			logger.Init(cfg.LogLevel, cfg.LogJSON)
			a = newApp(cfg)
			return ctx, nil
		},
		After: func(ctx context.Context, cmd *cli.Command) error {
			if a != nil {
				a.close()
			}
			return nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return serve(ctx, a)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the HTTP API and background jobs",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return serve(ctx, a)
				},
			},
			{
				Name:  "backup",
				Usage: "Back up a world once and exit",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "world", Aliases: []string{"w"}, Usage: "world to back up (default: active world)"},
					&cli.BoolFlag{Name: "upload", Usage: "upload the archive to remote storage"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runBackup(ctx, a, cmd.String("world"), cmd.Bool("upload") || a.cfg.BackupAutoUpload)
				},
			},
			{
				Name:  "worlds",
				Usage: "Print the worlds in the data directory as JSON",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return listWorlds(a)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("world-manager failed")
	}
}
