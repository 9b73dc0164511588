// Quadrelay - Quadradius lobby and game relay server.
//
// Quadrelay hosts the two TCP services the original Flash client
// expects: a lobby for chat and challenges, and a game port that pairs
// opponents and relays their moves. Results are stored in SQLite and
// exposed over a REST API, with optional Discord and MQTT notifications.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quadrelay-project/quadrelay/internal/api"
	"github.com/quadrelay-project/quadrelay/internal/cli"
	"github.com/quadrelay-project/quadrelay/internal/config"
	"github.com/quadrelay-project/quadrelay/internal/connector"
	"github.com/quadrelay-project/quadrelay/internal/db"
	"github.com/quadrelay-project/quadrelay/internal/events"
	"github.com/quadrelay-project/quadrelay/internal/game"
	"github.com/quadrelay-project/quadrelay/internal/lobby"
	"github.com/quadrelay-project/quadrelay/internal/network"
	"github.com/quadrelay-project/quadrelay/internal/scheduler"
	"github.com/quadrelay-project/quadrelay/internal/telemetry"
	"github.com/quadrelay-project/quadrelay/internal/util"
)

const (
	AppName    = "Quadrelay"
	AppVersion = "1.0.0"
	Banner     = `
   ____                  _           _
  / __ \                | |         | |
 | |  | |_   _  __ _  __| |_ __ ___| | __ _ _   _
 | |  | | | | |/ _' |/ _' | '__/ _ \ |/ _' | | | |
 | |__| | |_| | (_| | (_| | | |  __/ | (_| | |_| |
  \___\_\\__,_|\__,_|\__,_|_|  \___|_|\__,_|\__, |
                                             __/ |
                                            |___/  v%s
 Quadradius Lobby & Game Relay
`
)

func main() {
	fmt.Printf(Banner, AppVersion)
	fmt.Println()

	// Defaults first; reconfigured once the config file is loaded.
	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Int("cpus", runtime.NumCPU()).
		Msg("starting Quadrelay")

	cfg, err := config.Load(config.DefaultConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging := cfg.GetLogging()
	logCfg := util.LogConfig{
		Level:      logging.Level,
		Directory:  logging.Directory,
		MaxSizeMB:  logging.MaxSizeMB,
		MaxBackups: logging.MaxBackups,
		Console:    true,
	}
	if err := util.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		log.Fatal().Msg("configuration validation failed, please fix the errors above")
	}

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	if err := util.EnsureDir(cfg.GetServer().DataDir); err != nil {
		log.Fatal().Err(err).Msg("failed to create data directory")
	}

	store, err := db.Open(cfg.DatabasePath())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := events.NewEventBus()

	lobbySv := lobby.NewServer(cfg, store, eventBus)
	gameSv := game.NewServer(cfg, store, eventBus)

	lobbyListener := network.NewListener("lobby", cfg.LobbyAddr(), lobbySv.Handle)
	gameListener := network.NewListener("game", cfg.GameAddr(), gameSv.Handle)

	apiServer := api.NewServer(cfg, store, lobbySv, gameSv)

	if cfg.GetDiscord().Enabled {
		connector.NewDiscordConnector(cfg, eventBus)
		log.Info().Msg("Discord notifications enabled")
	}

	var mqttHandler *telemetry.MQTTHandler
	if cfg.GetMQTT().Enabled {
		mqttHandler, err = telemetry.NewMQTTHandler(cfg, eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	sched := scheduler.NewScheduler(cfg, eventBus, lobbySv, gameSv)

	cliHandler := cli.NewCLI(cfg, eventBus, store, lobbySv, gameSv)

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Int("port", cfg.GetServer().LobbyPort).Msg("starting lobby listener")
		if err := startWithRetry(ctx, "lobby listener", lobbyListener.Start, 15); err != nil {
			errCh <- fmt.Errorf("lobby listener: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Int("port", cfg.GetServer().GamePort).Msg("starting game listener")
		if err := startWithRetry(ctx, "game listener", gameListener.Start, 15); err != nil {
			errCh <- fmt.Errorf("game listener: %w", err)
		}
	}()

	if cfg.GetAPI().Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Int("port", cfg.GetAPI().Port).Msg("starting REST API server")
			if err := startWithRetry(ctx, "API server", apiServer.Start, 15); err != nil {
				log.Warn().Err(err).Msg("API server failed after retries (non-fatal)")
			}
		}()
	}

	if mqttHandler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("starting MQTT telemetry")
			if err := mqttHandler.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting task scheduler")
		sched.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting interactive CLI")
		cliHandler.Start(ctx)
	}()

	// The CLI "quit" command goes through the event bus.
	shutdownCh := make(chan struct{}, 1)
	eventBus.Subscribe(events.EventShutdown, "main.shutdown", func(context.Context, events.Event) error {
		select {
		case shutdownCh <- struct{}{}:
		default:
		}
		return nil
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-shutdownCh:
		log.Info().Msg("shutdown requested via CLI")
	case err := <-errCh:
		log.Error().Err(err).Msg("critical error, initiating shutdown")
	}

	log.Info().Msg("initiating graceful shutdown...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("shutdown timed out after 30 seconds, forcing exit")
	}

	eventBus.Stop()

	log.Info().Msg("Quadrelay stopped")
}

// startWithRetry attempts to start a listener/server with retry on bind
// errors. A fixed 3-second interval gives the OS time to release ports
// after an unclean previous shutdown.
func startWithRetry(ctx context.Context, name string, startFn func(context.Context) error, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = startFn(ctx)
		if lastErr == nil {
			return nil
		}
		if i < maxRetries {
			log.Warn().Err(lastErr).Str("component", name).Int("retry", i+1).Int("max", maxRetries).Msg("bind failed, retrying in 3s...")
			time.Sleep(3 * time.Second)
		}
	}
	return lastErr
}
