package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/AaronLay10/LockStep/internal/api"
	"github.com/AaronLay10/LockStep/internal/config"
	"github.com/AaronLay10/LockStep/internal/events"
	"github.com/AaronLay10/LockStep/internal/logging"
	"github.com/AaronLay10/LockStep/internal/metrics"
	"github.com/AaronLay10/LockStep/internal/mqtt"
	"github.com/AaronLay10/LockStep/internal/room"
	"github.com/AaronLay10/LockStep/internal/scenario"
	"github.com/AaronLay10/LockStep/internal/session"
	"github.com/AaronLay10/LockStep/internal/storage/postgres"
	"github.com/AaronLay10/LockStep/internal/version"
)

func serve(ctx context.Context, cfg *config.ServerConfig) error {
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr); err != nil {
		return err
	}
	metrics.SetBuildInfo(version.Version)

	hostname, _ := os.Hostname()
	events.Emit("info", "system.startup", "lockstep starting", map[string]interface{}{
		"version":  version.Version,
		"hostname": hostname,
		"pid":      os.Getpid(),
	})

	catalog, err := loadCatalog(ctx, cfg)
	if err != nil {
		events.Emit("error", "system.error", "failed to load scenarios", map[string]interface{}{"error": err.Error()})
		return err
	}
	log.Info().Int("scenarios", catalog.Len()).Msg("scenario catalog ready")

	operator, err := config.ResolveCredentials("LOCKSTEP_OPERATOR")
	if err != nil {
		return err
	}
	if !operator.Set() {
		log.Warn().Msg("operator endpoints are open; set LOCKSTEP_OPERATOR_USER and LOCKSTEP_OPERATOR_PASS")
	}

	rooms := room.NewRegistry(room.Config{
		CodeLength:  cfg.Rooms.CodeLength,
		GracePeriod: cfg.Rooms.GracePeriod,
	})
	hub := api.NewHub()
	sessions := session.New(rooms, catalog, hub, session.Config{
		MaxPlayers:        cfg.Rooms.MaxPlayers,
		BroadcastInterval: cfg.Rooms.BroadcastInterval,
	})

	if cfg.MQTT.URL != "" {
		client := mqtt.NewClient(cfg.MQTT.URL, cfg.MQTT.ClientID)
		if err := client.Connect(); err != nil {
			// paho keeps retrying in the background
			log.Warn().Err(err).Str("broker", client.Broker()).Msg("mqtt not connected yet")
		} else {
			log.Info().Str("broker", client.Broker()).Msg("mqtt connected")
		}
		defer client.Disconnect()
		go mqtt.NewBridge(client, cfg.MQTT.TopicPrefix).Run(ctx)
	}

	err = api.NewServer(cfg, sessions, hub, operator).ListenAndServe(ctx)

	events.Emit("info", "system.shutdown", "lockstep stopping", nil)
	events.CloseAllSubscribers()
	return err
}

// loadCatalog merges the builtin scenarios, every configured directory
// and, when enabled, the published rows of the document store.
func loadCatalog(ctx context.Context, cfg *config.ServerConfig) (*scenario.Catalog, error) {
	catalog := scenario.NewCatalog()
	if err := catalog.LoadBuiltin(); err != nil {
		return nil, err
	}
	for _, dir := range cfg.Scenarios.Dirs {
		if err := catalog.LoadDir(dir); err != nil {
			return nil, fmt.Errorf("scenario dir %s: %w", dir, err)
		}
	}

	if cfg.Scenarios.Postgres {
		store, err := postgres.Open(ctx)
		if err != nil {
			return nil, err
		}
		defer store.Close()

		n, err := catalog.LoadSource(ctx, store)
		if err != nil {
			return nil, fmt.Errorf("scenario store: %w", err)
		}
		log.Info().Int("scenarios", n).Msg("loaded published scenarios from postgres")
	}
	return catalog, nil
}
