package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/diwise/entity-sessions/internal/pkg/application/sessions"
	"github.com/diwise/entity-sessions/internal/pkg/application/sessionstore"
	"github.com/diwise/entity-sessions/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
)

const (
	appName string = "session-gc"
)

func main() {
	appVersion := buildinfo.SourceVersion()

	ctx, log, cleanup := o11y.Init(context.Background(), appName, appVersion, "json")
	defer cleanup()

	dbCfg := database.LoadConfiguration(ctx)
	if !dbCfg.Enabled() {
		log.Error("no database configured, nothing to sweep")
		os.Exit(1)
	}

	cfg, err := loadConfig(env.GetVariableOrDefault(ctx, "SESSIONS_CONFIG_PATH", "/opt/diwise/config/sessions.yaml"))
	if err != nil {
		log.Error("failed to load session configuration", "err", err.Error())
		os.Exit(1)
	}

	store, err := sessionstore.New(ctx, cfg, dbCfg)
	if err != nil {
		log.Error("failed to connect to database", "err", err.Error())
		os.Exit(1)
	}
	defer store.Close()

	log.Debug("begin sweeping expired sessions", slog.Time("start_time", time.Now()))

	count, err := store.Sweep(ctx)
	if err != nil {
		log.Error("failed to sweep expired sessions", "err", err.Error())
		os.Exit(1)
	}

	log.Info("done sweeping", slog.Int64("total", count), slog.Time("end_time", time.Now()))
}

// loadConfig falls back to defaults when the file does not exist
func loadConfig(path string) (*sessions.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sessions.LoadConfiguration(strings.NewReader(""))
		}
		return nil, err
	}
	defer f.Close()

	return sessions.LoadConfiguration(f)
}
