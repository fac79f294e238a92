package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/diwise/entity-sessions/internal/pkg/application/events"
	"github.com/diwise/entity-sessions/internal/pkg/application/sessions"
	"github.com/diwise/entity-sessions/internal/pkg/application/sessionstore"
	"github.com/diwise/entity-sessions/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/entity-sessions/internal/pkg/infrastructure/router"
	"github.com/diwise/entity-sessions/internal/pkg/presentation/api"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

const serviceName string = "session-store"

type App struct {
	handler    http.Handler
	store      *sessionstore.App
	notifier   events.Notifier
	gcInterval time.Duration
}

func main() {
	serviceVersion := buildinfo.SourceVersion()

	ctx, logger, cleanup := o11y.Init(context.Background(), serviceName, serviceVersion, "json")
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	flags := parseExternalConfig(ctx, DefaultFlags())

	var cfg io.Reader

	cfgFile, err := os.Open(flags[configPath])
	if err != nil {
		logger.Warn("no session configuration file found, using defaults", "path", flags[configPath])
	} else {
		defer cfgFile.Close()
		cfg = cfgFile
	}

	policies, err := os.Open(flags[opaPath])
	if err != nil {
		logger.Error("unable to open opa policy file", "err", err.Error())
		os.Exit(1)
	}
	defer policies.Close()

	app, err := initialize(ctx, flags, cfg, policies, database.LoadConfiguration(ctx))
	if err != nil {
		logger.Error("failed to initialize service", "err", err.Error())
		os.Exit(1)
	}
	defer app.store.Close()

	app.notifier.Start()
	defer app.notifier.Stop()

	go runSweeper(ctx, app.store, app.gcInterval)

	srv := &http.Server{
		Addr:              net.JoinHostPort(flags[listenAddress], flags[servicePort]),
		Handler:           app.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		logger.Error("failed to listen for connections", "err", err.Error())
		os.Exit(1)
	}

	logger.Info("starting to listen for connections", "addr", listener.Addr().String())

	err = serve(ctx, srv, listener, 10*time.Second)
	if err != nil {
		logger.Error("failed to listen for connections", "err", err.Error())
		os.Exit(1)
	}

	logger.Info("all connections closed, shutting down")
}

// serve blocks until ctx is cancelled and every in flight request has
// completed, or until the shutdown timeout expires
func serve(ctx context.Context, srv *http.Server, listener net.Listener, timeout time.Duration) error {
	done := make(chan error, 1)

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		done <- srv.Shutdown(shutdownCtx)
	}()

	err := srv.Serve(listener)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return <-done
}

func initialize(ctx context.Context, flags FlagMap, cfgFile, policies io.Reader, dbCfg database.Config) (*App, error) {
	if cfgFile == nil {
		cfgFile = strings.NewReader("")
	}

	cfg, err := sessions.LoadConfiguration(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load session configuration: %w", err)
	}

	ttl, err := cfg.TTL()
	if err != nil {
		return nil, err
	}

	gcInterval, err := cfg.GCInterval()
	if err != nil {
		return nil, err
	}

	store, err := sessionstore.New(ctx, cfg, dbCfg)
	if err != nil {
		return nil, err
	}

	if flags[adminUsername] != "" {
		err = store.SeedUser(ctx, flags[adminUsername], flags[adminEmail], flags[adminPassword])
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create admin user: %w", err)
		}
	}

	manager, err := store.Manager()
	if err != nil {
		store.Close()
		return nil, err
	}

	credentials, err := store.Credentials()
	if err != nil {
		store.Close()
		return nil, err
	}

	notifier, err := events.NewNotifier(ctx, flags[notifierEndpoint])
	if err != nil {
		store.Close()
		return nil, err
	}

	r := router.New(serviceName, flags.origins())

	err = api.RegisterHandlers(ctx, r, policies, manager, credentials, notifier, api.CookieOptions{
		Secure:   cfg.Cookie.Secure,
		SameSite: api.ParseSameSite(cfg.Cookie.SameSite),
		Domain:   cfg.Cookie.Domain,
		TTL:      ttl,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &App{
		handler:    r,
		store:      store,
		notifier:   notifier,
		gcInterval: gcInterval,
	}, nil
}

func runSweeper(ctx context.Context, store *sessionstore.App, interval time.Duration) {
	logger := logging.GetFromContext(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := store.Sweep(ctx)
			if err != nil {
				logger.Error("failed to sweep expired sessions", "err", err.Error())
				continue
			}
			logger.Info("swept expired sessions", "count", count)
		}
	}
}
