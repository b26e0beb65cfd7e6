package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BrandonDHaskell/Vigil/internal/config"
	"github.com/BrandonDHaskell/Vigil/internal/db"
	"github.com/BrandonDHaskell/Vigil/internal/grpcapi"
	"github.com/BrandonDHaskell/Vigil/internal/httpapi"
	"github.com/BrandonDHaskell/Vigil/internal/mqttingest"
	"github.com/BrandonDHaskell/Vigil/internal/vigil/network"
	"github.com/BrandonDHaskell/Vigil/internal/vigil/service"
	"github.com/BrandonDHaskell/Vigil/internal/vigil/store"
	"github.com/BrandonDHaskell/Vigil/internal/vigil/store/file"
	"github.com/BrandonDHaskell/Vigil/internal/vigil/store/memory"
	"github.com/BrandonDHaskell/Vigil/internal/vigil/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "vigil-server: config: %v\n", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("vigil-server exited", "err", err)
		os.Exit(1)
	}
}

// stores bundles the persistence backends chosen by config.
type stores struct {
	presence   store.PresenceStore
	categories store.CategoryStore
	incidents  store.IncidentLog
	close      func() error
}

func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (stores, error) {
	switch cfg.Storage {
	case "file":
		logger.Info("using file storage", "dir", cfg.DataDir)
		return stores{
			presence:   file.NewPresenceStore(filepath.Join(cfg.DataDir, "devices.json")),
			categories: file.NewCategoryStore(filepath.Join(cfg.DataDir, "categories.json")),
			// The file layout has no incident log; incidents live for the
			// process lifetime.
			incidents: memory.NewIncidentLog(),
			close:     func() error { return nil },
		}, nil
	default:
		h, err := db.Open(ctx, db.Config{Path: cfg.DBPath})
		if err != nil {
			return stores{}, fmt.Errorf("open db: %w", err)
		}
		if cfg.Env == "dev" {
			if err := db.SeedDev(ctx, h, db.DevCategories()); err != nil {
				h.Close()
				return stores{}, fmt.Errorf("seed dev data: %w", err)
			}
		}
		logger.Info("using sqlite storage", sqliteAttrs(ctx, h.DB, cfg.DBPath, logger)...)
		return stores{
			presence:   sqlite.NewPresenceStore(h.DB, h.Writer),
			categories: sqlite.NewCategoryStore(h.DB, h.Writer),
			incidents:  sqlite.NewIncidentLog(h.DB, h.Writer),
			close:      h.Close,
		}, nil
	}
}

// sqliteAttrs describes the opened database for the startup log. The schema
// version is left out when it cannot be read.
func sqliteAttrs(ctx context.Context, conn *sql.DB, path string, logger *slog.Logger) []any {
	attrs := []any{"path", path}
	version, err := db.SchemaVersion(ctx, conn)
	if err != nil {
		logger.Warn("schema version unavailable", "path", path, "err", err)
		return attrs
	}
	return append(attrs, "schema_version", version)
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	reg, err := network.NewRegistry(network.DefaultAccessPoints())
	if err != nil {
		return fmt.Errorf("access points: %w", err)
	}
	route, err := network.NewRoute(network.DefaultStations())
	if err != nil {
		return fmt.Errorf("route: %w", err)
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Warn("closing storage", "err", err)
		}
	}()

	// Services
	categories := service.NewCategories(st.categories, logger)
	if err := categories.Restore(ctx); err != nil {
		logger.Warn("category overrides not restored, starting empty", "err", err)
	}
	presence := service.NewPresence(st.presence, categories, logger)
	if err := presence.Restore(ctx); err != nil {
		logger.Warn("presence not restored, starting empty", "err", err)
	}
	incidents := service.NewIncidents(route, st.incidents, logger)
	if err := incidents.Restore(ctx); err != nil {
		logger.Warn("incidents not restored, starting empty", "err", err)
	}
	logger.Info("state restored", "devices", presence.Len(), "incidents", len(incidents.List()))

	aliases := cfg.DeviceAliases
	if aliases == nil {
		aliases = network.DefaultAliases()
	}
	gateway := service.NewGateway(reg, presence, service.GatewayConfig{Aliases: aliases}, logger)
	dashboard := service.NewDashboard(route, reg, presence, incidents, service.DashboardConfig{
		DeclutterStep: cfg.DeclutterStep,
	}, logger)
	ticker := service.NewTicker(dashboard, cfg.TickInterval, logger)

	health := grpcapi.NewServer(logger)

	var sub *mqttingest.Subscriber
	if cfg.MQTT.BrokerURL != "" {
		sub, err = mqttingest.New(mqttingest.Config{
			BrokerURL:     cfg.MQTT.BrokerURL,
			ClientID:      cfg.MQTT.ClientID,
			Username:      cfg.MQTT.Username,
			Password:      cfg.MQTT.Password,
			LocationTopic: cfg.MQTT.LocationTopic,
			BatteryTopic:  cfg.MQTT.BatteryTopic,
			OnStatus:      health.SetIngestConnected,
		}, gateway, logger)
		if err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	} else {
		// HTTP telemetry is the only feed and is always available.
		logger.Info("mqtt disabled")
		health.SetIngestConnected(true)
	}

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:     logger,
		Addr:       cfg.HTTPAddr,
		Dashboard:  dashboard,
		Categories: categories,
		Ingest:     gateway,
	})

	var lis net.Listener
	if cfg.GRPCAddr != "" {
		lis, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return gateway.Run(gctx) })

	g.Go(func() error {
		ticker.Start(gctx)
		<-ticker.Done()
		return nil
	})

	if sub != nil {
		g.Go(func() error { return sub.Run(gctx) })
	}

	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if lis != nil {
		g.Go(func() error {
			logger.Info("grpc health listening", "addr", cfg.GRPCAddr)
			return health.Serve(gctx, lis)
		})
	}

	err = g.Wait()

	// Persist whatever the last event left behind before closing storage.
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if ferr := presence.Flush(flushCtx); ferr != nil {
		logger.Warn("final presence flush failed", "err", ferr)
	}
	logger.Info("vigil-server stopped")
	return err
}
