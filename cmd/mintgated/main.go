package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mintgate/config"
	"mintgate/core/snapshot"
	"mintgate/core/types"
	"mintgate/native/assetproxy"
	"mintgate/native/provision"
	"mintgate/observability/logging"
	"mintgate/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("MINTGATE_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("mintgated", env, logging.ParseLevel(cfg.LogLevel))

	db, err := openDatabase(cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	registry, proxy, err := buildEngines(cfg)
	if err != nil {
		logger.Error("Failed to build services", slog.Any("error", err))
		os.Exit(1)
	}

	snapshots := snapshot.New(db)
	components := append(registry.Components(), proxy.Components()...)
	if err := snapshots.Restore(components...); err != nil {
		logger.Error("Failed to restore state", slog.Any("error", err))
		os.Exit(1)
	}
	if err := seedFromConfig(cfg, registry, proxy); err != nil {
		logger.Error("Failed to apply configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddress, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics listener failed", slog.Any("error", err))
			}
		}()
		logger.Info("Metrics listener started", slog.String("address", cfg.MetricsAddress))
	}

	logger.Info("Registry started",
		slog.String("dataDir", cfg.DataDir),
		slog.String("backend", cfg.StorageBackend),
		slog.Int("controllers", len(cfg.Registry.Controllers)))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	if metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.Warn("Metrics shutdown failed", slog.Any("error", err))
		}
		cancel()
	}
	if err := snapshots.Persist(components...); err != nil {
		logger.Error("Failed to persist state", slog.Any("error", err))
		os.Exit(1)
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.StorageBackend {
	case "memory":
		return storage.NewMemDB(), nil
	case "bolt":
		if err := os.MkdirAll(filepath.Dir(cfg.SnapshotDB), 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(cfg.SnapshotDB)
	default:
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	}
}

func buildEngines(cfg *config.Config) (*provision.Engine, *assetproxy.Engine, error) {
	self, err := principalOrEmpty(cfg.Registry.Self)
	if err != nil {
		return nil, nil, fmt.Errorf("registry.Self: %w", err)
	}

	registry := provision.NewEngine(self)
	registry.SetAssetHost(cfg.Registry.AssetHost)
	controllers, err := principals(cfg.Registry.Controllers)
	if err != nil {
		return nil, nil, fmt.Errorf("registry.Controllers: %w", err)
	}
	registry.SetControllers(controllers)

	proxy := assetproxy.NewEngine()
	proxyControllers, err := principals(cfg.Proxy.Controllers)
	if err != nil {
		return nil, nil, fmt.Errorf("proxy.Controllers: %w", err)
	}
	proxy.SetControllers(proxyControllers)

	registry.SetProxyInvoker(proxyInvoker{engine: proxy, as: self})

	return registry, proxy, nil
}

// seedFromConfig applies configuration that should win over restored
// snapshots: identities and access lists are operator-owned.
func seedFromConfig(cfg *config.Config, registry *provision.Engine, proxy *assetproxy.Engine) error {
	admins, err := principals(cfg.Registry.Admins)
	if err != nil {
		return fmt.Errorf("registry.Admins: %w", err)
	}
	registry.SeedAdmins(admins)

	self, err := principalOrEmpty(cfg.Registry.Self)
	if err != nil {
		return err
	}
	if len(self) > 0 {
		proxy.ConfigureRegistry(self)
	}

	draft, err := principalOrEmpty(cfg.Proxy.DraftUnit)
	if err != nil {
		return fmt.Errorf("proxy.DraftUnit: %w", err)
	}
	if len(draft) > 0 {
		proxy.ConfigureDraftUnit(draft)
	}
	return nil
}

// proxyInvoker lets the registry call the proxy under its own identity.
type proxyInvoker struct {
	engine *assetproxy.Engine
	as     types.Principal
}

func (p proxyInvoker) ApproveFiles(ctx context.Context, files []string, storageUnit types.Principal) error {
	return p.engine.ApproveFiles(ctx, p.as, files, storageUnit)
}

func principals(values []string) ([]types.Principal, error) {
	out := make([]types.Principal, 0, len(values))
	for _, value := range values {
		p, err := types.PrincipalFromText(value)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func principalOrEmpty(value string) (types.Principal, error) {
	if strings.TrimSpace(value) == "" {
		return types.Principal{}, nil
	}
	return types.PrincipalFromText(value)
}
