// Goradiusd daemon -- RADIUS AAA server (RFC 2865/2866/2869/5176).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dlp-radius/goradius/internal/admin"
	"github.com/dlp-radius/goradius/internal/config"
	"github.com/dlp-radius/goradius/internal/dictionary"
	"github.com/dlp-radius/goradius/internal/radiusmetrics"
	"github.com/dlp-radius/goradius/internal/radserver"
	appversion "github.com/dlp-radius/goradius/internal/version"
)

// shutdownTimeout is the maximum time to wait for the metrics and admin
// HTTP servers to drain active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("goradiusd starting",
		slog.String("version", appversion.Version),
		slog.String("metrics_addr", cfg.Metrics.Addr),
		slog.String("admin_addr", cfg.Admin.Addr),
	)

	dict, err := loadDictionary(cfg.Dict)
	if err != nil {
		logger.Error("failed to load dictionary", slog.String("error", err.Error()))
		return 1
	}

	reg := prometheus.NewRegistry()
	collector := radiusmetrics.NewCollector(reg)

	hosts := radserver.NewHostTable()
	reconcileHosts(hosts, cfg.Hosts, logger)

	srv := radserver.NewServer(radserver.Config{
		Addresses: listenAddresses(cfg.Listen),
		AuthPort:  cfg.Listen.AuthPort,
		AcctPort:  cfg.Listen.AcctPort,
		CoAPort:   cfg.Listen.CoAPort,
		Hosts:     hosts,
		Dict:      dict,
		Metrics:   collector,
		Logger:    logger,
	})
	if err := srv.Bind(); err != nil {
		logger.Error("failed to bind listeners", slog.String("error", err.Error()))
		return 1
	}

	handler := newStaticHandler(dict, cfg.Users, logger)

	if err := runServers(srv, handler, cfg, reg, logger, *configPath, logLevel); err != nil {
		logger.Error("goradiusd exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("goradiusd stopped")
	return 0
}

// runServers runs the RADIUS dispatch loop plus the metrics and admin HTTP
// servers using an errgroup with signal-aware context for graceful
// shutdown.
func runServers(
	srv *radserver.Server,
	handler radserver.Handler,
	cfg *config.Config,
	reg *prometheus.Registry,
	logger *slog.Logger,
	configPath string,
	logLevel *slog.LevelVar,
) error {
	metricsSrv := newMetricsServer(cfg.Metrics, reg)
	adminSrv := admin.NewHTTPServer(cfg.Admin.Addr, srv.Hosts())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gCtx, handler)
	})

	startHTTPServers(gCtx, g, cfg, metricsSrv, adminSrv, logger)
	startDaemonGoroutines(gCtx, g, configPath, logLevel, srv.Hosts(), logger)

	notifyReady(logger)

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, logger, metricsSrv, adminSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run servers: %w", err)
	}
	return nil
}

// startHTTPServers registers the metrics and admin HTTP server goroutines.
func startHTTPServers(
	ctx context.Context,
	g *errgroup.Group,
	cfg *config.Config,
	metricsSrv *http.Server,
	adminSrv *http.Server,
	logger *slog.Logger,
) {
	lc := net.ListenConfig{}

	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr),
			slog.String("path", cfg.Metrics.Path),
		)
		return listenAndServe(ctx, &lc, metricsSrv, cfg.Metrics.Addr)
	})

	if cfg.Admin.Addr == "" {
		return
	}
	g.Go(func() error {
		logger.Info("admin server listening", slog.String("addr", cfg.Admin.Addr))
		return listenAndServe(ctx, &lc, adminSrv, cfg.Admin.Addr)
	})
}

// startDaemonGoroutines registers the watchdog and SIGHUP reload goroutines.
func startDaemonGoroutines(
	ctx context.Context,
	g *errgroup.Group,
	configPath string,
	logLevel *slog.LevelVar,
	hosts *radserver.HostTable,
	logger *slog.Logger,
) {
	g.Go(func() error {
		return runWatchdog(ctx, logger)
	})

	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)
	g.Go(func() error {
		defer signal.Stop(sigHUP)
		handleSIGHUP(ctx, sigHUP, configPath, logLevel, hosts, logger)
		return nil
	})
}

// -------------------------------------------------------------------------
// Systemd Integration — sd_notify + watchdog
// -------------------------------------------------------------------------

func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

// runWatchdog sends periodic watchdog keepalives to systemd. The interval
// is WatchdogSec/2 as recommended by the systemd documentation. If the
// watchdog is not configured, the goroutine exits immediately.
func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog", slog.String("error", err.Error()))
		return nil
	}
	if interval == 0 {
		logger.Debug("systemd watchdog not configured, skipping keepalive")
		return nil
	}

	tickInterval := interval / 2
	logger.Info("systemd watchdog enabled",
		slog.Duration("watchdog_sec", interval),
		slog.Duration("keepalive_interval", tickInterval),
	)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, wdErr := daemon.SdNotify(false, daemon.SdNotifyWatchdog); wdErr != nil {
				logger.Warn("failed to send watchdog keepalive", slog.String("error", wdErr.Error()))
			}
		}
	}
}

// -------------------------------------------------------------------------
// SIGHUP Reload — log level + host table reconciliation
// -------------------------------------------------------------------------

// handleSIGHUP listens for SIGHUP signals and reloads configuration. On
// reload, the log level is updated dynamically via the shared LevelVar,
// and the declarative host table is reconciled (new hosts registered,
// removed hosts deregistered). Blocks until ctx is cancelled.
func handleSIGHUP(
	ctx context.Context,
	sigHUP <-chan os.Signal,
	configPath string,
	logLevel *slog.LevelVar,
	hosts *radserver.HostTable,
	logger *slog.Logger,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigHUP:
			logger.Info("received SIGHUP, reloading configuration")
			reloadConfig(configPath, logLevel, hosts, logger)
		}
	}
}

func reloadConfig(configPath string, logLevel *slog.LevelVar, hosts *radserver.HostTable, logger *slog.Logger) {
	newCfg, err := loadConfig(configPath)
	if err != nil {
		logger.Error("failed to reload configuration, keeping current settings",
			slog.String("error", err.Error()),
		)
		return
	}

	oldLevel := logLevel.Level()
	newLevel := config.ParseLogLevel(newCfg.Log.Level)
	logLevel.Set(newLevel)

	logger.Info("configuration reloaded",
		slog.String("old_log_level", oldLevel.String()),
		slog.String("new_log_level", newLevel.String()),
	)

	reconcileHosts(hosts, newCfg.Hosts, logger)
}

// reconcileHosts diffs the declarative hosts from the config against the
// current host table and registers/deregisters hosts as needed.
func reconcileHosts(hosts *radserver.HostTable, declared []config.HostConfig, logger *slog.Logger) {
	desired := make(map[netip.Addr]config.HostConfig, len(declared))
	for _, hc := range declared {
		addr, err := hc.ParsedAddr()
		if err != nil {
			logger.Error("invalid host config, skipping", slog.String("name", hc.Name), slog.String("error", err.Error()))
			continue
		}
		desired[addr] = hc
	}

	var created, removed int
	for _, existing := range hosts.Hosts() {
		if _, ok := desired[existing.Addr]; ok {
			continue
		}
		if err := hosts.DeregisterHost(existing.Addr); err == nil {
			removed++
		}
	}
	for addr, hc := range desired {
		if _, ok := hosts.Lookup(addr); ok {
			continue
		}
		if err := hosts.RegisterHost(addr, []byte(hc.Secret), hc.Name); err != nil {
			logger.Error("failed to register host", slog.String("name", hc.Name), slog.String("error", err.Error()))
			continue
		}
		created++
	}

	logger.Info("host reconciliation complete", slog.Int("created", created), slog.Int("removed", removed))
}

// -------------------------------------------------------------------------
// Graceful Shutdown
// -------------------------------------------------------------------------

// gracefulShutdown performs an orderly shutdown: signals systemd, then
// shuts down the metrics and admin HTTP servers. radserver.Server.Run
// already internalizes listener-close and in-flight handler drain, so
// there is no session-draining step to perform here.
func gracefulShutdown(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	logger.Info("initiating graceful shutdown")
	notifyStopping(logger)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown server: %w", err))
		}
	}
	return shutdownErr
}

// -------------------------------------------------------------------------
// Server Setup
// -------------------------------------------------------------------------

func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

func loadDictionary(cfg config.DictConfig) (*dictionary.Dictionary, error) {
	std, err := dictionary.LoadStandard()
	if err != nil {
		return nil, fmt.Errorf("load standard dictionary: %w", err)
	}
	if len(cfg.Files) == 0 {
		return std, nil
	}
	extra, err := dictionary.Load(cfg.Files...)
	if err != nil {
		return nil, fmt.Errorf("load dictionary files %v: %w", cfg.Files, err)
	}
	return std.Merge(extra), nil
}

// listenAddresses parses cfg.Addresses, defaulting to the unspecified
// IPv4 address ("0.0.0.0") when none are configured.
func listenAddresses(cfg config.ListenConfig) []netip.Addr {
	if len(cfg.Addresses) == 0 {
		return []netip.Addr{netip.IPv4Unspecified()}
	}
	addrs := make([]netip.Addr, 0, len(cfg.Addresses))
	for _, s := range cfg.Addresses {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			continue
		}
		addrs = append(addrs, addr)
	}
	return addrs
}

func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
