// Command ktraced is the tracepoint daemon binary. It loads a YAML
// configuration file, wires the registry, raw trace pipe, cmdline cache,
// and host operations together, registers the demo event, serves the
// control-plane HTTP API, and shuts down gracefully on SIGTERM or SIGINT.
package main

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tripwire/ktracepoint"
	"github.com/tripwire/ktracepoint/filter"
	"github.com/tripwire/ktracepoint/internal/audit"
	"github.com/tripwire/ktracepoint/internal/config"
	"github.com/tripwire/ktracepoint/internal/controlplane"
	"github.com/tripwire/ktracepoint/internal/telemetry"
	"github.com/tripwire/ktracepoint/hostops"
	"github.com/tripwire/ktracepoint/pipe"
	"github.com/tripwire/ktracepoint/registry"
)

func main() {
	configPath := flag.String("config", "/etc/ktraced/config.yaml", "path to the ktraced YAML configuration file")
	auditPath := flag.String("audit-log", "/var/lib/ktraced/audit.log", "path to the tamper-evident control-plane audit log")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ktraced: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("config_path", *configPath), slog.String("control_addr", cfg.ControlAddr))

	cmdline := pipe.NewCmdlineCache(cfg.CmdlineCacheCapacity)
	tracePipe := pipe.NewRaw(cfg.PipeCapacity)
	ops := hostops.NewReal(cmdline, tracePipe, numCPUHint())

	mgr := registry.NewManager(filter.Compile)
	if err := mgr.Init(ktracepoint.RegisteredEvents(), ops); err != nil {
		logger.Error("failed to initialize tracepoint registry", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("registry initialized", slog.Int("events", len(mgr.TracepointMap())))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// mgr.Init already wired the demo tracepoint's built-in pipe-sink
	// callback; just enable it and run a background emitter so /trace
	// isn't always empty on a fresh daemon.
	_ = demoTestTracePoint.EnableDefault()
	demoTestTracePoint.EnableEvent()
	go runDemoEmitter(ctx, ops, logger)

	auditLog, err := audit.Open(*auditPath)
	if err != nil {
		logger.Error("failed to open audit log", slog.String("path", *auditPath), slog.Any("error", err))
		os.Exit(1)
	}
	defer auditLog.Close()

	var pubKey *rsa.PublicKey
	if cfg.JWTPublicKeyPath != "" {
		pubKey, err = loadRSAPublicKey(cfg.JWTPublicKeyPath)
		if err != nil {
			logger.Error("failed to load JWT public key", slog.Any("error", err))
			os.Exit(1)
		}
	}

	srv := controlplane.NewServer(mgr, tracePipe, cmdline, ops, auditLog)
	router := controlplane.NewRouter(srv, pubKey)

	httpServer := &http.Server{
		Addr:         cfg.ControlAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	counters, err := telemetry.NewCounters("ktraced")
	if err != nil {
		logger.Error("failed to set up telemetry", slog.Any("error", err))
		os.Exit(1)
	}

	go counters.ReportLoop(ctx, cfg.TelemetryInterval, logger)

	go func() {
		logger.Info("control plane listening", slog.String("addr", cfg.ControlAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("control plane server error", slog.Any("error", err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received shutdown signal", slog.String("signal", sig.String()))

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("control plane shutdown error", slog.Any("error", err))
	}

	logger.Info("ktraced exited cleanly")
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func numCPUHint() int {
	n := os.Getenv("KTRACED_NUM_CPU")
	if n == "" {
		return 4
	}
	var v int
	if _, err := fmt.Sscanf(n, "%d", &v); err != nil || v < 1 {
		return 4
	}
	return v
}

func loadRSAPublicKey(path string) (*rsa.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("%q: not a PEM file", path)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%q: parse PKIX public key: %w", path, err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%q: not an RSA public key", path)
	}
	return rsaPub, nil
}
