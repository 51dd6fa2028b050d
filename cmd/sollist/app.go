package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sollist/internal/adapters/reports"
	"sollist/internal/blob"
	"sollist/internal/config"
	"sollist/internal/core"
)

// app holds the dependencies shared by every subcommand. setup fills it
// from configuration before a command runs; close releases what setup
// opened.
type app struct {
	stdin          io.Reader
	stdout, stderr io.Writer

	configPath string
	building   string
	trace      bool

	cfg       config.Config
	logger    *slog.Logger
	store     core.PersistentStore
	blobs     blob.Store
	svc       *core.Service
	publisher *reports.Publisher
	metrics   *http.Server
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(a.stderr, cfg.Log)

	store, err := core.OpenPersistentStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.store = store
	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	a.blobs = blobs
	a.publisher = reports.NewPublisher(blobs)

	reg := prometheus.NewRegistry()
	rec, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		return err
	}
	opts := []core.ServiceOption{
		core.WithLogger(a.logger),
		core.WithMetricsRecorder(rec),
		core.WithTolerance(cfg.Analysis.Tolerance),
	}
	if a.trace {
		opts = append(opts, core.WithTracer(core.NewJSONTracer(a.stderr)))
	}
	a.svc = core.NewService(store, opts...)

	if cfg.Metrics.Addr != "" {
		if err := a.serveMetrics(reg, cfg.Metrics.Addr); err != nil {
			return err
		}
	}
	a.logger.Debug("setup complete", "storage", cfg.Storage.Driver, "blob", blobs.Driver())
	return nil
}

func (a *app) serveMetrics(reg *prometheus.Registry, addr string) error {
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	a.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.metrics.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", ln.Addr().String())
	return nil
}

func (a *app) close() error {
	var errs []error
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		errs = append(errs, a.metrics.Shutdown(ctx))
		cancel()
	}
	if c, ok := a.store.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func (a *app) bagName(flag string) string {
	if strings.TrimSpace(flag) != "" {
		return flag
	}
	return a.cfg.Analysis.BagName
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
