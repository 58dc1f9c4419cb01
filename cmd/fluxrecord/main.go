package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/telemetrydb/fluxrecord/internal/config"
	"github.com/telemetrydb/fluxrecord/internal/flux"
	"github.com/telemetrydb/fluxrecord/internal/influx"
	"github.com/telemetrydb/fluxrecord/internal/metrics"
	"github.com/telemetrydb/fluxrecord/internal/server"
	"github.com/telemetrydb/fluxrecord/internal/service"
)

func main() {
	listen := flag.String("listen", "", "listen address (overrides FLUXRECORD_LISTEN)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		errLogger := zerolog.New(os.Stderr)
		errLogger.Error().Err(err).Msg("loading config")
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	logger := newLogger(cfg.LogLevel)

	provider := influx.NewClient(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket)
	defer provider.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := provider.Ping(pingCtx); err != nil {
		logger.Warn().Err(err).Str("url", cfg.Influx.URL).Msg("influxdb not reachable yet")
	}
	cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, err := newService(cfg, provider, logger, metrics.New(reg))
	if err != nil {
		logger.Err(err).Msg("building service")
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("/", server.NewHandler(svc, provider, logger))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Err(err).Msg("shutdown")
		}
	}()

	logger.Info().
		Str("listen", cfg.Listen).
		Str("bucket", cfg.Influx.Bucket).
		Str("measurement", cfg.Service.Measurement).
		Msg("fluxrecord started")

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Err(err).Msg("server error")
		os.Exit(1)
	}
}

func newService(cfg config.Config, provider influx.Provider, logger zerolog.Logger, m *metrics.Metrics) (*service.Service, error) {
	svcCfg := service.Config{
		Provider:    provider,
		Org:         cfg.Influx.Org,
		Bucket:      cfg.Influx.Bucket,
		Measurement: cfg.Service.Measurement,
		TagKeys:     cfg.Service.TagKeys(),
		FieldKeys:   cfg.Service.FieldKeys(),
		TimeField:   cfg.Service.TimeField,
		IDField:     cfg.Service.IDField,
		Multi:       cfg.Service.Multi,
		Range:       flux.TimeRange{Start: cfg.Service.Range},
		Logger:      logger,
		Metrics:     m,
	}
	if cfg.Service.PageDefault > 0 {
		svcCfg.Paginate = &service.Paginate{
			Default: cfg.Service.PageDefault,
			Max:     cfg.Service.PageMax,
		}
	}
	return service.New(svcCfg)
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}
