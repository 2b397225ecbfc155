package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"riskcast/internal/bundle"
	"riskcast/internal/cfg"
	"riskcast/internal/metrics"
	"riskcast/internal/pipeline"
	"riskcast/internal/registry"
	"riskcast/internal/server"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()
	setupLogging()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	reg := openRegistry(c)
	if reg != nil {
		defer reg.Close()
	}

	session := loadSession(c, reg, mw)

	startMetricsServer(ctx, c, session)

	srv := server.New(session, mw, c.ListenPort)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("prediction server failed")
			cancel()
		}
	}()

	waitForShutdown(ctx, srv)
}

func setupLogging() {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// openRegistry opens the bundle registry if DATA_PATH is configured
func openRegistry(c cfg.Settings) *registry.Registry {
	if c.DataPath == "" {
		return nil
	}
	reg, err := registry.Open(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("registry unavailable, continuing without bundle persistence")
		return nil
	}
	return reg
}

// loadSession resolves the bundle document, preferring the configured source
// and falling back to the registry's active version. A schema error is fatal:
// the process cannot serve predictions from a rejected bundle, and there is
// no automatic retry.
func loadSession(c cfg.Settings, reg *registry.Registry, mw *metrics.MetricsWrapper) *pipeline.Session {
	doc, err := bundle.ReadDocument(c.BundleSource, c.FetchTimeout)
	if err != nil {
		log.Warn().Err(err).Str("source", c.BundleSource).Msg("bundle source unavailable")
		if reg == nil {
			log.Fatal().Msg("no bundle source and no registry, cannot start")
		}
		version, stored, rerr := reg.Active()
		if rerr != nil {
			log.Fatal().Err(rerr).Msg("no stored bundle available, cannot start")
		}
		log.Info().Str("version", version).Msg("using stored bundle from registry")
		doc = stored
	}

	session, err := pipeline.Open(doc, mw)
	if err != nil {
		mw.SchemaErrorInc()
		log.Fatal().Err(err).Msg("bundle validation failed")
	}

	mw.BundleLoaded(bundleAgeSeconds(c.BundleSource))
	log.Info().
		Int("features", session.Bundle().N()).
		Float64("threshold", session.Bundle().Threshold).
		Msg("prediction session ready")

	storeBundle(reg, doc)
	return session
}

// storeBundle records the freshly loaded document in the registry so future
// starts survive a missing source.
func storeBundle(reg *registry.Registry, doc []byte) {
	if reg == nil {
		return
	}
	version := time.Now().Format("20060102-150405")
	if err := reg.Put(version, doc); err != nil {
		log.Warn().Err(err).Msg("failed to store bundle in registry")
		return
	}
	if err := reg.Activate(version); err != nil {
		log.Warn().Err(err).Str("version", version).Msg("failed to activate stored bundle")
		return
	}
	log.Debug().Str("version", version).Msg("bundle stored in registry")
}

func bundleAgeSeconds(source string) float64 {
	if info, err := os.Stat(source); err == nil {
		return time.Since(info.ModTime()).Seconds()
	}
	return 0
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(ctx context.Context, c cfg.Settings, session *pipeline.Session) {
	go func() {
		mux := http.NewServeMux()

		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			state := session.State()
			if state == pipeline.StateReady || state == pipeline.StateScored {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("OK"))
				return
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(state.String()))
		})

		mux.Handle("/metrics", promhttp.Handler())

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", c.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := srv.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// waitForShutdown waits for shutdown signals and drains the prediction server
func waitForShutdown(ctx context.Context, srv *server.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
	}
}
