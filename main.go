package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"machine-health-engine/api"
	"machine-health-engine/cache"
	"machine-health-engine/config"
	"machine-health-engine/detector"
	"machine-health-engine/ingest"
	"machine-health-engine/metrics"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if os.Getenv("MHE_LOG_LEVEL") == "debug" {
		log.SetLevel(logrus.DebugLevel)
	}

	log.Info("starting machine health engine")

	// Load configuration
	configManager, err := config.NewConfigManager("config.json")
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	cfg := configManager.GetConfig()

	engineCfg, err := cfg.Detector.ToEngineConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid detector configuration")
	}

	// Initialize detection engine; a persisted model bundle is restored here
	engine, err := detector.NewEngine(engineCfg, cfg.Detector.ModelPath, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize detection engine")
	}
	log.WithFields(logrus.Fields{
		"preset":  cfg.Detector.Preset,
		"metrics": len(cfg.Detector.Metrics),
		"trained": engine.IsTrained(),
	}).Info("detection engine initialized")

	// Optional Redis result cache
	var results *cache.ResultCache
	if cfg.Redis.Enabled {
		results, err = cache.New(cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Keep:     cfg.Redis.RecentResults,
			TTL:      cfg.Redis.ResultTTL.Duration,
		})
		if err != nil {
			log.WithError(err).Warn("result cache unavailable, continuing without it")
		} else {
			defer results.Close()
			log.WithField("addr", cfg.Redis.Addr).Info("result cache connected")
		}
	}

	// Telemetry intake feeding the engine's retraining cache
	collector := ingest.NewCollector(
		engine,
		cfg.Detector.Metrics,
		cfg.Ingestion.BufferSize,
		cfg.Ingestion.BatchSize,
		cfg.Ingestion.FlushInterval.Duration,
		log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := collector.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start collector")
	}
	log.WithFields(logrus.Fields{
		"buffer": cfg.Ingestion.BufferSize,
		"batch":  cfg.Ingestion.BatchSize,
		"flush":  cfg.Ingestion.FlushInterval.Duration,
	}).Info("collector started")

	// Background retrain worker
	go retrainLoop(ctx, engine, cfg.Detector.RetrainCheck.Duration, log)

	// HTTP API
	apiServer := api.NewServer(engine, collector, results, api.Options{
		JWTSecret:         cfg.Auth.JWTSecret,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}, log)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  cfg.Server.IdleTimeout.Duration,
	}

	go func() {
		log.WithField("addr", cfg.Server.Port).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	cancel()
	collector.Stop()
	log.Info("collector stopped")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server forced to shutdown")
	}

	log.Info("server stopped")
}

// retrainLoop periodically checks whether the model aged past its retrain
// interval (or can be bootstrapped from buffered samples) and retrains from
// the engine's own cache. A failed retrain keeps the previous model serving.
func retrainLoop(ctx context.Context, engine *detector.Engine, checkInterval time.Duration, log *logrus.Logger) {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !engine.RetrainDue() {
				continue
			}

			start := time.Now()
			trained, err := engine.RetrainFromCache()
			metrics.TrainingDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.TrainingsTotal.WithLabelValues("error", "background").Inc()
				log.WithError(err).WithField("model_usable", trained).Warn("background retrain failed")
				continue
			}
			metrics.TrainingsTotal.WithLabelValues("ok", "background").Inc()
			metrics.CacheRows.Set(float64(engine.ModelInfo().CacheRows))
			log.Info("background retrain completed")
		}
	}
}
