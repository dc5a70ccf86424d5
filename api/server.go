package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"machine-health-engine/cache"
	"machine-health-engine/detector"
	"machine-health-engine/ingest"
	"machine-health-engine/metrics"
)

// Server represents the HTTP API server
type Server struct {
	router    *mux.Router
	engine    *detector.Engine
	collector *ingest.Collector
	results   *cache.ResultCache
	log       *logrus.Entry
	jwtSecret []byte
	limiter   *rate.Limiter
}

// Options carries the server's cross-cutting settings. Results may be nil
// when the Redis cache is disabled; JWTSecret empty disables authentication.
type Options struct {
	JWTSecret         string
	RequestsPerSecond float64
	Burst             int
}

// NewServer creates a new API server
func NewServer(engine *detector.Engine, collector *ingest.Collector, results *cache.ResultCache, opts Options, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst)
	}

	server := &Server{
		router:    mux.NewRouter(),
		engine:    engine,
		collector: collector,
		results:   results,
		log:       log.WithField("component", "api"),
		jwtSecret: []byte(opts.JWTSecret),
		limiter:   limiter,
	}

	server.setupRoutes()
	return server
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Add CORS headers
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	// Handle preflight requests
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.router.ServeHTTP(w, r)
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.instrument)
	if s.limiter != nil {
		s.router.Use(s.rateLimit)
	}

	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Telemetry intake endpoints
	api.HandleFunc("/samples", s.ingestSample).Methods("POST")
	api.HandleFunc("/samples/batch", s.ingestBatch).Methods("POST")

	// Detection endpoints
	api.HandleFunc("/detect", s.detect).Methods("POST")
	api.HandleFunc("/results/recent", s.recentResults).Methods("GET")

	// Model lifecycle endpoints (mutating routes require auth when configured)
	api.Handle("/train", s.requireAuth(http.HandlerFunc(s.train))).Methods("POST")
	api.Handle("/cache/clear", s.requireAuth(http.HandlerFunc(s.clearCache))).Methods("POST")
	api.HandleFunc("/model", s.modelInfo).Methods("GET")
	api.HandleFunc("/diagnose", s.diagnose).Methods("GET")
	api.HandleFunc("/health/trend", s.healthTrend).Methods("GET")

	// System endpoints
	api.HandleFunc("/stats", s.getStats).Methods("GET")

	// Health check and Prometheus scrape
	s.router.HandleFunc("/health", s.healthCheck).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Root endpoint
	s.router.HandleFunc("/", s.rootHandler).Methods("GET")
}

// TrainRequest represents a training request
type TrainRequest struct {
	Samples []detector.Sample `json:"samples"`
	Force   bool              `json:"force,omitempty"`
}

// BatchRequest represents a batch of telemetry samples
type BatchRequest struct {
	Samples []detector.Sample `json:"samples"`
}

var startTime = time.Now()

// train handles model training requests
func (s *Server) train(w http.ResponseWriter, r *http.Request) {
	var req TrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	start := time.Now()
	trained, err := s.engine.Train(req.Samples, req.Force)
	metrics.TrainingDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.TrainingsTotal.WithLabelValues("error", "api").Inc()

		var insufficient *detector.InsufficientDataError
		status := http.StatusInternalServerError
		if errors.As(err, &insufficient) {
			status = http.StatusBadRequest
		}
		s.writeJSON(w, status, map[string]interface{}{
			"status":  "error",
			"trained": trained,
			"error":   err.Error(),
		})
		return
	}

	metrics.TrainingsTotal.WithLabelValues("ok", "api").Inc()
	metrics.CacheRows.Set(float64(s.engine.ModelInfo().CacheRows))

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"trained": trained,
	})
}

// detect handles single-sample detection requests
func (s *Server) detect(w http.ResponseWriter, r *http.Request) {
	var sample detector.Sample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	start := time.Now()
	result, err := s.engine.Detect(sample)
	metrics.DetectionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.DetectionsTotal.WithLabelValues("error").Inc()
		if errors.Is(err, detector.ErrModelNotReady) {
			s.writeError(w, http.StatusServiceUnavailable, "model not trained")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch {
	case result.Stale:
		metrics.DetectionsTotal.WithLabelValues("stale").Inc()
	case result.IsAnomaly:
		metrics.DetectionsTotal.WithLabelValues("anomaly").Inc()
	default:
		metrics.DetectionsTotal.WithLabelValues("ok").Inc()
	}
	metrics.HealthScore.Set(result.HealthScore)
	metrics.AnomalyScore.Set(result.AnomalyScore)

	if s.results != nil {
		if err := s.results.StoreResult(r.Context(), result); err != nil {
			s.log.WithError(err).Warn("result cache write failed")
		}
	}

	s.writeJSON(w, http.StatusOK, result)
}

// ingestSample handles single sample ingestion
func (s *Server) ingestSample(w http.ResponseWriter, r *http.Request) {
	var sample detector.Sample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if err := s.collector.Ingest(sample); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to ingest sample: %v", err))
		return
	}
	metrics.SamplesIngested.WithLabelValues("api").Inc()

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"status":  "success",
		"message": "sample accepted",
	})
}

// ingestBatch handles batch sample ingestion
func (s *Server) ingestBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if len(req.Samples) == 0 {
		s.writeError(w, http.StatusBadRequest, "empty batch")
		return
	}

	accepted := s.collector.IngestBatch(req.Samples)
	metrics.SamplesIngested.WithLabelValues("batch").Add(float64(accepted))

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"status":   "success",
		"accepted": accepted,
		"rejected": len(req.Samples) - accepted,
	})
}

// recentResults returns recent detection results from the Redis cache
func (s *Server) recentResults(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		s.writeError(w, http.StatusNotImplemented, "result cache disabled")
		return
	}

	count := int64(20)
	if param := r.URL.Query().Get("count"); param != "" {
		val, err := strconv.ParseInt(param, 10, 64)
		if err != nil || val < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid count")
			return
		}
		count = val
	}

	results, err := s.results.Recent(r.Context(), count)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read results: %v", err))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// modelInfo returns the current model state
func (s *Server) modelInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.ModelInfo())
}

// diagnose runs the engine self-check
func (s *Server) diagnose(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Diagnose())
}

// healthTrend returns the health score trajectory summary
func (s *Server) healthTrend(w http.ResponseWriter, r *http.Request) {
	days := 7
	if param := r.URL.Query().Get("days"); param != "" {
		val, err := strconv.Atoi(param)
		if err != nil || val < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid days")
			return
		}
		days = val
	}

	s.writeJSON(w, http.StatusOK, s.engine.HealthTrend(days))
}

// clearCache drops the engine's retraining sample cache
func (s *Server) clearCache(w http.ResponseWriter, r *http.Request) {
	s.engine.ClearCache()
	metrics.CacheRows.Set(0)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "sample cache cleared",
	})
}

// StatsResponse represents system statistics
type StatsResponse struct {
	Model     detector.ModelInfo `json:"model"`
	Ingestion ingest.Stats       `json:"ingestion"`
	System    struct {
		StartTime time.Time `json:"start_time"`
		Uptime    string    `json:"uptime"`
	} `json:"system"`
}

// getStats returns system statistics
func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	response := StatsResponse{
		Model:     s.engine.ModelInfo(),
		Ingestion: s.collector.Stats(),
	}
	response.System.StartTime = startTime
	response.System.Uptime = time.Since(startTime).String()

	s.writeJSON(w, http.StatusOK, response)
}

// healthCheck returns health status
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	stats := s.collector.Stats()
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(startTime).String(),
		"services": map[string]string{
			"model": func() string {
				if s.engine.IsTrained() {
					return "trained"
				}
				return "untrained"
			}(),
			"ingestion": func() string {
				if stats.Running {
					return "healthy"
				}
				return "unhealthy"
			}(),
		},
	}

	s.writeJSON(w, http.StatusOK, health)
}

// rootHandler provides API information
func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Machine Health Engine",
		"version":     "0.1.0",
		"description": "Industrial telemetry anomaly detection and health scoring",
		"endpoints": map[string]string{
			"POST /api/v1/samples":        "Ingest single telemetry sample",
			"POST /api/v1/samples/batch":  "Ingest sample batch",
			"POST /api/v1/detect":         "Run anomaly detection on one sample",
			"POST /api/v1/train":          "Train the detection model",
			"POST /api/v1/cache/clear":    "Clear the retraining sample cache",
			"GET  /api/v1/model":          "Model state and performance",
			"GET  /api/v1/diagnose":       "Engine self-check",
			"GET  /api/v1/health/trend":   "Health score trend summary",
			"GET  /api/v1/results/recent": "Recent detection results",
			"GET  /api/v1/stats":          "System statistics",
			"GET  /health":                "Health check",
			"GET  /metrics":               "Prometheus metrics",
		},
	}

	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.WithError(err).Warn("response encoding failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"status": "error",
		"error":  message,
	})
}
