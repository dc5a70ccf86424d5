package detector

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"machine-health-engine/detector/scorer"
)

// maxTimingSamples bounds the detection and training timing rings.
const maxTimingSamples = 100

// maxHealthHistory bounds the retained health score history.
const maxHealthHistory = 100

// Engine is the detection lifecycle manager. It owns the trained bundle,
// the sample cache and the score history, and serializes training against
// concurrent detection.
//
// All exported methods are safe for concurrent use. Detection takes a read
// lock and never mutates the bundle; training builds a replacement bundle
// off to the side and swaps it in under the write lock, so a failed retrain
// leaves the previous model serving.
type Engine struct {
	cfg      Config
	log      *logrus.Entry
	modelDir string

	mu     sync.RWMutex
	bundle *Bundle

	// pending buffers raw samples arriving before the first training, so the
	// ingest path can bootstrap an untrained engine.
	pending []Sample

	statsMu         sync.Mutex
	healthHistory   []float64
	detectTimes     []float64
	trainTimes      []float64
	totalDetections int
	totalTrainings  int
}

// NewEngine validates the configuration and constructs an engine. When
// modelDir is non-empty a persisted bundle is loaded eagerly; a corrupt or
// incomplete bundle is logged and discarded, never half-applied.
func NewEngine(cfg Config, modelDir string, log *logrus.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	e := &Engine{
		cfg:      cfg.normalized(),
		log:      log.WithField("component", "detector"),
		modelDir: modelDir,
	}

	if modelDir != "" {
		bundle, err := loadBundle(modelDir)
		switch {
		case err != nil:
			e.log.WithError(err).Warn("discarding persisted model bundle")
		case bundle != nil:
			e.bundle = bundle
			e.log.WithFields(logrus.Fields{
				"columns":    len(bundle.Columns),
				"trained_at": bundle.LastTrainTime.Format(time.RFC3339),
				"cache_rows": len(bundle.SampleCache),
			}).Info("loaded persisted model bundle")
		}
	}

	return e, nil
}

// IsTrained reports whether a usable model bundle is installed.
func (e *Engine) IsTrained() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bundle != nil
}

// Metrics returns the configured monitored metric set.
func (e *Engine) Metrics() []string {
	return append([]string(nil), e.cfg.Metrics...)
}

// Train fits a new model bundle from the given samples and installs it. The
// returned bool reports whether a usable model is in place afterwards.
//
// Unless force is set, training is skipped while the current model is
// younger than the retrain interval; the skip returns (true, nil). Too few
// clean rows returns (false, *InsufficientDataError) for an untrained
// engine, or (true, err) when a previous model keeps serving.
func (e *Engine) Train(samples []Sample, force bool) (bool, error) {
	if !force {
		e.mu.RLock()
		fresh := e.bundle != nil && time.Since(e.bundle.LastTrainTime) < e.cfg.RetrainInterval
		e.mu.RUnlock()
		if fresh {
			e.log.Debug("skipping training, model within retrain interval")
			return true, nil
		}
	}

	start := time.Now()
	bundle, err := e.buildBundle(samples)
	if err != nil {
		return e.IsTrained(), err
	}

	e.mu.Lock()
	e.bundle = bundle
	e.pending = nil
	e.mu.Unlock()

	elapsed := time.Since(start)
	e.recordTraining(elapsed)
	e.log.WithFields(logrus.Fields{
		"rows":     len(bundle.SampleCache),
		"columns":  len(bundle.Columns),
		"duration": elapsed.Round(time.Millisecond),
	}).Info("model trained")

	if e.modelDir != "" {
		if err := saveBundle(e.modelDir, bundle, e.cfg); err != nil {
			e.log.WithError(err).Warn("model bundle not persisted")
		}
	}

	return true, nil
}

// buildBundle runs the full training pipeline without touching engine state.
func (e *Engine) buildBundle(samples []Sample) (*Bundle, error) {
	corpus, err := CleanCorpus(samples, e.cfg.Metrics, e.log)
	if err != nil {
		return nil, err
	}
	if len(corpus.Rows) < e.cfg.MinDataPoints {
		return nil, &InsufficientDataError{
			Rows:   len(corpus.Rows),
			Needed: e.cfg.MinDataPoints,
			Reason: "training corpus",
		}
	}

	scaler := NewScaler(e.cfg.ScalerKind)
	if err := scaler.Fit(corpus); err != nil {
		return nil, err
	}

	scaled := make([][]float64, len(corpus.Rows))
	for i, row := range corpus.Rows {
		s, err := scaler.Transform(row)
		if err != nil {
			return nil, err
		}
		scaled[i] = s
	}

	forest := scorer.NewIsolationForest(e.cfg.IsolationForest)
	if err := forest.Fit(scaled); err != nil {
		// The primary scorer is mandatory; without it the fused score would
		// rest entirely on the covariance estimate.
		return nil, &ScorerFitError{Scorer: forest.Name(), Err: err}
	}

	covariance := scorer.NewRobustCovariance(e.cfg.Covariance)
	if err := covariance.Fit(scaled); err != nil {
		e.log.WithError(err).Warn("covariance scorer unavailable, detection degrades to isolation forest")
		covariance = nil
	}

	trend, err := fitTrendModel(corpus, e.cfg.TrendWindow)
	if err != nil {
		e.log.WithError(err).Warn("trend model unavailable, forecasts disabled")
		trend = nil
	}

	bundle := &Bundle{
		Columns:       corpus.Columns,
		Scaler:        scaler,
		Forest:        forest,
		Covariance:    covariance,
		Trend:         trend,
		LastTrainTime: time.Now(),
	}
	bundle.appendRows(corpus.Rows, e.cfg.CacheSize)
	return bundle, nil
}

// Detect analyzes one sample against the installed model. The only error it
// returns is ErrModelNotReady; every other failure produces a stale result
// carrying the failure message and the last known health score, so callers
// always get a well-formed payload to report.
//
// Detection does not mutate the bundle: scoring the same sample twice
// against the same model yields the same result.
func (e *Engine) Detect(s Sample) (*DetectionResult, error) {
	start := time.Now()

	e.mu.RLock()
	bundle := e.bundle
	e.mu.RUnlock()
	if bundle == nil {
		return nil, ErrModelNotReady
	}

	row, err := CleanSampleRow(s, bundle.Columns)
	if err != nil {
		return e.staleResult(err), nil
	}

	scaled, err := bundle.Scaler.Transform(row)
	if err != nil {
		return e.staleResult(err), nil
	}

	scores := make(map[string]float64, 2)
	if v, err := bundle.Forest.DecisionFunction(scaled); err == nil {
		scores[bundle.Forest.Name()] = v
	} else {
		e.log.WithError(err).Warn("isolation forest scoring failed")
	}
	if bundle.Covariance != nil {
		if v, err := bundle.Covariance.DecisionFunction(scaled); err == nil {
			scores[bundle.Covariance.Name()] = v
		} else {
			e.log.WithError(err).Warn("covariance scoring failed")
		}
	}
	if len(scores) == 0 {
		return e.staleResult(&ScorerFitError{Scorer: "all", Err: ErrNotFitted}), nil
	}

	fused := FuseScores(scores, e.cfg.FusionWeights)
	isAnomaly := fused < e.cfg.AnomalyThreshold

	result := &DetectionResult{
		IsAnomaly:     isAnomaly,
		AnomalyScore:  fused,
		Confidence:    FusionConfidence(scores),
		Details:       analyzeMetrics(bundle.Columns, row, scaled, e.cfg.SeverityBands),
		HealthScore:   computeHealthScore(bundle.Columns, row, isAnomaly, fused, e.cfg),
		Predictions:   e.forecast(bundle, row),
		MetricsStatus: e.metricsStatus(bundle, row),
		Timestamp:     time.Now(),
	}

	e.recordDetection(time.Since(start), result.HealthScore)
	if isAnomaly {
		e.log.WithFields(logrus.Fields{
			"score":  fused,
			"health": result.HealthScore,
		}).Warn("anomaly detected")
	}
	return result, nil
}

// forecast rolls the trend model forward for every column with a full seed
// window. The seed is the cached tail plus the sample under detection, so
// the newest observation steers the rollout without mutating the bundle.
func (e *Engine) forecast(bundle *Bundle, row []float64) map[string]TrendForecast {
	if bundle.Trend == nil || !bundle.Trend.Trained {
		return nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]TrendForecast, len(bundle.Columns))
	for j, name := range bundle.Columns {
		seed := append(bundle.cacheTail(j, bundle.Trend.Window-1), row[j])
		if len(seed) < bundle.Trend.Window {
			continue
		}
		values := bundle.Trend.Rollout(seed, e.cfg.PredictionHorizon)
		out[name] = TrendForecast{
			Values:     values,
			Trend:      trendDirection(values, e.cfg.TrendSlopeThreshold),
			Confidence: forecastConfidence(seed, values),
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// metricsStatus classifies each metric by the z-score of its raw value
// against the cached recent history. A thin cache yields "pending".
func (e *Engine) metricsStatus(bundle *Bundle, row []float64) map[string]string {
	const minStatusRows = 10

	e.mu.RLock()
	defer e.mu.RUnlock()

	status := make(map[string]string, len(bundle.Columns))
	for j, name := range bundle.Columns {
		if len(bundle.SampleCache) < minStatusRows {
			status[name] = "pending"
			continue
		}
		mean, std, ok := bundle.cacheColumnStats(j)
		if !ok || std == 0 {
			status[name] = "pending"
			continue
		}
		z := (row[j] - mean) / std
		switch {
		case z > 2 || z < -2:
			status[name] = "anomalous"
		case z > 1 || z < -1:
			status[name] = "warning"
		default:
			status[name] = "normal"
		}
	}
	return status
}

// staleResult wraps a detection failure in a reportable payload carrying the
// last known health score.
func (e *Engine) staleResult(err error) *DetectionResult {
	e.log.WithError(err).Warn("detection degraded")

	health := 100.0
	e.statsMu.Lock()
	if n := len(e.healthHistory); n > 0 {
		health = e.healthHistory[n-1]
	}
	e.statsMu.Unlock()

	return &DetectionResult{
		HealthScore: health,
		Timestamp:   time.Now(),
		Stale:       true,
		Error:       err.Error(),
	}
}

// AppendSamples feeds cleaned samples into the retraining cache. Before the
// first training the raw samples are buffered instead, bounded by the cache
// size, so a later RetrainFromCache can bootstrap the model. Returns the
// number of rows accepted.
func (e *Engine) AppendSamples(samples []Sample) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.bundle == nil {
		e.pending = append(e.pending, samples...)
		if len(e.pending) > e.cfg.CacheSize {
			e.pending = append([]Sample(nil), e.pending[len(e.pending)-e.cfg.CacheSize:]...)
		}
		return len(samples)
	}

	rows := make([][]float64, 0, len(samples))
	for _, s := range samples {
		if row, ok := buildRow(s, e.bundle.Columns); ok {
			rows = append(rows, row)
		}
	}
	e.bundle.appendRows(rows, e.cfg.CacheSize)
	return len(rows)
}

// RetrainDue reports whether a background retrain should run now: either the
// model aged past the retrain interval, or the engine is untrained and the
// pending buffer has grown large enough for a first fit.
func (e *Engine) RetrainDue() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.bundle == nil {
		return len(e.pending) >= e.cfg.MinDataPoints
	}
	return time.Since(e.bundle.LastTrainTime) >= e.cfg.RetrainInterval
}

// RetrainFromCache retrains from the engine's own accumulated data: the
// pending buffer when untrained, the sample cache otherwise. On failure the
// previous model keeps serving.
func (e *Engine) RetrainFromCache() (bool, error) {
	e.mu.RLock()
	var samples []Sample
	if e.bundle == nil {
		samples = append([]Sample(nil), e.pending...)
	} else {
		samples = make([]Sample, len(e.bundle.SampleCache))
		for i, row := range e.bundle.SampleCache {
			s := make(Sample, len(e.bundle.Columns))
			for j, name := range e.bundle.Columns {
				s[name] = row[j]
			}
			samples[i] = s
		}
	}
	e.mu.RUnlock()

	return e.Train(samples, true)
}

// ClearCache drops the sample cache, the pending buffer, the health history
// and the timing rings. The trained model itself is kept.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	if e.bundle != nil {
		e.bundle.SampleCache = nil
	}
	e.pending = nil
	e.mu.Unlock()

	e.statsMu.Lock()
	e.healthHistory = nil
	e.detectTimes = nil
	e.trainTimes = nil
	e.statsMu.Unlock()
}

// ModelInfo reports the model state for diagnostics endpoints.
func (e *Engine) ModelInfo() ModelInfo {
	e.mu.RLock()
	bundle := e.bundle
	e.mu.RUnlock()

	info := ModelInfo{
		IsTrained:   bundle != nil,
		Metrics:     e.Metrics(),
		Performance: e.performanceStats(),
	}
	if bundle != nil {
		t := bundle.LastTrainTime
		info.LastTrainTime = &t
		info.CacheRows = len(bundle.SampleCache)
	}

	e.statsMu.Lock()
	if n := len(e.healthHistory); n > 0 {
		stats := HealthStats{
			Current: e.healthHistory[n-1],
			Min:     e.healthHistory[0],
			Max:     e.healthHistory[0],
		}
		sum := 0.0
		for _, v := range e.healthHistory {
			sum += v
			if v < stats.Min {
				stats.Min = v
			}
			if v > stats.Max {
				stats.Max = v
			}
		}
		stats.Average = sum / float64(n)
		info.HealthStats = &stats
	}
	e.statsMu.Unlock()

	return info
}

// Diagnose runs a self-check over the model, cache and timing history and
// suggests operator actions.
func (e *Engine) Diagnose() Diagnosis {
	e.mu.RLock()
	bundle := e.bundle
	pending := len(e.pending)
	e.mu.RUnlock()

	d := Diagnosis{
		ModelStatus:       "ready",
		CacheStatus:       "ready",
		PerformanceStatus: "ok",
	}

	if bundle == nil {
		d.ModelStatus = "untrained"
		d.CacheStatus = "empty"
		if pending > 0 {
			d.CacheStatus = "filling"
		}
		d.Recommendations = append(d.Recommendations,
			"train the model with a baseline corpus of normal operation")
		return d
	}

	if time.Since(bundle.LastTrainTime) >= e.cfg.RetrainInterval {
		d.ModelStatus = "stale"
		d.Recommendations = append(d.Recommendations, "model is past its retrain interval")
	}

	switch cached := len(bundle.SampleCache); {
	case cached == 0:
		d.CacheStatus = "empty"
		d.Recommendations = append(d.Recommendations, "sample cache is empty, retraining will fail")
	case cached < e.cfg.MinDataPoints:
		d.CacheStatus = "filling"
	}

	perf := e.performanceStats()
	if perf.AvgDetectionSeconds > 0.1 {
		d.PerformanceStatus = "slow"
		d.Recommendations = append(d.Recommendations,
			"detection latency is high, consider fewer trees or a smaller sample size")
	}

	return d
}

// HealthTrend summarizes the health score trajectory over the given window.
func (e *Engine) HealthTrend(windowDays int) HealthTrend {
	e.statsMu.Lock()
	history := append([]float64(nil), e.healthHistory...)
	e.statsMu.Unlock()
	return healthTrend(history, windowDays, e.cfg.HealthSlopeThreshold)
}

func (e *Engine) performanceStats() PerformanceStats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	return PerformanceStats{
		AvgDetectionSeconds: meanOf(e.detectTimes),
		AvgTrainingSeconds:  meanOf(e.trainTimes),
		TotalDetections:     e.totalDetections,
		TotalTrainings:      e.totalTrainings,
	}
}

func (e *Engine) recordDetection(elapsed time.Duration, health float64) {
	e.statsMu.Lock()
	e.totalDetections++
	e.detectTimes = appendBounded(e.detectTimes, elapsed.Seconds(), maxTimingSamples)
	e.healthHistory = appendBounded(e.healthHistory, health, maxHealthHistory)
	e.statsMu.Unlock()
}

func (e *Engine) recordTraining(elapsed time.Duration) {
	e.statsMu.Lock()
	e.totalTrainings++
	e.trainTimes = appendBounded(e.trainTimes, elapsed.Seconds(), maxTimingSamples)
	e.statsMu.Unlock()
}

func appendBounded(ring []float64, v float64, capacity int) []float64 {
	ring = append(ring, v)
	if len(ring) > capacity {
		ring = append([]float64(nil), ring[len(ring)-capacity:]...)
	}
	return ring
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
