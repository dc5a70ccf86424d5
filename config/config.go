package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"machine-health-engine/detector"
)

// Config represents the complete service configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Detector  DetectorConfig  `json:"detector"`
	Ingestion IngestionConfig `json:"ingestion"`
	Redis     RedisConfig     `json:"redis"`
	Auth      AuthConfig      `json:"auth"`
	RateLimit RateLimitConfig `json:"rate_limit"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         string   `json:"port"`
	ReadTimeout  Duration `json:"read_timeout"`
	WriteTimeout Duration `json:"write_timeout"`
	IdleTimeout  Duration `json:"idle_timeout"`
}

// DetectorConfig contains detection engine settings. Zero values defer to
// the selected preset; only explicitly set fields override it.
type DetectorConfig struct {
	Preset            string   `json:"preset"` // "default", "industrial", "sensitive", "robust"
	Metrics           []string `json:"metrics"`
	ScalerKind        string   `json:"scaler_kind"`
	MinDataPoints     int      `json:"min_data_points"`
	NumTrees          int      `json:"num_trees"`
	Contamination     float64  `json:"contamination"`
	AnomalyThreshold  float64  `json:"anomaly_threshold"`
	PredictionHorizon int      `json:"prediction_horizon"`
	CacheSize         int      `json:"cache_size"`
	RetrainInterval   Duration `json:"retrain_interval"`
	RetrainCheck      Duration `json:"retrain_check_interval"`
	ModelPath         string   `json:"model_path"`
}

// IngestionConfig contains telemetry intake settings
type IngestionConfig struct {
	BufferSize    int      `json:"buffer_size"`
	BatchSize     int      `json:"batch_size"`
	FlushInterval Duration `json:"flush_interval"`
}

// RedisConfig contains the optional detection result cache settings
type RedisConfig struct {
	Enabled       bool     `json:"enabled"`
	Addr          string   `json:"addr"`
	Password      string   `json:"password"`
	DB            int      `json:"db"`
	RecentResults int      `json:"recent_results"`
	ResultTTL     Duration `json:"result_ttl"`
}

// AuthConfig contains API authentication settings. An empty secret disables
// authentication on mutating routes.
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// RateLimitConfig contains per-instance API rate limiting settings
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			ReadTimeout:  Duration{30 * time.Second},
			WriteTimeout: Duration{30 * time.Second},
			IdleTimeout:  Duration{120 * time.Second},
		},
		Detector: DetectorConfig{
			Preset: "default",
			Metrics: []string{
				"motor_temp", "bearing_temp", "oil_pressure",
				"phase_a_current", "phase_b_current", "phase_c_current",
				"vibration_rms",
			},
			RetrainCheck: Duration{5 * time.Minute},
			ModelPath:    "./data/model",
		},
		Ingestion: IngestionConfig{
			BufferSize:    1000,
			BatchSize:     100,
			FlushInterval: Duration{5 * time.Second},
		},
		Redis: RedisConfig{
			Enabled:       false,
			Addr:          "localhost:6379",
			RecentResults: 100,
			ResultTTL:     Duration{24 * time.Hour},
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
		},
	}
}

// LoadFromFile loads configuration from a JSON file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	return config, nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if port := os.Getenv("MHE_PORT"); port != "" {
		config.Server.Port = port
	}

	if preset := os.Getenv("MHE_PRESET"); preset != "" {
		config.Detector.Preset = preset
	}

	if modelPath := os.Getenv("MHE_MODEL_PATH"); modelPath != "" {
		config.Detector.ModelPath = modelPath
	}

	if minPoints := os.Getenv("MHE_MIN_DATA_POINTS"); minPoints != "" {
		if val, err := strconv.Atoi(minPoints); err == nil {
			config.Detector.MinDataPoints = val
		}
	}

	if bufferSize := os.Getenv("MHE_BUFFER_SIZE"); bufferSize != "" {
		if val, err := strconv.Atoi(bufferSize); err == nil {
			config.Ingestion.BufferSize = val
		}
	}

	if addr := os.Getenv("MHE_REDIS_ADDR"); addr != "" {
		config.Redis.Enabled = true
		config.Redis.Addr = addr
	}

	if secret := os.Getenv("MHE_JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}

	return config
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", filename, err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	if len(c.Detector.Metrics) == 0 {
		return fmt.Errorf("detector metric list cannot be empty")
	}
	if c.Detector.RetrainCheck.Duration <= 0 {
		return fmt.Errorf("retrain check interval must be positive")
	}

	if c.Ingestion.BufferSize <= 0 {
		return fmt.Errorf("ingestion buffer size must be positive")
	}
	if c.Ingestion.BatchSize <= 0 {
		return fmt.Errorf("ingestion batch size must be positive")
	}
	if c.Ingestion.FlushInterval.Duration <= 0 {
		return fmt.Errorf("ingestion flush interval must be positive")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr cannot be empty when enabled")
	}

	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values cannot be negative")
	}

	// Preset resolution catches the remaining detector fields.
	if _, err := c.Detector.ToEngineConfig(); err != nil {
		return err
	}

	return nil
}

// ToEngineConfig resolves the preset and applies the explicit overrides,
// producing the detection engine configuration.
func (d *DetectorConfig) ToEngineConfig() (detector.Config, error) {
	cfg, err := detector.PresetConfig(d.Preset, d.Metrics)
	if err != nil {
		return detector.Config{}, err
	}

	if d.ScalerKind != "" {
		cfg.ScalerKind = d.ScalerKind
	}
	if d.MinDataPoints > 0 {
		cfg.MinDataPoints = d.MinDataPoints
	}
	if d.NumTrees > 0 {
		cfg.IsolationForest.NumTrees = d.NumTrees
	}
	if d.Contamination > 0 {
		cfg.IsolationForest.Contamination = d.Contamination
		cfg.Covariance.Contamination = d.Contamination
	}
	if d.AnomalyThreshold != 0 {
		cfg.AnomalyThreshold = d.AnomalyThreshold
	}
	if d.PredictionHorizon > 0 {
		cfg.PredictionHorizon = d.PredictionHorizon
	}
	if d.CacheSize > 0 {
		cfg.CacheSize = d.CacheSize
	}
	if d.RetrainInterval.Duration > 0 {
		cfg.RetrainInterval = d.RetrainInterval.Duration
	}

	if err := cfg.Validate(); err != nil {
		return detector.Config{}, err
	}
	return cfg, nil
}

// EnsureDataDirectories creates the model directory if configured
func (c *Config) EnsureDataDirectories() error {
	if c.Detector.ModelPath == "" {
		return nil
	}
	if err := os.MkdirAll(c.Detector.ModelPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.Detector.ModelPath, err)
	}
	return nil
}

// ConfigManager handles configuration loading and hot-reloading
type ConfigManager struct {
	config   *Config
	filename string
	watchers []func(*Config)
}

// NewConfigManager creates a new configuration manager
func NewConfigManager(filename string) (*ConfigManager, error) {
	var config *Config
	var err error

	if filename != "" && fileExists(filename) {
		config, err = LoadFromFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	} else {
		config = LoadFromEnv()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := config.EnsureDataDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create data directories: %w", err)
	}

	return &ConfigManager{
		config:   config,
		filename: filename,
		watchers: make([]func(*Config), 0),
	}, nil
}

// GetConfig returns the current configuration
func (cm *ConfigManager) GetConfig() *Config {
	return cm.config
}

// AddWatcher adds a function to be called when configuration changes
func (cm *ConfigManager) AddWatcher(fn func(*Config)) {
	cm.watchers = append(cm.watchers, fn)
}

// Reload reloads the configuration from file
func (cm *ConfigManager) Reload() error {
	if cm.filename == "" || !fileExists(cm.filename) {
		return fmt.Errorf("no config file to reload")
	}

	newConfig, err := LoadFromFile(cm.filename)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}

	if err := newConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.config = newConfig

	// Notify watchers
	for _, watcher := range cm.watchers {
		watcher(newConfig)
	}

	return nil
}

// fileExists checks if a file exists
func fileExists(filename string) bool {
	_, err := os.Stat(filename)
	return !os.IsNotExist(err)
}
