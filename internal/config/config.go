package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds service and scoring settings. Values are read from an
// optional YAML file named by CONFIG_FILE and then overridden by the
// environment.
type Config struct {
	Host               string        `yaml:"host"`
	Port               string        `yaml:"port"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	ImageFetchTimeout  time.Duration `yaml:"image_fetch_timeout"`
	AnalysisTimeout    time.Duration `yaml:"analysis_timeout"`
	MaxRequestBodySize int64         `yaml:"max_request_body_size"`
	MaxImagePixels     int64         `yaml:"max_image_pixels"`
	MaxBatchSize       int           `yaml:"max_batch_size"`
	MaxWorkers         int           `yaml:"max_workers"`

	// ModelSource names the pristine model artifact. It has no default;
	// the API server and the full pipeline require it.
	ModelSource      string `yaml:"model_source"`
	AzureAccountName string `yaml:"azure_account_name"`
	AzureAccountKey  string `yaml:"-"`
	HistoryDB        string `yaml:"history_db"`

	Scoring ScoringConfig `yaml:"scoring"`
}

// ErrNoModelSource is returned when a component needs the pristine model
// and none is configured.
var ErrNoModelSource = errors.New("MODEL_SOURCE must be set")

// ScoringConfig mirrors the tunables of the scoring engine.
type ScoringConfig struct {
	DefaultPipeline  string  `yaml:"default_pipeline"`
	BlockSize        int     `yaml:"block_size"`
	Scales           []int   `yaml:"scales"`
	CropBorder       int     `yaml:"crop_border"`
	ResizeTo         int     `yaml:"resize_to"`
	MinPatchVariance float64 `yaml:"min_patch_variance"`
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Host:               "0.0.0.0",
		Port:               "8080",
		RequestTimeout:     60 * time.Second,
		ImageFetchTimeout:  15 * time.Second,
		AnalysisTimeout:    30 * time.Second,
		MaxRequestBodySize: 64 * 1024 * 1024, // 64MB, batches carry base64 images
		MaxImagePixels:     40_000_000,
		MaxBatchSize:       50,
		Scoring: ScoringConfig{
			DefaultPipeline:  "full",
			BlockSize:        84,
			Scales:           []int{0, 1},
			ResizeTo:         300,
			MinPatchVariance: 1.0,
		},
	}
}

func LoadFromEnv() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Host = getEnvOrDefault("HOST", cfg.Host)
	cfg.Port = getEnvOrDefault("PORT", cfg.Port)
	cfg.RequestTimeout = parseDurationOrDefault("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.ImageFetchTimeout = parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", cfg.ImageFetchTimeout)
	cfg.AnalysisTimeout = parseDurationOrDefault("ANALYSIS_TIMEOUT", cfg.AnalysisTimeout)
	cfg.MaxRequestBodySize = parseIntOrDefault("MAX_REQUEST_BODY_SIZE", cfg.MaxRequestBodySize)
	cfg.MaxImagePixels = parseIntOrDefault("MAX_IMAGE_PIXELS", cfg.MaxImagePixels)
	cfg.MaxBatchSize = int(parseIntOrDefault("MAX_BATCH_SIZE", int64(cfg.MaxBatchSize)))
	cfg.MaxWorkers = int(parseIntOrDefault("MAX_WORKERS", int64(cfg.MaxWorkers)))
	cfg.ModelSource = getEnvOrDefault("MODEL_SOURCE", cfg.ModelSource)
	cfg.AzureAccountName = getEnvOrDefault("AZURE_STORAGE_ACCOUNT", cfg.AzureAccountName)
	cfg.AzureAccountKey = getEnvOrDefault("AZURE_STORAGE_KEY", cfg.AzureAccountKey)
	cfg.HistoryDB = getEnvOrDefault("HISTORY_DB", cfg.HistoryDB)

	s := &cfg.Scoring
	s.DefaultPipeline = getEnvOrDefault("DEFAULT_PIPELINE", s.DefaultPipeline)
	s.BlockSize = int(parseIntOrDefault("BLOCK_SIZE", int64(s.BlockSize)))
	s.CropBorder = int(parseIntOrDefault("CROP_BORDER", int64(s.CropBorder)))
	s.ResizeTo = int(parseIntOrDefault("RESIZE_TO", int64(s.ResizeTo)))
	s.MinPatchVariance = parseFloatOrDefault("MIN_PATCH_VARIANCE", s.MinPatchVariance)
	if value := os.Getenv("SCALES"); value != "" {
		scales, err := ParseScales(value)
		if err != nil {
			return nil, err
		}
		s.Scales = scales
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeFile overlays the YAML document at path onto c.
func (c *Config) MergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Validate checks ranges that would otherwise fail deep inside the engine.
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.AnalysisTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, analysis=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.AnalysisTimeout)
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("MAX_BATCH_SIZE must be > 0 (got %d)", c.MaxBatchSize)
	}
	if c.MaxWorkers < 0 {
		return fmt.Errorf("MAX_WORKERS must be >= 0 (got %d)", c.MaxWorkers)
	}
	if c.MaxImagePixels <= 0 {
		return fmt.Errorf("MAX_IMAGE_PIXELS must be > 0 (got %d)", c.MaxImagePixels)
	}

	s := c.Scoring
	if s.BlockSize < 8 {
		return fmt.Errorf("BLOCK_SIZE must be >= 8 (got %d)", s.BlockSize)
	}
	if len(s.Scales) == 0 {
		return fmt.Errorf("SCALES must list at least one octave")
	}
	for _, sc := range s.Scales {
		if sc < 0 || sc > 4 {
			return fmt.Errorf("SCALES entries must be in [0,4] (got %d)", sc)
		}
	}
	if s.CropBorder < 0 {
		return fmt.Errorf("CROP_BORDER must be >= 0 (got %d)", s.CropBorder)
	}
	if s.ResizeTo < 16 {
		return fmt.Errorf("RESIZE_TO must be >= 16 (got %d)", s.ResizeTo)
	}
	if s.MinPatchVariance < 0 {
		return fmt.Errorf("MIN_PATCH_VARIANCE must be >= 0 (got %g)", s.MinPatchVariance)
	}
	return nil
}

// RequireModel reports ErrNoModelSource when ModelSource is blank.
func (c *Config) RequireModel() error {
	if strings.TrimSpace(c.ModelSource) == "" {
		return ErrNoModelSource
	}
	return nil
}

// Workers resolves the configured worker count.
func (c *Config) Workers() int {
	if c.MaxWorkers > 0 {
		return c.MaxWorkers
	}
	return DefaultWorkers()
}

// ParseScales parses a comma separated octave list such as "0,1".
func ParseScales(value string) ([]int, error) {
	parts := strings.Split(value, ",")
	scales := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid SCALES entry %q: %w", part, err)
		}
		scales = append(scales, n)
	}
	if len(scales) == 0 {
		return nil, fmt.Errorf("invalid SCALES: %q", value)
	}
	return scales, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}
