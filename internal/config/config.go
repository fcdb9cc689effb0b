package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment variable, e.g. CURVE_SERVER_ADDR.
const EnvPrefix = "CURVE"

// FileEnv names the variable pointing at an optional YAML config file.
const FileEnv = EnvPrefix + "_CONFIG_FILE"

// Config is the complete application configuration.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Analysis AnalysisConfig `yaml:"analysis" envconfig:"ANALYSIS"`
	Export   ExportConfig   `yaml:"export" envconfig:"EXPORT"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout stderr file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_if=Output file,required_if=Output both"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gte=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" validate:"gt=0"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" validate:"gte=0"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" validate:"gte=1"`
}

// AnalysisConfig controls enrichment and structure detection.
type AnalysisConfig struct {
	SmoothingWindow int     `yaml:"smoothing_window" envconfig:"SMOOTHING_WINDOW" validate:"min=1,max=1000"`
	DwellVelocity   float64 `yaml:"dwell_velocity" envconfig:"DWELL_VELOCITY" validate:"gte=0"`
	Parallelism     int     `yaml:"parallelism" envconfig:"PARALLELISM" validate:"gte=0"`
}

// ExportConfig holds artifact defaults for curve_analyze.
type ExportConfig struct {
	Format     string `yaml:"format" envconfig:"FORMAT" validate:"oneof=parquet csv xlsx"`
	Charts     bool   `yaml:"charts" envconfig:"CHARTS"`
	ChartAxes  string `yaml:"chart_axes" envconfig:"CHART_AXES"`
	Overwrite  bool   `yaml:"overwrite" envconfig:"OVERWRITE"`
	CopySource bool   `yaml:"copy_source" envconfig:"COPY_SOURCE"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxUploadBytes:  32 << 20,
			RateLimitRPS:    20,
			RateLimitBurst:  40,
		},
		Analysis: AnalysisConfig{
			SmoothingWindow: 5,
			DwellVelocity:   0.5,
		},
		Export: ExportConfig{
			Format:     "parquet",
			Overwrite:  true,
			CopySource: true,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by CURVE_CONFIG_FILE, and CURVE_* environment variables, in that order of
// increasing precedence.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(FileEnv))
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// loadFromFile overlays the YAML file on cfg; keys missing from the file keep
// their current value.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

var validate = validator.New()

// Validate checks every field constraint.
func (c *Config) Validate() error {
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	c.Logging.Output = strings.ToLower(c.Logging.Output)
	c.Export.Format = strings.ToLower(c.Export.Format)

	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
