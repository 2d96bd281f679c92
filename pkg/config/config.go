// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Pipeline, Signal, SPI, Postgres, Kafka, Redis, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Signal   SignalConfig   `yaml:"signal"`
	ECGGate  GateConfig     `yaml:"ecgGate"`
	PPGGate  GateConfig     `yaml:"ppgGate"`
	SPI      SPIConfig      `yaml:"spi"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// PipelineConfig controls the file-level batch driver.
type PipelineConfig struct {
	DataDir   string `yaml:"dataDir"`
	OutputDir string `yaml:"outputDir"`
	Workers   int    `yaml:"workers"`
}

// SignalConfig holds the sampling constants shared by the ANI core. Every
// component takes it explicitly; there are no package-level signal globals.
type SignalConfig struct {
	SampleRate        float64 `yaml:"sampleRate"`
	InterpolationRate float64 `yaml:"interpolationRate"`
	WindowSeconds     int     `yaml:"windowSeconds"`
	HFBandLow         float64 `yaml:"hfBandLow"`
	HFBandHigh        float64 `yaml:"hfBandHigh"`
	EnvelopeClip      float64 `yaml:"envelopeClip"`
	AreaCalibration   float64 `yaml:"areaCalibration"`
}

// GateConfig holds quality-gate thresholds for one waveform channel.
type GateConfig struct {
	Track        string  `yaml:"track"`
	NaNThreshold float64 `yaml:"nanThreshold"`
	MinAmplitude float64 `yaml:"minAmplitude"`
	MaxAmplitude float64 `yaml:"maxAmplitude"`
}

// SPIConfig controls the optional SPI filter plugin. Enabled is a capability
// flag resolved once at startup; the pipeline never probes at runtime.
type SPIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Filter  string `yaml:"filter"`
	Color   uint32 `yaml:"color"`
}

// PostgresConfig holds PostgreSQL connection parameters for the optional
// result store.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds broker and topic settings for the optional completion
// event stream.
type KafkaConfig struct {
	Enabled bool        `yaml:"enabled"`
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	RecordingDone string `yaml:"recordingDone"`
}

// RedisConfig holds connection parameters for the optional processed-file
// marker cache.
type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"poolSize"`
	MarkerTTL time.Duration `yaml:"markerTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Signal.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the sampling constants for internal consistency.
func (s SignalConfig) Validate() error {
	if s.SampleRate <= 0 {
		return fmt.Errorf("signal.sampleRate must be positive, got %v", s.SampleRate)
	}
	if s.InterpolationRate <= 0 {
		return fmt.Errorf("signal.interpolationRate must be positive, got %v", s.InterpolationRate)
	}
	if s.WindowSeconds <= 0 {
		return fmt.Errorf("signal.windowSeconds must be positive, got %d", s.WindowSeconds)
	}
	nyquist := s.InterpolationRate / 2
	if s.HFBandLow <= 0 || s.HFBandHigh <= s.HFBandLow || s.HFBandHigh >= nyquist {
		return fmt.Errorf("signal HF band [%v, %v] must satisfy 0 < low < high < nyquist %v",
			s.HFBandLow, s.HFBandHigh, nyquist)
	}
	return nil
}

// GridLen returns the number of points on the uniform resampling grid,
// spanning [0, WindowSeconds] inclusive at InterpolationRate.
func (s SignalConfig) GridLen() int {
	return s.WindowSeconds*int(s.InterpolationRate) + 1
}

// WindowSamples returns the number of raw samples in one analysis window,
// excluding the extra trailing sample the driver appends.
func (s SignalConfig) WindowSamples() int {
	return s.WindowSeconds * int(s.SampleRate)
}

// defaultConfig returns a Config with the monitor's native constants and
// production-ready defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			DataDir:   "data",
			OutputDir: "out",
			Workers:   0, // 0 means GOMAXPROCS
		},
		Signal: SignalConfig{
			SampleRate:        100,
			InterpolationRate: 4,
			WindowSeconds:     64,
			HFBandLow:         0.15,
			HFBandHigh:        0.4,
			EnvelopeClip:      0.1,
			AreaCalibration:   12.8,
		},
		ECGGate: GateConfig{
			Track:        "Intellivue/ECG_II",
			NaNThreshold: 0.5,
			MinAmplitude: -1.0,
			MaxAmplitude: 3.0,
		},
		PPGGate: GateConfig{
			Track:        "Intellivue/PLETH",
			NaNThreshold: 0.5,
			MinAmplitude: 0.0,
			MaxAmplitude: 100.0,
		},
		SPI: SPIConfig{
			Enabled: true,
			Filter:  "pleth_spi",
			Color:   3634859,
		},
		Postgres: PostgresConfig{
			Enabled:         false,
			Host:            "localhost",
			Port:            5432,
			Database:        "vitalproc",
			User:            "vitalproc",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Enabled: false,
			Brokers: []string{"localhost:9092"},
			Topics: KafkaTopics{
				RecordingDone: "recording-done",
			},
		},
		Redis: RedisConfig{
			Enabled:   false,
			Addr:      "localhost:6379",
			Password:  "",
			DB:        0,
			PoolSize:  10,
			MarkerTTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads VP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VP_DATA_DIR"); v != "" {
		cfg.Pipeline.DataDir = v
	}
	if v := os.Getenv("VP_OUTPUT_DIR"); v != "" {
		cfg.Pipeline.OutputDir = v
	}
	if v := os.Getenv("VP_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Workers = n
		}
	}
	if v := os.Getenv("VP_SPI_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.SPI.Enabled = b
		}
	}
	if v := os.Getenv("VP_POSTGRES_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Postgres.Enabled = b
		}
	}
	if v := os.Getenv("VP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("VP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("VP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("VP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("VP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("VP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("VP_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("VP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("VP_REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = b
		}
	}
	if v := os.Getenv("VP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("VP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("VP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("VP_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
