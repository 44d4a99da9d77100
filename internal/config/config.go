// Package config handles configuration loading for the edge sensor.
// The full configuration surface is consumed at construction time; nothing
// is re-derived at runtime.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jondmarien/automotive-security-capstone-sub001/internal/filter"
)

// Config holds the complete sensor configuration.
type Config struct {
	Device      DeviceConfig      `yaml:"device"`
	Capture     CaptureConfig     `yaml:"capture"`
	Filter      FilterConfig      `yaml:"filter"`
	Analyzer    AnalyzerConfig    `yaml:"analyzer"`
	Evidence    EvidenceConfig    `yaml:"evidence"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Alerting    AlertingConfig    `yaml:"alerting"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// DeviceConfig identifies the sensor.
type DeviceConfig struct {
	ID string `yaml:"id" validate:"required"`
}

// CaptureConfig holds capture source settings.
type CaptureConfig struct {
	Kind          string        `yaml:"kind" validate:"oneof=mock tcp"`
	Seed          int64         `yaml:"seed"`
	Interval      time.Duration `yaml:"interval"`
	NFCRatio      float64       `yaml:"nfc_ratio" validate:"gte=0,lte=1"`
	Address       string        `yaml:"address"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	MaxLineLength int           `yaml:"max_line_length"`
}

// FilterConfig holds admission filter settings.
type FilterConfig struct {
	Bands           []BandConfig  `yaml:"bands" validate:"min=1,dive"`
	MinStrength     float64       `yaml:"min_strength_dbm"`
	DuplicateWindow time.Duration `yaml:"duplicate_window" validate:"gt=0"`
}

// BandConfig is one inclusive frequency band in Hz.
type BandConfig struct {
	Low  float64 `yaml:"low_hz" validate:"gt=0"`
	High float64 `yaml:"high_hz" validate:"gt=0"`
}

// AnalyzerConfig holds detection windows and thresholds.
type AnalyzerConfig struct {
	ReplayWindow        time.Duration `yaml:"replay_window" validate:"gt=0"`
	ReplayTolerance     float64       `yaml:"replay_tolerance_db" validate:"gte=0"`
	JamWindow           time.Duration `yaml:"jam_window" validate:"gt=0"`
	JamThreshold        int           `yaml:"jam_threshold" validate:"gt=0"`
	BruteForceWindow    time.Duration `yaml:"brute_force_window" validate:"gt=0"`
	BruteForceThreshold int           `yaml:"brute_force_threshold" validate:"gt=0"`
}

// EvidenceConfig holds bounded store capacities.
type EvidenceConfig struct {
	ObservationCapacity int `yaml:"observation_capacity" validate:"gt=0"`
	AlertCapacity       int `yaml:"alert_capacity" validate:"gt=0"`
}

// CorrelationConfig holds RF-NFC correlation settings.
type CorrelationConfig struct {
	ActivationThreshold float64       `yaml:"activation_threshold" validate:"gte=0,lte=1"`
	Timeout             time.Duration `yaml:"timeout" validate:"gt=0"`
}

// AlertingConfig holds alert delivery settings.
type AlertingConfig struct {
	Webhook    WebhookConfig    `yaml:"webhook"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	DTLS       DTLSConfig       `yaml:"dtls"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Delivery   DeliveryConfig   `yaml:"delivery"`
}

// WebhookConfig holds webhook channel settings.
type WebhookConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// KafkaConfig holds fleet-backend Kafka channel settings.
type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DTLSConfig holds short-range secure datagram channel settings.
type DTLSConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Address     string        `yaml:"address"`
	PSK         string        `yaml:"psk"`
	PSKIdentity string        `yaml:"psk_identity"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// EncryptionConfig holds outbound alert encryption settings.
type EncryptionConfig struct {
	Enabled    bool   `yaml:"enabled"`
	MasterKey  string `yaml:"master_key"`
	KeyVersion int    `yaml:"key_version"`
}

// DeliveryConfig holds retry settings for alert delivery.
type DeliveryConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	BackoffFactor  float64       `yaml:"backoff_factor"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// ServerConfig holds the health/status HTTP surface settings.
type ServerConfig struct {
	HTTPPort     int           `yaml:"http_port" validate:"gt=0,lte=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// DefaultConfig returns the default sensor configuration.
func DefaultConfig() *Config {
	fc := filter.DefaultConfig()
	bands := make([]BandConfig, 0, len(fc.Bands))
	for _, b := range fc.Bands {
		bands = append(bands, BandConfig{Low: b.Low, High: b.High})
	}

	return &Config{
		Device: DeviceConfig{
			ID: "rf-sentinel-0",
		},
		Capture: CaptureConfig{
			Kind:          "mock",
			Interval:      100 * time.Millisecond,
			NFCRatio:      0.05,
			DialTimeout:   5 * time.Second,
			IdleTimeout:   5 * time.Minute,
			MaxLineLength: 65535,
		},
		Filter: FilterConfig{
			Bands:           bands,
			MinStrength:     fc.MinStrength,
			DuplicateWindow: fc.DuplicateWindow,
		},
		Analyzer: AnalyzerConfig{
			ReplayWindow:        10 * time.Second,
			ReplayTolerance:     1.0,
			JamWindow:           1 * time.Second,
			JamThreshold:        10,
			BruteForceWindow:    10 * time.Second,
			BruteForceThreshold: 8,
		},
		Evidence: EvidenceConfig{
			ObservationCapacity: 1000,
			AlertCapacity:       200,
		},
		Correlation: CorrelationConfig{
			ActivationThreshold: 0.8,
			Timeout:             30 * time.Second,
		},
		Alerting: AlertingConfig{
			Delivery: DeliveryConfig{
				MaxRetries:     5,
				InitialBackoff: 1 * time.Second,
				MaxBackoff:     30 * time.Second,
				BackoffFactor:  2.0,
				AttemptTimeout: 10 * time.Second,
			},
		},
		Server: ServerConfig{
			HTTPPort:     8090,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from the path in SENTINEL_CONFIG, falling back
// to defaults when the variable is unset. File values overlay defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("SENTINEL_CONFIG")
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration, rejecting out-of-range values before
// any component is constructed.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	for _, b := range c.Filter.Bands {
		if b.Low > b.High {
			return fmt.Errorf("invalid config: band [%g, %g] has low > high", b.Low, b.High)
		}
	}

	if c.Capture.Kind == "tcp" && c.Capture.Address == "" {
		return fmt.Errorf("invalid config: tcp capture requires an address")
	}
	if c.Alerting.Webhook.Enabled && c.Alerting.Webhook.URL == "" {
		return fmt.Errorf("invalid config: webhook channel requires a url")
	}
	if c.Alerting.Kafka.Enabled && (len(c.Alerting.Kafka.Brokers) == 0 || c.Alerting.Kafka.Topic == "") {
		return fmt.Errorf("invalid config: kafka channel requires brokers and a topic")
	}
	if c.Alerting.DTLS.Enabled && (c.Alerting.DTLS.Address == "" || c.Alerting.DTLS.PSK == "") {
		return fmt.Errorf("invalid config: dtls channel requires an address and a psk")
	}
	if c.Alerting.Encryption.Enabled && c.Alerting.Encryption.MasterKey == "" {
		return fmt.Errorf("invalid config: alert encryption requires a master key")
	}
	return nil
}
