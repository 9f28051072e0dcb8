package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/tunnelguard/internal/serialmux"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/tunnel.defaults.json"

// Built-in defaults, used when a field is omitted from the loaded file.
const (
	defaultDetectionThresholdCM = 10.0
	defaultSampleCount          = 7
	defaultMinValidSamples      = 3
	defaultTickInterval         = 300 * time.Millisecond
	defaultPedestrianCooldown   = 30 * time.Second
	defaultAlertToneHz          = 3000
	defaultEscalationToneHz     = 5000
	defaultTunnelClearanceCM    = 30.0
	defaultScaleRatio           = 20.0
	defaultSerialPort           = "/dev/ttyACM0"
	defaultBaudRate             = serialmux.DefaultBaudRate
	defaultReplyTimeout         = 500 * time.Millisecond
	defaultShutdownTimeout      = 2 * time.Second
)

// TunnelConfig holds the site-tunable parameters of the controller. Every
// field is optional; the Get* methods supply defaults, so partial files are
// safe.
type TunnelConfig struct {
	// Detection
	DetectionThresholdCM *float64 `json:"detection_threshold_cm,omitempty" yaml:"detection_threshold_cm,omitempty"`
	SampleCount          *int     `json:"sample_count,omitempty" yaml:"sample_count,omitempty"`
	MinValidSamples      *int     `json:"min_valid_samples,omitempty" yaml:"min_valid_samples,omitempty"`

	// Timing
	TickInterval       *string `json:"tick_interval,omitempty" yaml:"tick_interval,omitempty"`             // duration string like "300ms"
	PedestrianCooldown *string `json:"pedestrian_cooldown,omitempty" yaml:"pedestrian_cooldown,omitempty"` // duration string like "30s"

	// Buzzer
	AlertToneHz      *int `json:"alert_tone_hz,omitempty" yaml:"alert_tone_hz,omitempty"`
	EscalationToneHz *int `json:"escalation_tone_hz,omitempty" yaml:"escalation_tone_hz,omitempty"`

	// Model geometry
	TunnelClearanceCM *float64 `json:"tunnel_clearance_cm,omitempty" yaml:"tunnel_clearance_cm,omitempty"`
	ScaleRatio        *float64 `json:"scale_ratio,omitempty" yaml:"scale_ratio,omitempty"`

	// I/O controller link
	SerialPort      *string `json:"serial_port,omitempty" yaml:"serial_port,omitempty"`
	BaudRate        *int    `json:"baud_rate,omitempty" yaml:"baud_rate,omitempty"`
	DataBits        *int    `json:"data_bits,omitempty" yaml:"data_bits,omitempty"`
	StopBits        *int    `json:"stop_bits,omitempty" yaml:"stop_bits,omitempty"`
	Parity          *string `json:"parity,omitempty" yaml:"parity,omitempty"`
	ReplyTimeout    *string `json:"reply_timeout,omitempty" yaml:"reply_timeout,omitempty"`
	ShutdownTimeout *string `json:"shutdown_timeout,omitempty" yaml:"shutdown_timeout,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTunnelConfig returns a TunnelConfig with all fields set to nil.
func EmptyTunnelConfig() *TunnelConfig {
	return &TunnelConfig{}
}

// DefaultTunnelConfig returns a TunnelConfig with every field set to its
// built-in default.
func DefaultTunnelConfig() *TunnelConfig {
	return &TunnelConfig{
		DetectionThresholdCM: ptrFloat64(defaultDetectionThresholdCM),
		SampleCount:          ptrInt(defaultSampleCount),
		MinValidSamples:      ptrInt(defaultMinValidSamples),
		TickInterval:         ptrString(defaultTickInterval.String()),
		PedestrianCooldown:   ptrString(defaultPedestrianCooldown.String()),
		AlertToneHz:          ptrInt(defaultAlertToneHz),
		EscalationToneHz:     ptrInt(defaultEscalationToneHz),
		TunnelClearanceCM:    ptrFloat64(defaultTunnelClearanceCM),
		ScaleRatio:           ptrFloat64(defaultScaleRatio),
		SerialPort:           ptrString(defaultSerialPort),
		BaudRate:             ptrInt(defaultBaudRate),
		DataBits:             ptrInt(8),
		StopBits:             ptrInt(1),
		Parity:               ptrString("N"),
		ReplyTimeout:         ptrString(defaultReplyTimeout.String()),
		ShutdownTimeout:      ptrString(defaultShutdownTimeout.String()),
	}
}

// LoadTunnelConfig loads a TunnelConfig from a JSON or YAML file.
// The file must have a .json, .yaml or .yml extension and be under the max
// file size.
func LoadTunnelConfig(path string) (*TunnelConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTunnelConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TunnelConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/scenario-replay/
	}
	for _, path := range candidates {
		if cfg, err := LoadTunnelConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TunnelConfig) Validate() error {
	if c.DetectionThresholdCM != nil && *c.DetectionThresholdCM <= 0 {
		return fmt.Errorf("detection_threshold_cm must be positive, got %f", *c.DetectionThresholdCM)
	}

	if c.SampleCount != nil && *c.SampleCount < 1 {
		return fmt.Errorf("sample_count must be at least 1, got %d", *c.SampleCount)
	}
	if c.MinValidSamples != nil && *c.MinValidSamples < 1 {
		return fmt.Errorf("min_valid_samples must be at least 1, got %d", *c.MinValidSamples)
	}
	if c.GetMinValidSamples() > c.GetSampleCount() {
		return fmt.Errorf("min_valid_samples (%d) cannot exceed sample_count (%d)", c.GetMinValidSamples(), c.GetSampleCount())
	}

	for name, v := range map[string]*string{
		"tick_interval":       c.TickInterval,
		"pedestrian_cooldown": c.PedestrianCooldown,
		"reply_timeout":       c.ReplyTimeout,
		"shutdown_timeout":    c.ShutdownTimeout,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *v)
		}
	}

	if c.AlertToneHz != nil && *c.AlertToneHz <= 0 {
		return fmt.Errorf("alert_tone_hz must be positive, got %d", *c.AlertToneHz)
	}
	if c.EscalationToneHz != nil && *c.EscalationToneHz <= 0 {
		return fmt.Errorf("escalation_tone_hz must be positive, got %d", *c.EscalationToneHz)
	}

	if c.TunnelClearanceCM != nil && *c.TunnelClearanceCM <= 0 {
		return fmt.Errorf("tunnel_clearance_cm must be positive, got %f", *c.TunnelClearanceCM)
	}
	if c.ScaleRatio != nil && *c.ScaleRatio <= 0 {
		return fmt.Errorf("scale_ratio must be positive, got %f", *c.ScaleRatio)
	}

	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}
	if _, err := c.SerialOptions().Normalize(); err != nil {
		return fmt.Errorf("invalid serial options: %w", err)
	}

	return nil
}

func durationOr(v *string, fallback time.Duration) time.Duration {
	if v == nil || *v == "" {
		return fallback
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fallback // default on parse error
	}
	return d
}

// GetDetectionThresholdCM returns the presence threshold or the default.
func (c *TunnelConfig) GetDetectionThresholdCM() float64 {
	if c.DetectionThresholdCM == nil {
		return defaultDetectionThresholdCM
	}
	return *c.DetectionThresholdCM
}

// GetSampleCount returns the number of probes per reading or the default.
func (c *TunnelConfig) GetSampleCount() int {
	if c.SampleCount == nil {
		return defaultSampleCount
	}
	return *c.SampleCount
}

// GetMinValidSamples returns the number of valid probes needed or the default.
func (c *TunnelConfig) GetMinValidSamples() int {
	if c.MinValidSamples == nil {
		return defaultMinValidSamples
	}
	return *c.MinValidSamples
}

// GetTickInterval parses and returns the TickInterval as a time.Duration.
func (c *TunnelConfig) GetTickInterval() time.Duration {
	return durationOr(c.TickInterval, defaultTickInterval)
}

// GetPedestrianCooldown parses and returns the PedestrianCooldown as a time.Duration.
func (c *TunnelConfig) GetPedestrianCooldown() time.Duration {
	return durationOr(c.PedestrianCooldown, defaultPedestrianCooldown)
}

// GetAlertToneHz returns the alert tone frequency or the default.
func (c *TunnelConfig) GetAlertToneHz() int {
	if c.AlertToneHz == nil {
		return defaultAlertToneHz
	}
	return *c.AlertToneHz
}

// GetEscalationToneHz returns the escalation tone frequency or the default.
func (c *TunnelConfig) GetEscalationToneHz() int {
	if c.EscalationToneHz == nil {
		return defaultEscalationToneHz
	}
	return *c.EscalationToneHz
}

// GetTunnelClearanceCM returns the sensor mounting height or the default.
func (c *TunnelConfig) GetTunnelClearanceCM() float64 {
	if c.TunnelClearanceCM == nil {
		return defaultTunnelClearanceCM
	}
	return *c.TunnelClearanceCM
}

// GetScaleRatio returns the real:model ratio or the default.
func (c *TunnelConfig) GetScaleRatio() float64 {
	if c.ScaleRatio == nil {
		return defaultScaleRatio
	}
	return *c.ScaleRatio
}

// GetSerialPort returns the I/O controller device path or the default.
func (c *TunnelConfig) GetSerialPort() string {
	if c.SerialPort == nil || *c.SerialPort == "" {
		return defaultSerialPort
	}
	return *c.SerialPort
}

// GetReplyTimeout parses and returns the ReplyTimeout as a time.Duration.
func (c *TunnelConfig) GetReplyTimeout() time.Duration {
	return durationOr(c.ReplyTimeout, defaultReplyTimeout)
}

// GetShutdownTimeout parses and returns the ShutdownTimeout as a time.Duration.
func (c *TunnelConfig) GetShutdownTimeout() time.Duration {
	return durationOr(c.ShutdownTimeout, defaultShutdownTimeout)
}

// SerialOptions returns the serial line settings. Unset fields other than the
// baud rate are left zero for PortOptions.Normalize to fill in.
func (c *TunnelConfig) SerialOptions() serialmux.PortOptions {
	opts := serialmux.PortOptions{BaudRate: defaultBaudRate}
	if c.BaudRate != nil {
		opts.BaudRate = *c.BaudRate
	}
	if c.DataBits != nil {
		opts.DataBits = *c.DataBits
	}
	if c.StopBits != nil {
		opts.StopBits = *c.StopBits
	}
	if c.Parity != nil {
		opts.Parity = *c.Parity
	}
	return opts
}
